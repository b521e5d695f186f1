package trust

import "crypto/x509"

// AlgorithmPolicy classifies signature algorithms as acceptable or weak.
// The default policy rejects MD2 and MD5 outright, tolerates SHA-1 only for
// legacy CRL signatures (never for certificate signatures), and accepts
// SHA-256-or-stronger RSA, RSA-PSS, ECDSA, and DSA, plus Ed25519.
//
// Earlier Go releases required hand-decoding the signature algorithm OID
// out of the raw ASN.1 (see the table this policy is grounded on); the
// standard library now exposes it directly as x509.SignatureAlgorithm on
// both *x509.Certificate and *x509.RevocationList, so the policy operates
// on that enum rather than re-deriving it from OIDs.
type AlgorithmPolicy struct {
	// AllowSHA1ForCRLs permits SHA-1 signatures on CRLs (but never on
	// certificates) for compatibility with legacy issuers. Defaults to true
	// to match widely deployed CRL issuers that have not rotated off SHA-1.
	AllowSHA1ForCRLs bool
}

// DefaultAlgorithmPolicy returns the policy described above.
func DefaultAlgorithmPolicy() AlgorithmPolicy {
	return AlgorithmPolicy{AllowSHA1ForCRLs: true}
}

var weakAlgorithms = map[x509.SignatureAlgorithm]bool{
	x509.MD2WithRSA: true,
	x509.MD5WithRSA: true,
}

var sha1Algorithms = map[x509.SignatureAlgorithm]bool{
	x509.SHA1WithRSA:   true,
	x509.DSAWithSHA1:   true,
	x509.ECDSAWithSHA1: true,
}

var acceptableAlgorithms = map[x509.SignatureAlgorithm]bool{
	x509.SHA256WithRSA:    true,
	x509.SHA384WithRSA:    true,
	x509.SHA512WithRSA:    true,
	x509.SHA256WithRSAPSS: true,
	x509.SHA384WithRSAPSS: true,
	x509.SHA512WithRSAPSS: true,
	x509.DSAWithSHA256:    true,
	x509.ECDSAWithSHA256:  true,
	x509.ECDSAWithSHA384:  true,
	x509.ECDSAWithSHA512:  true,
	x509.PureEd25519:      true,
}

// CheckCertificate applies the policy to a certificate signature algorithm.
// SHA-1 is never acceptable for a certificate, regardless of
// AllowSHA1ForCRLs.
func (p AlgorithmPolicy) CheckCertificate(alg x509.SignatureAlgorithm) TrustLinkerResult {
	if weakAlgorithms[alg] || sha1Algorithms[alg] {
		return UntrustedResult(InvalidAlgorithm, alg.String())
	}
	if acceptableAlgorithms[alg] {
		return TrustedResult()
	}
	return UntrustedResult(InvalidAlgorithm, alg.String())
}

// CheckCRL applies the policy to a CRL signature algorithm, tolerating
// SHA-1 when AllowSHA1ForCRLs is set.
func (p AlgorithmPolicy) CheckCRL(alg x509.SignatureAlgorithm) TrustLinkerResult {
	if weakAlgorithms[alg] {
		return UntrustedResult(InvalidAlgorithm, alg.String())
	}
	if sha1Algorithms[alg] {
		if p.AllowSHA1ForCRLs {
			return TrustedResult()
		}
		return UntrustedResult(InvalidAlgorithm, alg.String())
	}
	if acceptableAlgorithms[alg] {
		return TrustedResult()
	}
	return UntrustedResult(InvalidAlgorithm, alg.String())
}
