package trust

import (
	"crypto"
	"crypto/x509"
	"math/big"
)

// NameID is a statistically-unique small identifier computed over the raw
// bytes of a Distinguished Name. It lets CRL cache keys and log lines refer
// to a certificate's issuer without repeating its full DN.
type NameID int64

// SubjectNameID returns the NameID of a certificate's Subject.
func SubjectNameID(c *x509.Certificate) NameID {
	return truncatedHash(c.RawSubject)
}

// IssuerNameID returns the NameID of a certificate's Issuer, i.e. the NameID
// that the issuing certificate's own SubjectNameID must equal for the two to
// link into a chain.
func IssuerNameID(c *x509.Certificate) NameID {
	return truncatedHash(c.RawIssuer)
}

// truncatedHash computes a truncated SHA1 hash over arbitrary DER bytes.
// Collisions are acceptable: NameID is used only for cache keys and log
// correlation, never as a security boundary.
func truncatedHash(name []byte) NameID {
	h := crypto.SHA1.New()
	h.Write(name)
	s := h.Sum(nil)
	return NameID(big.NewInt(0).SetBytes(s[:7]).Int64())
}

// CertificatesEqual reports whether two certificates are the same anchor:
// equal subject, issuer, serial number, and raw signature bytes. Used to
// match a chain's terminal element against the trust anchor store.
func CertificatesEqual(a, b *x509.Certificate) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.RawSubject != nil && b.RawSubject != nil &&
		string(a.RawSubject) == string(b.RawSubject) &&
		string(a.RawIssuer) == string(b.RawIssuer) &&
		a.SerialNumber != nil && b.SerialNumber != nil &&
		a.SerialNumber.Cmp(b.SerialNumber) == 0 &&
		string(a.Signature) == string(b.Signature)
}
