package trust

import (
	"context"
	"crypto/x509"
	"time"
)

// Reason is a short machine-readable code explaining an Untrusted verdict.
type Reason string

const (
	InvalidSignature        Reason = "INVALID_SIGNATURE"
	InvalidRevocationStatus Reason = "INVALID_REVOCATION_STATUS"
	InvalidValidityInterval Reason = "INVALID_VALIDITY_INTERVAL"
	InvalidKeyUsage         Reason = "INVALID_KEY_USAGE"
	InvalidTrust            Reason = "INVALID_TRUST"
	InvalidAlgorithm        Reason = "INVALID_ALGORITHM"
	RootNotTrusted          Reason = "ROOT_NOT_TRUSTED"
)

// Verdict is the tri-state result of a trust decision: Trusted, Untrusted
// (with a Reason and Detail), or Abstain (no opinion, let the next linker or
// check decide).
type Verdict int

const (
	Abstain Verdict = iota
	Trusted
	Untrusted
)

func (v Verdict) String() string {
	switch v {
	case Trusted:
		return "Trusted"
	case Untrusted:
		return "Untrusted"
	default:
		return "Abstain"
	}
}

// TrustLinkerResult is the value a TrustLinker returns for one
// (child, issuer) pair.
type TrustLinkerResult struct {
	Verdict Verdict
	Reason  Reason
	Detail  string
	// Cause is a short machine-readable label set only on Abstain verdicts,
	// identifying why the linker had no opinion (e.g. "crl_unavailable",
	// "indirect_crl"). It feeds the Abstains metric's "cause" label.
	Cause string
}

// TrustedResult is the canonical Trusted verdict.
func TrustedResult() TrustLinkerResult {
	return TrustLinkerResult{Verdict: Trusted}
}

// AbstainResult is the canonical Abstain verdict, with no cause recorded.
func AbstainResult() TrustLinkerResult {
	return TrustLinkerResult{Verdict: Abstain}
}

// AbstainResultWithCause is an Abstain verdict carrying why the linker
// abstained, for metrics and logging.
func AbstainResultWithCause(cause string) TrustLinkerResult {
	return TrustLinkerResult{Verdict: Abstain, Cause: cause}
}

// UntrustedResult builds an Untrusted verdict with a reason and detail.
func UntrustedResult(reason Reason, detail string) TrustLinkerResult {
	return TrustLinkerResult{Verdict: Untrusted, Reason: reason, Detail: detail}
}

// TrustLinker decides revocation status for one (child, issuer) pair. It
// returns Abstain, never an error, for conditions that should fall through
// to the next linker in the pipeline (cache miss, fetch failure, unsupported
// extension). A non-nil error means a structural parse failure on data that
// should already have been validated upstream (e.g. malformed ASN.1 inside
// a CRL extension on a CRL that already passed signature verification) and
// is fatal: it short-circuits the whole chain walk rather than advancing to
// the next linker.
type TrustLinker interface {
	HasTrustLink(ctx context.Context, child, issuer *x509.Certificate, validationTime time.Time, sink *RevocationData) (TrustLinkerResult, error)
}

// CRLRevocationData is one CRL consulted during a validation, recorded for
// audit and for the Freshness/Integrity/Delta-linkage testable properties.
type CRLRevocationData struct {
	// Raw is the DER encoding of the CRL as fetched.
	Raw []byte
	// Issuer identifies who signed this CRL.
	Issuer NameID
}

// OCSPRevocationData is one OCSP response consulted during a validation.
type OCSPRevocationData struct {
	Raw []byte
}

// RevocationData accumulates the revocation evidence actually consulted
// during one isTrusted call. It is owned by the caller and must not be
// shared across concurrent validations.
type RevocationData struct {
	CRLs  []CRLRevocationData
	OCSPs []OCSPRevocationData
}

// AddCRL records a CRL that was used to reach a verdict.
func (r *RevocationData) AddCRL(raw []byte, issuer NameID) {
	r.CRLs = append(r.CRLs, CRLRevocationData{Raw: raw, Issuer: issuer})
}

// AddOCSP records an OCSP response that was used to reach a verdict.
func (r *RevocationData) AddOCSP(raw []byte) {
	r.OCSPs = append(r.OCSPs, OCSPRevocationData{Raw: raw})
}
