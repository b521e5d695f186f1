package trust

import "crypto/x509"

// CertificateConstraint is an optional predicate applied to the leaf
// certificate, for checks outside the scope of chain/revocation validation
// (extended key usage, policy OIDs, SAN shape). A constraint returns a
// TrustLinkerResult the same way a TrustLinker does, but is evaluated once
// against the leaf rather than once per (child, issuer) pair.
type CertificateConstraint interface {
	CheckCertificate(leaf *x509.Certificate) TrustLinkerResult
}

// CertificateConstraintFunc adapts a function to CertificateConstraint.
type CertificateConstraintFunc func(leaf *x509.Certificate) TrustLinkerResult

func (f CertificateConstraintFunc) CheckCertificate(leaf *x509.Certificate) TrustLinkerResult {
	return f(leaf)
}
