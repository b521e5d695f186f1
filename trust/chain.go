package trust

import (
	"crypto/x509"

	"github.com/pkitrust/pkitrust/errors"
)

// CertificateChain is an ordered sequence of certificates, index 0 being the
// leaf and the last element being a candidate trust anchor. The chain must
// already be ordered by the caller: chain[i].Issuer must equal
// chain[i+1].Subject. TrustValidator checks this precondition and returns an
// Internal error if it does not hold.
type CertificateChain []*x509.Certificate

// Leaf returns the first certificate in the chain.
func (c CertificateChain) Leaf() *x509.Certificate {
	if len(c) == 0 {
		return nil
	}
	return c[0]
}

// CandidateAnchor returns the last certificate in the chain, the one that
// must match a configured TrustAnchor.
func (c CertificateChain) CandidateAnchor() *x509.Certificate {
	if len(c) == 0 {
		return nil
	}
	return c[len(c)-1]
}

// checkAdjacency verifies that each certificate's Issuer DN matches the
// following certificate's Subject DN.
func (c CertificateChain) checkAdjacency() error {
	for i := 0; i < len(c)-1; i++ {
		if string(c[i].RawIssuer) != string(c[i+1].RawSubject) {
			return errors.New(errors.Internal,
				"chain is not adjacency-ordered: %q issued by %q does not match %q",
				c[i].Subject, c[i].Issuer, c[i+1].Subject)
		}
	}
	return nil
}
