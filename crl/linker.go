package crl

import (
	"context"
	"crypto/x509"
	"fmt"
	"math/big"
	"time"

	trusterrors "github.com/pkitrust/pkitrust/errors"
	"github.com/pkitrust/pkitrust/features"
	blog "github.com/pkitrust/pkitrust/log"
	"github.com/pkitrust/pkitrust/trust"
)

// Linker implements trust.TrustLinker using CRLs: component D, the CRL
// Trust Linker, including delta-CRL chaining via the Repository's freshness
// and singleflight-backed fetches.
type Linker struct {
	Repo      *Repository
	Algorithm trust.AlgorithmPolicy
	Log       blog.Logger
}

// NewLinker constructs a Linker backed by the given Repository.
func NewLinker(repo *Repository, algPolicy trust.AlgorithmPolicy, log blog.Logger) *Linker {
	return &Linker{Repo: repo, Algorithm: algPolicy, Log: log}
}

// HasTrustLink implements trust.TrustLinker. It extracts the first URI from
// child's CRLDistributionPoints and, if present, resolves revocation status
// via processCRL; otherwise it abstains.
func (l *Linker) HasTrustLink(ctx context.Context, child, issuer *x509.Certificate, validationTime time.Time, sink *trust.RevocationData) (trust.TrustLinkerResult, error) {
	if len(child.CRLDistributionPoints) == 0 {
		return trust.AbstainResultWithCause("no_distribution_point"), nil
	}
	// Stdlib's x509 parser already restricts CRLDistributionPoints to the
	// uniformResourceIdentifier GeneralName case, so the first entry is
	// exactly the "first URI-scheme Full-Name" the spec asks for.
	uri := child.CRLDistributionPoints[0]
	return l.processCRL(ctx, uri, child, issuer, validationTime, sink, nil)
}

// processCRL implements the recursive base/delta CRL algorithm described by
// component D. baseCRLNumber is non-nil only when this call is resolving a
// delta distribution point found in a base CRL's FreshestCRL extension.
//
// A non-nil error return means a structural ASN.1 parse failure inside a
// CRL extension on a CRL that already passed signature verification: a
// programmer or repository fault, not a peer attack, so it is fatal and
// propagates rather than falling through to Abstain or Untrusted.
func (l *Linker) processCRL(ctx context.Context, uri string, child, issuer *x509.Certificate, t time.Time, sink *trust.RevocationData, baseCRLNumber *big.Int) (trust.TrustLinkerResult, error) {
	entry := l.Repo.Find(ctx, uri, issuer, t)
	if entry == nil {
		return trust.AbstainResultWithCause("crl_unavailable"), nil
	}
	crl := entry.CRL

	if string(crl.RawIssuer) != string(issuer.RawSubject) {
		l.abstain("CRL issuer does not match expected issuer subject for %s", uri)
		return trust.AbstainResultWithCause("issuer_mismatch"), nil
	}
	if issuer.KeyUsage&x509.KeyUsageCRLSign == 0 {
		l.abstain("issuer %q lacks the cRLSign key usage bit", issuer.Subject)
		return trust.AbstainResultWithCause("crl_sign_missing"), nil
	}
	if err := crl.CheckSignatureFrom(issuer); err != nil {
		l.abstain("CRL signature does not verify under issuer %q: %s", issuer.Subject, err)
		return trust.AbstainResultWithCause("signature_invalid"), nil
	}
	if t.Before(crl.ThisUpdate) || (crl.NextUpdate.IsZero() || t.After(crl.NextUpdate)) {
		l.abstain("CRL from %s not valid at %s", uri, t)
		return trust.AbstainResultWithCause("stale"), nil
	}

	algResult := l.Algorithm.CheckCRL(crl.SignatureAlgorithm)
	if algResult.Verdict == trust.Untrusted {
		return algResult, nil
	}

	idpValue := FindExtension(crl.Extensions, oidExtensionIssuingDistributionPoint)
	if idpValue != nil {
		idp, err := ParseIssuingDistributionPoint(idpValue)
		if err != nil {
			return trust.TrustLinkerResult{}, trusterrors.New(trusterrors.Internal, "parsing IssuingDistributionPoint from %s: %s", uri, err)
		}
		if idp.IsIndirectCRL && !features.Get().AllowIndirectCRLs {
			l.abstain("CRL from %s is an indirect CRL, unsupported", uri)
			return trust.AbstainResultWithCause("indirect_crl"), nil
		}
	}

	deltaValue := FindExtension(crl.Extensions, oidExtensionDeltaCRLIndicator)
	var deltaIndicator *big.Int
	if deltaValue != nil {
		n, err := ParseDeltaCRLIndicator(deltaValue)
		if err != nil {
			return trust.TrustLinkerResult{}, trusterrors.New(trusterrors.Internal, "parsing DeltaCRLIndicator from %s: %s", uri, err)
		}
		deltaIndicator = n
	}

	if baseCRLNumber != nil {
		if deltaIndicator == nil || deltaIndicator.Cmp(baseCRLNumber) != 0 {
			l.abstain("delta CRL from %s does not chain to base CRLNumber %s", uri, baseCRLNumber)
			return trust.AbstainResultWithCause("delta_mismatch"), nil
		}
	}

	sink.AddCRL(entry.Raw, trust.SubjectNameID(issuer))

	revoked, revokedAt := findRevocation(crl, child.SerialNumber)
	isRevoked := revoked && !revokedAt.After(t)

	if deltaIndicator != nil {
		// This CRL is itself a delta: it only has an opinion when it lists
		// the serial. Absence means the base CRL decides.
		if !isRevoked {
			return trust.AbstainResultWithCause("delta_silent_on_serial"), nil
		}
		return trust.UntrustedResult(trust.InvalidRevocationStatus, child.SerialNumber.String()), nil
	}

	// Base CRL: give any delta CRLs named in FreshestCRL the chance to
	// override this result before falling back to our own terminal verdict.
	freshestValue := FindExtension(crl.Extensions, oidExtensionFreshestCRL)
	if freshestValue != nil {
		deltaURIs, err := DistributionPointURIs(freshestValue)
		if err != nil {
			return trust.TrustLinkerResult{}, trusterrors.New(trusterrors.Internal, "parsing FreshestCRL from %s: %s", uri, err)
		}
		for _, deltaURI := range deltaURIs {
			result, err := l.processCRL(ctx, deltaURI, child, issuer, t, sink, crl.Number)
			if err != nil {
				return trust.TrustLinkerResult{}, err
			}
			if result.Verdict != trust.Abstain {
				return result, nil
			}
		}
	}

	if isRevoked {
		return trust.UntrustedResult(trust.InvalidRevocationStatus, child.SerialNumber.String()), nil
	}
	return trust.TrustedResult(), nil
}

// findRevocation reports whether serial appears in crl's revoked entries,
// and if so, the date it was revoked.
func findRevocation(crl *x509.RevocationList, serial *big.Int) (bool, time.Time) {
	for _, e := range crl.RevokedCertificateEntries {
		if e.SerialNumber != nil && e.SerialNumber.Cmp(serial) == 0 {
			return true, e.RevocationTime
		}
	}
	return false, time.Time{}
}

func (l *Linker) abstain(format string, args ...interface{}) {
	if l.Log != nil {
		l.Log.Warning(fmt.Sprintf("abstain: "+format, args...))
	}
}
