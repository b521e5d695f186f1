package trust

import (
	"context"
	"crypto/x509"
	"fmt"
	"time"

	"github.com/jmhodges/clock"

	"github.com/pkitrust/pkitrust/errors"
	"github.com/pkitrust/pkitrust/features"
	blog "github.com/pkitrust/pkitrust/log"
	"github.com/pkitrust/pkitrust/metrics"
)

// TrustVerdict is the result of an IsTrusted call: either ok (no Reason
// set), or a PKI failure carrying a Reason and a human-readable Message.
type TrustVerdict struct {
	OK      bool
	Reason  Reason
	Message string
}

func (v TrustVerdict) String() string {
	if v.OK {
		return "Trusted"
	}
	return fmt.Sprintf("Untrusted(%s): %s", v.Reason, v.Message)
}

// TrustValidator walks a CertificateChain, verifying validity windows,
// signature algorithms, and signatures at every link, matching the final
// element against a configured AnchorStore, and consulting an ordered
// pipeline of TrustLinkers for revocation status at every (child, issuer)
// pair including the leaf.
type TrustValidator struct {
	Anchors     *AnchorStore
	Linkers     []TrustLinker
	Constraints []CertificateConstraint
	Algorithm   AlgorithmPolicy
	Clk         clock.Clock
	Log         blog.Logger
	Stats       *metrics.Metrics
}

// NewTrustValidator constructs a TrustValidator with sane defaults: the
// default AlgorithmPolicy, the system clock, and a mock logger that
// buffers messages in memory rather than touching the system's syslog
// socket.
// Callers that want real logging set .Log explicitly; callers typically
// then also call AddTrustLinker at least once.
func NewTrustValidator(anchors *AnchorStore, stats *metrics.Metrics) *TrustValidator {
	return &TrustValidator{
		Anchors:   anchors,
		Algorithm: DefaultAlgorithmPolicy(),
		Clk:       clock.New(),
		Log:       blog.NewMock(),
		Stats:     stats,
	}
}

// AddTrustLinker appends a linker to the end of the pipeline. Linkers are
// consulted in the order added; the first non-Abstain verdict wins.
func (v *TrustValidator) AddTrustLinker(l TrustLinker) {
	v.Linkers = append(v.Linkers, l)
}

// AddCertificateConstraint registers an additional leaf-only predicate.
func (v *TrustValidator) AddCertificateConstraint(c CertificateConstraint) {
	v.Constraints = append(v.Constraints, c)
}

// IsTrusted walks chain and returns a TrustVerdict. If validationTime is the
// zero Time, the validator's clock supplies "now". sink, if non-nil,
// receives every CRL/OCSP response actually consulted.
func (v *TrustValidator) IsTrusted(ctx context.Context, chain CertificateChain, validationTime time.Time, sink *RevocationData) (TrustVerdict, error) {
	if len(chain) == 0 {
		return TrustVerdict{}, errors.New(errors.Config, "certificate chain is empty")
	}
	if err := chain.checkAdjacency(); err != nil {
		return TrustVerdict{}, err
	}
	if v.Anchors == nil || v.Anchors.Len() == 0 {
		return TrustVerdict{}, errors.New(errors.Config, "no trust anchors configured")
	}
	if validationTime.IsZero() {
		validationTime = v.Clk.Now()
	}
	if sink == nil {
		sink = &RevocationData{}
	}

	for i, cert := range chain {
		if validationTime.Before(cert.NotBefore) || validationTime.After(cert.NotAfter) {
			return v.reject(InvalidValidityInterval, fmt.Sprintf("%q not valid at %s (window [%s, %s])",
				cert.Subject, validationTime, cert.NotBefore, cert.NotAfter)), nil
		}

		algResult := v.Algorithm.CheckCertificate(cert.SignatureAlgorithm)
		if algResult.Verdict == Untrusted {
			return v.reject(algResult.Reason, fmt.Sprintf("%q: %s", cert.Subject, algResult.Detail)), nil
		}

		if i < len(chain)-1 {
			parent := chain[i+1]
			if err := cert.CheckSignatureFrom(parent); err != nil {
				return v.reject(InvalidSignature, fmt.Sprintf("%q signature does not verify under %q: %s",
					cert.Subject, parent.Subject, err)), nil
			}
		}

		if i > 0 {
			if !cert.IsCA || !cert.BasicConstraintsValid {
				return v.reject(InvalidKeyUsage, fmt.Sprintf("%q lacks CA basic constraint", cert.Subject)), nil
			}
			if cert.MaxPathLenZero || cert.MaxPathLen > 0 {
				if i-1 > cert.MaxPathLen {
					return v.reject(InvalidKeyUsage, fmt.Sprintf("%q exceeds pathLenConstraint", cert.Subject)), nil
				}
			}
		}
	}

	anchor := chain.CandidateAnchor()
	if !v.Anchors.Contains(anchor) {
		return v.reject(RootNotTrusted, fmt.Sprintf("%q is not a configured trust anchor", anchor.Subject)), nil
	}

	for _, c := range v.Constraints {
		result := c.CheckCertificate(chain.Leaf())
		if result.Verdict == Untrusted {
			return v.reject(result.Reason, result.Detail), nil
		}
	}

	for i := 0; i < len(chain)-1; i++ {
		child, issuer := chain[i], chain[i+1]
		result, err := v.checkRevocation(ctx, child, issuer, validationTime, sink)
		if err != nil {
			return TrustVerdict{}, err
		}
		if result.Verdict == Untrusted {
			return v.reject(result.Reason, fmt.Sprintf("%q: %s", child.Subject, result.Detail)), nil
		}
	}

	v.countVerdict("Trusted", "")
	return TrustVerdict{OK: true}, nil
}

// checkRevocation runs the linker pipeline for one (child, issuer) pair.
func (v *TrustValidator) checkRevocation(ctx context.Context, child, issuer *x509.Certificate, t time.Time, sink *RevocationData) (TrustLinkerResult, error) {
	for _, linker := range v.Linkers {
		result, err := linker.HasTrustLink(ctx, child, issuer, t, sink)
		if err != nil {
			return TrustLinkerResult{}, err
		}
		switch result.Verdict {
		case Trusted, Untrusted:
			return result, nil
		case Abstain:
			cause := result.Cause
			if cause == "" {
				cause = "unspecified"
			}
			v.countAbstain(cause)
			continue
		}
	}

	if features.Get().FailOpenOnAbstain {
		return TrustedResult(), nil
	}
	return UntrustedResult(InvalidRevocationStatus, fmt.Sprintf("no linker could determine revocation status for %q", child.Subject)), nil
}

func (v *TrustValidator) reject(reason Reason, detail string) TrustVerdict {
	if v.Log != nil {
		v.Log.AuditErr(fmt.Sprintf("untrusted: %s: %s", reason, detail))
	}
	v.countVerdict("Untrusted", string(reason))
	return TrustVerdict{OK: false, Reason: reason, Message: detail}
}

func (v *TrustValidator) countVerdict(verdict, reason string) {
	if v.Stats == nil {
		return
	}
	v.Stats.Verdicts.WithLabelValues(verdict, reason).Inc()
}

func (v *TrustValidator) countAbstain(cause string) {
	if v.Stats == nil {
		return
	}
	v.Stats.Abstains.WithLabelValues(cause).Inc()
}
