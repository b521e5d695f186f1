package trust

import (
	"context"
	"crypto/x509"
	"testing"
	"time"

	"github.com/jmhodges/clock"

	"github.com/pkitrust/pkitrust/test"
)

// stubLinker always returns the configured result, regardless of input.
type stubLinker struct {
	result TrustLinkerResult
}

func (s stubLinker) HasTrustLink(ctx context.Context, child, issuer *x509.Certificate, t time.Time, sink *RevocationData) (TrustLinkerResult, error) {
	return s.result, nil
}

func buildTestChain(t *testing.T, fc clock.FakeClock) (CertificateChain, *x509.Certificate) {
	root, rootKey := test.NewRoot(t, fc, "test root")
	intermediate, intKey := test.NewIntermediate(t, fc, "test intermediate", root, rootKey, "http://crl.example/int.crl", 0)
	leaf := test.NewLeaf(t, fc, "leaf.example.com", test.NextSerial(), intermediate, intKey, "http://crl.example/leaf.crl")
	return CertificateChain{leaf, intermediate, root}, root
}

func TestIsTrustedHappyPath(t *testing.T) {
	fc := clock.NewFake()
	fc.Set(time.Now())
	chain, root := buildTestChain(t, fc)

	v := NewTrustValidator(NewAnchorStore(root), nil)
	v.Clk = fc
	v.AddTrustLinker(stubLinker{TrustedResult()})

	verdict, err := v.IsTrusted(context.Background(), chain, fc.Now(), &RevocationData{})
	test.AssertNotError(t, err, "IsTrusted should not error on a well-formed chain")
	test.Assert(t, verdict.OK, "expected a trusted verdict")
}

func TestIsTrustedRejectsUnknownAnchor(t *testing.T) {
	fc := clock.NewFake()
	fc.Set(time.Now())
	chain, _ := buildTestChain(t, fc)
	otherRoot, _ := test.NewRoot(t, fc, "unrelated root")

	v := NewTrustValidator(NewAnchorStore(otherRoot), nil)
	v.Clk = fc
	v.AddTrustLinker(stubLinker{TrustedResult()})

	verdict, err := v.IsTrusted(context.Background(), chain, fc.Now(), &RevocationData{})
	test.AssertNotError(t, err, "IsTrusted should not error, just return an Untrusted verdict")
	test.Assert(t, !verdict.OK, "expected an untrusted verdict")
	test.Assert(t, verdict.Reason == RootNotTrusted, "expected ROOT_NOT_TRUSTED")
}

func TestIsTrustedRejectsExpiredLeaf(t *testing.T) {
	fc := clock.NewFake()
	fc.Set(time.Now())
	chain, root := buildTestChain(t, fc)

	// Advance well past the leaf's validity window.
	fc.Add(3000 * time.Hour)

	v := NewTrustValidator(NewAnchorStore(root), nil)
	v.Clk = fc
	v.AddTrustLinker(stubLinker{TrustedResult()})

	verdict, err := v.IsTrusted(context.Background(), chain, fc.Now(), &RevocationData{})
	test.AssertNotError(t, err, "IsTrusted should not error, just return an Untrusted verdict")
	test.Assert(t, !verdict.OK, "expected an untrusted verdict")
	test.Assert(t, verdict.Reason == InvalidValidityInterval, "expected INVALID_VALIDITY_INTERVAL")
}

func TestIsTrustedPipelineOrderFirstUntrustedWins(t *testing.T) {
	fc := clock.NewFake()
	fc.Set(time.Now())
	chain, root := buildTestChain(t, fc)

	v := NewTrustValidator(NewAnchorStore(root), nil)
	v.Clk = fc
	v.AddTrustLinker(stubLinker{UntrustedResult(InvalidRevocationStatus, "revoked per first linker")})
	v.AddTrustLinker(stubLinker{TrustedResult()})

	verdict, err := v.IsTrusted(context.Background(), chain, fc.Now(), &RevocationData{})
	test.AssertNotError(t, err, "IsTrusted should not error")
	test.Assert(t, !verdict.OK, "expected the first linker's Untrusted verdict to win")
	test.Assert(t, verdict.Reason == InvalidRevocationStatus, "expected INVALID_REVOCATION_STATUS")
}

func TestIsTrustedFailsClosedWhenAllLinkersAbstain(t *testing.T) {
	fc := clock.NewFake()
	fc.Set(time.Now())
	chain, root := buildTestChain(t, fc)

	v := NewTrustValidator(NewAnchorStore(root), nil)
	v.Clk = fc
	v.AddTrustLinker(stubLinker{AbstainResult()})

	verdict, err := v.IsTrusted(context.Background(), chain, fc.Now(), &RevocationData{})
	test.AssertNotError(t, err, "IsTrusted should not error")
	test.Assert(t, !verdict.OK, "expected the default fail-closed policy to reject an all-Abstain pipeline")
}

func TestIsTrustedAllowsChainWithinNonZeroPathLen(t *testing.T) {
	fc := clock.NewFake()
	fc.Set(time.Now())
	root, rootKey := test.NewRoot(t, fc, "pathlen root")
	intA, intAKey := test.NewIntermediate(t, fc, "pathlen intermediate A", root, rootKey, "", 1)
	intB, intBKey := test.NewIntermediate(t, fc, "pathlen intermediate B", intA, intAKey, "", 0)
	leaf := test.NewLeaf(t, fc, "leaf.pathlen.example.com", test.NextSerial(), intB, intBKey, "")
	chain := CertificateChain{leaf, intB, intA, root}

	v := NewTrustValidator(NewAnchorStore(root), nil)
	v.Clk = fc
	v.AddTrustLinker(stubLinker{TrustedResult()})

	verdict, err := v.IsTrusted(context.Background(), chain, fc.Now(), &RevocationData{})
	test.AssertNotError(t, err, "IsTrusted should not error")
	test.Assert(t, verdict.OK, "one subordinate CA under a pathLenConstraint of 1 must be allowed")
}

func TestIsTrustedRejectsChainExceedingNonZeroPathLen(t *testing.T) {
	fc := clock.NewFake()
	fc.Set(time.Now())
	root, rootKey := test.NewRoot(t, fc, "pathlen root")
	intA, intAKey := test.NewIntermediate(t, fc, "pathlen intermediate A", root, rootKey, "", 1)
	intB, intBKey := test.NewIntermediate(t, fc, "pathlen intermediate B", intA, intAKey, "", 1)
	intC, intCKey := test.NewIntermediate(t, fc, "pathlen intermediate C", intB, intBKey, "", 0)
	leaf := test.NewLeaf(t, fc, "leaf2.pathlen.example.com", test.NextSerial(), intC, intCKey, "")
	chain := CertificateChain{leaf, intC, intB, intA, root}

	v := NewTrustValidator(NewAnchorStore(root), nil)
	v.Clk = fc
	v.AddTrustLinker(stubLinker{TrustedResult()})

	verdict, err := v.IsTrusted(context.Background(), chain, fc.Now(), &RevocationData{})
	test.AssertNotError(t, err, "IsTrusted should not error, just return an Untrusted verdict")
	test.Assert(t, !verdict.OK, "two subordinate CAs under a pathLenConstraint of 1 must be rejected")
	test.Assert(t, verdict.Reason == InvalidKeyUsage, "expected INVALID_KEY_USAGE")
}

func TestIsTrustedRejectsNonAdjacentChain(t *testing.T) {
	fc := clock.NewFake()
	fc.Set(time.Now())
	_, root := buildTestChain(t, fc)
	unrelatedRoot, unrelatedKey := test.NewRoot(t, fc, "unrelated")
	leaf := test.NewLeaf(t, fc, "leaf2.example.com", test.NextSerial(), unrelatedRoot, unrelatedKey, "")

	v := NewTrustValidator(NewAnchorStore(root), nil)
	v.Clk = fc

	_, err := v.IsTrusted(context.Background(), CertificateChain{leaf, root}, fc.Now(), &RevocationData{})
	test.AssertError(t, err, "expected an error for a non-adjacency-ordered chain")
}
