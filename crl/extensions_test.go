package crl

import (
	"crypto/x509/pkix"
	"encoding/asn1"
	"math/big"
	"testing"

	"github.com/pkitrust/pkitrust/test"
)

// asn1GeneralNameURI builds the raw bytes of a single
// [6] IMPLICIT IA5String GeneralName (uniformResourceIdentifier).
func asn1GeneralNameURI(uri string) asn1.RawValue {
	return asn1.RawValue{Class: asn1.ClassContextSpecific, Tag: nameTagURI, Bytes: []byte(uri)}
}

func marshalDistributionPoints(t *testing.T, uris ...string) []byte {
	var names []asn1.RawValue
	for _, u := range uris {
		names = append(names, asn1GeneralNameURI(u))
	}
	dp := distributionPoint{
		DistributionPoint: distributionPointName{FullName: names},
	}
	b, err := asn1.Marshal([]distributionPoint{dp})
	test.AssertNotError(t, err, "marshaling test DistributionPoint")
	return b
}

func TestDistributionPointURIsSingle(t *testing.T) {
	b := marshalDistributionPoints(t, "http://crl.example/leaf.crl")
	uris, err := DistributionPointURIs(b)
	test.AssertNotError(t, err, "DistributionPointURIs should parse a well-formed extension")
	test.Assert(t, len(uris) == 1, "expected exactly one URI")
	test.AssertEquals(t, uris[0], "http://crl.example/leaf.crl")
}

func TestDistributionPointURIsMultiplePoints(t *testing.T) {
	var points []distributionPoint
	points = append(points, distributionPoint{DistributionPoint: distributionPointName{FullName: []asn1.RawValue{asn1GeneralNameURI("http://crl.example/a.crl")}}})
	points = append(points, distributionPoint{DistributionPoint: distributionPointName{FullName: []asn1.RawValue{asn1GeneralNameURI("http://crl.example/b.crl")}}})
	b, err := asn1.Marshal(points)
	test.AssertNotError(t, err, "marshaling test DistributionPoints")

	uris, err := DistributionPointURIs(b)
	test.AssertNotError(t, err, "DistributionPointURIs should parse multiple points")
	test.Assert(t, len(uris) == 2, "expected exactly two URIs")
}

func TestDistributionPointURIsFirstNameWinsWithinOnePoint(t *testing.T) {
	b := marshalDistributionPoints(t, "http://crl.example/first.crl", "http://crl.example/second.crl")
	uris, err := DistributionPointURIs(b)
	test.AssertNotError(t, err, "DistributionPointURIs should parse a well-formed extension")
	test.Assert(t, len(uris) == 1, "expected only the first URI within a single DistributionPoint")
	test.AssertEquals(t, uris[0], "http://crl.example/first.crl")
}

func TestDistributionPointURIsMalformed(t *testing.T) {
	_, err := DistributionPointURIs([]byte{0x99, 0x01, 0x02})
	test.AssertError(t, err, "DistributionPointURIs should reject malformed ASN.1")
}

func TestParseIssuingDistributionPointIndirect(t *testing.T) {
	idp := issuingDistributionPoint{
		DistributionPoint: distributionPointName{FullName: []asn1.RawValue{asn1GeneralNameURI("http://crl.example/idp.crl")}},
		IndirectCRL:       true,
	}
	b, err := asn1.Marshal(idp)
	test.AssertNotError(t, err, "marshaling test IssuingDistributionPoint")

	info, err := ParseIssuingDistributionPoint(b)
	test.AssertNotError(t, err, "ParseIssuingDistributionPoint should parse a well-formed extension")
	test.Assert(t, info.IsIndirectCRL, "expected IsIndirectCRL to be true")
	test.Assert(t, len(info.URIs) == 1, "expected exactly one URI")
}

func TestParseIssuingDistributionPointDirect(t *testing.T) {
	idp := issuingDistributionPoint{OnlyContainsUserCerts: true}
	b, err := asn1.Marshal(idp)
	test.AssertNotError(t, err, "marshaling test IssuingDistributionPoint")

	info, err := ParseIssuingDistributionPoint(b)
	test.AssertNotError(t, err, "ParseIssuingDistributionPoint should parse a well-formed extension")
	test.Assert(t, !info.IsIndirectCRL, "expected IsIndirectCRL to be false")
}

func TestParseDeltaCRLIndicator(t *testing.T) {
	b, err := asn1.Marshal(big.NewInt(42))
	test.AssertNotError(t, err, "marshaling test DeltaCRLIndicator")

	n, err := ParseDeltaCRLIndicator(b)
	test.AssertNotError(t, err, "ParseDeltaCRLIndicator should parse a well-formed extension")
	test.Assert(t, n.Int64() == 42, "expected decoded DeltaCRLIndicator to equal 42")
}

func TestParseDeltaCRLIndicatorMalformed(t *testing.T) {
	_, err := ParseDeltaCRLIndicator([]byte{0x99})
	test.AssertError(t, err, "ParseDeltaCRLIndicator should reject malformed ASN.1")
}

func TestFindExtension(t *testing.T) {
	exts := []pkix.Extension{
		{Id: oidExtensionDeltaCRLIndicator, Value: []byte("delta")},
		{Id: oidExtensionFreshestCRL, Value: []byte("freshest")},
	}
	test.AssertByteEquals(t, FindExtension(exts, oidExtensionDeltaCRLIndicator), []byte("delta"))
	test.AssertByteEquals(t, FindExtension(exts, oidExtensionIssuingDistributionPoint), nil)
}
