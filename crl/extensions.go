package crl

import (
	"crypto/x509/pkix"
	"encoding/asn1"
	"math/big"
)

// OIDs for the CRL extensions this package decodes. The standard library's
// crypto/x509.RevocationList exposes Number directly but leaves
// DeltaCRLIndicator, IssuingDistributionPoint, and FreshestCRL as raw
// Extensions entries, so this package decodes them by hand, mirroring the
// same ASN.1 struct shapes the standard library's own (unexported)
// CRLDistributionPoints parser uses for distributionPointName/GeneralNames.
var (
	oidExtensionDeltaCRLIndicator        = asn1.ObjectIdentifier{2, 5, 29, 27}
	oidExtensionIssuingDistributionPoint = asn1.ObjectIdentifier{2, 5, 29, 28}
	oidExtensionFreshestCRL              = asn1.ObjectIdentifier{2, 5, 29, 46}
)

// nameTagURI is the GeneralName CHOICE tag number for uniformResourceIdentifier.
const nameTagURI = 6

// distributionPointName mirrors RFC 5280's DistributionPointName CHOICE,
// decoding only the fullName alternative: this engine consults only
// uniformResourceIdentifier GeneralNames, never relativeDistinguishedName.
type distributionPointName struct {
	FullName []asn1.RawValue `asn1:"optional,tag:0"`
}

// distributionPoint mirrors RFC 5280 4.2.1.13's DistributionPoint SEQUENCE.
type distributionPoint struct {
	DistributionPoint distributionPointName `asn1:"optional,tag:0"`
	Reasons           asn1.BitString        `asn1:"optional,tag:1"`
	CRLIssuer         asn1.RawValue         `asn1:"optional,tag:2"`
}

// DistributionPointURIs decodes a CRLDistributionPoints or FreshestCRL
// extension value and returns, for each DistributionPoint present, the
// first uniformResourceIdentifier GeneralName found in its fullName. Other
// GeneralName tag types, and relativeDistributionName distribution points,
// are skipped per the spec's "only URI Full-Names are consulted" rule.
func DistributionPointURIs(extValue []byte) ([]string, error) {
	var points []distributionPoint
	_, err := asn1.Unmarshal(extValue, &points)
	if err != nil {
		return nil, errExtension("CRLDistributionPoints/FreshestCRL", err)
	}

	var uris []string
	for _, p := range points {
		for _, n := range p.DistributionPoint.FullName {
			if n.Tag == nameTagURI {
				uris = append(uris, string(n.Bytes))
				break
			}
		}
	}
	return uris, nil
}

// issuingDistributionPoint mirrors RFC 5280 5.2.5's IssuingDistributionPoint
// SYNTAX, decoding only the fields this engine consults.
type issuingDistributionPoint struct {
	DistributionPoint     distributionPointName `asn1:"optional,tag:0"`
	OnlyContainsUserCerts bool                  `asn1:"optional,tag:1"`
	OnlyContainsCACerts   bool                  `asn1:"optional,tag:2"`
	OnlySomeReasons       asn1.BitString        `asn1:"optional,tag:3"`
	IndirectCRL           bool                  `asn1:"optional,tag:4"`
}

// IssuingDistributionPointInfo is the decoded subset of an
// IssuingDistributionPoint extension this engine needs.
type IssuingDistributionPointInfo struct {
	IsIndirectCRL bool
	URIs          []string
}

// ParseIssuingDistributionPoint decodes an IssuingDistributionPoint
// extension value.
func ParseIssuingDistributionPoint(extValue []byte) (IssuingDistributionPointInfo, error) {
	var idp issuingDistributionPoint
	_, err := asn1.Unmarshal(extValue, &idp)
	if err != nil {
		return IssuingDistributionPointInfo{}, errExtension("IssuingDistributionPoint", err)
	}

	info := IssuingDistributionPointInfo{IsIndirectCRL: idp.IndirectCRL}
	for _, n := range idp.DistributionPoint.FullName {
		if n.Tag == nameTagURI {
			info.URIs = append(info.URIs, string(n.Bytes))
		}
	}
	return info, nil
}

// ParseDeltaCRLIndicator decodes a DeltaCRLIndicator extension value, which
// is simply the CRLNumber of the base CRL this delta applies to.
func ParseDeltaCRLIndicator(extValue []byte) (*big.Int, error) {
	n := new(big.Int)
	_, err := asn1.Unmarshal(extValue, &n)
	if err != nil {
		return nil, errExtension("DeltaCRLIndicator", err)
	}
	return n, nil
}

// FindExtension returns the value of the extension with the given OID, or
// nil if absent.
func FindExtension(exts []pkix.Extension, oid asn1.ObjectIdentifier) []byte {
	for _, e := range exts {
		if e.Id.Equal(oid) {
			return e.Value
		}
	}
	return nil
}

func errExtension(name string, err error) error {
	return &extensionError{name, err}
}

type extensionError struct {
	name string
	err  error
}

func (e *extensionError) Error() string {
	return "malformed " + e.name + " extension: " + e.err.Error()
}

func (e *extensionError) Unwrap() error {
	return e.err
}
