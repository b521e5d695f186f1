package test

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/jmhodges/clock"
)

var nextSerial = big.NewInt(0x1000)

// NextSerial hands out a small monotonically increasing serial number,
// distinct across calls within a process, for use in throwaway test certs
// and CRL entries.
func NextSerial() *big.Int {
	s := new(big.Int).Set(nextSerial)
	nextSerial = new(big.Int).Add(nextSerial, big.NewInt(1))
	return s
}

func mustKey(t *testing.T) *ecdsa.PrivateKey {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	AssertNotError(t, err, "ecdsa.GenerateKey failed")
	return key
}

// NewRoot builds a self-signed CA certificate suitable for use as a trust
// anchor, along with its private key.
func NewRoot(t *testing.T, clk clock.Clock, cn string) (*x509.Certificate, crypto.Signer) {
	key := mustKey(t)
	template := &x509.Certificate{
		SerialNumber:          NextSerial(),
		Subject:               pkix.Name{CommonName: cn},
		NotBefore:             clk.Now().Add(-time.Hour),
		NotAfter:              clk.Now().Add(87600 * time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, key.Public(), key)
	AssertNotError(t, err, "x509.CreateCertificate failed for root")
	cert, err := x509.ParseCertificate(der)
	AssertNotError(t, err, "failed to parse root cert DER")
	return cert, key
}

// NewIntermediate builds a CA certificate signed by parent, with a
// CRLDistributionPoints extension naming crlURL (when non-empty). maxPathLen
// sets the explicit pathLenConstraint: 0 or greater encodes that exact
// value (MaxPathLenZero is set when maxPathLen is 0); a negative maxPathLen
// omits the constraint entirely.
func NewIntermediate(t *testing.T, clk clock.Clock, cn string, parent *x509.Certificate, parentKey crypto.Signer, crlURL string, maxPathLen int) (*x509.Certificate, crypto.Signer) {
	key := mustKey(t)
	template := &x509.Certificate{
		SerialNumber:          NextSerial(),
		Subject:               pkix.Name{CommonName: cn},
		NotBefore:             clk.Now().Add(-time.Hour),
		NotAfter:              clk.Now().Add(43800 * time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
	}
	if maxPathLen >= 0 {
		template.MaxPathLen = maxPathLen
		template.MaxPathLenZero = maxPathLen == 0
	}
	if crlURL != "" {
		template.CRLDistributionPoints = []string{crlURL}
	}
	der, err := x509.CreateCertificate(rand.Reader, template, parent, key.Public(), parentKey)
	AssertNotError(t, err, "x509.CreateCertificate failed for intermediate")
	cert, err := x509.ParseCertificate(der)
	AssertNotError(t, err, "failed to parse intermediate cert DER")
	return cert, key
}

// NewLeaf builds an end-entity certificate signed by parent, with the given
// serial number and CRLDistributionPoints extension.
func NewLeaf(t *testing.T, clk clock.Clock, cn string, serial *big.Int, parent *x509.Certificate, parentKey crypto.Signer, crlURL string) *x509.Certificate {
	key := mustKey(t)
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: cn},
		DNSNames:     []string{cn},
		NotBefore:    clk.Now().Add(-time.Hour),
		NotAfter:     clk.Now().Add(2160 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	if crlURL != "" {
		template.CRLDistributionPoints = []string{crlURL}
	}
	der, err := x509.CreateCertificate(rand.Reader, template, parent, key.Public(), parentKey)
	AssertNotError(t, err, "x509.CreateCertificate failed for leaf")
	cert, err := x509.ParseCertificate(der)
	AssertNotError(t, err, "failed to parse leaf cert DER")
	return cert
}

// BuildCRL signs a CRL with issuerKey over the given revoked entries, using
// the stdlib x509.CreateRevocationList. extra carries any additional
// extensions (DeltaCRLIndicator, IssuingDistributionPoint, FreshestCRL).
func BuildCRL(t *testing.T, clk clock.Clock, issuer *x509.Certificate, issuerKey crypto.Signer, number int64, thisUpdate, nextUpdate time.Time, revoked []x509.RevocationListEntry, extra []pkix.Extension) []byte {
	template := &x509.RevocationList{
		Number:              big.NewInt(number),
		ThisUpdate:          thisUpdate,
		NextUpdate:          nextUpdate,
		RevokedCertificateEntries: revoked,
		ExtraExtensions:     extra,
	}
	der, err := x509.CreateRevocationList(rand.Reader, template, issuer, issuerKey)
	AssertNotError(t, err, fmt.Sprintf("x509.CreateRevocationList failed for CRL #%d", number))
	return der
}
