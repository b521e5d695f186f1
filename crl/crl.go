// Package crl implements the CRL-based revocation linker: fetching,
// caching, parsing, and the delta-CRL-aware trust decision described by
// component D (CRL Trust Linker) of the validation engine.
package crl

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/pkitrust/pkitrust/trust"
)

// ID is a unique identifier, used for logging and cache correlation, that
// combines an issuer's NameID with a CRL number.
type ID struct {
	crlID string
}

// NewID constructs an ID for the given issuer and CRL number. crlNum may be
// nil if the CRL's Number field was absent.
func NewID(issuerID trust.NameID, crlNum *big.Int) (ID, error) {
	type info struct {
		IssuerID trust.NameID `json:"issuerID"`
		CRLNum   *big.Int     `json:"crlNum"`
	}
	jsonBytes, err := json.Marshal(info{issuerID, crlNum})
	if err != nil {
		return ID{}, fmt.Errorf("computing CRL ID: %w", err)
	}
	return ID{string(jsonBytes)}, nil
}

func (c ID) String() string {
	return c.crlID
}
