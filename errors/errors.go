package errors

import "fmt"

// ErrorType provides a coarse category for TrustErrors.
type ErrorType int

const (
	// Internal marks failures that indicate malformed data the caller should
	// never have been able to produce (e.g. unparseable ASN.1 inside a CRL
	// extension on a CRL that already passed signature verification), as
	// opposed to an ordinary untrusted verdict.
	Internal ErrorType = iota
	// Config marks failures discovered while wiring up a validator: missing
	// trust anchors, malformed URIs, bad cache parameters.
	Config
)

// TrustError represents an internal or configuration-time error, distinct
// from a TrustLinkerResult verdict.
type TrustError struct {
	Type   ErrorType
	Detail string
}

func (te *TrustError) Error() string {
	return te.Detail
}

// New is a convenience function for creating a new TrustError.
func New(errType ErrorType, msg string, args ...interface{}) error {
	return &TrustError{
		Type:   errType,
		Detail: fmt.Sprintf(msg, args...),
	}
}

// Is reports whether err is a TrustError of the given type.
func Is(err error, errType ErrorType) bool {
	tErr, ok := err.(*TrustError)
	if !ok {
		return false
	}
	return tErr.Type == errType
}
