// Package features gates optional, non-default validator behaviors behind a
// typed config struct, following the Get()-returns-a-struct pattern used
// elsewhere in the corpus rather than a legacy string-keyed boolean map.
package features

import "sync/atomic"

// Config holds the set of feature flags this module understands.
type Config struct {
	// FailOpenOnAbstain controls the chain walker's behavior when every
	// configured TrustLinker abstains for a (child, issuer) pair: when true,
	// the pair is treated as Trusted; the default (false) fails closed with
	// INVALID_REVOCATION_STATUS.
	FailOpenOnAbstain bool

	// AllowIndirectCRLs reverses the CRL linker's default of abstaining on a
	// CRL whose IssuingDistributionPoint marks it as an indirect CRL.
	// Indirect CRLs (which can name revocations for issuers other than the
	// one that signed the CRL) are unsupported when this is false.
	AllowIndirectCRLs bool
}

var current atomic.Pointer[Config]

func init() {
	current.Store(&Config{})
}

// Set replaces the active feature configuration.
func Set(c Config) {
	current.Store(&c)
}

// Get returns the active feature configuration.
func Get() Config {
	return *current.Load()
}

// Reset restores the zero-value (all features off) configuration. Intended
// for use between test cases.
func Reset() {
	current.Store(&Config{})
}
