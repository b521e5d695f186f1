package crl

import (
	"context"
	"crypto/x509"
	"fmt"
	"sync"
	"time"

	"github.com/golang/groupcache/lru"
	"github.com/jmhodges/clock"
	"golang.org/x/sync/singleflight"

	blog "github.com/pkitrust/pkitrust/log"
	"github.com/pkitrust/pkitrust/metrics"
	"github.com/pkitrust/pkitrust/trust"
)

// CacheKey identifies a CRL by where it was fetched from and who is
// expected to have signed it.
type CacheKey struct {
	URI           string
	IssuerSubject string
}

func (k CacheKey) String() string {
	return fmt.Sprintf("%s|%s", k.IssuerSubject, k.URI)
}

// CacheEntry is a parsed CRL together with when it was fetched.
type CacheEntry struct {
	CRL       *x509.RevocationList
	Raw       []byte
	FetchedAt time.Time
}

// fresh reports whether this entry satisfies a lookup at time t, per the
// Freshness invariant: thisUpdate <= t <= nextUpdate. A CRL with no
// NextUpdate is treated as always-expired (fail closed), per the spec's
// resolution of that open question.
func (e *CacheEntry) fresh(t time.Time) bool {
	if e == nil || e.CRL == nil {
		return false
	}
	if e.CRL.NextUpdate.IsZero() {
		return false
	}
	return !t.Before(e.CRL.ThisUpdate) && !t.After(e.CRL.NextUpdate)
}

// Repository is the CRL cache (component B): it memoizes parsed CRLs keyed
// by (URI, issuer), enforces the freshness predicate against the
// requesting validation time, and ensures at most one concurrent fetch per
// key via singleflight.
type Repository struct {
	Fetcher Fetcher
	Clk     clock.Clock
	Log     blog.Logger
	Stats   *metrics.Metrics

	mu    sync.Mutex
	cache *lru.Cache

	flight singleflight.Group
}

// NewRepository constructs a Repository with a bounded-size LRU cache.
// maxEntries <= 0 selects a default of 1024.
func NewRepository(fetcher Fetcher, maxEntries int, clk clock.Clock, log blog.Logger, stats *metrics.Metrics) *Repository {
	if maxEntries <= 0 {
		maxEntries = 1024
	}
	return &Repository{
		Fetcher: fetcher,
		Clk:     clk,
		Log:     log,
		Stats:   stats,
		cache:   lru.New(maxEntries),
	}
}

// Find looks up the CRL naming uri and signed by issuer, usable at
// validationTime. On any failure (cache miss requiring a fetch that fails,
// CRL parse failure, IssuingDistributionPoint URI mismatch, staleness) it
// returns nil: the CRL Trust Linker's contract treats all of these as
// Abstain, not error. It does not verify the CRL's signature; the Linker
// does.
func (r *Repository) Find(ctx context.Context, uri string, issuer *x509.Certificate, validationTime time.Time) *CacheEntry {
	key := CacheKey{URI: uri, IssuerSubject: string(issuer.RawSubject)}

	if entry := r.lookup(key); entry != nil && entry.fresh(validationTime) {
		r.count(r.Stats != nil, r.Stats, "hit")
		return entry
	}
	r.count(r.Stats != nil, r.Stats, "miss")

	v, err, shared := r.flight.Do(key.String(), func() (interface{}, error) {
		return r.fetchAndParse(ctx, uri, issuer)
	})
	if shared && r.Stats != nil {
		r.Stats.SingleflightHits.Inc()
	}
	if err != nil {
		if r.Log != nil {
			r.Log.Warning(fmt.Sprintf("abstain: CRL fetch/parse failed for %s: %s", key, err))
		}
		if r.Stats != nil {
			r.Stats.FetchErrors.WithLabelValues(causeOf(err)).Inc()
		}
		return nil
	}

	entry := v.(*CacheEntry)
	r.store(key, entry)

	id, idErr := NewID(trust.SubjectNameID(issuer), entry.CRL.Number)
	if !entry.fresh(validationTime) {
		if r.Log != nil {
			r.Log.Warning(fmt.Sprintf("abstain: freshly fetched CRL for %s is not valid at %s", key, validationTime))
		}
		return nil
	}
	if r.Log != nil && idErr == nil {
		r.Log.Debug(fmt.Sprintf("cached new CRL %s for %s", id, key))
	}
	return entry
}

func (r *Repository) fetchAndParse(ctx context.Context, uri string, issuer *x509.Certificate) (*CacheEntry, error) {
	start := r.now()
	raw, err := r.Fetcher.Fetch(ctx, uri)
	if r.Stats != nil {
		r.Stats.FetchDuration.Observe(r.now().Sub(start).Seconds())
	}
	if err != nil {
		return nil, err
	}

	parsed, err := x509.ParseRevocationList(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing CRL from %q: %w", uri, err)
	}

	idpValue := FindExtension(parsed.Extensions, oidExtensionIssuingDistributionPoint)
	if idpValue != nil {
		// A malformed IssuingDistributionPoint is not a fetch failure: the
		// Linker reports it as an internal error once the CRL's signature has
		// verified.
		idp, err := ParseIssuingDistributionPoint(idpValue)
		if err == nil && len(idp.URIs) > 0 && !containsURI(idp.URIs, uri) {
			return nil, &idpMismatchError{URI: uri, Declared: idp.URIs}
		}
	}

	return &CacheEntry{CRL: parsed, Raw: raw, FetchedAt: r.now()}, nil
}

func containsURI(uris []string, uri string) bool {
	for _, u := range uris {
		if u == uri {
			return true
		}
	}
	return false
}

// idpMismatchError reports a CRL whose own IssuingDistributionPoint names a
// different set of URIs than the one it was fetched from: a guard against a
// CRL served at the wrong distribution point being substituted for the
// right one.
type idpMismatchError struct {
	URI      string
	Declared []string
}

func (e *idpMismatchError) Error() string {
	return fmt.Sprintf("fetched from %q, but its IssuingDistributionPoint declares %v", e.URI, e.Declared)
}

func (r *Repository) now() time.Time {
	if r.Clk != nil {
		return r.Clk.Now()
	}
	return time.Now()
}

func (r *Repository) lookup(key CacheKey) *CacheEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.cache.Get(key)
	if !ok {
		return nil
	}
	return v.(*CacheEntry)
}

func (r *Repository) store(key CacheKey, entry *CacheEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache.Add(key, entry)
}

func (r *Repository) count(ok bool, stats *metrics.Metrics, which string) {
	if !ok {
		return
	}
	switch which {
	case "hit":
		stats.CacheHits.Inc()
	case "miss":
		stats.CacheMisses.Inc()
	}
}

func causeOf(err error) string {
	var fe *FetchError
	if asFetchError(err, &fe) {
		return "fetch"
	}
	var ie *idpMismatchError
	if asIDPMismatchError(err, &ie) {
		return "idp_mismatch"
	}
	return "parse"
}

func asFetchError(err error, target **FetchError) bool {
	fe, ok := err.(*FetchError)
	if ok {
		*target = fe
	}
	return ok
}

func asIDPMismatchError(err error, target **idpMismatchError) bool {
	ie, ok := err.(*idpMismatchError)
	if ok {
		*target = ie
	}
	return ok
}
