package crl

import (
	"context"
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jmhodges/clock"

	"github.com/pkitrust/pkitrust/test"
)

// fakeFetcher serves preset bytes for any URI and counts how many times
// Fetch was actually called, for verifying cache-hit and singleflight
// behavior.
type fakeFetcher struct {
	raw   []byte
	calls atomic.Int32
}

func (f *fakeFetcher) Fetch(ctx context.Context, uri string) ([]byte, error) {
	f.calls.Add(1)
	return f.raw, nil
}

type erroringFetcher struct{}

func (erroringFetcher) Fetch(ctx context.Context, uri string) ([]byte, error) {
	return nil, &FetchError{URI: uri, Err: context.DeadlineExceeded}
}

// blockingFetcher holds every caller at the gate until proceed is closed,
// so concurrent Find calls racing for the same key are guaranteed to
// overlap inside the fetch rather than serialize through the cache.
type blockingFetcher struct {
	raw     []byte
	calls   atomic.Int32
	proceed chan struct{}
}

func (f *blockingFetcher) Fetch(ctx context.Context, uri string) ([]byte, error) {
	f.calls.Add(1)
	<-f.proceed
	return f.raw, nil
}

func TestRepositoryFindCachesAcrossCalls(t *testing.T) {
	fc := clock.NewFake()
	fc.Set(time.Now())
	issuer, issuerKey := test.NewRoot(t, fc, "cache test root")
	raw := test.BuildCRL(t, fc, issuer, issuerKey, 1, fc.Now().Add(-time.Hour), fc.Now().Add(time.Hour), nil, nil)

	fetcher := &fakeFetcher{raw: raw}
	repo := NewRepository(fetcher, 0, fc, nil, nil)

	entry1 := repo.Find(context.Background(), "http://crl.example/a.crl", issuer, fc.Now())
	test.Assert(t, entry1 != nil, "expected a cache entry on first lookup")

	entry2 := repo.Find(context.Background(), "http://crl.example/a.crl", issuer, fc.Now())
	test.Assert(t, entry2 != nil, "expected a cache entry on second lookup")

	test.Assert(t, fetcher.calls.Load() == 1, "expected exactly one fetch across two lookups")
}

func TestRepositoryFindRefetchesOnStaleness(t *testing.T) {
	fc := clock.NewFake()
	fc.Set(time.Now())
	issuer, issuerKey := test.NewRoot(t, fc, "staleness test root")
	raw := test.BuildCRL(t, fc, issuer, issuerKey, 1, fc.Now().Add(-time.Hour), fc.Now().Add(time.Minute), nil, nil)

	fetcher := &fakeFetcher{raw: raw}
	repo := NewRepository(fetcher, 0, fc, nil, nil)

	entry := repo.Find(context.Background(), "http://crl.example/a.crl", issuer, fc.Now())
	test.Assert(t, entry != nil, "expected a cache entry while the CRL is still fresh")

	fc.Add(2 * time.Minute)
	entry = repo.Find(context.Background(), "http://crl.example/a.crl", issuer, fc.Now())
	test.Assert(t, entry == nil, "expected nil once validationTime moves past nextUpdate and refetch still returns the now-stale CRL")
	test.Assert(t, fetcher.calls.Load() == 2, "expected a refetch attempt once the cached entry went stale")
}

func TestRepositoryFindMissingNextUpdateAlwaysExpired(t *testing.T) {
	fc := clock.NewFake()
	fc.Set(time.Now())
	issuer, issuerKey := test.NewRoot(t, fc, "missing nextupdate root")
	raw := test.BuildCRL(t, fc, issuer, issuerKey, 1, fc.Now().Add(-time.Hour), time.Time{}, nil, nil)

	fetcher := &fakeFetcher{raw: raw}
	repo := NewRepository(fetcher, 0, fc, nil, nil)

	entry := repo.Find(context.Background(), "http://crl.example/no-next-update.crl", issuer, fc.Now())
	test.Assert(t, entry == nil, "a CRL with no NextUpdate must never be considered fresh")
}

func TestRepositoryFindAbstainsOnFetchError(t *testing.T) {
	fc := clock.NewFake()
	fc.Set(time.Now())
	issuer, _ := test.NewRoot(t, fc, "fetch error root")

	repo := NewRepository(erroringFetcher{}, 0, fc, nil, nil)
	entry := repo.Find(context.Background(), "http://crl.example/unreachable.crl", issuer, fc.Now())
	test.Assert(t, entry == nil, "expected nil (Abstain) when the fetcher errors")
}

func TestRepositoryFindAbstainsOnUnparseableCRL(t *testing.T) {
	fc := clock.NewFake()
	fc.Set(time.Now())
	issuer, _ := test.NewRoot(t, fc, "unparseable root")

	fetcher := &fakeFetcher{raw: []byte("not a CRL")}
	repo := NewRepository(fetcher, 0, fc, nil, nil)
	entry := repo.Find(context.Background(), "http://crl.example/garbage.crl", issuer, fc.Now())
	test.Assert(t, entry == nil, "expected nil (Abstain) when the fetched bytes don't parse as a CRL")
}

func TestRepositoryFindRejectsIDPMismatch(t *testing.T) {
	fc := clock.NewFake()
	fc.Set(time.Now())
	issuer, issuerKey := test.NewRoot(t, fc, "idp mismatch root")

	idp := issuingDistributionPoint{
		DistributionPoint: distributionPointName{FullName: []asn1.RawValue{asn1GeneralNameURI("http://crl.example/correct.crl")}},
	}
	idpBytes, err := asn1.Marshal(idp)
	test.AssertNotError(t, err, "marshaling test IssuingDistributionPoint")

	raw := test.BuildCRL(t, fc, issuer, issuerKey, 1, fc.Now().Add(-time.Hour), fc.Now().Add(time.Hour), nil,
		[]pkix.Extension{{Id: oidExtensionIssuingDistributionPoint, Value: idpBytes}})

	fetcher := &fakeFetcher{raw: raw}
	repo := NewRepository(fetcher, 0, fc, nil, nil)
	entry := repo.Find(context.Background(), "http://crl.example/wrong.crl", issuer, fc.Now())
	test.Assert(t, entry == nil, "expected nil (Abstain) when the fetch URI isn't among the IDP's declared URIs")
}

func TestRepositoryFindAllowsIDPMatch(t *testing.T) {
	fc := clock.NewFake()
	fc.Set(time.Now())
	issuer, issuerKey := test.NewRoot(t, fc, "idp match root")

	idp := issuingDistributionPoint{
		DistributionPoint: distributionPointName{FullName: []asn1.RawValue{asn1GeneralNameURI("http://crl.example/correct.crl")}},
	}
	idpBytes, err := asn1.Marshal(idp)
	test.AssertNotError(t, err, "marshaling test IssuingDistributionPoint")

	raw := test.BuildCRL(t, fc, issuer, issuerKey, 1, fc.Now().Add(-time.Hour), fc.Now().Add(time.Hour), nil,
		[]pkix.Extension{{Id: oidExtensionIssuingDistributionPoint, Value: idpBytes}})

	fetcher := &fakeFetcher{raw: raw}
	repo := NewRepository(fetcher, 0, fc, nil, nil)
	entry := repo.Find(context.Background(), "http://crl.example/correct.crl", issuer, fc.Now())
	test.Assert(t, entry != nil, "expected a cache entry when the fetch URI matches the IDP's declared URI")
}

// TestRepositoryFindSingleflightsConcurrentLookups exercises the property
// named in the spec: N goroutines racing Find for the same (uri, issuer)
// while nothing is cached yet must produce exactly one underlying Fetch
// call, with every goroutine receiving the same resulting entry.
func TestRepositoryFindSingleflightsConcurrentLookups(t *testing.T) {
	fc := clock.NewFake()
	fc.Set(time.Now())
	issuer, issuerKey := test.NewRoot(t, fc, "singleflight root")
	raw := test.BuildCRL(t, fc, issuer, issuerKey, 1, fc.Now().Add(-time.Hour), fc.Now().Add(time.Hour), nil, nil)

	fetcher := &blockingFetcher{raw: raw, proceed: make(chan struct{})}
	repo := NewRepository(fetcher, 0, fc, nil, nil)

	const n = 10
	var wg sync.WaitGroup
	results := make([]*CacheEntry, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = repo.Find(context.Background(), "http://crl.example/concurrent.crl", issuer, fc.Now())
		}(i)
	}

	// Give every goroutine a chance to reach the fetcher before letting any
	// of them return, so singleflight has something to actually collapse.
	time.Sleep(50 * time.Millisecond)
	close(fetcher.proceed)
	wg.Wait()

	test.Assert(t, fetcher.calls.Load() == 1, "expected exactly one underlying Fetch call across concurrent Find calls for the same key")
	for i, entry := range results {
		test.Assert(t, entry != nil, fmt.Sprintf("goroutine %d expected a non-nil cache entry", i))
	}
}

func TestCacheKeyDistinguishesIssuer(t *testing.T) {
	fc := clock.NewFake()
	fc.Set(time.Now())
	issuerA, issuerAKey := test.NewRoot(t, fc, "issuer A")
	issuerB, _ := test.NewRoot(t, fc, "issuer B")
	raw := test.BuildCRL(t, fc, issuerA, issuerAKey, 1, fc.Now().Add(-time.Hour), fc.Now().Add(time.Hour), nil, nil)

	fetcher := &fakeFetcher{raw: raw}
	repo := NewRepository(fetcher, 0, fc, nil, nil)

	repo.Find(context.Background(), "http://crl.example/shared-uri.crl", issuerA, fc.Now())
	// Same URI, different issuer: must not be treated as the same cache
	// entry even though the URI string matches.
	entry := repo.Find(context.Background(), "http://crl.example/shared-uri.crl", issuerB, fc.Now())
	test.Assert(t, fetcher.calls.Load() == 2, "expected a distinct fetch for a distinct issuer under the same URI")
	// issuerB never actually signed this CRL, so the entry is returned (the
	// Repository doesn't check signatures; that is the Linker's job) but
	// the fetch count above is what demonstrates key separation.
	_ = entry
}
