// Package notmain implements the "verify" subcommand: given a PEM
// certificate chain and a PEM trust anchor bundle, it reports whether the
// chain is trusted, consulting CRLs along the way. It is registered into
// the shared subcommand dispatcher (cmd/pkitrust) rather than built as its
// own binary, following the registration pattern in cmd.RegisterCommand.
package notmain

import (
	"context"
	"crypto/x509"
	"encoding/pem"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/jmhodges/clock"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/pkitrust/pkitrust/cmd"
	"github.com/pkitrust/pkitrust/crl"
	"github.com/pkitrust/pkitrust/features"
	"github.com/pkitrust/pkitrust/metrics"
	"github.com/pkitrust/pkitrust/trust"
)

func loadCertsFromFile(path string) ([]*x509.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var certs []*x509.Certificate
	rest := data
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parsing certificate in %q: %w", path, err)
		}
		certs = append(certs, cert)
	}
	if len(certs) == 0 {
		return nil, fmt.Errorf("no PEM certificates found in %q", path)
	}
	return certs, nil
}

func main() {
	configFile := flag.String("config", "", "optional YAML config file (see config.go); overridden by any flag also set")
	chainFile := flag.String("chain", "", "PEM file containing the certificate chain, leaf first")
	anchorsFile := flag.String("anchors", "", "PEM file containing trusted root certificates")
	atTime := flag.String("at", "", "validation time in RFC3339 (defaults to now)")
	dumpRevocationData := flag.Bool("revocation-data", false, "print the CRLs consulted")
	flag.Parse()

	logger := cmd.NewLogger(cmd.SyslogConfig{StdoutLevel: 6, SyslogLevel: 3})

	var fileCfg *Config
	if *configFile != "" {
		var err error
		fileCfg, err = loadConfig(*configFile)
		cmd.FailOnError(err, "loading config")
		features.Set(features.Config{
			FailOpenOnAbstain: fileCfg.FailOpen,
			AllowIndirectCRLs: fileCfg.AllowIndirect,
		})
		if *anchorsFile == "" {
			*anchorsFile = fileCfg.AnchorsFile
		}
	}

	if *chainFile == "" || *anchorsFile == "" {
		cmd.Fail("both -chain and -anchors (or -config with anchorsFile set) are required")
	}

	chainCerts, err := loadCertsFromFile(*chainFile)
	cmd.FailOnError(err, "loading chain")

	anchorCerts, err := loadCertsFromFile(*anchorsFile)
	cmd.FailOnError(err, "loading anchors")

	validationTime := time.Time{}
	if *atTime != "" {
		validationTime, err = time.Parse(time.RFC3339, *atTime)
		cmd.FailOnError(err, "parsing -at")
	}

	stats := metrics.New(prometheus.NewRegistry())
	clk := clock.New()

	httpTimeout := 10 * time.Second
	cacheSize := 1024
	if fileCfg != nil {
		if fileCfg.FetchTimeout.Duration > 0 {
			httpTimeout = fileCfg.FetchTimeout.Duration
		}
		if fileCfg.CacheMaxSize > 0 {
			cacheSize = fileCfg.CacheMaxSize
		}
	}

	fetcher := crl.NewMultiSchemeFetcher(crl.NewHTTPFetcher(&http.Client{Timeout: httpTimeout}))
	repo := crl.NewRepository(fetcher, cacheSize, clk, logger, stats)
	linker := crl.NewLinker(repo, trust.DefaultAlgorithmPolicy(), logger)

	anchors := trust.NewAnchorStore(anchorCerts...)
	validator := trust.NewTrustValidator(anchors, stats)
	validator.Log = logger
	validator.Clk = clk
	validator.AddTrustLinker(linker)

	sink := &trust.RevocationData{}
	verdict, err := validator.IsTrusted(context.Background(), trust.CertificateChain(chainCerts), validationTime, sink)
	cmd.FailOnError(err, "validating chain")

	fmt.Println(verdict.String())

	if *dumpRevocationData {
		for _, c := range sink.CRLs {
			fmt.Printf("consulted CRL from issuer %d, %d bytes\n", c.Issuer, len(c.Raw))
		}
	}

	if !verdict.OK {
		os.Exit(1)
	}
}

func init() {
	cmd.RegisterCommand("verify", main, &cmd.ConfigValidator{Config: &Config{}})
}
