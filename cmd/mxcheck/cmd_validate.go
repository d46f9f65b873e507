package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/cruxstack/email-mx-validator-go/internal/config"
	"github.com/cruxstack/email-mx-validator-go/internal/mxcache"
	"github.com/cruxstack/email-mx-validator-go/internal/validator"
)

var errInvalidAddresses = errors.New("one or more addresses are invalid")

type validateFlags struct {
	detailed     bool
	noMX         bool
	noDisposable bool
	timeout      string
	resolver     string
	dnsServers   []string
	debug        bool
	metricsAddr  string
	file         string
	concurrency  int
}

type validateOutput struct {
	Results    []*validator.Result `json:"results"`
	CacheStats *mxcache.Stats      `json:"cacheStats,omitempty"`
}

func newCmdValidate() *cobra.Command {
	f := &validateFlags{}

	cmd := &cobra.Command{
		Use:   "validate [email...]",
		Short: "Validate one or more email addresses",
		Long:  "Validate email addresses and print the results as JSON. Defaults come from the APP_* environment variables; flags override them.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, f, args)
		},
	}

	fl := cmd.Flags()
	fl.BoolVar(&f.detailed, "detailed", false, "run every check and report per-check results")
	fl.BoolVar(&f.noMX, "no-mx", false, "skip the MX record check")
	fl.BoolVar(&f.noDisposable, "no-disposable", false, "skip the disposable domain check")
	fl.StringVar(&f.timeout, "timeout", "", "MX lookup timeout (Go duration or milliseconds)")
	fl.StringVar(&f.resolver, "resolver", "", "resolver kind (system|dns)")
	fl.StringSliceVar(&f.dnsServers, "dns-server", nil, "DNS server for the dns resolver (repeatable)")
	fl.BoolVar(&f.debug, "debug", false, "log per-phase debug events")
	fl.StringVar(&f.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")
	fl.StringVarP(&f.file, "file", "f", "", "read addresses from a file, one per line (- for stdin)")
	fl.IntVar(&f.concurrency, "concurrency", 8, "maximum concurrent validations")

	return cmd
}

func runValidate(cmd *cobra.Command, f *validateFlags, args []string) error {
	cfg, err := config.New()
	if err != nil {
		return err
	}
	if err := f.apply(cmd, cfg); err != nil {
		return err
	}

	logger := log.NewWithOptions(cmd.ErrOrStderr(), log.Options{ReportTimestamp: true})
	logger.SetLevel(log.Level(cfg.AppLogLevel))

	v, err := cfg.NewValidator(slog.New(logger))
	if err != nil {
		return err
	}
	defer v.Close()

	emails := append([]string{}, args...)
	if f.file != "" {
		fromFile, err := readAddressFile(cmd, f.file)
		if err != nil {
			return err
		}
		emails = append(emails, fromFile...)
	}
	if len(emails) == 0 {
		return errors.New("no email addresses given")
	}

	ctx := cmd.Context()

	if f.metricsAddr != "" {
		stop := serveMetrics(f.metricsAddr, v.Cache(), logger)
		defer stop()
	}

	results, err := validateAll(ctx, v, emails, f.concurrency)
	if err != nil {
		return err
	}

	out := validateOutput{Results: results}
	if c := v.Cache(); c != nil {
		stats := c.Statistics()
		out.CacheStats = &stats
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}

	for _, r := range results {
		if !r.Valid {
			return errInvalidAddresses
		}
	}
	return nil
}

// apply overrides the environment configuration with flags the user set.
func (f *validateFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	fl := cmd.Flags()

	if fl.Changed("detailed") {
		cfg.Detailed = f.detailed
	}
	if fl.Changed("no-mx") {
		cfg.MXCheckEnabled = !f.noMX
	}
	if fl.Changed("no-disposable") {
		cfg.DisposableCheckEnabled = !f.noDisposable
	}
	if fl.Changed("timeout") {
		d, err := validator.ParseTimeout(f.timeout)
		if err != nil {
			return fmt.Errorf("--timeout: %w", err)
		}
		cfg.MXTimeout = d
	}
	if fl.Changed("resolver") {
		cfg.DNSResolver = strings.ToLower(f.resolver)
	}
	if fl.Changed("dns-server") {
		cfg.DNSServers = f.dnsServers
		if !fl.Changed("resolver") {
			cfg.DNSResolver = "dns"
		}
	}
	if fl.Changed("debug") {
		cfg.DebugMode = f.debug
		if f.debug {
			cfg.AppLogLevel = slog.LevelDebug
		}
	}

	return cfg.Validate()
}

func validateAll(ctx context.Context, v *validator.Validator, emails []string, concurrency int) ([]*validator.Result, error) {
	results := make([]*validator.Result, len(emails))

	g, ctx := errgroup.WithContext(ctx)
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}

	for i, email := range emails {
		g.Go(func() error {
			res, err := v.Validate(ctx, email)
			if err != nil {
				return fmt.Errorf("failed to validate %s: %w", email, err)
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func readAddressFile(cmd *cobra.Command, path string) ([]string, error) {
	if path == "-" {
		return readAddresses(cmd.InOrStdin())
	}

	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open address file: %w", err)
	}
	defer fh.Close()

	return readAddresses(fh)
}

// readAddresses returns one address per non-blank line, skipping # comments.
func readAddresses(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read addresses: %w", err)
	}
	return out, nil
}

func serveMetrics(addr string, cache *mxcache.Cache, logger *log.Logger) func() {
	reg := prometheus.NewRegistry()
	if cache != nil {
		reg.MustRegister(mxcache.NewCollector("mxcheck", cache))
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "addr", addr, "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", addr)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
