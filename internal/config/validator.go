package config

import (
	"fmt"
	"log/slog"

	"github.com/cruxstack/email-mx-validator-go/internal/disposable"
	"github.com/cruxstack/email-mx-validator-go/internal/resolver"
	"github.com/cruxstack/email-mx-validator-go/internal/validator"
)

// NewDisposableChecker returns the embedded list extended with the
// configured file and extra domains.
func (c *Config) NewDisposableChecker() (*disposable.Checker, error) {
	dc := disposable.NewDefault()
	if c.DisposableDomainsPath != "" {
		if err := dc.LoadFile(c.DisposableDomainsPath); err != nil {
			return nil, fmt.Errorf("failed to load disposable domains: %w", err)
		}
	}
	dc.Add(c.DisposableDomainsExtra...)
	return dc, nil
}

// NewValidator builds a validator from the configuration. The caller owns it
// and should Close it on shutdown.
func (c *Config) NewValidator(logger *slog.Logger) (*validator.Validator, error) {
	dc, err := c.NewDisposableChecker()
	if err != nil {
		return nil, err
	}

	r, err := resolver.New(c.DNSResolver, c.DNSServers, c.DNSQPS)
	if err != nil {
		return nil, fmt.Errorf("failed to create resolver: %w", err)
	}

	opts := c.ValidatorOptions()
	cacheOpts := c.CacheOptions()

	return validator.New(validator.Config{
		Disposable:   dc,
		Resolver:     r,
		CacheOptions: &cacheOpts,
		Options:      &opts,
		Logger:       logger,
	})
}
