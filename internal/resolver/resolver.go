// Package resolver looks up MX records. Resolvers never cache; caching is
// the validator's job.
package resolver

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/cruxstack/email-mx-validator-go/internal/types"
)

const (
	KindSystem = "system"
	KindDNS    = "dns"
)

// Resolver performs a single MX lookup. Implementations must honour ctx
// cancellation where they can and must not retain state between calls.
type Resolver interface {
	LookupMX(ctx context.Context, domain string) ([]types.MXRecord, error)
}

// Func adapts a plain function to the Resolver interface.
type Func func(ctx context.Context, domain string) ([]types.MXRecord, error)

func (f Func) LookupMX(ctx context.Context, domain string) ([]types.MXRecord, error) {
	return f(ctx, domain)
}

// NetResolver resolves through the operating system's configured resolver.
type NetResolver struct {
	Resolver *net.Resolver
}

func NewNetResolver() *NetResolver {
	return &NetResolver{Resolver: net.DefaultResolver}
}

func (r *NetResolver) LookupMX(ctx context.Context, domain string) ([]types.MXRecord, error) {
	res := r.Resolver
	if res == nil {
		res = net.DefaultResolver
	}

	mxs, err := res.LookupMX(ctx, domain)
	if err != nil && len(mxs) == 0 {
		return nil, err
	}

	records := make([]types.MXRecord, 0, len(mxs))
	for _, m := range mxs {
		records = append(records, types.MXRecord{
			Exchange: strings.TrimSuffix(m.Host, "."),
			Priority: m.Pref,
		})
	}
	return records, nil
}

// New builds a resolver of the given kind. servers and qps only apply to the
// dns kind.
func New(kind string, servers []string, qps float64) (Resolver, error) {
	switch kind {
	case "", KindSystem:
		return NewNetResolver(), nil
	case KindDNS:
		return NewDNSResolver(DNSResolverConfig{
			Servers:          servers,
			QueriesPerSecond: qps,
		})
	default:
		return nil, fmt.Errorf("unknown resolver kind: %s", kind)
	}
}
