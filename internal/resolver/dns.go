package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
	"golang.org/x/time/rate"

	"github.com/cruxstack/email-mx-validator-go/internal/types"
)

var DefaultServers = []string{"1.1.1.1:53", "8.8.8.8:53"}

type DNSResolverConfig struct {
	// Servers are host:port pairs, tried in order. A bare host gets port 53.
	Servers []string

	// Timeout bounds a single exchange with one server.
	Timeout time.Duration

	// QueriesPerSecond limits outgoing queries; 0 means unlimited.
	QueriesPerSecond float64
}

// DNSResolver queries MX records directly on the wire with miekg/dns. Errors
// are reported as *net.DNSError so they classify the same way as the system
// resolver's.
type DNSResolver struct {
	servers []string
	udp     *dns.Client
	tcp     *dns.Client
	limiter *rate.Limiter
}

func NewDNSResolver(cfg DNSResolverConfig) (*DNSResolver, error) {
	servers := cfg.Servers
	if len(servers) == 0 {
		servers = DefaultServers
	}

	normalized := make([]string, 0, len(servers))
	for _, s := range servers {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, _, err := net.SplitHostPort(s); err != nil {
			s = net.JoinHostPort(s, "53")
		}
		normalized = append(normalized, s)
	}
	if len(normalized) == 0 {
		return nil, errors.New("at least one dns server is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	r := &DNSResolver{
		servers: normalized,
		udp:     &dns.Client{Net: "udp", Timeout: timeout},
		tcp:     &dns.Client{Net: "tcp", Timeout: timeout},
	}
	if cfg.QueriesPerSecond > 0 {
		burst := int(cfg.QueriesPerSecond)
		if burst < 1 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(cfg.QueriesPerSecond), burst)
	}

	return r, nil
}

func (r *DNSResolver) LookupMX(ctx context.Context, domain string) ([]types.MXRecord, error) {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			// Wait fails early, without wrapping ctx.Err, when the deadline
			// leaves no room for a token
			if _, ok := ctx.Deadline(); ok && !errors.Is(err, context.Canceled) {
				return nil, &net.DNSError{Err: "rate limit wait exceeds deadline", Name: domain, IsTimeout: true}
			}
			return nil, fmt.Errorf("dns rate limit wait: %w", err)
		}
	}

	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(domain), dns.TypeMX)
	msg.RecursionDesired = true

	var lastErr error
	for _, server := range r.servers {
		resp, err := r.exchange(ctx, msg, server)
		if err != nil {
			lastErr = err
			slog.DebugContext(ctx, "dns exchange failed", "server", server, "domain", domain, "error", err)
			if ctx.Err() != nil {
				break
			}
			continue
		}

		records, err := parseMXResponse(domain, server, resp)
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && dnsErr.IsTemporary {
			// try the next server on SERVFAIL / REFUSED
			lastErr = err
			continue
		}
		return records, err
	}

	return nil, lastErr
}

func (r *DNSResolver) exchange(ctx context.Context, msg *dns.Msg, server string) (*dns.Msg, error) {
	resp, _, err := r.udp.ExchangeContext(ctx, msg, server)
	if err == nil && resp != nil && resp.Truncated {
		resp, _, err = r.tcp.ExchangeContext(ctx, msg, server)
	}
	if err != nil {
		return nil, toDNSError(msg.Question[0].Name, server, err)
	}
	return resp, nil
}

func parseMXResponse(domain, server string, resp *dns.Msg) ([]types.MXRecord, error) {
	switch resp.Rcode {
	case dns.RcodeSuccess:
	case dns.RcodeNameError:
		return nil, &net.DNSError{Err: "no such host", Name: domain, Server: server, IsNotFound: true}
	case dns.RcodeServerFailure, dns.RcodeRefused:
		return nil, &net.DNSError{
			Err:         "server misbehaving: " + dns.RcodeToString[resp.Rcode],
			Name:        domain,
			Server:      server,
			IsTemporary: true,
		}
	default:
		return nil, &net.DNSError{Err: "unexpected rcode " + dns.RcodeToString[resp.Rcode], Name: domain, Server: server}
	}

	records := make([]types.MXRecord, 0, len(resp.Answer))
	for _, rr := range resp.Answer {
		if m, ok := rr.(*dns.MX); ok {
			records = append(records, types.MXRecord{
				Exchange: strings.TrimSuffix(m.Mx, "."),
				Priority: m.Preference,
			})
		}
	}

	if len(records) == 0 {
		return nil, &net.DNSError{Err: "no MX records found", Name: domain, Server: server, IsNotFound: true}
	}
	return records, nil
}

func toDNSError(name, server string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &net.DNSError{Err: "i/o timeout", Name: name, Server: server, IsTimeout: true}
	}
	return &net.DNSError{Err: err.Error(), Name: name, Server: server}
}
