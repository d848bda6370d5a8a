package profiler

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/miekg/dns"
)

// Resolver performs the name resolution the profiler needs. Both lookups
// must honor context cancellation and return promptly on timeout.
type Resolver interface {
	// LookupHost resolves A/AAAA records for a hostname.
	LookupHost(ctx context.Context, host string) ([]string, error)

	// LookupNS returns nameserver hosts for a domain. Presence of NS
	// records distinguishes a delegated domain from a plain host record.
	LookupNS(ctx context.Context, domain string) ([]string, error)
}

// dnsResolver implements Resolver directly against the system's configured
// nameservers. It falls back to the stdlib resolver when no resolv.conf
// is readable (containers, some CI environments).
type dnsResolver struct {
	client   *dns.Client
	servers  []string
	fallback *net.Resolver
}

// NewResolver creates a Resolver with a per-query timeout.
func NewResolver(timeout time.Duration) Resolver {
	r := &dnsResolver{
		client:   &dns.Client{Timeout: timeout},
		fallback: net.DefaultResolver,
	}
	if conf, err := dns.ClientConfigFromFile("/etc/resolv.conf"); err == nil && len(conf.Servers) > 0 {
		for _, s := range conf.Servers {
			r.servers = append(r.servers, net.JoinHostPort(s, conf.Port))
		}
	}
	return r
}

func (r *dnsResolver) LookupHost(ctx context.Context, host string) ([]string, error) {
	if len(r.servers) == 0 {
		return r.fallback.LookupHost(ctx, host)
	}

	var addrs []string
	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		msg := new(dns.Msg)
		msg.SetQuestion(dns.Fqdn(host), qtype)
		resp, _, err := r.client.ExchangeContext(ctx, msg, r.servers[0])
		if err != nil {
			return nil, err
		}
		for _, rr := range resp.Answer {
			switch record := rr.(type) {
			case *dns.A:
				addrs = append(addrs, record.A.String())
			case *dns.AAAA:
				addrs = append(addrs, record.AAAA.String())
			}
		}
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("no address records for %s", host)
	}
	return addrs, nil
}

func (r *dnsResolver) LookupNS(ctx context.Context, domain string) ([]string, error) {
	if len(r.servers) == 0 {
		records, err := r.fallback.LookupNS(ctx, domain)
		if err != nil {
			return nil, err
		}
		hosts := make([]string, 0, len(records))
		for _, ns := range records {
			hosts = append(hosts, ns.Host)
		}
		return hosts, nil
	}

	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(domain), dns.TypeNS)
	resp, _, err := r.client.ExchangeContext(ctx, msg, r.servers[0])
	if err != nil {
		return nil, err
	}
	var hosts []string
	for _, rr := range resp.Answer {
		if ns, ok := rr.(*dns.NS); ok {
			hosts = append(hosts, ns.Ns)
		}
	}
	return hosts, nil
}
