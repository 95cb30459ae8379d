package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// Public resolvers raced when the system resolver cannot answer, which
// happens on captive or misconfigured networks.
var publicDNS = []string{
	"1.1.1.1",              // Cloudflare
	"1.0.0.1",              // Cloudflare
	"8.8.8.8",              // Google
	"8.8.4.4",              // Google
	"9.9.9.9",              // Quad9
	"208.67.222.222",       // OpenDNS
	"2606:4700:4700::1111", // Cloudflare
	"2001:4860:4860::8888", // Google
}

// Resolver maps a host name to a single address to dial.
type Resolver func(ctx context.Context, host string) (string, error)

// Lookup resolves host with the system resolver and falls back to racing
// public DNS servers. IP literals are returned unchanged.
func Lookup(ctx context.Context, host string) (string, error) {
	if net.ParseIP(host) != nil {
		return host, nil
	}

	localCtx, cancel := context.WithTimeout(ctx, time.Second)
	ip, err := lookupWith(localCtx, &net.Resolver{}, host)
	cancel()
	if err == nil {
		return ip, nil
	}

	return raceLookup(ctx, host)
}

func raceLookup(ctx context.Context, host string) (string, error) {
	type result struct {
		ip  string
		err error
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	results := make(chan result, len(publicDNS))
	for _, server := range publicDNS {
		go func(server string) {
			ip, err := lookupWith(ctx, publicResolver(server), host)
			results <- result{ip: ip, err: err}
		}(server)
	}

	for range publicDNS {
		select {
		case res := <-results:
			if res.err == nil {
				return res.ip, nil
			}
		case <-ctx.Done():
			return "", fmt.Errorf("resolve %s: %w", host, ctx.Err())
		}
	}

	return "", fmt.Errorf("resolve %s: all %d public resolvers failed", host, len(publicDNS))
}

func publicResolver(server string) *net.Resolver {
	return &net.Resolver{
		PreferGo: true,
		Dial: func(ctx context.Context, network, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, network, net.JoinHostPort(server, "53"))
		},
	}
}

// lookupWith returns the first IPv4 address, or the first address when the
// host only has IPv6 records.
func lookupWith(ctx context.Context, r *net.Resolver, host string) (string, error) {
	ips, err := r.LookupHost(ctx, host)
	if err != nil {
		return "", err
	}
	if len(ips) == 0 {
		return "", errors.New("no addresses")
	}

	for _, ip := range ips {
		if net.ParseIP(ip).To4() != nil {
			return ip, nil
		}
	}
	return ips[0], nil
}
