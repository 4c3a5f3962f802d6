// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package util

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"strings"
)

// MaxOutboundURLLength is the maximum accepted length of an outbound URL.
const MaxOutboundURLLength = 2048

// ErrPrivateAddress is returned when an outbound target is not publicly routable.
var ErrPrivateAddress = errors.New("private or reserved address")

var reservedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("100.64.0.0/10"), // CGNAT
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("169.254.0.0/16"), // link-local, cloud metadata
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.0.0.0/24"),
	netip.MustParsePrefix("192.0.2.0/24"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("198.18.0.0/15"),
	netip.MustParsePrefix("198.51.100.0/24"),
	netip.MustParsePrefix("203.0.113.0/24"),
	netip.MustParsePrefix("224.0.0.0/4"),
	netip.MustParsePrefix("240.0.0.0/4"),
	netip.MustParsePrefix("::/128"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("fc00::/7"),
	netip.MustParsePrefix("fe80::/10"),
}

// IsReservedAddr reports whether addr is private, loopback or otherwise
// not publicly routable. The zero Addr counts as reserved.
func IsReservedAddr(addr netip.Addr) bool {
	if !addr.IsValid() {
		return true
	}
	addr = addr.Unmap()
	for _, p := range reservedPrefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// ParseHTTPURL checks that rawURL is an absolute http(s) URL with a host.
func ParseHTTPURL(rawURL string) (*url.URL, error) {
	if len(rawURL) > MaxOutboundURLLength {
		return nil, fmt.Errorf("URL exceeds maximum length of %d characters", MaxOutboundURLLength)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL format: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("URL must use http or https scheme")
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("URL must have a hostname")
	}
	return u, nil
}

// CheckPublicURL is ParseHTTPURL plus a rejection of localhost names and
// literal reserved IPs. It does not resolve DNS.
func CheckPublicURL(rawURL string) error {
	u, err := ParseHTTPURL(rawURL)
	if err != nil {
		return err
	}

	host := strings.ToLower(u.Hostname())
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return fmt.Errorf("localhost URLs are not allowed: %w", ErrPrivateAddress)
	}
	if addr, err := netip.ParseAddr(host); err == nil && IsReservedAddr(addr) {
		return fmt.Errorf("host %s: %w", host, ErrPrivateAddress)
	}
	return nil
}

// PublicDialContext returns a DialContext that resolves the target itself and
// refuses to connect to reserved addresses. It dials the checked IP, not the name.
func PublicDialContext(dialer *net.Dialer) func(ctx context.Context, network, addr string) (net.Conn, error) {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, fmt.Errorf("invalid address %q: %w", addr, err)
		}

		ips, err := net.DefaultResolver.LookupNetIP(ctx, "ip", host)
		if err != nil {
			return nil, fmt.Errorf("resolving %q: %w", host, err)
		}
		for _, ip := range ips {
			if IsReservedAddr(ip) {
				return nil, fmt.Errorf("connection to %s (resolved from %q): %w", ip, host, ErrPrivateAddress)
			}
		}

		var lastErr error
		for _, ip := range ips {
			conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(ip.Unmap().String(), port))
			if err == nil {
				return conn, nil
			}
			lastErr = err
		}
		if lastErr == nil {
			lastErr = fmt.Errorf("no addresses for %q", host)
		}
		return nil, fmt.Errorf("connecting to %q: %w", host, lastErr)
	}
}
