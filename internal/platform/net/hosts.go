// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package net restricts where story media may be downloaded from.
package net

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

// ErrHostNotAllowed is returned when a media URL falls outside the policy.
var ErrHostNotAllowed = errors.New("media host not allowed")

// HostPolicy is an allowlist of media hosts. A policy with no hosts and no
// CIDRs allows every public host.
//
// Hosts match exactly, or as a suffix when written with a leading dot
// (".cdn.example.com" matches "a.cdn.example.com"). Loopback, link-local,
// multicast and unspecified addresses are always rejected unless an
// explicit CIDR covers them.
type HostPolicy struct {
	hosts    map[string]struct{}
	suffixes []string
	cidrs    []*net.IPNet
	lookup   func(ctx context.Context, host string) ([]net.IPAddr, error)
}

// NewHostPolicy normalises hosts and parses cidrs. Bare IPs are accepted in
// cidrs as single-address networks.
func NewHostPolicy(hosts, cidrs []string) (*HostPolicy, error) {
	p := &HostPolicy{
		hosts:  make(map[string]struct{}),
		lookup: net.DefaultResolver.LookupIPAddr,
	}
	for _, h := range hosts {
		suffix := strings.HasPrefix(strings.TrimSpace(h), ".")
		n, err := NormalizeHost(strings.TrimPrefix(strings.TrimSpace(h), "."))
		if err != nil {
			return nil, err
		}
		if suffix {
			p.suffixes = append(p.suffixes, "."+n)
			continue
		}
		p.hosts[n] = struct{}{}
	}
	nets, err := parseCIDRs(cidrs)
	if err != nil {
		return nil, err
	}
	p.cidrs = nets
	return p, nil
}

// Restricted reports whether the policy carries an allowlist.
func (p *HostPolicy) Restricted() bool {
	return p != nil && (len(p.hosts) > 0 || len(p.suffixes) > 0 || len(p.cidrs) > 0)
}

// Check verifies rawURL's host against the policy. A nil policy allows
// everything.
func (p *HostPolicy) Check(ctx context.Context, rawURL string) error {
	if p == nil {
		return nil
	}
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	host, err := NormalizeHost(u.Hostname())
	if err != nil {
		return err
	}

	ips, err := p.resolve(ctx, host)
	if err != nil {
		return err
	}
	ipAllowed := false
	for _, ip := range ips {
		inCIDR := ipInCIDRs(ip, p.cidrs)
		if isBlockedIP(ip) && !inCIDR {
			return fmt.Errorf("%w: blocked ip %s", ErrHostNotAllowed, ip)
		}
		if inCIDR {
			ipAllowed = true
		}
	}

	if !p.Restricted() || ipAllowed || p.hostAllowed(host) {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrHostNotAllowed, host)
}

func (p *HostPolicy) hostAllowed(host string) bool {
	if _, ok := p.hosts[host]; ok {
		return true
	}
	for _, s := range p.suffixes {
		if strings.HasSuffix(host, s) {
			return true
		}
	}
	return false
}

// NormalizeHost validates and lowercases a host for comparison. IDN hosts
// are converted to their ASCII form.
func NormalizeHost(raw string) (string, error) {
	host := strings.TrimSpace(raw)
	if host == "" {
		return "", fmt.Errorf("host is empty")
	}
	if strings.Contains(host, "://") {
		return "", fmt.Errorf("host must not include scheme: %s", raw)
	}
	if strings.ContainsAny(host, "/@%") {
		return "", fmt.Errorf("host must be a bare name or address: %s", raw)
	}
	if strings.HasPrefix(host, "[") && strings.HasSuffix(host, "]") {
		host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	}
	if strings.Contains(host, ":") && net.ParseIP(host) == nil {
		return "", fmt.Errorf("host must not include port: %s", raw)
	}
	host = strings.TrimSuffix(host, ".")
	if host == "" {
		return "", fmt.Errorf("host is empty")
	}
	if ip := net.ParseIP(host); ip != nil {
		return strings.ToLower(ip.String()), nil
	}
	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return "", fmt.Errorf("invalid host %q: %w", raw, err)
	}
	return strings.ToLower(ascii), nil
}

func (p *HostPolicy) resolve(ctx context.Context, host string) ([]net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		return []net.IP{ip}, nil
	}
	addrs, err := p.lookup(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("resolve host %q: %w", host, err)
	}
	ips := make([]net.IP, 0, len(addrs))
	for _, a := range addrs {
		if a.IP != nil {
			ips = append(ips, a.IP)
		}
	}
	if len(ips) == 0 {
		return nil, fmt.Errorf("resolve host %q: no addresses", host)
	}
	return ips, nil
}

func parseCIDRs(entries []string) ([]*net.IPNet, error) {
	var nets []*net.IPNet
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if _, ipnet, err := net.ParseCIDR(entry); err == nil {
			nets = append(nets, ipnet)
			continue
		}
		ip := net.ParseIP(entry)
		if ip == nil {
			return nil, fmt.Errorf("invalid CIDR or IP: %s", entry)
		}
		bits := 32
		if ip.To4() == nil {
			bits = 128
		}
		nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
	}
	return nets, nil
}

func isBlockedIP(ip net.IP) bool {
	return ip == nil ||
		ip.IsLoopback() ||
		ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsMulticast()
}

func ipInCIDRs(ip net.IP, cidrs []*net.IPNet) bool {
	for _, n := range cidrs {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}
