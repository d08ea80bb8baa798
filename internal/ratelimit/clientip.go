// Package ratelimit derives the per-request key used to bucket login
// attempts, resolving the caller's real address only through
// configured trusted proxies.
package ratelimit

import (
	"net"
	"net/http"
	"strings"
)

// ClientIPResolver extracts the caller's address from a request,
// trusting X-Forwarded-For only when the immediate peer is inside one
// of trustedProxies. It never panics: on any ambiguity it falls back to
// the host part of RemoteAddr (or RemoteAddr as given when it has no
// port), so the result is empty only when RemoteAddr is empty.
type ClientIPResolver struct {
	trustedProxies []*net.IPNet
}

// NewClientIPResolver parses cidrs into trusted proxy ranges. Entries
// that fail to parse are skipped rather than rejected, since startup
// validation is responsible for catching malformed CIDRs before this
// runs.
func NewClientIPResolver(cidrs []string) *ClientIPResolver {
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		_, ipnet, err := net.ParseCIDR(c)
		if err != nil {
			continue
		}
		nets = append(nets, ipnet)
	}
	return &ClientIPResolver{trustedProxies: nets}
}

// Resolve returns the caller's IP address as a string.
func (r *ClientIPResolver) Resolve(req *http.Request) string {
	remoteIP := hostOnly(req.RemoteAddr)

	if !r.isTrustedProxy(remoteIP) {
		return remoteIP
	}

	xff := req.Header.Get("X-Forwarded-For")
	if xff == "" {
		return remoteIP
	}

	leftmost := strings.TrimSpace(strings.Split(xff, ",")[0])
	if leftmost == "" || net.ParseIP(leftmost) == nil {
		return remoteIP
	}
	return leftmost
}

func (r *ClientIPResolver) isTrustedProxy(ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for _, n := range r.trustedProxies {
		if n.Contains(parsed) {
			return true
		}
	}
	return false
}

func hostOnly(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
