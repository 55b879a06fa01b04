package rpc

import (
	"net"
	"net/http"
	"net/netip"
	"slices"
)

// accessPolicy decides which peers may reach the server and which browser
// origins get CORS headers. The zero value admits everyone and sends no
// CORS headers.
type accessPolicy struct {
	prefixes []netip.Prefix
	origins  []string
}

// newAccessPolicy accepts CIDR blocks and bare addresses. Entries that parse
// as neither are skipped.
func newAccessPolicy(allowed, origins []string) accessPolicy {
	p := accessPolicy{origins: origins}
	for _, entry := range allowed {
		if prefix, err := netip.ParsePrefix(entry); err == nil {
			p.prefixes = append(p.prefixes, prefix.Masked())
			continue
		}
		if addr, err := netip.ParseAddr(entry); err == nil {
			p.prefixes = append(p.prefixes, netip.PrefixFrom(addr, addr.BitLen()))
		}
	}
	return p
}

func (p accessPolicy) permits(remoteAddr string) bool {
	if len(p.prefixes) == 0 {
		return true
	}
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return false
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	return slices.ContainsFunc(p.prefixes, func(pr netip.Prefix) bool { return pr.Contains(addr) })
}

// guard writes 403 and reports false when the peer is refused.
func (p accessPolicy) guard(w http.ResponseWriter, r *http.Request) bool {
	if p.permits(r.RemoteAddr) {
		return true
	}
	http.Error(w, "forbidden", http.StatusForbidden)
	return false
}

func (p accessPolicy) setCORS(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if origin == "" || len(p.origins) == 0 {
		return
	}
	switch {
	case slices.Contains(p.origins, "*"):
		w.Header().Set("Access-Control-Allow-Origin", "*")
	case slices.Contains(p.origins, origin):
		w.Header().Set("Access-Control-Allow-Origin", origin)
	default:
		return
	}
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}
