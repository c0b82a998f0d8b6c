package httputil

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// SourceType represents how a request was made.
type SourceType int

const (
	SourceTypeUnknown SourceType = 0
	SourceTypeWeb     SourceType = 1
	SourceTypeCLI     SourceType = 2
	SourceTypeAPI     SourceType = 3
)

// SourceHeader lets clients declare their source explicitly.
const SourceHeader = "X-Vidstream-Source"

func (s SourceType) String() string {
	switch s {
	case SourceTypeWeb:
		return "web"
	case SourceTypeCLI:
		return "cli"
	case SourceTypeAPI:
		return "api"
	default:
		return "unknown"
	}
}

// RequestContext holds the caller's network origin, used for audit records.
type RequestContext struct {
	IP         net.IP
	SourceType SourceType
	UserAgent  string
}

type requestContextKey struct{}

// NewRequestContext builds a RequestContext from r. The source type comes
// from X-Vidstream-Source when present, otherwise from the User-Agent.
func NewRequestContext(r *http.Request, trusted TrustedProxies) *RequestContext {
	rc := &RequestContext{
		IP:        net.ParseIP(GetClientIP(r, trusted)),
		UserAgent: r.Header.Get("User-Agent"),
	}

	if source := r.Header.Get(SourceHeader); source != "" {
		switch strings.ToLower(source) {
		case "web":
			rc.SourceType = SourceTypeWeb
		case "cli":
			rc.SourceType = SourceTypeCLI
		case "api":
			rc.SourceType = SourceTypeAPI
		}
	} else if ua := strings.ToLower(rc.UserAgent); ua != "" {
		if strings.Contains(ua, "vidctl") {
			rc.SourceType = SourceTypeCLI
		} else {
			rc.SourceType = SourceTypeWeb
		}
	}

	return rc
}

// WithRequestContext adds rc to ctx.
func WithRequestContext(ctx context.Context, rc *RequestContext) context.Context {
	return context.WithValue(ctx, requestContextKey{}, rc)
}

// GetRequestContext returns the RequestContext in ctx, or nil.
func GetRequestContext(ctx context.Context) *RequestContext {
	if rc, ok := ctx.Value(requestContextKey{}).(*RequestContext); ok {
		return rc
	}
	return nil
}

// IPString returns the IP as a string, or "" if unknown.
func (rc *RequestContext) IPString() string {
	if rc == nil || rc.IP == nil {
		return ""
	}
	return rc.IP.String()
}

// TrustedProxies are the peer ranges whose forwarding headers are believed.
type TrustedProxies []netip.Prefix

// ParseTrustedProxies parses CIDRs or bare addresses into TrustedProxies.
func ParseTrustedProxies(entries []string) (TrustedProxies, error) {
	out := make(TrustedProxies, 0, len(entries))
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if !strings.Contains(e, "/") {
			addr, err := netip.ParseAddr(e)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", e, err)
			}
			out = append(out, netip.PrefixFrom(addr.Unmap(), addr.Unmap().BitLen()))
			continue
		}
		prefix, err := netip.ParsePrefix(e)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", e, err)
		}
		out = append(out, prefix.Masked())
	}
	return out, nil
}

// Contains reports whether addr lies in one of the trusted ranges.
func (tp TrustedProxies) Contains(addr string) bool {
	ip, err := netip.ParseAddr(strings.TrimSpace(addr))
	if err != nil {
		return false
	}
	ip = ip.Unmap()
	for _, p := range tp {
		if p.Contains(ip) {
			return true
		}
	}
	return false
}

// GetClientIP returns the client address without its port. X-Forwarded-For
// and X-Real-IP are only consulted when the connecting peer is a trusted
// proxy; the forwarded chain is walked right to left and the first hop
// outside the trusted ranges wins.
func GetClientIP(r *http.Request, trusted TrustedProxies) string {
	peer := r.RemoteAddr
	if host, _, err := net.SplitHostPort(peer); err == nil {
		peer = host
	}
	if !trusted.Contains(peer) {
		return peer
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if hop == "" {
				continue
			}
			if !trusted.Contains(hop) || i == 0 {
				return hop
			}
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	return peer
}
