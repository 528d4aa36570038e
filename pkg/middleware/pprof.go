package middleware

import (
	"log/slog"
	"net/http"
	"net/http/pprof"
	"net/netip"

	"github.com/go-chi/chi/v5"
)

// RegisterPprof mounts /debug/pprof behind an IP allowlist.
func RegisterPprof(r chi.Router, allowedCIDRs []string, logger *slog.Logger) {
	r.Group(func(r chi.Router) {
		r.Use(IPAllowlist(allowedCIDRs, logger))
		r.HandleFunc("/debug/pprof/*", pprof.Index)
		r.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		r.HandleFunc("/debug/pprof/profile", pprof.Profile)
		r.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		r.HandleFunc("/debug/pprof/trace", pprof.Trace)
	})
}

// IPAllowlist admits only clients whose address falls inside one of cidrs.
// Unparseable CIDRs are logged and ignored.
func IPAllowlist(cidrs []string, logger *slog.Logger) func(http.Handler) http.Handler {
	prefixes := make([]netip.Prefix, 0, len(cidrs))
	for _, c := range cidrs {
		p, err := netip.ParsePrefix(c)
		if err != nil {
			logger.Warn("invalid allowlist CIDR, skipping", slog.String("cidr", c), slog.String("error", err.Error()))
			continue
		}
		prefixes = append(prefixes, p.Masked())
	}

	allowed := func(host string) bool {
		addr, err := netip.ParseAddr(host)
		if err != nil {
			return false
		}
		addr = addr.Unmap()
		for _, p := range prefixes {
			if p.Contains(addr) {
				return true
			}
		}
		return false
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			host := clientIP(r)
			if !allowed(host) {
				logger.Warn("access denied by IP allowlist", slog.String("ip", host), slog.String("path", r.URL.Path))
				writeError(w, r, http.StatusForbidden, "FORBIDDEN", "access restricted by IP allowlist")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
