package httpserver

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// NewCheckOrigin builds the subscription origin policy. Empty origins (same-origin pages and
// non-browser clients such as ward displays) are accepted, as are the origin of appURL and
// every origin in extra. allowLocalhost additionally accepts loopback origins.
// Origins compare case-insensitively on scheme and host.
func NewCheckOrigin(appURL string, extra []string, allowLocalhost bool) func(r *http.Request) bool {
	allowed := make(map[string]struct{}, len(extra)+1)
	for _, raw := range append([]string{appURL}, extra...) {
		if origin := extractOrigin(raw); origin != "" {
			allowed[origin] = struct{}{}
		}
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}

		if _, ok := allowed[extractOrigin(origin)]; ok {
			return true
		}
		if allowLocalhost && isLocalhostOrigin(origin) {
			return true
		}

		slog.WarnContext(r.Context(), "WebSocket origin rejected", "origin", origin, "remote_addr", r.RemoteAddr)
		return false
	}
}

// extractOrigin reduces a URL to its lowercase scheme://host[:port] form.
func extractOrigin(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.ToLower(u.Scheme + "://" + u.Host)
}

func isLocalhostOrigin(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}
