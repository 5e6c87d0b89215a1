package httpserver

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewCheckOrigin(t *testing.T) {
	appURL := "https://monitor.hospital.example/medical/vital-signs"
	stations := []string{"http://enfermeria-uci.hospital.local:8080", " https://display.hospital.example "}

	tests := []struct {
		name           string
		origin         string
		allowLocalhost bool
		want           bool
	}{
		{"empty origin", "", false, true},
		{"app origin", "https://monitor.hospital.example", false, true},
		{"app origin upper case", "https://Monitor.Hospital.Example", false, true},
		{"nursing station", "http://enfermeria-uci.hospital.local:8080", false, true},
		{"nursing station wrong port", "http://enfermeria-uci.hospital.local", false, false},
		{"trimmed extra origin", "https://display.hospital.example", false, true},

		{"different host", "https://evil.com", false, false},
		{"different port", "https://monitor.hospital.example:9090", false, false},
		{"http instead of https", "http://monitor.hospital.example", false, false},
		{"subdomain", "https://sub.monitor.hospital.example", false, false},

		{"localhost dev", "http://localhost:8000", true, true},
		{"127.0.0.1 dev", "http://127.0.0.1:3000", true, true},
		{"ipv6 loopback dev", "http://[::1]:8000", true, true},
		{"localhost prod rejected", "http://localhost:8000", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := NewCheckOrigin(appURL, stations, tt.allowLocalhost)
			r, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, "/ws/vital-signs", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, checker(r))
		})
	}
}

func TestExtractOrigin(t *testing.T) {
	tests := []struct {
		name   string
		rawURL string
		want   string
	}{
		{"full URL with path", "https://example.com/medical/vital-signs", "https://example.com"},
		{"URL with port", "https://example.com:8443/path", "https://example.com:8443"},
		{"mixed case", "HTTPS://Example.COM", "https://example.com"},
		{"empty string", "", ""},
		{"no host", "mailto:nurse@example.com", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractOrigin(tt.rawURL))
		})
	}
}
