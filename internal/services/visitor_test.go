package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsAutomatedVisitor(t *testing.T) {
	cases := []struct {
		name      string
		userAgent string
		referer   string
		want      bool
	}{
		{"mobile safari", humanUA, "", false},
		{"desktop chrome", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 Chrome/126.0 Safari/537.36", "https://example.org/", false},
		{"empty user agent", "", "", true},
		{"short user agent", "Mozilla", "", true},
		{"googlebot", "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)", "", true},
		{"curl", "curl/8.4.0 (x86_64-pc-linux-gnu)", "", true},
		{"uptime probe", "Mozilla/5.0 UptimeRobot/2.0", "", true},
		{"health check referer", humanUA, "https://example.org/healthz", true},
		{"placeholder user agent", "unknown", "", true},
		{"dash user agent", "-", "", true},
		{"bare library name", "  Requests ", "", true},
		{"library with version is not bare", "Python/3.12 aiohttp/3.9.5", "", false},
		{"go client", "Go-http-client/1.1", "", true},
		{"go client with details", "Go-http-client/2.0 (linux)", "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsAutomatedVisitor(tc.userAgent, tc.referer))
		})
	}
}
