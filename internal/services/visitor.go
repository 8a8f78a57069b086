package services

import "strings"

var botPatterns = []string{
	"bot", "crawler", "spider", "scraper",
	"health", "check", "monitor", "ping",
	"uptime", "status", "test", "probe",
	"python-requests", "curl", "wget",
	"axios", "fetch", "httpx",
}

var healthCheckReferers = []string{
	"healthz", "health-check", "ping", "status",
}

// placeholderAgents are the values proxies and fallbacks put in place of a real user agent.
var placeholderAgents = []string{"", "unknown", "none", "-"}

// bareClients match only when the user agent is exactly the library name.
var bareClients = []string{"python", "requests", "urllib"}

// Go's default client identifies itself as "Go-http-client/<version>".
const goHTTPClientPrefix = "go-http-client/"

// IsAutomatedVisitor reports whether a request looks like a crawler, uptime probe or
// scripted client rather than a person who scanned the code.
func IsAutomatedVisitor(userAgent, referer string) bool {
	ua := strings.ToLower(strings.TrimSpace(userAgent))
	ref := strings.ToLower(referer)

	for _, p := range botPatterns {
		if strings.Contains(ua, p) {
			return true
		}
	}
	for _, p := range healthCheckReferers {
		if strings.Contains(ref, p) {
			return true
		}
	}
	if len(ua) < 10 {
		return true
	}
	for _, p := range placeholderAgents {
		if ua == p {
			return true
		}
	}
	for _, p := range bareClients {
		if ua == p {
			return true
		}
	}
	return strings.HasPrefix(ua, goHTTPClientPrefix)
}
