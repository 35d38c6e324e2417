package fetcher

import (
	"net/http"
	"strings"
)

// challengeMarkers appear in anti-bot interstitials served in place of the
// requested page.
var challengeMarkers = []string{
	"checking your browser",
	"cf-browser-verification",
	"cf-challenge",
	"just a moment...",
}

// isChallenge reports whether a response is an anti-bot challenge rather
// than page content. Challenges are retried like server errors.
func isChallenge(resp *http.Response, body []byte) bool {
	if resp == nil {
		return false
	}
	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusServiceUnavailable {
		if resp.Header.Get("cf-mitigated") != "" || strings.EqualFold(resp.Header.Get("server"), "cloudflare") {
			return true
		}
	}
	if len(body) > 64<<10 {
		body = body[:64<<10]
	}
	lower := strings.ToLower(string(body))
	for _, m := range challengeMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}
