package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsChallenge(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		resp *http.Response
		body string
		want bool
	}{
		{"nil response", nil, "", false},
		{"cloudflare 403", &http.Response{StatusCode: 403, Header: http.Header{"Server": {"cloudflare"}}}, "", true},
		{"mitigated 503", &http.Response{StatusCode: 503, Header: http.Header{"Cf-Mitigated": {"challenge"}}}, "", true},
		{"interstitial body", &http.Response{StatusCode: 200, Header: http.Header{}}, "<title>Just a moment...</title>", true},
		{"normal page", &http.Response{StatusCode: 200, Header: http.Header{}}, "<h1>Kristiansand Røde Kors</h1>", false},
		{"page with recaptcha form", &http.Response{StatusCode: 200, Header: http.Header{}}, `<script src="recaptcha/api.js"></script>`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, isChallenge(tt.resp, []byte(tt.body)))
		})
	}
}

func TestFetch_ChallengeIsRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if calls.Add(1) == 1 {
			_, _ = w.Write([]byte("<html>Checking your browser before accessing</html>"))
			return
		}
		_, _ = w.Write([]byte("<html><h1>ok</h1></html>"))
	}))
	defer srv.Close()

	body, err := newTestFetcher(time.Millisecond).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Contains(t, body, "<h1>ok</h1>")
	assert.Equal(t, int32(2), calls.Load())
}
