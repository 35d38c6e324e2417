package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/codefornorway/civic-scrapers/internal/resilience"
)

// DefaultUserAgent identifies the crawler to site operators.
const DefaultUserAgent = "CivicSupportScrapers/0.1.0 (+hey@codefornorway.org)"

// maxBodyBytes bounds how much of a page is read into memory.
const maxBodyBytes = 10 << 20

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent   string
	Timeout     time.Duration
	MaxAttempts int
	// BaseDelay is multiplied by the attempt number to get the wait
	// between attempts.
	BaseDelay time.Duration
	// RequestsPerSecond caps requests per host. Zero disables the limit.
	RequestsPerSecond float64
	// Client overrides the underlying HTTP client (tests).
	Client *http.Client
}

// HTTPFetcher implements Fetcher using net/http with linear-backoff retries
// and optional per-host rate limiting.
type HTTPFetcher struct {
	client *http.Client
	opts   HTTPOptions

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewHTTPFetcher creates a new HTTPFetcher with the given options.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 25 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = 800 * time.Millisecond
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	return &HTTPFetcher{
		client:   client,
		opts:     opts,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Fetch GETs rawURL, retrying any failure up to MaxAttempts times with a
// wait of BaseDelay × attempt between attempts.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	attempts := 0
	cfg := resilience.LinearRetryConfig(f.opts.MaxAttempts, f.opts.BaseDelay)
	cfg.OnRetry = resilience.RetryLogger("fetcher", rawURL)

	body, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (string, error) {
		attempts++
		return f.fetchOnce(ctx, rawURL)
	})
	if err != nil {
		return "", &FetchError{URL: rawURL, Attempts: attempts, Err: err}
	}
	return body, nil
}

func (f *HTTPFetcher) fetchOnce(ctx context.Context, rawURL string) (string, error) {
	if lim := f.limiterFor(rawURL); lim != nil {
		if err := lim.Wait(ctx); err != nil {
			return "", eris.Wrap(err, "rate limiter wait")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", eris.Wrap(err, "create request")
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	zap.L().Debug("http get", zap.String("url", rawURL))
	resp, err := f.client.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "http get")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", resilience.StatusError(resp.StatusCode, rawURL)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", eris.Wrap(err, "read body")
	}
	if isChallenge(resp, data) {
		return "", resilience.NewTransientError(eris.Errorf("anti-bot challenge from %s", rawURL), resp.StatusCode)
	}
	if !isTextual(resp.Header.Get("Content-Type"), data) {
		return "", eris.Errorf("non-textual body (%s) from %s", resp.Header.Get("Content-Type"), rawURL)
	}
	return string(data), nil
}

func (f *HTTPFetcher) limiterFor(rawURL string) *rate.Limiter {
	if f.opts.RequestsPerSecond <= 0 {
		return nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	lim, ok := f.limiters[u.Host]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(f.opts.RequestsPerSecond), 1)
		f.limiters[u.Host] = lim
	}
	return lim
}

// isTextual reports whether a response body is an HTML or plain text page.
// A missing Content-Type falls back to sniffing the body. JSON documents are
// rejected whatever their declared type.
func isTextual(contentType string, body []byte) bool {
	if isJSONDocument(body) {
		return false
	}
	if contentType == "" {
		if len(body) == 0 {
			return true
		}
		contentType = http.DetectContentType(body)
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return strings.HasPrefix(mt, "text/") || mt == "application/xhtml+xml"
}

func isJSONDocument(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || (trimmed[0] != '{' && trimmed[0] != '[') {
		return false
	}
	return json.Valid(trimmed)
}
