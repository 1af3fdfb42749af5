// Package scrape fetches discovered pages and extracts their main text.
package scrape

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/sells-group/jobfit-research/internal/config"
	"github.com/sells-group/jobfit-research/internal/model"
	"github.com/sells-group/jobfit-research/pkg/jina"
)

// Defaults.
const (
	DefaultConcurrency  = 6
	DefaultTimeout      = 15 * time.Second
	DefaultUserAgent    = "Mozilla/5.0 (compatible; JobFitBot/1.0)"
	DefaultMaxBodyBytes = 2 << 20
)

// Fetcher downloads pages under a shared concurrency limit.
type Fetcher struct {
	client      *http.Client
	userAgent   string
	maxBody     int64
	concurrency int
	extractor   Extractor
	reader      jina.Client
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient overrides the HTTP client, including its timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(f *Fetcher) { f.client = hc }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithConcurrency sets the maximum number of in-flight fetches.
func WithConcurrency(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.concurrency = n
		}
	}
}

// WithMaxBodyBytes caps how much of each response body is read.
func WithMaxBodyBytes(n int64) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxBody = n
		}
	}
}

// WithExtractor overrides the content extractor.
func WithExtractor(e Extractor) Option {
	return func(f *Fetcher) { f.extractor = e }
}

// WithReaderFallback retries blocked or rate-limited pages through the Jina
// Reader.
func WithReaderFallback(c jina.Client) Option {
	return func(f *Fetcher) { f.reader = c }
}

// New creates a Fetcher.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		client:      newHTTPClient(DefaultTimeout),
		userAgent:   DefaultUserAgent,
		maxBody:     DefaultMaxBodyBytes,
		concurrency: DefaultConcurrency,
		extractor:   NewHTMLExtractor(),
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// NewFromConfig creates a Fetcher from the fetch settings.
func NewFromConfig(cfg config.FetchConfig, opts ...Option) *Fetcher {
	base := []Option{
		WithConcurrency(cfg.Concurrency),
		WithUserAgent(cfg.UserAgent),
		WithMaxBodyBytes(cfg.MaxBodyBytes),
	}
	if cfg.TimeoutSecs > 0 {
		base = append(base, WithHTTPClient(newHTTPClient(time.Duration(cfg.TimeoutSecs)*time.Second)))
	}
	return New(append(base, opts...)...)
}

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout: 10 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout: 10 * time.Second,
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// Concurrency returns the in-flight fetch limit.
func (f *Fetcher) Concurrency() int { return f.concurrency }

// FetchAll fetches every URL with at most Concurrency() requests in flight.
// It returns exactly one record per URL, in input order.
func (f *Fetcher) FetchAll(ctx context.Context, urls []string) []model.FetchRecord {
	records := make([]model.FetchRecord, len(urls))

	var g errgroup.Group
	g.SetLimit(f.concurrency)
	for i, u := range urls {
		g.Go(func() error {
			records[i] = f.Fetch(ctx, u)
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, r := range records {
		if r.Error != "" {
			failed++
		}
	}
	zap.L().Info("fetch complete", zap.Int("urls", len(urls)), zap.Int("failed", failed))
	return records
}

// Fetch downloads one page. Failures are recorded in the returned record's
// Error; Fetch never panics or returns an error.
func (f *Fetcher) Fetch(ctx context.Context, targetURL string) (rec model.FetchRecord) {
	rec.URL = targetURL
	defer func() {
		if r := recover(); r != nil {
			rec = model.FetchRecord{URL: targetURL, Error: fmt.Sprintf("panic: %v", r)}
		}
	}()

	status, header, body, err := f.get(ctx, targetURL)
	rec.StatusCode = status
	if err != nil {
		rec.Error = err.Error()
		f.logFailure(rec)
		return rec
	}

	block := DetectBlock(status, header, body)
	if status != http.StatusOK {
		reason := fmt.Sprintf("HTTP %d", status)
		if block != BlockNone {
			reason += fmt.Sprintf(" (%s)", block)
		}
		if block != BlockNone || status == http.StatusForbidden {
			return f.fallback(ctx, rec, reason)
		}
		rec.Error = reason
		f.logFailure(rec)
		return rec
	}
	if block != BlockNone {
		return f.fallback(ctx, rec, fmt.Sprintf("blocked (%s)", block))
	}

	if ct := header.Get("Content-Type"); ct != "" && !isTextual(ct) {
		rec.Error = "unsupported content type " + ct
		f.logFailure(rec)
		return rec
	}

	text, title, err := f.extractor.Extract(decodeBody(body, header.Get("Content-Type")))
	if err != nil {
		rec.Error = err.Error()
		f.logFailure(rec)
		return rec
	}
	rec.Title = title
	rec.Text = text
	return rec
}

func (f *Fetcher) get(ctx context.Context, targetURL string) (int, http.Header, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return 0, nil, nil, eris.Wrap(err, "scrape: create request")
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, nil, nil, eris.Wrap(err, "scrape: fetch")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody))
	if err != nil {
		return resp.StatusCode, resp.Header, nil, eris.Wrap(err, "scrape: read body")
	}
	return resp.StatusCode, resp.Header, body, nil
}

// fallback retries through the reader when one is configured, otherwise
// records reason as the error.
func (f *Fetcher) fallback(ctx context.Context, rec model.FetchRecord, reason string) model.FetchRecord {
	if f.reader == nil {
		rec.Error = reason
		f.logFailure(rec)
		return rec
	}

	resp, err := f.reader.Read(ctx, rec.URL)
	if err != nil || resp == nil || strings.TrimSpace(resp.Data.Content) == "" {
		rec.Error = reason
		if err != nil {
			rec.Error += "; reader: " + err.Error()
		}
		f.logFailure(rec)
		return rec
	}

	zap.L().Debug("scrape: fetched via reader fallback", zap.String("url", rec.URL), zap.String("reason", reason))
	rec.Title = resp.Data.Title
	rec.Text = cleanWhitespace(resp.Data.Content)
	return rec
}

func (f *Fetcher) logFailure(rec model.FetchRecord) {
	zap.L().Debug("scrape: fetch failed",
		zap.String("url", rec.URL),
		zap.Int("status", rec.StatusCode),
		zap.String("error", rec.Error),
	)
}

func isTextual(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return true
	}
	return strings.HasPrefix(mt, "text/") || strings.Contains(mt, "html") || strings.Contains(mt, "xml")
}

var metaCharsetRe = regexp.MustCompile(`(?i)<meta[^>]+charset=["']?([a-zA-Z0-9_\-]+)`)

// decodeBody converts body to UTF-8 using the Content-Type charset or a
// <meta charset> declaration. Unknown charsets are passed through.
func decodeBody(body []byte, contentType string) string {
	label := ""
	if _, params, err := mime.ParseMediaType(contentType); err == nil {
		label = params["charset"]
	}
	if label == "" {
		head := body
		if len(head) > 1024 {
			head = head[:1024]
		}
		if m := metaCharsetRe.FindSubmatch(head); m != nil {
			label = string(m[1])
		}
	}
	if label == "" || strings.EqualFold(label, "utf-8") || strings.EqualFold(label, "utf8") {
		return string(body)
	}

	enc, err := htmlindex.Get(label)
	if err != nil {
		return string(body)
	}
	decoded, err := io.ReadAll(enc.NewDecoder().Reader(bytes.NewReader(body)))
	if err != nil {
		return string(body)
	}
	return string(decoded)
}
