// Package discovery turns a company and role into candidate research URLs
// by expanding query templates against a web search provider.
package discovery

import (
	"context"
	"net/url"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/jobfit-research/internal/config"
)

// Default caps.
const (
	DefaultMaxResults  = 30
	DefaultPerQueryMax = 15
)

// DefaultTemplates are the research queries. {company} and {role} are
// substituted.
var DefaultTemplates = []string{
	"{company} {role} interview experience",
	"{company} {role} interview questions",
	"{company} {role} glassdoor reviews / experience",
	"{company} {role} reddit experience",
	"{company} {role} hiring news posts linkedin",
	"{company} {role} salary",
}

// Discoverer collects distinct URLs across the query templates.
type Discoverer struct {
	searcher    Searcher
	templates   []string
	maxResults  int
	perQueryMax int
	limiter     *rate.Limiter
}

// Option configures a Discoverer.
type Option func(*Discoverer)

// WithTemplates overrides the query templates.
func WithTemplates(t []string) Option {
	return func(d *Discoverer) {
		if len(t) > 0 {
			d.templates = t
		}
	}
}

// WithCaps sets the global and per-query result caps.
func WithCaps(maxResults, perQueryMax int) Option {
	return func(d *Discoverer) {
		if maxResults > 0 {
			d.maxResults = maxResults
		}
		if perQueryMax > 0 {
			d.perQueryMax = perQueryMax
		}
	}
}

// WithRateLimit limits search calls per second. Zero disables the limit.
func WithRateLimit(rps float64) Option {
	return func(d *Discoverer) {
		if rps > 0 {
			d.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		} else {
			d.limiter = nil
		}
	}
}

// New creates a Discoverer.
func New(s Searcher, opts ...Option) *Discoverer {
	d := &Discoverer{
		searcher:    s,
		templates:   DefaultTemplates,
		maxResults:  DefaultMaxResults,
		perQueryMax: DefaultPerQueryMax,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// NewFromConfig creates a Discoverer using the discovery and search settings.
func NewFromConfig(s Searcher, dc config.DiscoveryConfig, sc config.SearchConfig) *Discoverer {
	return New(s, WithCaps(dc.MaxResults, dc.PerQueryMax), WithRateLimit(sc.RatePerSecond))
}

// Queries expands the templates for company and role.
func (d *Discoverer) Queries(company, role string) []string {
	r := strings.NewReplacer("{company}", strings.TrimSpace(company), "{role}", strings.TrimSpace(role))
	out := make([]string, len(d.templates))
	for i, t := range d.templates {
		out[i] = strings.Join(strings.Fields(r.Replace(t)), " ")
	}
	return out
}

// Discover returns distinct URLs in first-seen order, at most maxResults.
// A search failure ends discovery early with whatever was collected; it is
// never returned as an error.
func (d *Discoverer) Discover(ctx context.Context, company, role string) []string {
	log := zap.L().With(zap.String("company", company), zap.String("role", role))

	seen := make(map[string]bool)
	urls := make([]string, 0, d.maxResults)

	for _, q := range d.Queries(company, role) {
		if len(urls) >= d.maxResults {
			break
		}
		if d.limiter != nil {
			if err := d.limiter.Wait(ctx); err != nil {
				log.Warn("discovery: rate limit wait aborted", zap.Error(err))
				break
			}
		}

		results, err := d.searcher.Search(ctx, q, d.perQueryMax)
		if err != nil {
			log.Warn("discovery: search failed, stopping", zap.String("query", q), zap.Error(err))
			break
		}

		added := 0
		for _, r := range results {
			if added >= d.perQueryMax || len(urls) >= d.maxResults {
				break
			}
			link := NormalizeURL(r.URL)
			if link == "" || seen[link] {
				continue
			}
			seen[link] = true
			urls = append(urls, link)
			added++
		}
		log.Debug("discovery: query done", zap.String("query", q), zap.Int("results", len(results)), zap.Int("new", added))
	}

	log.Info("discovery complete", zap.Int("urls", len(urls)))
	return urls
}

// NormalizeURL returns a canonical absolute http(s) URL, or "" when raw is
// not one. The scheme and host are lowercased and the fragment dropped.
func NormalizeURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return ""
	}
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}
