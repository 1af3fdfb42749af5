package discovery

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/jobfit-research/pkg/duckduckgo"
	"github.com/sells-group/jobfit-research/pkg/jina"
)

// Result is one search hit.
type Result struct {
	URL   string
	Title string
}

// Searcher runs a web search. Implementations may return more than
// maxResults; callers enforce their own caps.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]Result, error)
}

// JinaSearcher searches through Jina AI Search.
type JinaSearcher struct {
	client jina.Client
}

// NewJinaSearcher wraps a Jina client.
func NewJinaSearcher(c jina.Client) *JinaSearcher {
	return &JinaSearcher{client: c}
}

// Search implements Searcher.
func (s *JinaSearcher) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	resp, err := s.client.Search(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "discovery: jina search")
	}
	out := make([]Result, 0, len(resp.Data))
	for _, r := range resp.Data {
		out = append(out, Result{URL: r.URL, Title: r.Title})
		if maxResults > 0 && len(out) >= maxResults {
			break
		}
	}
	return out, nil
}

// DuckDuckGoSearcher searches the DuckDuckGo HTML endpoint.
type DuckDuckGoSearcher struct {
	client duckduckgo.Client
}

// NewDuckDuckGoSearcher wraps a DuckDuckGo client.
func NewDuckDuckGoSearcher(c duckduckgo.Client) *DuckDuckGoSearcher {
	return &DuckDuckGoSearcher{client: c}
}

// Search implements Searcher.
func (s *DuckDuckGoSearcher) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	results, err := s.client.Search(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "discovery: duckduckgo search")
	}
	out := make([]Result, 0, len(results))
	for _, r := range results {
		out = append(out, Result{URL: r.URL, Title: r.Title})
		if maxResults > 0 && len(out) >= maxResults {
			break
		}
	}
	return out, nil
}

// NamedSearcher pairs a Searcher with a name for logging.
type NamedSearcher struct {
	Name     string
	Searcher Searcher
}

// ChainSearcher tries each searcher in order and returns the first
// non-empty result set. Errors fall through to the next searcher. If no
// searcher succeeds the last error is returned.
type ChainSearcher struct {
	searchers []NamedSearcher
}

// NewChainSearcher creates a ChainSearcher.
func NewChainSearcher(searchers ...NamedSearcher) *ChainSearcher {
	return &ChainSearcher{searchers: searchers}
}

// Search implements Searcher.
func (c *ChainSearcher) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	var lastErr error
	succeeded := false
	for _, s := range c.searchers {
		results, err := s.Searcher.Search(ctx, query, maxResults)
		if err != nil {
			zap.L().Debug("discovery: searcher failed, trying next",
				zap.String("searcher", s.Name),
				zap.String("query", query),
				zap.Error(err),
			)
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}
		succeeded = true
		if len(results) > 0 {
			return results, nil
		}
	}
	if succeeded {
		return nil, nil
	}
	if lastErr == nil {
		lastErr = eris.New("discovery: no search providers configured")
	}
	return nil, lastErr
}

// Names lists the chained searchers.
func (c *ChainSearcher) Names() []string {
	names := make([]string, len(c.searchers))
	for i, s := range c.searchers {
		names[i] = s.Name
	}
	return names
}

// NewSearcherChain builds a chain from provider names. Unknown names are
// rejected. "jina" is skipped when jc is nil.
func NewSearcherChain(providers []string, jc jina.Client, dc duckduckgo.Client) (*ChainSearcher, error) {
	var chain []NamedSearcher
	for _, p := range providers {
		switch strings.ToLower(strings.TrimSpace(p)) {
		case "jina":
			if jc == nil {
				zap.L().Warn("discovery: skipping jina search, no api key")
				continue
			}
			chain = append(chain, NamedSearcher{Name: "jina", Searcher: NewJinaSearcher(jc)})
		case "duckduckgo", "ddg":
			if dc == nil {
				dc = duckduckgo.NewClient()
			}
			chain = append(chain, NamedSearcher{Name: "duckduckgo", Searcher: NewDuckDuckGoSearcher(dc)})
		default:
			return nil, eris.Errorf("discovery: unknown search provider %q", p)
		}
	}
	if len(chain) == 0 {
		return nil, eris.New("discovery: no search providers configured")
	}
	return NewChainSearcher(chain...), nil
}
