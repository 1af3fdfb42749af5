package duckduckgo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/jobfit-research/internal/resilience"
)

const resultsPage = `<html><body>
<div class="result results_links result--ad">
  <a class="result__a" href="https://ads.example.com/buy">Sponsored</a>
</div>
<div class="result results_links">
  <h2 class="result__title">
    <a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fwww.glassdoor.com%2FInterview%2FAcme.htm&amp;rut=abc">Acme Interview Questions | Glassdoor</a>
  </h2>
</div>
<div class="result results_links">
  <a class="result__a" href="https://www.reddit.com/r/cscareerquestions/acme">Acme backend interview - reddit</a>
</div>
<div class="result results_links">
  <a class="result__a" href="javascript:void(0)">Broken</a>
</div>
<div class="result results_links">
  <span>no link</span>
</div>
</body></html>`

func TestSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Acme Backend Engineer salary", r.URL.Query().Get("q"))
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(resultsPage))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL+"/html/"), WithUserAgent("test-agent"))
	results, err := c.Search(context.Background(), "Acme Backend Engineer salary")
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, "https://www.glassdoor.com/Interview/Acme.htm", results[0].URL)
	assert.Equal(t, "Acme Interview Questions | Glassdoor", results[0].Title)
	assert.Equal(t, "https://www.reddit.com/r/cscareerquestions/acme", results[1].URL)
}

func TestSearch_AnomalyPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	_, err := NewClient(WithBaseURL(srv.URL)).Search(context.Background(), "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duckduckgo: status 202")
}

func TestSearch_RateLimitedIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewClient(WithBaseURL(srv.URL)).Search(context.Background(), "q")
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
}

func TestSearch_EmptyPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><div class="no-results">No results.</div></body></html>`))
	}))
	defer srv.Close()

	results, err := NewClient(WithBaseURL(srv.URL)).Search(context.Background(), "q")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestResolveLink(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://example.com/a", "https://example.com/a"},
		{"//duckduckgo.com/l/?uddg=https%3A%2F%2Fexample.com%2Fb", "https://example.com/b"},
		{"https://duckduckgo.com/l/?rut=x", ""},
		{"mailto:hr@example.com", ""},
		{"/relative/path", ""},
		{"://bad", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, resolveLink(tt.in))
		})
	}
}
