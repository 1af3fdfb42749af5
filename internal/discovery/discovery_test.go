package discovery

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/jobfit-research/internal/config"
)

func TestQueries(t *testing.T) {
	d := New(&mockSearcher{})
	q := d.Queries(" Acme ", "Backend Engineer")

	require.Len(t, q, 6)
	assert.Equal(t, "Acme Backend Engineer interview experience", q[0])
	assert.Equal(t, "Acme Backend Engineer glassdoor reviews / experience", q[2])
	assert.Equal(t, "Acme Backend Engineer salary", q[5])
}

func TestDiscover_DedupsAcrossQueries(t *testing.T) {
	s := &mockSearcher{}
	d := New(s)
	queries := d.Queries("Acme", "Backend Engineer")

	// Six queries, two URLs each, three of them repeats of earlier results.
	s.On("Search", mock.Anything, queries[0], 15).Return(results("https://a.com/1", "https://a.com/2"), nil)
	s.On("Search", mock.Anything, queries[1], 15).Return(results("https://a.com/1", "https://b.com/1"), nil)
	s.On("Search", mock.Anything, queries[2], 15).Return(results("https://c.com/1", "https://a.com/2"), nil)
	s.On("Search", mock.Anything, queries[3], 15).Return(results("https://d.com/1", "https://e.com/1"), nil)
	s.On("Search", mock.Anything, queries[4], 15).Return(results("https://f.com/1", "https://b.com/1"), nil)
	s.On("Search", mock.Anything, queries[5], 15).Return(results("https://g.com/1", "https://h.com/1"), nil)

	urls := d.Discover(context.Background(), "Acme", "Backend Engineer")

	assert.Equal(t, []string{
		"https://a.com/1", "https://a.com/2", "https://b.com/1", "https://c.com/1",
		"https://d.com/1", "https://e.com/1", "https://f.com/1", "https://g.com/1", "https://h.com/1",
	}, urls)
	assert.LessOrEqual(t, len(urls), 12)
	s.AssertNumberOfCalls(t, "Search", 6)
}

func TestDiscover_GlobalCapShortCircuits(t *testing.T) {
	s := &mockSearcher{}
	call := 0
	s.On("Search", mock.Anything, mock.Anything, 15).Return(func(context.Context, string, int) []Result {
		call++
		var out []Result
		for i := range 15 {
			out = append(out, Result{URL: fmt.Sprintf("https://site%d.com/%d", call, i)})
		}
		return out
	}, nil)

	urls := New(s).Discover(context.Background(), "Acme", "SRE")

	assert.Len(t, urls, 30)
	s.AssertNumberOfCalls(t, "Search", 2)
}

func TestDiscover_PerQueryCap(t *testing.T) {
	s := &mockSearcher{}
	var many []Result
	for i := range 10 {
		many = append(many, Result{URL: fmt.Sprintf("https://x.com/%d", i)})
	}
	s.On("Search", mock.Anything, mock.Anything, 3).Return(many, nil).Once()
	s.On("Search", mock.Anything, mock.Anything, 3).Return(nil, nil)

	urls := New(s, WithCaps(30, 3)).Discover(context.Background(), "Acme", "SRE")
	assert.Len(t, urls, 3)
}

func TestDiscover_ProviderFailureReturnsCollected(t *testing.T) {
	s := &mockSearcher{}
	s.On("Search", mock.Anything, mock.Anything, 15).Return(results("https://a.com/1"), nil).Once()
	s.On("Search", mock.Anything, mock.Anything, 15).Return(nil, errors.New("quota exceeded")).Once()

	urls := New(s).Discover(context.Background(), "Acme", "SRE")

	assert.Equal(t, []string{"https://a.com/1"}, urls)
	s.AssertNumberOfCalls(t, "Search", 2)
}

func TestDiscover_ProviderUnavailable(t *testing.T) {
	s := &mockSearcher{}
	s.On("Search", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("dial tcp: refused"))

	urls := New(s).Discover(context.Background(), "Acme", "SRE")
	assert.NotNil(t, urls)
	assert.Empty(t, urls)
}

func TestDiscover_SkipsInvalidLinks(t *testing.T) {
	s := &mockSearcher{}
	s.On("Search", mock.Anything, mock.Anything, mock.Anything).
		Return(results("", "mailto:x@y.com", "/relative", "HTTPS://A.com/x#frag", "https://a.com/x"), nil).Once()
	s.On("Search", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)

	urls := New(s).Discover(context.Background(), "Acme", "SRE")
	assert.Equal(t, []string{"https://a.com/x"}, urls)
}

func TestDiscover_CancelledContextWithLimiter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := &mockSearcher{}
	urls := New(s, WithRateLimit(1)).Discover(ctx, "Acme", "SRE")
	assert.Empty(t, urls)
	s.AssertNotCalled(t, "Search", mock.Anything, mock.Anything, mock.Anything)
}

func TestNewFromConfig(t *testing.T) {
	d := NewFromConfig(&mockSearcher{},
		config.DiscoveryConfig{MaxResults: 10, PerQueryMax: 4},
		config.SearchConfig{RatePerSecond: 0},
	)
	assert.Equal(t, 10, d.maxResults)
	assert.Equal(t, 4, d.perQueryMax)
	assert.Nil(t, d.limiter)
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"https://Example.COM/Path?q=1#top", "https://example.com/Path?q=1"},
		{"  http://a.com  ", "http://a.com"},
		{"ftp://a.com/file", ""},
		{"https:///nohost", ""},
		{"not a url", ""},
		{"%zz", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeURL(tt.in), tt.in)
	}
}
