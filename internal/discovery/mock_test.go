package discovery

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type mockSearcher struct {
	mock.Mock
}

func (m *mockSearcher) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	args := m.Called(ctx, query, maxResults)
	if fn, ok := args.Get(0).(func(context.Context, string, int) []Result); ok {
		return fn(ctx, query, maxResults), args.Error(1)
	}
	if v := args.Get(0); v != nil {
		return v.([]Result), args.Error(1)
	}
	return nil, args.Error(1)
}

func results(urls ...string) []Result {
	out := make([]Result, len(urls))
	for i, u := range urls {
		out[i] = Result{URL: u}
	}
	return out
}
