package llm

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) Complete(ctx context.Context, req Request) (*Completion, error) {
	args := m.Called(ctx, req)
	if v := args.Get(0); v != nil {
		return v.(*Completion), args.Error(1)
	}
	return nil, args.Error(1)
}

// modelIs matches a Request for the given concrete model.
func modelIs(model string) any {
	return mock.MatchedBy(func(r Request) bool { return r.Model == model })
}
