package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/jobfit-research/internal/llm"
	"github.com/sells-group/jobfit-research/internal/model"
	"github.com/sells-group/jobfit-research/internal/store"
)

// --- Invoker Mock ---

type mockInvoker struct {
	mock.Mock
}

func (m *mockInvoker) Invoke(ctx context.Context, name string, msgs []llm.Message, _ ...llm.CallOption) (string, error) {
	args := m.Called(ctx, name, msgs)
	return args.String(0), args.Error(1)
}

// summarizeCall matches the messages of a per-document summary call.
func summarizeCall() any {
	return mock.MatchedBy(func(msgs []llm.Message) bool {
		return len(msgs) == 2 && msgs[0].Content == summarizeSystemPrompt
	})
}

// summarizeCallFor matches a summary call for one URL.
func summarizeCallFor(url string) any {
	return mock.MatchedBy(func(msgs []llm.Message) bool {
		return len(msgs) == 2 && msgs[0].Content == summarizeSystemPrompt &&
			strings.Contains(msgs[1].Content, `"url":"`+url+`"`)
	})
}

// aggregateCall matches the messages of the aggregation call.
func aggregateCall() any {
	return mock.MatchedBy(func(msgs []llm.Message) bool {
		return len(msgs) == 2 && msgs[0].Content == aggregateSystemPrompt
	})
}

// --- Stage fakes ---

type fakeDiscoverer struct {
	urls []string
}

func (f *fakeDiscoverer) Discover(context.Context, string, string) []string {
	return f.urls
}

type fakeFetcher struct {
	fn func(urls []string) []model.FetchRecord
}

func (f *fakeFetcher) FetchAll(_ context.Context, urls []string) []model.FetchRecord {
	return f.fn(urls)
}

// okRecords fetches every URL successfully with text derived from the URL.
func okRecords(urls []string) []model.FetchRecord {
	out := make([]model.FetchRecord, len(urls))
	for i, u := range urls {
		out[i] = model.FetchRecord{URL: u, StatusCode: 200, Title: "t", Text: "page text for " + u}
	}
	return out
}

// --- Store wrapper ---

// recordingStore records every update and can fail the transition into
// one stage.
type recordingStore struct {
	store.Store

	mu      sync.Mutex
	updates []model.JobUpdate
	failOn  model.AgentStage
}

func (s *recordingStore) UpdateJob(ctx context.Context, id string, u model.JobUpdate) error {
	s.mu.Lock()
	s.updates = append(s.updates, u)
	s.mu.Unlock()
	if s.failOn != "" && u.AgentStage != nil && *u.AgentStage == s.failOn {
		return errors.New("db unavailable")
	}
	return s.Store.UpdateJob(ctx, id, u)
}

// stages returns the stage transitions written, in order.
func (s *recordingStore) stages() []model.AgentStage {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.AgentStage
	for _, u := range s.updates {
		if u.AgentStage != nil {
			out = append(out, *u.AgentStage)
		}
	}
	return out
}

func (s *recordingStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.updates)
}
