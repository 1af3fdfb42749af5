package pipeline

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/jobfit-research/internal/config"
	"github.com/sells-group/jobfit-research/internal/llm"
	"github.com/sells-group/jobfit-research/internal/model"
)

const (
	defaultSummaryModel = "gemini-2.5-flash"
	defaultMaxDocChars  = 30000
	defaultExcerptChars = 280
)

// Invoker sends messages to a logical model name. *llm.Invoker satisfies it.
type Invoker interface {
	Invoke(ctx context.Context, name string, msgs []llm.Message, opts ...llm.CallOption) (string, error)
}

// Summarizer turns one document into a DocSummary with a single model call.
// It never fails: invocation errors and unparsable output degrade to a
// fallback summary.
type Summarizer struct {
	inv          Invoker
	model        string
	maxDocChars  int
	excerptChars int
	concurrency  int
}

// NewSummarizer creates a Summarizer from pipeline settings.
func NewSummarizer(inv Invoker, cfg config.PipelineConfig) *Summarizer {
	s := &Summarizer{
		inv:          inv,
		model:        cfg.SummaryModel,
		maxDocChars:  cfg.MaxDocChars,
		excerptChars: cfg.ExcerptChars,
		concurrency:  cfg.SummarizeConcurrency,
	}
	if s.model == "" {
		s.model = defaultSummaryModel
	}
	if s.maxDocChars <= 0 {
		s.maxDocChars = defaultMaxDocChars
	}
	if s.excerptChars <= 0 {
		s.excerptChars = defaultExcerptChars
	}
	if s.concurrency <= 0 {
		s.concurrency = 1
	}
	return s
}

// Summarize summarizes doc. Source is always doc.URL.
func (s *Summarizer) Summarize(ctx context.Context, doc model.Document, company, role string) model.DocSummary {
	log := zap.L().With(zap.String("url", doc.URL))

	payload, err := json.Marshal(summarizePayload{
		Company: company,
		Role:    role,
		URL:     doc.URL,
		Title:   doc.Title,
		Text:    truncateRunes(doc.Text, s.maxDocChars),
	})
	if err != nil {
		return errorSummary(doc.URL, err)
	}

	raw, err := s.inv.Invoke(ctx, s.model, []llm.Message{
		{Role: llm.RoleSystem, Content: summarizeSystemPrompt},
		{Role: llm.RoleUser, Content: string(payload)},
	}, llm.JSON())
	if err != nil {
		log.Warn("pipeline: summarize failed", zap.Error(err))
		return errorSummary(doc.URL, err)
	}

	summary, ok := llm.DecodeOr(raw, s.excerptSummary(doc))
	if !ok {
		log.Warn("pipeline: summary output not json, using excerpt", zap.Int("raw_len", len(raw)))
	}
	summary.Source = doc.URL
	summary.Error = ""
	return normalizeSummary(summary)
}

// SummarizeAll summarizes docs, preserving their order in the result. With
// concurrency above one, up to that many model calls run at once. onDone,
// if set, is called with the running count of finished summaries; in the
// concurrent case it may be called from several goroutines and out of order.
func (s *Summarizer) SummarizeAll(ctx context.Context, docs []model.Document, company, role string, onDone func(done int)) []model.DocSummary {
	out := make([]model.DocSummary, len(docs))
	if len(docs) == 0 {
		return out
	}

	var (
		mu   sync.Mutex
		done int
	)
	finish := func() {
		if onDone == nil {
			return
		}
		mu.Lock()
		done++
		n := done
		mu.Unlock()
		onDone(n)
	}

	if s.concurrency == 1 {
		for i, doc := range docs {
			out[i] = s.Summarize(ctx, doc, company, role)
			finish()
		}
		return out
	}

	g := new(errgroup.Group)
	g.SetLimit(s.concurrency)
	for i, doc := range docs {
		g.Go(func() error {
			out[i] = s.Summarize(ctx, doc, company, role)
			finish()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// excerptSummary is the fallback when the model answered with something
// that is not JSON.
func (s *Summarizer) excerptSummary(doc model.Document) model.DocSummary {
	return normalizeSummary(model.DocSummary{
		Summary: excerpt(doc.Text, s.excerptChars),
		Source:  doc.URL,
	})
}

func errorSummary(url string, err error) model.DocSummary {
	return normalizeSummary(model.DocSummary{Source: url, Error: err.Error()})
}

func normalizeSummary(s model.DocSummary) model.DocSummary {
	for _, l := range []*model.StringList{&s.KeyPoints, &s.InterviewQuestions, &s.SalaryMentions, &s.Quotes} {
		if *l == nil {
			*l = model.StringList{}
		}
	}
	s.Summary = strings.TrimSpace(s.Summary)
	return s
}

// excerpt flattens whitespace and cuts text to n characters, marking the
// cut with an ellipsis.
func excerpt(text string, n int) string {
	flat := strings.Join(strings.Fields(text), " ")
	cut := truncateRunes(flat, n)
	if len(cut) < len(flat) {
		return cut + "..."
	}
	return cut
}
