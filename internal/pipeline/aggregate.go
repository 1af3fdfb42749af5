package pipeline

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/jobfit-research/internal/config"
	"github.com/sells-group/jobfit-research/internal/llm"
	"github.com/sells-group/jobfit-research/internal/model"
)

// Aggregator synthesizes document summaries into one report with a single
// model call. Like Summarizer it never fails; the fallback is an empty
// report with its full shape.
type Aggregator struct {
	inv   Invoker
	model string
}

// NewAggregator creates an Aggregator from pipeline settings.
func NewAggregator(inv Invoker, cfg config.PipelineConfig) *Aggregator {
	a := &Aggregator{inv: inv, model: cfg.AggregateModel}
	if a.model == "" {
		a.model = defaultSummaryModel
	}
	return a
}

// Aggregate builds the report for company and role. On success the report's
// sources are the summary URLs followed by any further URLs the model cited.
func (a *Aggregator) Aggregate(ctx context.Context, company, role string, summaries []model.DocSummary) model.AggregatedReport {
	log := zap.L().With(zap.String("company", company), zap.String("role", role))

	usable := make([]summaryForPrompt, 0, len(summaries))
	for _, s := range summaries {
		if s.Error != "" && s.Summary == "" {
			continue
		}
		usable = append(usable, summaryForPrompt{
			Summary:            s.Summary,
			KeyPoints:          s.KeyPoints,
			InterviewQuestions: s.InterviewQuestions,
			SalaryMentions:     s.SalaryMentions,
			Quotes:             s.Quotes,
			Source:             s.Source,
		})
	}
	if len(usable) == 0 {
		log.Info("pipeline: nothing to aggregate")
		return model.EmptyReport()
	}

	payload, err := json.Marshal(aggregatePayload{Company: company, Role: role, DocSummaries: usable})
	if err != nil {
		log.Error("pipeline: marshal aggregate payload", zap.Error(err))
		return model.EmptyReport()
	}

	raw, err := a.inv.Invoke(ctx, a.model, []llm.Message{
		{Role: llm.RoleSystem, Content: aggregateSystemPrompt},
		{Role: llm.RoleUser, Content: string(payload)},
	}, llm.JSON())
	if err != nil {
		log.Warn("pipeline: aggregate failed", zap.Error(err))
		return model.EmptyReport()
	}

	report, ok := llm.DecodeOr(raw, model.EmptyReport())
	if !ok {
		log.Warn("pipeline: aggregate output not json", zap.Int("raw_len", len(raw)))
		return report
	}
	report.Normalize()

	sources := make([]string, 0, len(usable)+len(report.Sources))
	for _, s := range usable {
		sources = append(sources, s.Source)
	}
	report.Sources = mergeSources(sources, report.Sources)
	return report
}

// mergeSources returns the distinct non-empty URLs of a followed by b.
func mergeSources(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, u := range list {
			u = strings.TrimSpace(u)
			if u == "" {
				continue
			}
			if _, ok := seen[u]; ok {
				continue
			}
			seen[u] = struct{}{}
			out = append(out, u)
		}
	}
	return out
}
