// Package pipeline runs the company and role research state machine:
// discover, fetch, dedup, summarize and aggregate, persisting each stage
// transition to the job store before the stage starts.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/jobfit-research/internal/config"
	"github.com/sells-group/jobfit-research/internal/model"
	"github.com/sells-group/jobfit-research/internal/store"
)

// URLDiscoverer finds candidate URLs for a company and role.
// *discovery.Discoverer satisfies it.
type URLDiscoverer interface {
	Discover(ctx context.Context, company, role string) []string
}

// PageFetcher fetches every URL and returns one record per URL in input
// order. *scrape.Fetcher satisfies it.
type PageFetcher interface {
	FetchAll(ctx context.Context, urls []string) []model.FetchRecord
}

// Pipeline orchestrates one research run per job.
type Pipeline struct {
	store       store.Store
	discoverer  URLDiscoverer
	fetcher     PageFetcher
	summarizer  *Summarizer
	aggregator  *Aggregator
	dedupPrefix int
}

// New creates a Pipeline. All collaborators are explicit so runs can be
// driven by fakes.
func New(cfg config.PipelineConfig, st store.Store, d URLDiscoverer, f PageFetcher, inv Invoker) *Pipeline {
	return &Pipeline{
		store:       st,
		discoverer:  d,
		fetcher:     f,
		summarizer:  NewSummarizer(inv, cfg),
		aggregator:  NewAggregator(inv, cfg),
		dedupPrefix: cfg.DedupPrefixChars,
	}
}

// Run executes the research pipeline for jobID and returns the persisted
// report.
//
// A missing job returns an error wrapping store.ErrNotFound and writes
// nothing. A job already in a terminal stage is left untouched and its
// stored report is returned. Any other failure moves the job to the error
// stage with agent_error set, and is returned.
func (p *Pipeline) Run(ctx context.Context, jobID string) (report *model.AggregatedReport, err error) {
	log := zap.L().With(zap.String("job_id", jobID))

	job, err := p.store.FindJob(ctx, jobID)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: find job %s", jobID)
	}
	if job.AgentStage.IsTerminal() {
		log.Info("pipeline: job already finished, skipping", zap.String("stage", string(job.AgentStage)))
		return storedReport(job), nil
	}

	log = log.With(zap.String("company", job.CompanyName), zap.String("role", job.Position))
	log.Info("pipeline: starting research")
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("pipeline: panic: %v", r)
		}
		if err != nil {
			report = nil
			p.fail(ctx, log, jobID, err)
		}
	}()

	run := &run{p: p, log: log, jobID: jobID}
	report, err = run.execute(ctx, job.CompanyName, job.Position)
	if err != nil {
		return nil, err
	}

	log.Info("pipeline: research complete",
		zap.Duration("duration", time.Since(start)),
		zap.Int("sources", len(report.Sources)),
	)
	return report, nil
}

// run holds the state of one in-flight execution.
type run struct {
	p        *Pipeline
	log      *zap.Logger
	jobID    string
	progress model.AgentProgress
}

func (r *run) execute(ctx context.Context, company, role string) (*model.AggregatedReport, error) {
	p := r.p

	if err := r.transition(ctx, model.AgentStageProcessing); err != nil {
		return nil, err
	}
	r.saveProgress(ctx)

	if err := r.transition(ctx, model.AgentStageDiscovering); err != nil {
		return nil, err
	}
	urls := p.discoverer.Discover(ctx, company, role)
	r.progress.URLsDiscovered = len(urls)
	r.log.Info("pipeline: discovery done", zap.Int("urls", len(urls)))
	r.saveProgress(ctx)

	if err := r.transition(ctx, model.AgentStageFetching); err != nil {
		return nil, err
	}
	records := p.fetcher.FetchAll(ctx, urls)
	if len(records) != len(urls) {
		return nil, eris.Errorf("pipeline: fetched %d records for %d urls", len(records), len(urls))
	}
	for _, rec := range records {
		if rec.OK() {
			r.progress.PagesFetched++
		} else {
			r.progress.FetchFailures++
		}
	}
	docs := DedupPrefix(records, p.dedupPrefix)
	r.progress.Documents = len(docs)
	r.log.Info("pipeline: fetch done",
		zap.Int("fetched", r.progress.PagesFetched),
		zap.Int("failed", r.progress.FetchFailures),
		zap.Int("documents", len(docs)),
	)
	r.saveProgress(ctx)

	if err := r.transition(ctx, model.AgentStageSummarizing); err != nil {
		return nil, err
	}
	pw := r.startProgressWriter(ctx)
	summaries := p.summarizer.SummarizeAll(ctx, docs, company, role, pw.report)
	pw.stop()

	if err := r.transition(ctx, model.AgentStageAggregating); err != nil {
		return nil, err
	}
	report := p.aggregator.Aggregate(ctx, company, role, summaries)

	final := report.Update()
	stage := model.StageUpdate(model.AgentStageProcessed)
	final.AgentStage, final.InsightsStatus = stage.AgentStage, stage.InsightsStatus
	progress := r.progress
	final.AgentProgress = &progress
	if err := p.store.UpdateJob(ctx, r.jobID, final); err != nil {
		return nil, eris.Wrap(err, "pipeline: save report")
	}
	return &report, nil
}

// transition persists stage before the stage's work begins. Failure is
// fatal for the run.
func (r *run) transition(ctx context.Context, stage model.AgentStage) error {
	if err := ctx.Err(); err != nil {
		return eris.Wrapf(err, "pipeline: before %s", stage)
	}
	if err := r.p.store.UpdateJob(ctx, r.jobID, model.StageUpdate(stage)); err != nil {
		return eris.Wrapf(err, "pipeline: enter %s", stage)
	}
	r.log.Debug("pipeline: stage", zap.String("stage", string(stage)))
	return nil
}

// saveProgress writes the counters. Progress is advisory, so failures are
// only logged.
func (r *run) saveProgress(ctx context.Context) {
	progress := r.progress
	if err := r.p.store.UpdateJob(ctx, r.jobID, model.JobUpdate{AgentProgress: &progress}); err != nil {
		r.log.Warn("pipeline: failed to save progress", zap.Error(err))
	}
}

// progressWriter saves summarize progress from a single goroutine. Callers
// only record the latest count and never wait on the store; writes that fall
// behind are coalesced into one save of the newest count.
type progressWriter struct {
	r    *run
	kick chan struct{}
	done chan struct{}

	mu     sync.Mutex
	latest int
}

func (r *run) startProgressWriter(ctx context.Context) *progressWriter {
	w := &progressWriter{
		r:    r,
		kick: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go w.loop(ctx)
	return w
}

// report records n finished summaries. Safe for concurrent use.
func (w *progressWriter) report(n int) {
	w.mu.Lock()
	if n > w.latest {
		w.latest = n
	}
	w.mu.Unlock()
	select {
	case w.kick <- struct{}{}:
	default:
	}
}

// loop owns r.progress until stop returns.
func (w *progressWriter) loop(ctx context.Context) {
	defer close(w.done)
	for range w.kick {
		w.mu.Lock()
		n := w.latest
		w.mu.Unlock()
		if n == w.r.progress.Summarized {
			continue
		}
		w.r.progress.Summarized = n
		w.r.saveProgress(ctx)
	}
}

// stop waits for pending writes. report must not be called afterwards.
func (w *progressWriter) stop() {
	close(w.kick)
	<-w.done
}

// fail moves the job to the error stage. It uses a context detached from
// cancellation so a cancelled run still records why it stopped.
func (p *Pipeline) fail(ctx context.Context, log *zap.Logger, jobID string, cause error) {
	log.Error("pipeline: research failed", zap.Error(cause))

	msg := cause.Error()
	u := model.StageUpdate(model.AgentStageError)
	u.AgentError = &msg
	if err := p.store.UpdateJob(context.WithoutCancel(ctx), jobID, u); err != nil {
		log.Error("pipeline: failed to record error stage", zap.Error(err))
	}
}

// storedReport rebuilds the report persisted on a finished job.
func storedReport(job *model.Job) *model.AggregatedReport {
	r := model.AggregatedReport{Sources: job.Sources}
	if job.CompanyInsights != nil {
		r.CompanyInsights = *job.CompanyInsights
	}
	if job.InterviewPrep != nil {
		r.InterviewPrep = *job.InterviewPrep
	}
	if job.WebResearch != nil {
		r.WebResearch = *job.WebResearch
	}
	r.Normalize()
	return &r
}
