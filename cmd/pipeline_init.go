package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/jobfit-research/internal/discovery"
	"github.com/sells-group/jobfit-research/internal/llm"
	"github.com/sells-group/jobfit-research/internal/pipeline"
	"github.com/sells-group/jobfit-research/internal/scrape"
	"github.com/sells-group/jobfit-research/internal/store"
	"github.com/sells-group/jobfit-research/pkg/duckduckgo"
	"github.com/sells-group/jobfit-research/pkg/jina"
)

// researchEnv holds everything the run and serve commands share.
type researchEnv struct {
	Store    store.Store
	Invoker  *llm.Invoker
	Pipeline *pipeline.Pipeline
}

// Close releases resources held by the environment.
func (e *researchEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initResearch validates config for mode, opens and migrates the store,
// builds the model clients and wires the pipeline. Callers should defer
// env.Close().
func initResearch(ctx context.Context, mode string) (*researchEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	reg, err := loadRegistry()
	if err != nil {
		return nil, err
	}

	clients, err := llm.NewClientSet(ctx, cfg.LLM)
	if err != nil {
		return nil, eris.Wrap(err, "init model clients")
	}
	zap.L().Info("model providers configured", zap.Strings("providers", clients.Providers()))
	inv := llm.NewInvokerFromConfig(reg, clients, cfg.LLM)

	jinaClient := newJinaClient()
	searcher, err := discovery.NewSearcherChain(cfg.Search.Providers, jinaClient, newDuckDuckGoClient())
	if err != nil {
		return nil, eris.Wrap(err, "init search")
	}
	zap.L().Info("search providers configured", zap.Strings("providers", searcher.Names()))

	var fetchOpts []scrape.Option
	if jinaClient != nil {
		fetchOpts = append(fetchOpts, scrape.WithReaderFallback(jinaClient))
	}
	fetcher := scrape.NewFromConfig(cfg.Fetch, fetchOpts...)

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	pcfg := cfg.Pipeline
	if pcfg.SummaryModel == "" {
		pcfg.SummaryModel = cfg.LLM.DefaultModel
	}
	if pcfg.AggregateModel == "" {
		pcfg.AggregateModel = cfg.LLM.DefaultModel
	}

	p := pipeline.New(pcfg, st,
		discovery.NewFromConfig(searcher, cfg.Discovery, cfg.Search),
		fetcher,
		inv,
	)

	return &researchEnv{Store: st, Invoker: inv, Pipeline: p}, nil
}

// initStore opens the configured job store.
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	return st, nil
}

// loadRegistry returns the registry file's models, or the built-in set.
func loadRegistry() (*llm.Registry, error) {
	if cfg.LLM.RegistryFile == "" {
		return llm.DefaultRegistry(), nil
	}
	reg, err := llm.LoadRegistry(cfg.LLM.RegistryFile)
	if err != nil {
		return nil, eris.Wrap(err, "load model registry")
	}
	return reg, nil
}

func searchHTTPClient() *http.Client {
	timeout := time.Duration(cfg.Search.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// newJinaClient returns nil when no Jina key is set.
func newJinaClient() jina.Client {
	if cfg.Search.JinaKey == "" {
		return nil
	}
	opts := []jina.Option{jina.WithHTTPClient(searchHTTPClient())}
	if cfg.Search.JinaBaseURL != "" {
		opts = append(opts, jina.WithSearchBaseURL(cfg.Search.JinaBaseURL))
	}
	return jina.NewClient(cfg.Search.JinaKey, opts...)
}

func newDuckDuckGoClient() duckduckgo.Client {
	opts := []duckduckgo.Option{duckduckgo.WithHTTPClient(searchHTTPClient())}
	if cfg.Search.DDGBaseURL != "" {
		opts = append(opts, duckduckgo.WithBaseURL(cfg.Search.DDGBaseURL))
	}
	if cfg.Fetch.UserAgent != "" {
		opts = append(opts, duckduckgo.WithUserAgent(cfg.Fetch.UserAgent))
	}
	return duckduckgo.NewClient(opts...)
}
