package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/jobfit-research/internal/config"
	"github.com/sells-group/jobfit-research/internal/cost"
	"github.com/sells-group/jobfit-research/internal/resilience"
)

var (
	// ErrUnknownModel is returned for a logical name missing from the registry.
	ErrUnknownModel = eris.New("llm: unknown model")

	// ErrNoClient marks a chain member whose provider has no credential.
	ErrNoClient = eris.New("llm: no client for provider")
)

// ExhaustedError is returned when every model in a fallback chain was
// skipped or failed.
type ExhaustedError struct {
	// Requested is the logical name Invoke was called with.
	Requested string
	// Chain is the full resolved fallback chain.
	Chain []string
	// Attempted lists the chain members that were actually called.
	Attempted []string
	// Last is the final underlying error.
	Last error
}

func (e *ExhaustedError) Error() string {
	msg := fmt.Sprintf("llm: all providers exhausted for %s (chain %s, attempted %s)",
		e.Requested, strings.Join(e.Chain, " -> "), strings.Join(e.Attempted, ", "))
	if e.Last != nil {
		msg += ": " + e.Last.Error()
	}
	return msg
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

// Invoker calls a logical model and falls back along its chain.
type Invoker struct {
	registry  *Registry
	clients   *ClientSet
	breakers  *resilience.Breakers
	retry     resilience.RetryConfig
	maxTokens int64
	timeout   time.Duration
	costs     *cost.Calculator
}

// InvokerOption configures an Invoker.
type InvokerOption func(*Invoker)

// WithRetry sets the in-model retry policy for transient failures.
func WithRetry(cfg resilience.RetryConfig) InvokerOption {
	return func(i *Invoker) { i.retry = cfg }
}

// WithBreakers sets the per-model circuit breakers.
func WithBreakers(b *resilience.Breakers) InvokerOption {
	return func(i *Invoker) { i.breakers = b }
}

// WithMaxTokens caps completion length on providers that require it.
func WithMaxTokens(n int64) InvokerOption {
	return func(i *Invoker) { i.maxTokens = n }
}

// WithTimeout bounds each model attempt, retries included.
func WithTimeout(d time.Duration) InvokerOption {
	return func(i *Invoker) { i.timeout = d }
}

// WithCosts sets the calculator used to log per-call spend.
func WithCosts(c *cost.Calculator) InvokerOption {
	return func(i *Invoker) {
		if c != nil {
			i.costs = c
		}
	}
}

// NewInvoker creates an Invoker. Without options it makes a single attempt
// per model and uses default breakers.
func NewInvoker(reg *Registry, clients *ClientSet, opts ...InvokerOption) *Invoker {
	i := &Invoker{
		registry: reg,
		clients:  clients,
		breakers: resilience.NewBreakers(resilience.BreakerConfig{}),
		retry:    resilience.RetryConfig{MaxAttempts: 1},
		costs:    cost.NewCalculator(cost.DefaultRates()),
	}
	for _, o := range opts {
		o(i)
	}
	return i
}

// NewInvokerFromConfig wires retry, breaker and token settings from cfg.
func NewInvokerFromConfig(reg *Registry, clients *ClientSet, cfg config.LLMConfig) *Invoker {
	return NewInvoker(reg, clients,
		WithRetry(resilience.NewRetryConfig(cfg.Retry)),
		WithBreakers(resilience.NewBreakers(resilience.NewBreakerConfig(cfg.Circuit))),
		WithMaxTokens(cfg.MaxTokens),
		WithTimeout(time.Duration(cfg.TimeoutSecs)*time.Second),
	)
}

// Registry returns the invoker's registry.
func (i *Invoker) Registry() *Registry { return i.registry }

// Breakers returns the per-model circuit breakers.
func (i *Invoker) Breakers() *resilience.Breakers { return i.breakers }

// CallOption tunes a single Invoke call.
type CallOption func(*Request)

// JSON asks providers that support it for a JSON object response.
func JSON() CallOption {
	return func(r *Request) { r.JSON = true }
}

// Invoke sends msgs to the logical model name and returns the first
// successful completion along its fallback chain. Members whose provider
// is absent are skipped. If nothing succeeds the error is an
// *ExhaustedError.
func (i *Invoker) Invoke(ctx context.Context, name string, msgs []Message, opts ...CallOption) (string, error) {
	chain := i.registry.Chain(name)
	if len(chain) == 0 {
		zap.L().Warn("llm: unknown model", zap.String("model", name))
		return "", &ExhaustedError{
			Requested: name,
			Last:      eris.Wrapf(ErrUnknownModel, "llm: %s", name),
		}
	}

	exhausted := &ExhaustedError{Requested: name, Chain: make([]string, len(chain))}
	for n, spec := range chain {
		exhausted.Chain[n] = spec.Name
	}

	for _, spec := range chain {
		log := zap.L().With(
			zap.String("requested", name),
			zap.String("model", spec.Name),
			zap.String("provider", spec.Provider),
		)

		provider, ok := i.clients.Get(spec.Provider)
		if !ok {
			log.Info("llm: skipping model, provider not configured")
			exhausted.Last = eris.Wrapf(ErrNoClient, "llm: %s", spec.Provider)
			continue
		}

		exhausted.Attempted = append(exhausted.Attempted, spec.Name)
		req := Request{Model: spec.Model, Messages: msgs, MaxTokens: i.maxTokens}
		for _, o := range opts {
			o(&req)
		}

		start := time.Now()
		comp, err := i.attempt(ctx, spec, provider, req)
		if err == nil {
			log.Info("llm: model call succeeded",
				zap.Duration("duration", time.Since(start)),
				zap.Int64("input_tokens", comp.InputTokens),
				zap.Int64("output_tokens", comp.OutputTokens),
				zap.Float64("cost_usd", i.costs.Tokens(spec.Model, comp.InputTokens, comp.OutputTokens)),
			)
			return comp.Text, nil
		}

		log.Warn("llm: model call failed", zap.Duration("duration", time.Since(start)), zap.Error(err))
		exhausted.Last = err
		if ctx.Err() != nil {
			break
		}
	}

	return "", exhausted
}

func (i *Invoker) attempt(ctx context.Context, spec ModelSpec, provider Provider, req Request) (*Completion, error) {
	retry := i.retry
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger(spec.Provider, spec.Name)
	}

	// The timeout is applied inside the breaker so that a slow model counts
	// as a failure while caller cancellation does not.
	return resilience.ExecuteVal(ctx, i.breakers.Get(spec.Name), func(ctx context.Context) (*Completion, error) {
		if i.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, i.timeout)
			defer cancel()
		}
		return resilience.DoVal(ctx, retry, func(ctx context.Context) (*Completion, error) {
			comp, err := provider.Complete(ctx, req)
			if err != nil {
				return nil, err
			}
			if comp == nil || strings.TrimSpace(comp.Text) == "" {
				return nil, eris.Errorf("llm: empty completion from %s", spec.Name)
			}
			return comp, nil
		})
	})
}
