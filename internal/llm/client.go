package llm

import (
	"context"
	"sort"
	"strings"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"

	"github.com/sells-group/jobfit-research/internal/config"
	"github.com/sells-group/jobfit-research/pkg/anthropic"
	"github.com/sells-group/jobfit-research/pkg/gemini"
	"github.com/sells-group/jobfit-research/pkg/openai"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a model conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a single completion call against a concrete model.
type Request struct {
	Model     string
	Messages  []Message
	JSON      bool
	MaxTokens int64
}

// Completion is a provider's answer.
type Completion struct {
	Text         string
	InputTokens  int64
	OutputTokens int64
}

// Provider completes requests against one model provider.
type Provider interface {
	Complete(ctx context.Context, req Request) (*Completion, error)
}

// ClientSet holds one Provider per configured provider id. A provider
// without a credential is absent.
type ClientSet struct {
	providers map[string]Provider
}

// NewClientSetFrom builds a set from ready-made providers.
func NewClientSetFrom(providers map[string]Provider) *ClientSet {
	cs := &ClientSet{providers: make(map[string]Provider, len(providers))}
	for id, p := range providers {
		if p != nil {
			cs.providers[id] = p
		}
	}
	return cs
}

// NewClientSet builds a client for every provider that has a key.
func NewClientSet(ctx context.Context, cfg config.LLMConfig) (*ClientSet, error) {
	providers := make(map[string]Provider)

	if key := strings.TrimSpace(cfg.Google.Key); key != "" {
		c, err := gemini.NewClient(ctx, gemini.Config{APIKey: key, BaseURL: cfg.Google.BaseURL})
		if err != nil {
			return nil, eris.Wrap(err, "llm: google client")
		}
		providers[ProviderGoogle] = &geminiProvider{client: c}
	}
	if key := strings.TrimSpace(cfg.Anthropic.Key); key != "" {
		var opts []option.RequestOption
		if cfg.Anthropic.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(cfg.Anthropic.BaseURL))
		}
		providers[ProviderAnthropic] = &anthropicProvider{client: anthropic.NewClient(key, opts...)}
	}
	for id, pc := range map[string]config.ProviderConfig{
		ProviderOpenAI:     cfg.OpenAI,
		ProviderMistral:    cfg.Mistral,
		ProviderPerplexity: cfg.Perplexity,
	} {
		key := strings.TrimSpace(pc.Key)
		if key == "" {
			continue
		}
		providers[id] = &chatProvider{
			client:   openai.NewClient(key, openai.WithName(id), openai.WithBaseURL(pc.BaseURL)),
			jsonMode: id != ProviderPerplexity,
		}
	}

	return NewClientSetFrom(providers), nil
}

// Get returns the provider for id.
func (cs *ClientSet) Get(id string) (Provider, bool) {
	p, ok := cs.providers[id]
	return p, ok
}

// Providers returns the configured provider ids, sorted.
func (cs *ClientSet) Providers() []string {
	ids := make([]string, 0, len(cs.providers))
	for id := range cs.providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// splitSystem separates system messages from the conversation.
func splitSystem(msgs []Message) (string, []Message) {
	var system []string
	rest := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == RoleSystem {
			system = append(system, m.Content)
			continue
		}
		rest = append(rest, m)
	}
	return strings.Join(system, "\n\n"), rest
}

type geminiProvider struct {
	client gemini.Client
}

func (p *geminiProvider) Complete(ctx context.Context, req Request) (*Completion, error) {
	system, rest := splitSystem(req.Messages)
	msgs := make([]gemini.Message, len(rest))
	for i, m := range rest {
		msgs[i] = gemini.Message{Role: m.Role, Content: m.Content}
	}
	resp, err := p.client.Generate(ctx, gemini.GenerateRequest{
		Model:    req.Model,
		System:   system,
		Messages: msgs,
		JSON:     req.JSON,
	})
	if err != nil {
		return nil, err
	}
	return &Completion{
		Text:         resp.Text,
		InputTokens:  int64(resp.InputTokens),
		OutputTokens: int64(resp.OutputTokens),
	}, nil
}

type anthropicProvider struct {
	client anthropic.Client
}

func (p *anthropicProvider) Complete(ctx context.Context, req Request) (*Completion, error) {
	system, rest := splitSystem(req.Messages)
	msgs := make([]anthropic.Message, len(rest))
	for i, m := range rest {
		msgs[i] = anthropic.Message{Role: m.Role, Content: m.Content}
	}
	mr := anthropic.MessageRequest{
		Model:     req.Model,
		MaxTokens: req.MaxTokens,
		Messages:  msgs,
	}
	if mr.MaxTokens <= 0 {
		mr.MaxTokens = 4096
	}
	if system != "" {
		mr.System = []anthropic.SystemBlock{{Text: system, Cacheable: true}}
	}
	resp, err := p.client.CreateMessage(ctx, mr)
	if err != nil {
		return nil, err
	}
	return &Completion{
		Text:         resp.Text,
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	}, nil
}

// chatProvider serves every OpenAI-compatible provider.
type chatProvider struct {
	client openai.Client
	// jsonMode is false for providers that reject response_format json_object.
	jsonMode bool
}

func (p *chatProvider) Complete(ctx context.Context, req Request) (*Completion, error) {
	msgs := make([]openai.Message, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = openai.Message{Role: m.Role, Content: m.Content}
	}
	cr := openai.ChatCompletionRequest{Model: req.Model, Messages: msgs}
	if req.JSON && p.jsonMode {
		cr.ResponseFormat = openai.JSONObject
	}
	if req.MaxTokens > 0 {
		n := int(req.MaxTokens)
		cr.MaxTokens = &n
	}
	resp, err := p.client.ChatCompletion(ctx, cr)
	if err != nil {
		return nil, err
	}
	return &Completion{
		Text:         resp.Text(),
		InputTokens:  int64(resp.Usage.PromptTokens),
		OutputTokens: int64(resp.Usage.CompletionTokens),
	}, nil
}
