// Package llm resolves logical model names to provider calls and walks each
// model's fallback chain until one provider answers.
package llm

import (
	"os"
	"sort"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Provider identifiers.
const (
	ProviderGoogle     = "google"
	ProviderOpenAI     = "openai"
	ProviderMistral    = "mistral"
	ProviderAnthropic  = "anthropic"
	ProviderPerplexity = "perplexity"
)

var knownProviders = map[string]bool{
	ProviderGoogle:     true,
	ProviderOpenAI:     true,
	ProviderMistral:    true,
	ProviderAnthropic:  true,
	ProviderPerplexity: true,
}

// ModelSpec maps a logical model name to a concrete provider model and the
// name to try next when it fails.
type ModelSpec struct {
	Name     string `yaml:"name"`
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	Fallback string `yaml:"fallback,omitempty"`
}

// Registry is an immutable set of model specs keyed by name.
type Registry struct {
	specs map[string]ModelSpec
}

// DefaultSpecs is the built-in registry.
func DefaultSpecs() []ModelSpec {
	return []ModelSpec{
		{Name: "gemini-2.5-flash", Provider: ProviderGoogle, Model: "gemini-2.5-flash", Fallback: "gemini-1.5-flash"},
		{Name: "gemini-1.5-flash", Provider: ProviderGoogle, Model: "gemini-1.5-flash", Fallback: "mistral-small-2503"},
		{Name: "mistral-small-2503", Provider: ProviderMistral, Model: "mistral-small-2503"},
		{Name: "gpt-4o-mini", Provider: ProviderOpenAI, Model: "gpt-4o-mini"},
		{Name: "claude-haiku-4-5", Provider: ProviderAnthropic, Model: "claude-haiku-4-5-20251001", Fallback: "gemini-2.5-flash"},
		{Name: "sonar", Provider: ProviderPerplexity, Model: "sonar", Fallback: "gpt-4o-mini"},
	}
}

// DefaultRegistry returns the built-in registry.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(DefaultSpecs())
	if err != nil {
		panic(err)
	}
	return r
}

// NewRegistry builds a registry. Names must be unique and providers known.
// Fallback targets are not checked: a missing target ends the chain.
func NewRegistry(specs []ModelSpec) (*Registry, error) {
	r := &Registry{specs: make(map[string]ModelSpec, len(specs))}
	for _, s := range specs {
		if s.Name == "" {
			return nil, eris.New("llm: model spec without name")
		}
		if _, dup := r.specs[s.Name]; dup {
			return nil, eris.Errorf("llm: duplicate model %q", s.Name)
		}
		if !knownProviders[s.Provider] {
			return nil, eris.Errorf("llm: model %q has unknown provider %q", s.Name, s.Provider)
		}
		if s.Model == "" {
			s.Model = s.Name
		}
		r.specs[s.Name] = s
	}
	return r, nil
}

type registryFile struct {
	Models []ModelSpec `yaml:"models"`
}

// LoadRegistry reads a registry from a YAML file with a top-level "models"
// list. An empty path returns the default registry.
func LoadRegistry(path string) (*Registry, error) {
	if path == "" {
		return DefaultRegistry(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "llm: read registry %s", path)
	}
	var f registryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrapf(err, "llm: parse registry %s", path)
	}
	if len(f.Models) == 0 {
		return nil, eris.Errorf("llm: registry %s defines no models", path)
	}
	return NewRegistry(f.Models)
}

// Get looks up a spec by name.
func (r *Registry) Get(name string) (ModelSpec, bool) {
	s, ok := r.specs[name]
	return s, ok
}

// Len returns the number of specs.
func (r *Registry) Len() int { return len(r.specs) }

// Names returns every model name, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.specs))
	for n := range r.specs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Chain returns the fallback chain starting at name. The walk stops at a
// spec with no fallback, at a fallback missing from the registry, at a
// repeated name, or after Len() hops, whichever comes first. The result is
// nil when name itself is unknown.
func (r *Registry) Chain(name string) []ModelSpec {
	var chain []ModelSpec
	seen := make(map[string]bool, len(r.specs))
	for cur := name; cur != "" && len(chain) < len(r.specs); {
		spec, ok := r.specs[cur]
		if !ok || seen[cur] {
			break
		}
		seen[cur] = true
		chain = append(chain, spec)
		cur = spec.Fallback
	}
	return chain
}
