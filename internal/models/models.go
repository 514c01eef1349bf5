package models

import (
	"sort"
	"strings"

	"gemini-adapter-go/internal/config"
)

// builtinAliases cover the OpenAI names clients commonly send; the
// config mapping extends or overrides them.
var builtinAliases = map[string]string{
	"gpt-4":         "gemini-1.5-pro-latest",
	"gpt-4o":        "gemini-1.5-pro-latest",
	"gpt-4-turbo":   "gemini-1.5-pro-latest",
	"gpt-4o-mini":   "gemini-1.5-flash-latest",
	"gpt-3.5-turbo": "gemini-1.5-flash-latest",
}

// knownUpstream are the models advertised on both listing surfaces when
// the config does not narrow them.
var knownUpstream = []string{
	"gemini-1.5-pro-latest",
	"gemini-1.5-flash-latest",
	"gemini-1.5-pro",
	"gemini-1.5-flash",
	"gemini-pro",
}

// Resolver maps client-facing model names to upstream model names.
type Resolver struct {
	mapping  map[string]string
	fallback string
}

func NewResolver(cfg config.ModelsConfig) *Resolver {
	m := make(map[string]string, len(builtinAliases)+len(cfg.Mapping))
	for k, v := range builtinAliases {
		m[k] = v
	}
	for k, v := range cfg.Mapping {
		m[k] = v
	}
	fallback := cfg.Default
	if fallback == "" {
		fallback = "gemini-1.5-pro-latest"
	}
	return &Resolver{mapping: m, fallback: fallback}
}

// Resolve returns the upstream model for a client-supplied name. Native
// gemini names pass through untouched; unknown OpenAI-style names fall
// back to the configured default.
func (r *Resolver) Resolve(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return r.fallback
	}
	if upstream, ok := r.mapping[name]; ok {
		return upstream
	}
	if strings.HasPrefix(name, "gemini-") || strings.HasPrefix(name, "models/gemini-") {
		return strings.TrimPrefix(name, "models/")
	}
	return r.fallback
}

// ClientNames lists every name the OpenAI surface advertises: aliases
// plus the upstream models themselves, sorted for stable output.
func (r *Resolver) ClientNames() []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(name string) {
		if _, dup := seen[name]; !dup {
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	for alias := range r.mapping {
		add(alias)
	}
	for _, m := range knownUpstream {
		add(m)
	}
	sort.Strings(out)
	return out
}

// UpstreamNames lists the native models advertised on the Gemini surface.
func (r *Resolver) UpstreamNames() []string {
	out := make([]string, len(knownUpstream))
	copy(out, knownUpstream)
	return out
}
