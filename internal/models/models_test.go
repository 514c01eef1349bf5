package models

import (
	"testing"

	"github.com/stretchr/testify/require"

	"gemini-adapter-go/internal/config"
)

func TestResolveAliases(t *testing.T) {
	r := NewResolver(config.ModelsConfig{Default: "gemini-1.5-pro-latest"})

	require.Equal(t, "gemini-1.5-pro-latest", r.Resolve("gpt-4"))
	require.Equal(t, "gemini-1.5-flash-latest", r.Resolve("gpt-3.5-turbo"))
}

func TestResolvePassThroughAndPrefix(t *testing.T) {
	r := NewResolver(config.ModelsConfig{Default: "gemini-1.5-pro-latest"})

	require.Equal(t, "gemini-1.5-flash", r.Resolve("gemini-1.5-flash"))
	require.Equal(t, "gemini-1.5-flash", r.Resolve("models/gemini-1.5-flash"))
}

func TestResolveUnknownFallsBack(t *testing.T) {
	r := NewResolver(config.ModelsConfig{Default: "gemini-custom"})

	require.Equal(t, "gemini-custom", r.Resolve("claude-3-opus"))
	require.Equal(t, "gemini-custom", r.Resolve(""))
}

func TestConfigMappingOverridesBuiltin(t *testing.T) {
	r := NewResolver(config.ModelsConfig{
		Mapping: map[string]string{"gpt-4": "gemini-1.5-flash"},
		Default: "gemini-1.5-pro-latest",
	})

	require.Equal(t, "gemini-1.5-flash", r.Resolve("gpt-4"))
}

func TestClientNamesSortedAndDeduped(t *testing.T) {
	r := NewResolver(config.ModelsConfig{})
	names := r.ClientNames()
	require.Contains(t, names, "gpt-4")
	require.Contains(t, names, "gemini-1.5-pro-latest")
	for i := 1; i < len(names); i++ {
		require.Less(t, names[i-1], names[i])
	}
}
