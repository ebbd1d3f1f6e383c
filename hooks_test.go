package appframe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatternMatching(t *testing.T) {
	registry := NewPatternHookRegistry()
	require.NoError(t, registry.Register("*.models", nil, nil))
	require.NoError(t, registry.Register("blog.*", nil, nil))
	require.NoError(t, registry.Register("blog.model?", nil, nil))
	require.NoError(t, registry.Register("blog.models", nil, nil))

	cases := []struct {
		identifier string
		want       int
	}{
		{"blog.models", 4},
		{"users.models", 1},
		{"blog.views", 1},
		{"blog.modelX", 2}, // blog.* and blog.model?
		{"someblog.models", 1},
		{"other.views", 0},
	}
	for _, tc := range cases {
		t.Run(tc.identifier, func(t *testing.T) {
			assert.Len(t, registry.Matching(tc.identifier), tc.want)
		})
	}
}

func TestPatternIsAnchored(t *testing.T) {
	registry := NewPatternHookRegistry()
	require.NoError(t, registry.Register("blog.models", nil, nil))

	assert.Empty(t, registry.Matching("myblog.models"))
	assert.Empty(t, registry.Matching("blog.models.extra"))
	assert.Len(t, registry.Matching("blog.models"), 1)
}

func TestDotMatchesLiterally(t *testing.T) {
	registry := NewPatternHookRegistry()
	require.NoError(t, registry.Register("blog.models", nil, nil))

	// "." in a pattern is not a wildcard.
	assert.Empty(t, registry.Matching("blogXmodels"))
}

func TestQuestionMarkMatchesExactlyOne(t *testing.T) {
	registry := NewPatternHookRegistry()
	require.NoError(t, registry.Register("app?.models", nil, nil))

	assert.Len(t, registry.Matching("app1.models"), 1)
	assert.Empty(t, registry.Matching("app.models"))
	assert.Empty(t, registry.Matching("app12.models"))
}

func TestRegisterReplacesSamePattern(t *testing.T) {
	registry := NewPatternHookRegistry()
	first, second := 0, 0
	require.NoError(t, registry.Register("*.models", func([]*AppModule) error { first++; return nil }, nil))
	require.NoError(t, registry.Register("*.models", func([]*AppModule) error { second++; return nil }, nil))

	assert.Equal(t, 1, registry.Len())
	matched := registry.Matching("blog.models")
	require.Len(t, matched, 1)
	require.NoError(t, matched[0].OnStartup(nil))
	assert.Equal(t, 0, first)
	assert.Equal(t, 1, second)
}

func TestMatchingPreservesRegistrationOrder(t *testing.T) {
	registry := NewPatternHookRegistry()
	require.NoError(t, registry.Register("blog.*", nil, nil))
	require.NoError(t, registry.Register("*.models", nil, nil))

	matched := registry.Matching("blog.models")
	require.Len(t, matched, 2)
	assert.Equal(t, "blog.*", matched[0].Pattern)
	assert.Equal(t, "*.models", matched[1].Pattern)
}

func TestDefaultRegistry(t *testing.T) {
	before := DefaultHookRegistry().Len()
	require.NoError(t, RegisterHook("default-registry-test.*", nil, nil))
	assert.Equal(t, before+1, DefaultHookRegistry().Len())
}
