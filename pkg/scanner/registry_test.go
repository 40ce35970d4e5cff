package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_RegisterAndGet(t *testing.T) {
	reg := NewRegistry()
	s := &fakeScanner{name: "alpha"}

	require.NoError(t, reg.Register(s))
	assert.Same(t, s, reg.Get("alpha"))
	assert.Nil(t, reg.Get("missing"))
	assert.True(t, reg.IsEnabled("alpha"))
}

func TestRegistry_DuplicateRegistration(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(&fakeScanner{name: "alpha"}))

	err := reg.Register(&fakeScanner{name: "alpha"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestRegistry_SetEnabled(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(&fakeScanner{name: "alpha"}))
	require.NoError(t, reg.Register(&fakeScanner{name: "beta"}))

	require.NoError(t, reg.SetEnabled("alpha", false))
	assert.False(t, reg.IsEnabled("alpha"))

	enabled := reg.EnabledScanners()
	require.Len(t, enabled, 1)
	assert.Equal(t, "beta", enabled[0].Name())

	require.Error(t, reg.SetEnabled("gamma", true))
}

func TestRegistry_ListSorted(t *testing.T) {
	reg := NewRegistry()
	for _, name := range []string{"zeta", "alpha", "mu"} {
		require.NoError(t, reg.Register(&fakeScanner{name: name}))
	}
	assert.Equal(t, []string{"alpha", "mu", "zeta"}, reg.List())
}

func TestDefaults_UniqueNames(t *testing.T) {
	reg := NewRegistry()
	for _, s := range Defaults() {
		require.NoError(t, reg.Register(s))
	}
	assert.Equal(t, []string{"defenses", "mcp-config", "prompt-injection", "secrets", "supply-chain"}, reg.List())
}
