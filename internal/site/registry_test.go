package site

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	t.Parallel()

	r := DefaultRegistry()
	assert.Equal(t, []string{"rodekors"}, r.Names())

	s, err := r.Get("rodekors")
	require.NoError(t, err)
	assert.Equal(t, "Røde Kors", s.Organization())

	_, err = r.Get("missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownSite))
	assert.Contains(t, err.Error(), "missing")
	assert.Contains(t, err.Error(), "[rodekors]")
}

func TestRegistry_ReplaceKeepsOrder(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	a := &Profile{Key: "a", Root: "r", BaseURL: "https://a.no"}
	b := &Profile{Key: "b", Root: "r", BaseURL: "https://b.no"}
	require.NoError(t, a.Init())
	require.NoError(t, b.Init())
	r.Register(a)
	r.Register(b)

	a2 := &Profile{Key: "a", Org: "A2", Root: "r", BaseURL: "https://a.no"}
	require.NoError(t, a2.Init())
	r.Register(a2)

	assert.Equal(t, []string{"a", "b"}, r.Names())
	all := r.All()
	require.Len(t, all, 2)
	assert.Equal(t, "A2", all[0].Organization())
}

func TestRegistry_RegisterProfiles(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "sites.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sites:\n  - name: extra\n    base_url: https://extra.no\n    root: lag\n"), 0o644))

	r := DefaultRegistry()
	require.NoError(t, r.RegisterProfiles(path))
	assert.Equal(t, []string{"rodekors", "extra"}, r.Names())

	assert.Error(t, r.RegisterProfiles(filepath.Join(t.TempDir(), "nope.yaml")))
}
