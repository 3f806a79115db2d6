package provider

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopProvider struct{ Provider }

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()
	f := func(string, map[string]any) (Provider, error) { return nopProvider{}, nil }

	require.NoError(t, r.Register("a", f))
	assert.Error(t, r.Register("a", f), "duplicate")
	assert.Error(t, r.Register("", f), "empty")
	assert.Error(t, r.Register("b", nil), "nil factory")

	assert.True(t, r.Has("a"))
	assert.Equal(t, []string{"a"}, r.Kinds())
}

func TestRegistry_New(t *testing.T) {
	r := NewRegistry()
	var gotName string
	r.MustRegister("a", func(name string, _ map[string]any) (Provider, error) {
		gotName = name
		return nopProvider{}, nil
	})

	_, err := r.New("a", "source", nil)
	require.NoError(t, err)
	assert.Equal(t, "source", gotName)

	_, err = r.New("zzz", "x", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider")
}

func TestMatches(t *testing.T) {
	rec := Record{"a": map[string]any{"b": json.Number("3")}, "s": "x"}

	assert.True(t, Matches(rec, nil))
	assert.True(t, Matches(rec, map[string]any{"a.b": 3, "s": "x"}))
	assert.False(t, Matches(rec, map[string]any{"a.b": 4}))
	assert.False(t, Matches(rec, map[string]any{"missing": nil}))
}

func TestOptions(t *testing.T) {
	opts := map[string]any{"s": "v", "n": 1}

	s, err := StringOption(opts, "s", "d")
	require.NoError(t, err)
	assert.Equal(t, "v", s)

	s, err = StringOption(opts, "x", "d")
	require.NoError(t, err)
	assert.Equal(t, "d", s)

	_, err = StringOption(opts, "n", "")
	assert.Error(t, err)

	_, err = RequiredString(opts, "x")
	assert.Error(t, err)
}

func TestNormalize(t *testing.T) {
	in := Record{"n": 1, "m": map[string]any{"f": 1.5}}
	out, err := Normalize(in)
	require.NoError(t, err)
	assert.Equal(t, json.Number("1"), out["n"])
	assert.Equal(t, json.Number("1.5"), out["m"].(map[string]any)["f"])

}
