package icon

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacktea/xavatar/pkg/generator/retro"
)

func TestDefaultAliases(t *testing.T) {
	r := Default()
	for alias, want := range map[string]string{
		"mm":                "mystery",
		"mystery-man":       "mystery",
		"MYSTERY":           "mystery",
		"comment":           "bubble",
		"im-user-offline":   "bowling-pin",
		"view-media-artist": "silhouette",
		"monsterid":         "monsterid",
		"custom":            "custom",
	} {
		p, ok := r.Resolve(alias)
		require.True(t, ok, alias)
		assert.Equal(t, want, p.OptionValue(), alias)
	}
	_, ok := r.Resolve("gravatar_default")
	assert.False(t, ok)
}

func TestNamespaces(t *testing.T) {
	r := Default()
	p, _ := r.Resolve("monsterid")
	assert.Equal(t, KindGenerator, p.Kind)
	assert.Equal(t, "monsterid", p.Namespace())

	p, _ = r.Resolve("mystery")
	assert.Equal(t, "", p.Namespace())
	assert.Equal(t, "https://example.com/assets/images/mystery.svg", p.AssetURL("https://example.com/assets/"))

	p, ok := r.ByNamespace("custom")
	require.True(t, ok)
	assert.Equal(t, KindCustom, p.Kind)
	_, ok = r.ByNamespace("gravatar")
	assert.False(t, ok)
}

func TestDuplicateAliasRejected(t *testing.T) {
	_, err := NewRegistry(
		Provider{Types: []string{"retro"}, Name: "a", Kind: KindGenerator, Generator: retro.New()},
		Provider{Types: []string{"pixel", "Retro"}, Name: "b", Kind: KindGenerator, Generator: retro.New()},
	)
	assert.Error(t, err)
}

func TestStaticAssetMustExist(t *testing.T) {
	_, err := NewRegistry(Provider{Types: []string{"x"}, Name: "x", Kind: KindStatic, Asset: "missing.svg"})
	assert.Error(t, err)
}

func TestMappingIsACopy(t *testing.T) {
	r := Default()
	m := r.Mapping()
	assert.Len(t, r.Types(), len(m))
	for _, alias := range []string{"mystery", "mm", "mystery-man"} {
		assert.Equal(t, "mystery", m[alias].OptionValue(), alias)
	}
	assert.Equal(t, m["mm"].Name, m["mystery-man"].Name)

	m["mm"].Types[0] = "changed"
	delete(m, "mystery")
	p, ok := r.Resolve("mm")
	require.True(t, ok)
	assert.Equal(t, "mystery", p.OptionValue())
	assert.Equal(t, "mystery", r.Mapping()["mm"].OptionValue())
}

func TestEmbeddedImages(t *testing.T) {
	for _, p := range Default().Providers() {
		if p.Kind != KindStatic {
			continue
		}
		data, err := fs.ReadFile(Images, "images/"+p.Asset)
		require.NoError(t, err)
		assert.Contains(t, string(data), "<svg")
	}
}
