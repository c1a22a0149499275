// Package icon maps the configurable default-icon type strings onto the
// providers that produce them.
package icon

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/jacktea/xavatar/pkg/generator"
	"github.com/jacktea/xavatar/pkg/generator/identicon"
	"github.com/jacktea/xavatar/pkg/generator/monster"
	"github.com/jacktea/xavatar/pkg/generator/retro"
	"github.com/jacktea/xavatar/pkg/generator/rings"
	"github.com/jacktea/xavatar/pkg/generator/wavatar"
)

// Images holds the static SVG icons under images/.
//
//go:embed images/*.svg
var Images embed.FS

// CustomNamespace is the cache namespace of the site's custom default image.
const CustomNamespace = "custom"

// Kind distinguishes how a provider produces its image.
type Kind int

const (
	// KindStatic providers point at a fixed asset and bypass the cache.
	KindStatic Kind = iota
	// KindGenerator providers render through a generator.Generator.
	KindGenerator
	// KindCustom resizes a site-configured local image.
	KindCustom
)

func (k Kind) String() string {
	switch k {
	case KindGenerator:
		return "generator"
	case KindCustom:
		return "custom"
	}
	return "static"
}

// Provider answers one or more type aliases.
type Provider struct {
	Types     []string
	Name      string
	Kind      Kind
	Generator generator.Generator
	// Asset is the file under images/ for static providers.
	Asset string
}

// OptionValue is the canonical type string of p.
func (p Provider) OptionValue() string {
	if len(p.Types) == 0 {
		return ""
	}
	return p.Types[0]
}

// Namespace is the cache namespace of p, empty for static providers.
func (p Provider) Namespace() string {
	switch p.Kind {
	case KindGenerator:
		return p.Generator.Namespace()
	case KindCustom:
		return CustomNamespace
	}
	return ""
}

// AssetURL joins assetsURL with the provider's static image path.
func (p Provider) AssetURL(assetsURL string) string {
	return strings.TrimSuffix(assetsURL, "/") + "/images/" + p.Asset
}

// Registry resolves type strings to providers. It is immutable after
// construction.
type Registry struct {
	providers []Provider
	byType    map[string]int
	byNS      map[string]int
}

// NewRegistry indexes providers. Every type alias must be unique.
func NewRegistry(providers ...Provider) (*Registry, error) {
	r := &Registry{byType: make(map[string]int), byNS: make(map[string]int)}
	for i, p := range providers {
		if len(p.Types) == 0 {
			return nil, fmt.Errorf("icon: provider %q has no types", p.Name)
		}
		switch p.Kind {
		case KindGenerator:
			if p.Generator == nil {
				return nil, fmt.Errorf("icon: provider %q has no generator", p.Name)
			}
		case KindStatic:
			if _, err := fs.Stat(Images, "images/"+p.Asset); err != nil {
				return nil, fmt.Errorf("icon: provider %q: %w", p.Name, err)
			}
		}
		for _, t := range p.Types {
			t = strings.ToLower(t)
			if prev, ok := r.byType[t]; ok {
				return nil, fmt.Errorf("icon: type %q claimed by %q and %q", t, providers[prev].Name, p.Name)
			}
			r.byType[t] = i
		}
		if ns := p.Namespace(); ns != "" {
			r.byNS[ns] = i
		}
	}
	r.providers = append(r.providers, providers...)
	return r, nil
}

// Builtin returns the providers for the standard default-icon vocabulary.
func Builtin() []Provider {
	return []Provider{
		{Types: []string{"mystery", "mm", "mystery-man"}, Name: "Mystery Person", Kind: KindStatic, Asset: "mystery.svg"},
		{Types: []string{"blank"}, Name: "Blank", Kind: KindStatic, Asset: "blank.svg"},
		{Types: []string{"bubble", "comment"}, Name: "Speech Bubble", Kind: KindStatic, Asset: "bubble.svg"},
		{Types: []string{"bowling-pin", "im-user-offline"}, Name: "Bowling Pin", Kind: KindStatic, Asset: "bowling-pin.svg"},
		{Types: []string{"silhouette", "view-media-artist"}, Name: "Silhouette", Kind: KindStatic, Asset: "silhouette.svg"},
		{Types: []string{"identicon"}, Name: "Identicon (Generated)", Kind: KindGenerator, Generator: identicon.New()},
		{Types: []string{"retro"}, Name: "Retro (Generated)", Kind: KindGenerator, Generator: retro.New()},
		{Types: []string{"wavatar"}, Name: "Wavatar (Generated)", Kind: KindGenerator, Generator: wavatar.New()},
		{Types: []string{"monsterid"}, Name: "Monster (Generated)", Kind: KindGenerator, Generator: monster.New()},
		{Types: []string{"rings"}, Name: "Rings (Generated)", Kind: KindGenerator, Generator: rings.New()},
		{Types: []string{"custom"}, Name: "Custom", Kind: KindCustom},
	}
}

// Default builds a registry of the built-in providers.
func Default() *Registry {
	r, err := NewRegistry(Builtin()...)
	if err != nil {
		panic(err)
	}
	return r
}

// Resolve returns the provider for typ, ignoring case.
func (r *Registry) Resolve(typ string) (Provider, bool) {
	i, ok := r.byType[strings.ToLower(strings.TrimSpace(typ))]
	if !ok {
		return Provider{}, false
	}
	return r.providers[i], true
}

// ByNamespace returns the provider whose cache namespace is ns.
func (r *Registry) ByNamespace(ns string) (Provider, bool) {
	i, ok := r.byNS[ns]
	if !ok {
		return Provider{}, false
	}
	return r.providers[i], true
}

// Providers returns the providers in registration order.
func (r *Registry) Providers() []Provider {
	return append([]Provider(nil), r.providers...)
}

// Mapping returns a copy of the alias table: every type string to the
// provider serving it.
func (r *Registry) Mapping() map[string]Provider {
	out := make(map[string]Provider, len(r.byType))
	for t, i := range r.byType {
		p := r.providers[i]
		p.Types = append([]string(nil), p.Types...)
		out[t] = p
	}
	return out
}

// Types lists every known type string, sorted.
func (r *Registry) Types() []string {
	out := make([]string, 0, len(r.byType))
	for t := range r.byType {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
