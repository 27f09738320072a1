// Package model lists the text-to-image models and aspect presets offered by
// the generation form.
package model

import (
	"strings"

	"github.com/samber/lo"
)

type Model struct {
	ID          string
	Name        string
	Description string
}

// Default is the model recommended when generation keeps failing.
var Default = Model{
	ID:          "black-forest-labs/FLUX.1-schnell",
	Name:        "FLUX.1 Schnell",
	Description: "fast, most reliable",
}

var Catalog = []Model{
	Default,
	{ID: "black-forest-labs/FLUX.1-dev", Name: "FLUX.1 Dev", Description: "higher quality, slower"},
	{ID: "stabilityai/stable-diffusion-xl-base-1.0", Name: "Stable Diffusion XL", Description: "versatile general purpose"},
	{ID: "stabilityai/stable-diffusion-3.5-large", Name: "Stable Diffusion 3.5 Large", Description: "strong prompt adherence"},
	{ID: "runwayml/stable-diffusion-v1-5", Name: "Stable Diffusion 1.5", Description: "classic, lightweight"},
}

type Aspect struct {
	Token string
	Label string
}

var DefaultAspect = Aspect{"1024x1024", "Square 1:1"}

var Aspects = []Aspect{
	DefaultAspect,
	{"1024x768", "Landscape 4:3"},
	{"768x1024", "Portrait 3:4"},
	{"1280x720", "Widescreen 16:9"},
	{"720x1280", "Story 9:16"},
}

// Lookup finds a catalog model by id.
func Lookup(id string) (Model, bool) {
	return lo.Find(Catalog, func(m Model) bool { return m.ID == id })
}

// Short returns the model name without its owner, e.g. "FLUX.1-schnell".
func Short(id string) string {
	return id[strings.LastIndex(id, "/")+1:]
}
