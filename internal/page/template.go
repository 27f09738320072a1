package page

import (
	"bytes"
	"context"
	_ "embed"
	"html/template"
	"sync"

	"github.com/dmorgan81/imagestudio/internal/log"
	"github.com/dmorgan81/imagestudio/internal/model"
	"github.com/dmorgan81/imagestudio/internal/view"
	"github.com/samber/do"
)

//go:embed assets/results.html
var resultsTmpl string

const promptPreview = 60

// Preview shortens a prompt for display on a result card.
func Preview(prompt string) string {
	runes := []rune(prompt)
	if len(runes) <= promptPreview {
		return prompt
	}
	return string(runes[:promptPreview]) + "..."
}

var funcs = template.FuncMap{
	"short":   model.Short,
	"preview": Preview,
}

type Templator struct {
	tmpl *template.Template
	once sync.Once
}

func NewTemplator(*do.Injector) (*Templator, error) {
	return &Templator{}, nil
}

func (g *Templator) Template(ctx context.Context, v *view.View) ([]byte, error) {
	g.once.Do(func() {
		g.tmpl = template.Must(template.New("results").Funcs(funcs).Parse(resultsTmpl))
	})

	log := log.FromContextOrDiscard(ctx).WithGroup("templator")
	log.Info("generating page", "state", v.State, "items", len(v.Items))

	var data bytes.Buffer
	if err := g.tmpl.Execute(&data, v); err != nil {
		return nil, err
	}
	return data.Bytes(), nil
}
