package view

import (
	"errors"
	"fmt"

	"github.com/dmorgan81/imagestudio/internal/image"
	"github.com/dmorgan81/imagestudio/internal/model"
	"github.com/samber/lo"
)

type State string

const (
	Idle    State = "idle"
	Loading State = "loading"
	Success State = "success"
	Error   State = "error"
)

var ErrBusy = errors.New("a generation is already in progress")

// Remediation is shown beneath every generation failure.
var Remediation = []string{
	"Model loading (503): Wait 1-2 minutes and retry",
	"Model not found (404): Use " + model.Default.Name + " instead",
	"Rate limits: Wait a moment before trying again",
	"Invalid prompt: Try a simpler description",
}

type Descriptor struct {
	Kind        string   `json:"kind"`
	Message     string   `json:"message"`
	Recommended string   `json:"recommended"`
	Remediation []string `json:"remediation"`
}

func Describe(err error) *Descriptor {
	if err == nil {
		return nil
	}
	return &Descriptor{
		Kind:        image.Kind(err),
		Message:     err.Error(),
		Recommended: model.Default.Name,
		Remediation: Remediation,
	}
}

type Item struct {
	Index    int    `json:"index"`
	Name     string `json:"name"`
	Filename string `json:"filename"`
	URL      string `json:"url"`
}

// View is what the user sees for one form. It moves Idle -> Loading ->
// Success or Error, and back to Loading on the next submission.
type View struct {
	State      State            `json:"state"`
	Status     string           `json:"status"`
	Model      string           `json:"model,omitempty"`
	Prompt     string           `json:"prompt,omitempty"`
	Dimensions image.Dimensions `json:"dimensions"`
	Count      int              `json:"count,omitempty"`
	Items      []Item           `json:"items,omitempty"`
	Error      *Descriptor      `json:"error,omitempty"`
}

func New() *View {
	return &View{State: Idle}
}

func plural(n int) string {
	return lo.Ternary(n == 1, "", "s")
}

func (v *View) Begin(req image.Request, count int) error {
	if v.State == Loading {
		return ErrBusy
	}
	*v = View{
		State:      Loading,
		Status:     fmt.Sprintf("Generating %d image%s...", count, plural(count)),
		Model:      req.Model,
		Prompt:     req.Prompt,
		Dimensions: req.Dimensions,
		Count:      count,
	}
	return nil
}

// Succeed shows items. When some of the batch failed, err describes the first
// failure and the status says how many made it.
func (v *View) Succeed(items []Item, err error) {
	if len(items) == 0 {
		v.Fail(err)
		return
	}
	v.State = Success
	v.Items = items
	v.Error = Describe(err)
	v.Status = lo.Ternary(err == nil,
		fmt.Sprintf("Generated %d image%s successfully", len(items), plural(len(items))),
		fmt.Sprintf("Generated %d of %d images", len(items), v.Count))
}

func (v *View) Fail(err error) {
	if err == nil {
		err = errors.New("generation produced no images")
	}
	v.State = Error
	v.Items = nil
	v.Error = Describe(err)
	v.Status = "Generation failed"
}

// Settle makes sure the view leaves Loading whatever happened in between.
func (v *View) Settle() {
	if v.State == Loading {
		v.Fail(errors.New("generation was interrupted"))
	}
}
