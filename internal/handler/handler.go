package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/dmorgan81/imagestudio/internal/batch"
	"github.com/dmorgan81/imagestudio/internal/credential"
	"github.com/dmorgan81/imagestudio/internal/image"
	"github.com/dmorgan81/imagestudio/internal/log"
	"github.com/dmorgan81/imagestudio/internal/model"
	"github.com/dmorgan81/imagestudio/internal/page"
	"github.com/dmorgan81/imagestudio/internal/store"
	"github.com/dmorgan81/imagestudio/internal/view"
	"github.com/google/uuid"
	"github.com/samber/do"
	"github.com/samber/lo"
)

const MaxCount = 4

var (
	ErrRequiredFields = errors.New("please fill in all required fields")
	ErrCount          = fmt.Errorf("count must be between 1 and %d", MaxCount)
	ErrAction         = errors.New("unknown action")
)

var sessionRegexp = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

type Action string

const (
	Generate  Action = "generate"
	SaveKey   Action = "save_key"
	ClearKey  Action = "clear_key"
	KeyStatus Action = "key_status"
)

type Input struct {
	Action       Action `json:"action,omitempty"`
	Session      string `json:"session,omitempty"`
	Prompt       string `json:"prompt,omitempty"`
	Model        string `json:"model,omitempty"`
	Aspect       string `json:"aspect,omitempty"`
	Count        int    `json:"count,omitempty"`
	APIKey       string `json:"api_key,omitempty"`
	AllOrNothing bool   `json:"all_or_nothing,omitempty"`
}

// LogValue keeps the API key out of the logs.
func (i Input) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("action", string(i.Action)),
		slog.String("session", i.Session),
		slog.String("prompt", i.Prompt),
		slog.String("model", i.Model),
		slog.String("aspect", i.Aspect),
		slog.Int("count", i.Count),
		slog.Bool("api_key", i.APIKey != ""),
		slog.Bool("all_or_nothing", i.AllOrNothing),
	)
}

// session names the gallery the invocation belongs to. Clients without a
// usable session get a fresh one so they never share a gallery.
func (i Input) session() string {
	if sessionRegexp.MatchString(i.Session) {
		return i.Session
	}
	return uuid.NewString()
}

func (i Input) toRequest() (image.Request, int, error) {
	prompt := strings.TrimSpace(i.Prompt)
	if prompt == "" || i.Model == "" || i.Aspect == "" {
		return image.Request{}, 0, ErrRequiredFields
	}
	count := lo.Ternary(i.Count == 0, 1, i.Count)
	if count < 1 || count > MaxCount {
		return image.Request{}, 0, ErrCount
	}
	dims, err := image.ParseDimensions(i.Aspect)
	if err != nil {
		return image.Request{}, 0, err
	}
	return image.Request{Prompt: prompt, Model: i.Model, Dimensions: dims}, count, nil
}

type Output struct {
	Status  string     `json:"status"`
	Session string     `json:"session,omitempty"`
	BatchID string     `json:"batch_id,omitempty"`
	Page    string     `json:"page,omitempty"`
	Latest  string     `json:"latest,omitempty"`
	View    *view.View `json:"view,omitempty"`
}

// Filename is the download name of the index-th image of a batch.
func Filename(index int, dims image.Dimensions, ext string) string {
	return fmt.Sprintf("kiro-ai-%d-%s.%s", index, dims, ext)
}

type Handler struct {
	buildKey     string
	keys         credential.Store
	orchestrator *batch.Orchestrator
	uploader     store.Uploader
	linker       store.Linker
	releaser     store.Releaser
	invalidator  store.Invalidator
	templator    *page.Templator
	gallery      *view.Gallery
}

func NewHandler(i *do.Injector) (*Handler, error) {
	return &Handler{
		buildKey:     do.MustInvokeNamed[string](i, "build_key"),
		keys:         do.MustInvoke[credential.Store](i),
		orchestrator: do.MustInvoke[*batch.Orchestrator](i),
		uploader:     do.MustInvoke[store.Uploader](i),
		linker:       do.MustInvoke[store.Linker](i),
		releaser:     do.MustInvoke[store.Releaser](i),
		invalidator:  do.MustInvoke[store.Invalidator](i),
		templator:    do.MustInvoke[*page.Templator](i),
		gallery:      do.MustInvoke[*view.Gallery](i),
	}, nil
}

func (h *Handler) Handle(ctx context.Context, input Input) (Output, error) {
	log := log.FromContextOrDiscard(ctx).WithGroup("Handler").With("input", input)
	log.Info("handling invocation")

	switch lo.Ternary(input.Action == "", Generate, input.Action) {
	case Generate:
		return h.generate(ctx, input)
	case SaveKey:
		if err := credential.Save(ctx, h.keys, input.APIKey); err != nil {
			return Output{}, err
		}
		return Output{Status: "API key saved"}, nil
	case ClearKey:
		if err := h.keys.Clear(ctx); err != nil {
			return Output{}, err
		}
		return Output{Status: "API key cleared"}, nil
	case KeyStatus:
		_, ok, err := credential.Resolver{credential.Stored(h.keys)}.Resolve(ctx)
		if err != nil {
			return Output{}, err
		}
		return Output{Status: lo.Ternary(ok, "API key loaded", "Please enter your API key")}, nil
	default:
		return Output{}, fmt.Errorf("%w: %q", ErrAction, input.Action)
	}
}

func (h *Handler) generate(ctx context.Context, input Input) (Output, error) {
	req, count, err := input.toRequest()
	if err != nil {
		return Output{}, err
	}

	if _, ok := model.Lookup(req.Model); !ok {
		log.FromContextOrDiscard(ctx).Info("model is not in the catalog", "model", req.Model)
	}

	session := input.session()
	latest := view.SessionPrefix(session) + "latest.html"

	v := view.New()
	if err := v.Begin(req, count); err != nil {
		return Output{}, err
	}
	defer v.Settle()
	if err := h.render(ctx, v, latest); err != nil {
		return Output{}, err
	}

	key, _, err := credential.Resolver{
		credential.Build(h.buildKey),
		credential.Input(input.APIKey),
		credential.Stored(h.keys),
	}.Resolve(ctx)
	if err != nil {
		return Output{}, err
	}

	batchID := uuid.NewString()
	results, err := h.run(ctx, req, key, count, input.AllOrNothing)

	var names []string
	if err != nil {
		v.Fail(err)
	} else {
		items := make([]view.Item, 0, count)
		for _, r := range batch.Succeeded(results) {
			item, err := h.store(ctx, batchID, req, r)
			if err != nil {
				h.release(ctx, names)
				return Output{}, err
			}
			items = append(items, item)
			names = append(names, item.Name)
		}
		v.Succeed(items, batch.FirstError(results))
	}

	out := Output{
		Status:  v.Status,
		Session: session,
		BatchID: batchID,
		Page:    batchID + "/index.html",
		Latest:  latest,
		View:    v,
	}
	if err := h.render(ctx, v, out.Latest, out.Page); err != nil {
		h.release(ctx, append(names, out.Page))
		return Output{}, err
	}
	names = append(names, out.Page)

	if err := h.gallery.Show(ctx, session, names); err != nil {
		// the new batch is already on display
		log.FromContextOrDiscard(ctx).Warn("could not release superseded batch", "error", err)
	}
	return out, nil
}

// release drops objects of a batch that will never be displayed.
func (h *Handler) release(ctx context.Context, names []string) {
	if len(names) == 0 {
		return
	}
	if err := h.releaser.Release(ctx, names); err != nil {
		log.FromContextOrDiscard(ctx).Warn("could not release abandoned batch", "objects", len(names), "error", err)
	}
}

func (h *Handler) run(ctx context.Context, req image.Request, key string, count int, allOrNothing bool) ([]batch.Result, error) {
	if !allOrNothing {
		return h.orchestrator.Generate(ctx, req, key, count)
	}
	images, err := h.orchestrator.GenerateAll(ctx, req, key, count)
	if err != nil {
		return nil, err
	}
	return lo.Map(images, func(img image.Image, i int) batch.Result {
		return batch.Result{Index: i + 1, Image: img}
	}), nil
}

func (h *Handler) store(ctx context.Context, batchID string, req image.Request, r batch.Result) (view.Item, error) {
	filename := Filename(r.Index, req.Dimensions, r.Image.Ext())
	name := batchID + "/" + filename

	err := h.uploader.Upload(ctx, store.UploadParams{
		Name:        name,
		Data:        r.Image.Data,
		ContentType: r.Image.ContentType,
		Metadata: map[string]string{
			"batch":      batchID,
			"index":      strconv.Itoa(r.Index),
			"model":      req.Model,
			"dimensions": req.Dimensions.String(),
		},
	})
	if err != nil {
		return view.Item{}, err
	}

	url, err := h.linker.Link(ctx, name, filename)
	if err != nil {
		return view.Item{}, err
	}
	return view.Item{Index: r.Index, Name: name, Filename: filename, URL: url}, nil
}

// render publishes the view to latest and to every other named page, then
// refreshes the cached copy of latest.
func (h *Handler) render(ctx context.Context, v *view.View, latest string, pages ...string) error {
	html, err := h.templator.Template(ctx, v)
	if err != nil {
		return err
	}
	for _, name := range append(pages, latest) {
		if err := h.uploader.Upload(ctx, store.UploadParams{
			Name:        name,
			Data:        html,
			ContentType: "text/html",
		}); err != nil {
			return err
		}
	}
	return h.invalidator.Invalidate(ctx, []string{"/" + latest})
}
