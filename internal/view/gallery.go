package view

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/dmorgan81/imagestudio/internal/log"
	"github.com/dmorgan81/imagestudio/internal/store"
	"github.com/samber/do"
	"github.com/samber/lo"
)

// Gallery owns the stored objects currently on display, per session. The
// list lives in the store beside the session's latest page, so any instance
// showing a new batch releases the one it replaces.
type Gallery struct {
	uploader store.Uploader
	releaser store.Releaser
	reader   store.Reader
}

func NewGallery(uploader store.Uploader, releaser store.Releaser, reader store.Reader) *Gallery {
	return &Gallery{uploader, releaser, reader}
}

func NewInjectedGallery(i *do.Injector) (*Gallery, error) {
	return NewGallery(
		do.MustInvoke[store.Uploader](i),
		do.MustInvoke[store.Releaser](i),
		do.MustInvoke[store.Reader](i),
	), nil
}

// SessionPrefix is where a session's own objects live.
func SessionPrefix(session string) string {
	return "sessions/" + session + "/"
}

func shownName(session string) string {
	return SessionPrefix(session) + "shown.json"
}

func (g *Gallery) Shown(ctx context.Context, session string) ([]string, error) {
	data, err := g.reader.Read(ctx, shownName(session))
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return nil, err
	}
	return names, nil
}

func (g *Gallery) Show(ctx context.Context, session string, names []string) error {
	previous, err := g.Shown(ctx, session)
	if err != nil {
		return err
	}

	data, err := json.Marshal(names)
	if err != nil {
		return err
	}
	if err := g.uploader.Upload(ctx, store.UploadParams{
		Name:        shownName(session),
		Data:        data,
		ContentType: "application/json",
	}); err != nil {
		return err
	}

	stale, _ := lo.Difference(previous, names)
	if len(stale) == 0 {
		return nil
	}
	log.FromContextOrDiscard(ctx).WithGroup("gallery").Info("releasing superseded batch", "session", session, "objects", len(stale))
	return g.releaser.Release(ctx, stale)
}
