package store

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dmorgan81/imagestudio/internal/log"
)

var ErrNotFound = errors.New("object not found")

type UploadParams struct {
	Name        string
	Data        []byte
	ContentType string
	Metadata    map[string]string
}

type Uploader interface {
	Upload(context.Context, UploadParams) error
}

// Releaser deletes stored objects that are no longer displayed.
type Releaser interface {
	Release(context.Context, []string) error
}

// Reader fetches a stored object, failing with ErrNotFound when it is absent.
type Reader interface {
	Read(context.Context, string) ([]byte, error)
}

// Linker returns a URL that downloads the named object as filename. Local
// stores answer with an absolute path, which pages resolve against file://.
type Linker interface {
	Link(ctx context.Context, name, filename string) (string, error)
}

// FileUploader stores objects below Dir on the local filesystem.
type FileUploader struct {
	Dir string
}

func (u *FileUploader) path(name string) string {
	return filepath.Join(u.Dir, filepath.FromSlash(name))
}

func (u *FileUploader) Upload(ctx context.Context, params UploadParams) error {
	log := log.FromContextOrDiscard(ctx).WithGroup("file")
	path := u.path(params.Name)
	log.Info("writing", "file", path)
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	return os.WriteFile(path, params.Data, 0600)
}

func (u *FileUploader) Read(_ context.Context, name string) ([]byte, error) {
	data, err := os.ReadFile(u.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	return data, err
}

func (u *FileUploader) Release(ctx context.Context, names []string) error {
	log := log.FromContextOrDiscard(ctx).WithGroup("file")
	dirs := map[string]struct{}{}
	for _, name := range names {
		path := u.path(name)
		log.Info("removing", "file", path)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
		dirs[filepath.Dir(path)] = struct{}{}
	}
	// batch directories are left behind only when something else lives in them
	for dir := range dirs {
		if dir != filepath.Clean(u.Dir) {
			_ = os.Remove(dir)
		}
	}
	return nil
}

func (u *FileUploader) Link(_ context.Context, name, _ string) (string, error) {
	path, err := filepath.Abs(u.path(name))
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(path), nil
}
