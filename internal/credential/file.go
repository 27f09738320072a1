package credential

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/dmorgan81/imagestudio/internal/log"
)

// FileStore keeps the credential in a small JSON document on disk.
type FileStore struct {
	Path string
	mu   sync.Mutex
}

// DefaultPath is settings.json under the user's config directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "imagestudio", "settings.json"), nil
}

func (s *FileStore) read() (map[string]string, error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}

	settings := map[string]string{}
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, err
	}
	return settings, nil
}

func (s *FileStore) write(settings map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.Path, data, 0600)
}

func (s *FileStore) Load(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log.FromContextOrDiscard(ctx).WithGroup("file").Debug("loading credential", "path", s.Path)
	settings, err := s.read()
	if err != nil {
		return "", err
	}
	key, ok := settings[StoreKey]
	if !ok {
		return "", ErrNotFound
	}
	return key, nil
}

func (s *FileStore) Save(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log.FromContextOrDiscard(ctx).WithGroup("file").Info("saving credential", "path", s.Path)
	settings, err := s.read()
	if err != nil {
		return err
	}
	settings[StoreKey] = key
	return s.write(settings)
}

func (s *FileStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log.FromContextOrDiscard(ctx).WithGroup("file").Info("clearing credential", "path", s.Path)
	settings, err := s.read()
	if err != nil {
		return err
	}
	if _, ok := settings[StoreKey]; !ok {
		return nil
	}
	delete(settings, StoreKey)
	return s.write(settings)
}
