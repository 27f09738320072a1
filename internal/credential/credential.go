// Package credential resolves the inference API key from an ordered list of
// sources and persists it between sessions.
package credential

import (
	"context"
	"errors"
	"strings"

	"github.com/dmorgan81/imagestudio/internal/log"
	"github.com/samber/lo"
)

const (
	// StoreKey names the persisted key in every Store.
	StoreKey = "hf_api_key"

	BuildPlaceholder = "PLACEHOLDER_WILL_BE_REPLACED_DURING_BUILD"
	InputPlaceholder = "your_api_key_here"
)

var (
	ErrNotFound = errors.New("credential not found")
	ErrEmpty    = errors.New("please enter a valid API key")
)

// Store persists a single credential across sessions.
type Store interface {
	Load(context.Context) (string, error)
	Save(context.Context, string) error
	Clear(context.Context) error
}

// Provider yields a credential or the empty string when its source has none.
type Provider interface {
	Name() string
	Credential(context.Context) (string, error)
}

type static struct {
	name, value string
}

func (s static) Name() string { return s.name }

func (s static) Credential(context.Context) (string, error) {
	return s.value, nil
}

// Build is a value injected at build time.
func Build(value string) Provider {
	return static{"build", value}
}

// Input is a value typed by the user for this request.
func Input(value string) Provider {
	return static{"input", value}
}

type stored struct {
	store Store
}

// Stored reads the credential persisted by a prior session.
func Stored(store Store) Provider {
	return stored{store}
}

func (stored) Name() string { return "stored" }

func (s stored) Credential(ctx context.Context) (string, error) {
	value, err := s.store.Load(ctx)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return value, err
}

func usable(value string) bool {
	return value != "" && !lo.Contains([]string{BuildPlaceholder, InputPlaceholder}, value)
}

// Resolver walks its providers in order; the first usable value wins.
type Resolver []Provider

// Resolve returns the first usable credential. ok is false when every source
// is empty or holds a placeholder.
func (r Resolver) Resolve(ctx context.Context) (string, bool, error) {
	log := log.FromContextOrDiscard(ctx).WithGroup("credential")
	for _, p := range r {
		value, err := p.Credential(ctx)
		if err != nil {
			return "", false, err
		}
		value = strings.TrimSpace(value)
		if usable(value) {
			log.Debug("resolved credential", "source", p.Name())
			return value, true, nil
		}
	}
	log.Info("no usable credential in any source")
	return "", false, nil
}

// Save trims and persists key, refusing empty values.
func Save(ctx context.Context, store Store, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrEmpty
	}
	log.FromContextOrDiscard(ctx).WithGroup("credential").Info("saving credential")
	return store.Save(ctx, key)
}
