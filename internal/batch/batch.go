package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dmorgan81/imagestudio/internal/image"
	"github.com/dmorgan81/imagestudio/internal/log"
	"github.com/samber/do"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

var ErrInvalidCount = errors.New("image count must be at least 1")

type indexKey struct{}

// withIndex marks ctx as belonging to the index-th call of a batch and tags
// the call's logger with it.
func withIndex(ctx context.Context, logger *slog.Logger, index int) context.Context {
	ctx = context.WithValue(ctx, indexKey{}, index)
	return log.NewContext(ctx, logger.With("index", index))
}

// IndexFromContext returns the 1-based position of the call ctx was issued for.
func IndexFromContext(ctx context.Context) (int, bool) {
	index, ok := ctx.Value(indexKey{}).(int)
	return index, ok
}

// Result is the outcome of one call in a batch. Index is 1-based and matches
// the call's submission position.
type Result struct {
	Index int
	Image image.Image
	Err   error
}

func (r Result) OK() bool {
	return r.Err == nil
}

// Succeeded returns the successful results, keeping submission order.
func Succeeded(results []Result) []Result {
	return lo.Filter(results, func(r Result, _ int) bool { return r.OK() })
}

// FirstError returns the error of the lowest indexed failed result.
func FirstError(results []Result) error {
	failed, ok := lo.Find(results, func(r Result) bool { return !r.OK() })
	return lo.Ternary(ok, failed.Err, nil)
}

type Orchestrator struct {
	generator image.Generator
}

func New(generator image.Generator) *Orchestrator {
	return &Orchestrator{generator}
}

func NewOrchestrator(i *do.Injector) (*Orchestrator, error) {
	return New(do.MustInvoke[image.Generator](i)), nil
}

func check(key string, count int) error {
	if key == "" {
		return image.ErrMissingCredential
	}
	if count < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidCount, count)
	}
	return nil
}

// Generate issues count concurrent generations of req and waits for every one
// of them. Each call's outcome is kept in its own slot so partial success is
// visible to the caller.
func (o *Orchestrator) Generate(ctx context.Context, req image.Request, key string, count int) ([]Result, error) {
	if err := check(key, count); err != nil {
		return nil, err
	}

	logger := log.FromContextOrDiscard(ctx)
	log := logger.WithGroup("batch").With("model", req.Model, "count", count)
	log.Info("launching batch")

	results := lo.Times(count, func(i int) Result { return Result{Index: i + 1} })

	var group errgroup.Group
	for i := range results {
		slot := &results[i]
		group.Go(func() error {
			slot.Image, slot.Err = o.generator.Generate(withIndex(ctx, logger, slot.Index), req, key)
			return nil
		})
	}
	_ = group.Wait()

	failed := lo.CountBy(results, func(r Result) bool { return !r.OK() })
	log.Info("batch finished", "succeeded", count-failed, "failed", failed)
	return results, nil
}

// GenerateAll is the all-or-nothing join: it returns every image in submission
// order, or the first failure to arrive. Calls still in flight when a failure
// arrives are cancelled.
func (o *Orchestrator) GenerateAll(ctx context.Context, req image.Request, key string, count int) ([]image.Image, error) {
	if err := check(key, count); err != nil {
		return nil, err
	}

	logger := log.FromContextOrDiscard(ctx)
	log := logger.WithGroup("batch").With("model", req.Model, "count", count)
	log.Info("launching all-or-nothing batch")

	images := make([]image.Image, count)
	group, ctx := errgroup.WithContext(ctx)
	for i := range images {
		slot, index := &images[i], i+1
		group.Go(func() error {
			img, err := o.generator.Generate(withIndex(ctx, logger, index), req, key)
			if err != nil {
				return err
			}
			*slot = img
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		log.Warn("batch failed", "error", err)
		return nil, err
	}
	log.Info("batch finished")
	return images, nil
}
