package batch

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmorgan81/imagestudio/internal/image"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGenerator numbers its calls from 1 and lets each test decide the
// outcome of every call.
type fakeGenerator struct {
	calls   atomic.Int32
	outcome func(ctx context.Context, call int) (image.Image, error)
}

func (g *fakeGenerator) Generate(ctx context.Context, _ image.Request, _ string) (image.Image, error) {
	return g.outcome(ctx, int(g.calls.Add(1)))
}

var req = image.Request{
	Prompt:     "a lighthouse at dusk",
	Model:      "black-forest-labs/FLUX.1-schnell",
	Dimensions: image.Dimensions{Width: 1024, Height: 1024},
}

var loading = &image.RequestError{
	StatusCode: http.StatusServiceUnavailable,
	Message:    "Model is loading. Please wait 1-2 minutes and try again.",
}

// succeedReversed answers with the slot index the call was issued for, the
// last slot finishing first.
func succeedReversed(count int) func(context.Context, int) (image.Image, error) {
	return func(ctx context.Context, _ int) (image.Image, error) {
		index, ok := IndexFromContext(ctx)
		if !ok {
			return image.Image{}, errors.New("call without index")
		}
		time.Sleep(time.Duration(count-index) * 20 * time.Millisecond)
		return image.Image{Data: []byte(strconv.Itoa(index)), ContentType: "image/png"}, nil
	}
}

func TestGenerateAllSucceed(t *testing.T) {
	gen := &fakeGenerator{outcome: succeedReversed(3)}

	results, err := New(gen).Generate(context.Background(), req, "hf_secret", 3)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, []int{1, 2, 3}, lo.Map(results, func(r Result, _ int) int { return r.Index }))
	assert.True(t, lo.EveryBy(results, Result.OK))
	assert.Equal(t, []string{"1", "2", "3"}, lo.Map(results, func(r Result, _ int) string { return string(r.Image.Data) }))
	assert.NoError(t, FirstError(results))
}

func TestGenerateKeepsPartialSuccess(t *testing.T) {
	gen := &fakeGenerator{outcome: func(_ context.Context, call int) (image.Image, error) {
		if call == 2 {
			return image.Image{}, loading
		}
		return image.Image{Data: []byte("ok")}, nil
	}}

	results, err := New(gen).Generate(context.Background(), req, "hf_secret", 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Len(t, Succeeded(results), 2)
	assert.Equal(t, int32(3), gen.calls.Load())

	var reqErr *image.RequestError
	require.ErrorAs(t, FirstError(results), &reqErr)
	assert.Equal(t, http.StatusServiceUnavailable, reqErr.StatusCode)
}

func TestGenerateAllOrNothingSucceeds(t *testing.T) {
	gen := &fakeGenerator{outcome: succeedReversed(3)}

	images, err := New(gen).GenerateAll(context.Background(), req, "hf_secret", 3)
	require.NoError(t, err)
	require.Len(t, images, 3)
	assert.Equal(t, []string{"1", "2", "3"}, lo.Map(images, func(img image.Image, _ int) string { return string(img.Data) }))
}

func TestGenerateAllOrNothingSurfacesSingleFailure(t *testing.T) {
	gen := &fakeGenerator{outcome: func(ctx context.Context, call int) (image.Image, error) {
		if call == 2 {
			return image.Image{}, loading
		}
		select {
		case <-ctx.Done():
			return image.Image{}, ctx.Err()
		case <-time.After(50 * time.Millisecond):
			return image.Image{Data: []byte("ok")}, nil
		}
	}}

	images, err := New(gen).GenerateAll(context.Background(), req, "hf_secret", 3)
	assert.Nil(t, images)
	require.Error(t, err)
	assert.Equal(t, "Model is loading. Please wait 1-2 minutes and try again.", err.Error())
}

func TestMissingCredentialIssuesNoCalls(t *testing.T) {
	gen := &fakeGenerator{outcome: succeedReversed(1)}
	o := New(gen)

	_, err := o.Generate(context.Background(), req, "", 3)
	require.ErrorIs(t, err, image.ErrMissingCredential)

	_, err = o.GenerateAll(context.Background(), req, "", 3)
	require.ErrorIs(t, err, image.ErrMissingCredential)

	assert.Zero(t, gen.calls.Load())
}

func TestInvalidCount(t *testing.T) {
	gen := &fakeGenerator{outcome: succeedReversed(1)}

	_, err := New(gen).Generate(context.Background(), req, "hf_secret", 0)
	require.ErrorIs(t, err, ErrInvalidCount)
	assert.Zero(t, gen.calls.Load())
}

func TestIndexFromContext(t *testing.T) {
	_, ok := IndexFromContext(context.Background())
	assert.False(t, ok)

	index, ok := IndexFromContext(withIndex(context.Background(), slog.Default(), 4))
	assert.True(t, ok)
	assert.Equal(t, 4, index)
}
