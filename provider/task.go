package provider

import (
	"context"
	"errors"
	"image"
	"sync"
)

// ErrRenderCancelled is the distinguished cancellation sentinel. Callers
// recognize it with IsCancelled and swallow it; it is never user-visible.
var ErrRenderCancelled = errors.New("provider: render cancelled")

// IsCancelled reports whether err is the cancellation sentinel.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrRenderCancelled) || errors.Is(err, context.Canceled)
}

// RenderTask is an in-flight rasterization handle. It completes exactly
// once: either with an image, an error, or the cancellation sentinel.
// Cancel is idempotent and safe to call from any goroutine.
type RenderTask struct {
	ctx    context.Context
	cancel context.CancelFunc

	once sync.Once
	done chan struct{}
	img  image.Image
	err  error
}

// newRenderTask derives a cancellable task from parent.
func newRenderTask(parent context.Context) *RenderTask {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	return &RenderTask{
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// complete resolves the task. Later calls are no-ops.
func (t *RenderTask) complete(img image.Image, err error) {
	t.once.Do(func() {
		if err == nil && t.ctx.Err() != nil {
			img, err = nil, ErrRenderCancelled
		}
		t.img, t.err = img, err
		close(t.done)
	})
	t.cancel()
}

// Cancel aborts the task. If the raster has not completed, the task resolves
// with ErrRenderCancelled. Cancelling a finished task is a no-op.
func (t *RenderTask) Cancel() {
	t.cancel()
	t.once.Do(func() {
		t.err = ErrRenderCancelled
		close(t.done)
	})
}

// Cancelled reports whether cancellation has been requested. Raster
// backends poll this at their suspension points.
func (t *RenderTask) Cancelled() bool {
	return t.ctx.Err() != nil
}

// Done returns a channel closed when the task resolves.
func (t *RenderTask) Done() <-chan struct{} { return t.done }

// Wait blocks until the task resolves or ctx expires.
func (t *RenderTask) Wait(ctx context.Context) (image.Image, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-t.done:
		return t.img, t.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Err returns the task error after Done is closed; before that it returns
// nil regardless of outcome.
func (t *RenderTask) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}
