package provider

import (
	"errors"
	"sync"
)

// ErrWorkerStopped is returned when work is submitted after Stop.
var ErrWorkerStopped = errors.New("provider: render worker stopped")

// Worker executes raster jobs on a background goroutine, one at a time.
// Decoders are rarely reentrant, so serializing here keeps page handles
// simple; the request-channel shape mirrors a classic rasterizer actor.
type Worker struct {
	jobs chan func()
	quit chan struct{}
	wg   sync.WaitGroup

	mu      sync.Mutex
	stopped bool
}

// NewWorker starts a worker with the given queue depth.
func NewWorker(queueDepth int) *Worker {
	if queueDepth <= 0 {
		queueDepth = 16
	}
	w := &Worker{
		jobs: make(chan func(), queueDepth),
		quit: make(chan struct{}),
	}
	w.wg.Add(1)
	go w.loop()
	return w
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.quit:
			// Drain whatever is already queued so submitted tasks
			// still resolve.
			for {
				select {
				case job := <-w.jobs:
					job()
				default:
					return
				}
			}
		case job := <-w.jobs:
			job()
		}
	}
}

// Submit enqueues a job. It blocks when the queue is full.
func (w *Worker) Submit(job func()) error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return ErrWorkerStopped
	}
	w.mu.Unlock()

	select {
	case w.jobs <- job:
		return nil
	case <-w.quit:
		return ErrWorkerStopped
	}
}

// Stop terminates the worker after draining queued jobs.
func (w *Worker) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	w.mu.Unlock()

	close(w.quit)
	w.wg.Wait()
}
