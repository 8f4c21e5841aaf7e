package mapsession

import (
	"context"

	"land-portal/land-portal-backend/pkg/geospatial"
)

// Locator resolves the user's position, e.g. from a browser geolocation fix
// relayed by the client
type Locator interface {
	Locate(ctx context.Context) (geospatial.LatLng, error)
}

// LocatorFunc adapts a function to Locator
type LocatorFunc func(ctx context.Context) (geospatial.LatLng, error)

func (f LocatorFunc) Locate(ctx context.Context) (geospatial.LatLng, error) { return f(ctx) }

// Task is a pending async lookup. Cancelling it, or tearing the session
// down, discards its result.
type Task struct {
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Cancel discards the task
func (t *Task) Cancel() { t.cancel() }

// Done is closed once the task has finished or been discarded
func (t *Task) Done() <-chan struct{} { return t.done }

// Err is the lookup error, valid after Done is closed
func (t *Task) Err() error { return t.err }

// Locate starts a position lookup. While it runs the session reports Loading.
// On success the viewport recenters on the position at DefaultLocateZoom.
func (s *Session) Locate(ctx context.Context, locator Locator) (*Task, error) {
	s.mu.Lock()
	if !s.initialized {
		s.mu.Unlock()
		return nil, ErrNotInitialized
	}
	taskCtx, cancel := context.WithTimeout(ctx, s.opts.LocateTimeout)
	task := &Task{ctx: taskCtx, cancel: cancel, done: make(chan struct{})}
	s.pending[task] = struct{}{}
	view := s.viewLocked()
	s.mu.Unlock()

	s.render(view)

	go func() {
		pos, err := locator.Locate(taskCtx)
		s.finishLocate(task, pos, err)
	}()

	return task, nil
}

func (s *Session) finishLocate(task *Task, pos geospatial.LatLng, err error) {
	defer close(task.done)
	defer task.cancel()

	s.mu.Lock()
	if _, live := s.pending[task]; !live || !s.initialized {
		s.mu.Unlock()
		task.err = context.Canceled
		return
	}
	if ctxErr := task.ctx.Err(); ctxErr != nil && err == nil {
		err = ctxErr
	}
	delete(s.pending, task)
	task.err = err
	if err == nil {
		s.center = pos
		s.zoom = s.clampZoom(DefaultLocateZoom)
	}
	view := s.viewLocked()
	s.mu.Unlock()

	s.render(view)
}
