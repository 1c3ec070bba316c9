package shell

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"

	"gorepl/internal/logger"
)

// ExitHooks runs registered cleanup functions exactly once, either when the
// program exits normally or when a watched signal arrives.
type ExitHooks struct {
	mu    sync.Mutex
	hooks []exitHook
	once  sync.Once
	err   error
}

type exitHook struct {
	name string
	run  func() error
}

// Add registers a hook. Hooks run in registration order.
func (h *ExitHooks) Add(name string, run func() error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hooks = append(h.hooks, exitHook{name: name, run: run})
}

// Run runs every hook the first time it is called and returns their joined
// errors. Later calls return the same error without running anything.
func (h *ExitHooks) Run() error {
	h.once.Do(func() {
		h.mu.Lock()
		hooks := append([]exitHook(nil), h.hooks...)
		h.mu.Unlock()

		var errs []error
		for _, hook := range hooks {
			if err := hook.run(); err != nil {
				logger.Error("Exit hook failed", "hook", hook.name, "error", err)
				errs = append(errs, fmt.Errorf("%s: %w", hook.name, err))
			}
		}
		h.err = errors.Join(errs...)
	})
	return h.err
}

// Watch runs the hooks when one of signals arrives. The returned context is
// cancelled on a signal; stop releases the watcher without running the hooks.
func (h *ExitHooks) Watch(parent context.Context, signals ...os.Signal) (ctx context.Context, stop func()) {
	ctx, cancel := signal.NotifyContext(parent, signals...)
	stopped := make(chan struct{})
	finished := make(chan struct{})

	go func() {
		defer close(finished)
		select {
		case <-stopped:
			return
		case <-ctx.Done():
		}
		select {
		case <-stopped:
			return
		default:
		}
		if parent.Err() == nil {
			logger.Debug("Signal received, running exit hooks")
			_ = h.Run()
		}
	}()

	var stopOnce sync.Once
	return ctx, func() {
		stopOnce.Do(func() {
			close(stopped)
			cancel()
			<-finished
		})
	}
}
