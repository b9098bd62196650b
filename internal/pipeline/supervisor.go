package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"mempoolScope/internal/observability"
)

type SupervisorOptions struct {
	// FailFast cancels the remaining tasks as soon as any task exits.
	FailFast bool
}

// TaskOutcome is the terminal result of one supervised task.
type TaskOutcome struct {
	Name string
	Err  error
}

// Supervisor runs named tasks under a shared context and collects how they ended.
// Tasks are not restarted.
type Supervisor struct {
	group   errgroup.Group
	ctx     context.Context
	cancel  context.CancelFunc
	opts    SupervisorOptions
	logger  *zap.Logger
	metrics *observability.Metrics

	mu       sync.Mutex
	outcomes []TaskOutcome
}

func NewSupervisor(ctx context.Context, opts SupervisorOptions, logger *zap.Logger, metrics *observability.Metrics) *Supervisor {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Supervisor{
		ctx:     ctx,
		cancel:  cancel,
		opts:    opts,
		logger:  logger,
		metrics: metrics,
	}
}

// Context is the context passed to every task.
func (s *Supervisor) Context() context.Context {
	return s.ctx
}

// Go starts fn as a task named name.
func (s *Supervisor) Go(name string, fn func(ctx context.Context) error) {
	s.group.Go(func() error {
		err := runTask(s.ctx, fn)
		s.record(name, err)
		if s.opts.FailFast {
			s.cancel()
		}
		return nil
	})
}

// Wait blocks until every task has exited and returns their joined errors.
// Cancellation is not reported as an error.
func (s *Supervisor) Wait() error {
	_ = s.group.Wait()
	s.cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	errs := make([]error, 0, len(s.outcomes))
	for _, outcome := range s.outcomes {
		if outcome.Err == nil || errors.Is(outcome.Err, context.Canceled) {
			continue
		}
		errs = append(errs, fmt.Errorf("%s: %w", outcome.Name, outcome.Err))
	}
	return errors.Join(errs...)
}

// Outcomes returns the outcomes recorded so far, in exit order.
func (s *Supervisor) Outcomes() []TaskOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TaskOutcome, len(s.outcomes))
	copy(out, s.outcomes)
	return out
}

func (s *Supervisor) record(name string, err error) {
	s.mu.Lock()
	s.outcomes = append(s.outcomes, TaskOutcome{Name: name, Err: err})
	s.mu.Unlock()

	switch {
	case err == nil:
		s.metrics.ObserveTaskExit(name, "ok")
		s.logger.Info("task exited", zap.String("task", name))
	case errors.Is(err, context.Canceled):
		s.metrics.ObserveTaskExit(name, "canceled")
		s.logger.Info("task canceled", zap.String("task", name))
	default:
		s.metrics.ObserveTaskExit(name, "error")
		s.logger.Error("task failed", zap.String("task", name), zap.Error(err))
	}
}

func runTask(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return fn(ctx)
}
