// Package saga runs multi-entity fan-out sequences as named, ordered steps.
//
// The store offers no cross-collection transactions, so operations like
// disbanding a group or accepting an invitation are expressed as sagas:
// each step is an idempotent remote mutation, steps run strictly in order,
// and a failure mid-sequence surfaces which steps already committed. The
// retry contract is whole-saga re-invocation; idempotent steps make the
// replay safe.
package saga

import (
	"context"

	"go.uber.org/zap"

	"github.com/squadup/squadup/internal/apperrors"
)

// Step is one named, idempotent mutation in a saga.
type Step struct {
	Name string
	Run  func(ctx context.Context) error
}

// Saga is an ordered sequence of steps executed as one logical operation.
type Saga struct {
	Name  string
	Steps []Step
}

// Runner executes sagas and logs step progress.
type Runner struct {
	log *zap.Logger
}

// NewRunner creates a saga runner. A nil logger disables logging.
func NewRunner(log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{log: log}
}

// Run executes the saga's steps in order. On failure it returns a
// *apperrors.PartialFailureError naming the failed step and every step that
// committed before it; the caller may re-run the whole saga.
func (r *Runner) Run(ctx context.Context, s Saga) error {
	completed := make([]string, 0, len(s.Steps))
	for _, step := range s.Steps {
		if err := ctx.Err(); err != nil {
			return &apperrors.PartialFailureError{Saga: s.Name, Step: step.Name, Completed: completed, Err: err}
		}
		if err := step.Run(ctx); err != nil {
			r.log.Error("saga step failed",
				zap.String("saga", s.Name),
				zap.String("step", step.Name),
				zap.Strings("completed", completed),
				zap.Error(err))
			return &apperrors.PartialFailureError{Saga: s.Name, Step: step.Name, Completed: completed, Err: err}
		}
		r.log.Debug("saga step done", zap.String("saga", s.Name), zap.String("step", step.Name))
		completed = append(completed, step.Name)
	}
	return nil
}
