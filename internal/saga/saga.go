// Package saga runs ordered steps across independent stores and undoes the
// completed ones when a later step fails.
//
// Compensations run in reverse order of completion. A compensation failure
// is not retried; Run reports it as a critical inconsistency so operators can
// reconcile the stores by hand.
package saga

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"euphony/internal/apperr"
	"euphony/internal/metrics"

	"github.com/sirupsen/logrus"
)

// Step is one unit of a saga. Compensate may be nil when the step has no
// effect of its own to undo.
type Step struct {
	Name       string
	Action     func(ctx context.Context) error
	Compensate func(ctx context.Context) error
}

// Failure describes a failed run: the step that failed, its error and any
// compensation errors keyed by step name.
type Failure struct {
	Saga             string
	Step             string
	Err              error
	CompensationErrs map[string]error
}

func (f *Failure) Error() string {
	if len(f.CompensationErrs) == 0 {
		return fmt.Sprintf("saga %s failed at step %s: %v", f.Saga, f.Step, f.Err)
	}
	parts := make([]string, 0, len(f.CompensationErrs))
	for step, err := range f.CompensationErrs {
		parts = append(parts, fmt.Sprintf("%s: %v", step, err))
	}
	return fmt.Sprintf("saga %s failed at step %s: %v; compensation failed (%s)",
		f.Saga, f.Step, f.Err, strings.Join(parts, "; "))
}

func (f *Failure) Unwrap() error { return f.Err }

// Compensated reports whether every compensation succeeded.
func (f *Failure) Compensated() bool { return len(f.CompensationErrs) == 0 }

// AsFailure extracts the *Failure from err.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// Saga is an ordered list of steps. It is not safe for concurrent use; build
// one per operation.
type Saga struct {
	name    string
	steps   []Step
	logger  *logrus.Entry
	metrics *metrics.Metrics
}

// New creates an empty saga.
func New(name string, logger *logrus.Entry, m *metrics.Metrics) *Saga {
	return &Saga{
		name:    name,
		logger:  logger.WithField("saga", name),
		metrics: m,
	}
}

// Step appends a step and returns the saga for chaining.
func (s *Saga) Step(step Step) *Saga {
	s.steps = append(s.steps, step)
	return s
}

// Run executes the steps in order.
//
// On success it returns nil. When a step fails, completed steps are
// compensated and a *Failure is returned. If any compensation fails the
// *Failure is wrapped in an apperr.KindCriticalInconsistency error.
func (s *Saga) Run(ctx context.Context) error {
	completed := make([]Step, 0, len(s.steps))

	for _, step := range s.steps {
		if err := step.Action(ctx); err != nil {
			s.logger.WithField("step", step.Name).WithError(err).Warn("saga step failed, compensating")
			failure := &Failure{Saga: s.name, Step: step.Name, Err: err}
			s.compensate(ctx, completed, failure)

			if !failure.Compensated() {
				s.metrics.SagaRun(s.name, "inconsistent")
				s.logger.WithField("step", step.Name).Error("saga left stores inconsistent")
				return apperr.Wrap(apperr.KindCriticalInconsistency, s.name,
					"critical failure: the operation failed and could not be rolled back", failure)
			}
			s.metrics.SagaRun(s.name, "compensated")
			return failure
		}
		completed = append(completed, step)
	}

	s.metrics.SagaRun(s.name, "success")
	return nil
}

func (s *Saga) compensate(ctx context.Context, completed []Step, failure *Failure) {
	// Compensation must still run when the request context is gone.
	ctx = context.WithoutCancel(ctx)

	for i := len(completed) - 1; i >= 0; i-- {
		step := completed[i]
		if step.Compensate == nil {
			continue
		}
		log := s.logger.WithField("step", step.Name)
		if err := step.Compensate(ctx); err != nil {
			if failure.CompensationErrs == nil {
				failure.CompensationErrs = make(map[string]error)
			}
			failure.CompensationErrs[step.Name] = err
			s.metrics.Compensation(s.name, step.Name, "failed")
			log.WithError(err).Error("compensation failed")
			continue
		}
		s.metrics.Compensation(s.name, step.Name, "success")
		log.Info("compensation applied")
	}
}
