package saga_test

import (
	"context"
	"errors"
	"testing"

	"euphony/internal/apperr"
	"euphony/internal/logging"
	"euphony/internal/metrics"
	"euphony/internal/saga"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	calls []string
}

func (r *recorder) step(name string, actionErr, compErr error) saga.Step {
	return saga.Step{
		Name: name,
		Action: func(ctx context.Context) error {
			r.calls = append(r.calls, "do:"+name)
			return actionErr
		},
		Compensate: func(ctx context.Context) error {
			r.calls = append(r.calls, "undo:"+name)
			return compErr
		},
	}
}

func newSaga(name string) *saga.Saga {
	return saga.New(name, logging.Component(logging.Discard(), "test"), metrics.New())
}

func TestRun_AllStepsSucceed(t *testing.T) {
	rec := &recorder{}
	err := newSaga("ok").
		Step(rec.step("a", nil, nil)).
		Step(rec.step("b", nil, nil)).
		Run(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, []string{"do:a", "do:b"}, rec.calls)
}

func TestRun_CompensatesInReverseOrder(t *testing.T) {
	rec := &recorder{}
	boom := errors.New("boom")

	err := newSaga("reverse").
		Step(rec.step("a", nil, nil)).
		Step(rec.step("b", nil, nil)).
		Step(rec.step("c", boom, nil)).
		Run(context.Background())

	require.Error(t, err)
	assert.Equal(t, []string{"do:a", "do:b", "do:c", "undo:b", "undo:a"}, rec.calls)

	failure, ok := saga.AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, "c", failure.Step)
	assert.True(t, failure.Compensated())
	assert.ErrorIs(t, err, boom)
	assert.False(t, apperr.Is(err, apperr.KindCriticalInconsistency))
}

func TestRun_SkipsNilCompensation(t *testing.T) {
	rec := &recorder{}
	noUndo := saga.Step{Name: "b", Action: func(ctx context.Context) error {
		rec.calls = append(rec.calls, "do:b")
		return nil
	}}

	err := newSaga("nil-comp").
		Step(rec.step("a", nil, nil)).
		Step(noUndo).
		Step(rec.step("c", errors.New("boom"), nil)).
		Run(context.Background())

	require.Error(t, err)
	assert.Equal(t, []string{"do:a", "do:b", "do:c", "undo:a"}, rec.calls)
}

func TestRun_CompensationFailureIsCritical(t *testing.T) {
	rec := &recorder{}
	undoErr := errors.New("provider unreachable")

	err := newSaga("critical").
		Step(rec.step("a", nil, undoErr)).
		Step(rec.step("b", nil, nil)).
		Step(rec.step("c", errors.New("db down"), nil)).
		Run(context.Background())

	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindCriticalInconsistency))
	// Later compensations still run after an earlier one fails.
	assert.Equal(t, []string{"do:a", "do:b", "do:c", "undo:b", "undo:a"}, rec.calls)

	failure, ok := saga.AsFailure(err)
	require.True(t, ok)
	assert.False(t, failure.Compensated())
	assert.ErrorIs(t, failure.CompensationErrs["a"], undoErr)
}

func TestRun_CompensationSurvivesCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var compCtxErr error

	err := newSaga("cancel").
		Step(saga.Step{
			Name:   "a",
			Action: func(ctx context.Context) error { return nil },
			Compensate: func(ctx context.Context) error {
				compCtxErr = ctx.Err()
				return nil
			},
		}).
		Step(saga.Step{
			Name: "b",
			Action: func(ctx context.Context) error {
				cancel()
				return ctx.Err()
			},
		}).
		Run(ctx)

	require.Error(t, err)
	assert.NoError(t, compCtxErr)
}
