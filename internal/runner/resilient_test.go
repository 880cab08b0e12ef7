package runner_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/pylab/internal/runner"
)

type stubExecutor struct {
	calls atomic.Int32
	run   func(ctx context.Context, code string) (*runner.Result, error)
}

func (s *stubExecutor) Run(ctx context.Context, code string) (*runner.Result, error) {
	s.calls.Add(1)
	return s.run(ctx, code)
}

func TestResilientExecutor_PassesResultThrough(t *testing.T) {
	stub := &stubExecutor{run: func(ctx context.Context, code string) (*runner.Result, error) {
		return &runner.Result{Success: true, Output: code}, nil
	}}
	e := runner.NewResilientExecutor(stub, runner.DefaultResilientConfig())

	res, err := e.Run(context.Background(), "print(1)")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "print(1)", res.Output)
}

func TestResilientExecutor_ScriptFailuresDoNotTrip(t *testing.T) {
	stub := &stubExecutor{run: func(ctx context.Context, code string) (*runner.Result, error) {
		return &runner.Result{Success: false, Error: "NameError"}, nil
	}}
	cfg := runner.DefaultResilientConfig()
	cfg.FailureThreshold = 2
	e := runner.NewResilientExecutor(stub, cfg)

	for i := 0; i < 5; i++ {
		res, err := e.Run(context.Background(), "x")
		require.NoError(t, err)
		assert.False(t, res.Success)
	}
	assert.Equal(t, int32(5), stub.calls.Load())
}

func TestResilientExecutor_OpensOnInfrastructureErrors(t *testing.T) {
	errDown := errors.New("docker not reachable")
	stub := &stubExecutor{run: func(ctx context.Context, code string) (*runner.Result, error) {
		return nil, errDown
	}}
	cfg := runner.DefaultResilientConfig()
	cfg.FailureThreshold = 2
	cfg.OpenTimeout = time.Minute
	e := runner.NewResilientExecutor(stub, cfg)

	for i := 0; i < 2; i++ {
		_, err := e.Run(context.Background(), "x")
		require.Error(t, err)
		assert.ErrorIs(t, err, errDown)
	}

	_, err := e.Run(context.Background(), "x")
	require.Error(t, err)
	assert.Equal(t, int32(2), stub.calls.Load(), "open circuit must not reach the executor")
}
