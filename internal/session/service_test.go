package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/felixgeelhaar/pylab/internal/domain"
	"github.com/felixgeelhaar/pylab/internal/mission"
	"github.com/felixgeelhaar/pylab/internal/progress"
	"github.com/felixgeelhaar/pylab/internal/runner"
	"github.com/felixgeelhaar/pylab/internal/storage/local"
	"github.com/felixgeelhaar/pylab/internal/validator"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// mockExecutor implements runner.Executor for testing
type mockExecutor struct {
	result *runner.Result
	err    error

	// block, when set, holds Run until it is closed
	block   chan struct{}
	started chan struct{}
}

func (m *mockExecutor) Run(ctx context.Context, code string) (*runner.Result, error) {
	if m.started != nil {
		m.started <- struct{}{}
	}
	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	res := *m.result
	return &res, nil
}

const worldAt400 = "World created: 800x600, gravity=0\n" +
	"__WORLD_STATE__\n" +
	`{"width": 800, "height": 600, "gravity": 0, "boundaries": true, "bodies": [` +
	`{"type": "Ball", "x": 400, "y": 300, "radius": 20, "color": "blue", "vx": 0, "vy": 0, "fixed": false}, ` +
	`{"type": "Ball", "x": 400, "y": 300, "radius": 30, "color": "green", "vx": 0, "vy": 0, "fixed": true}]}` + "\n" +
	"__END_WORLD_STATE__\n"

type testEnv struct {
	svc      *Service
	progress *progress.Service
	registry *mission.Registry
}

func setupTestService(t *testing.T, exec runner.Executor) testEnv {
	t.Helper()

	registry, err := mission.NewBuiltinRegistry()
	require.NoError(t, err)

	base, err := local.NewStore(t.TempDir())
	require.NoError(t, err)

	prog := progress.NewService(local.NewProgressStore(base), registry)
	svc := NewService(NewStoreFrom(base), registry, exec, prog, nil)
	return testEnv{svc: svc, progress: prog, registry: registry}
}

func TestService_Open(t *testing.T) {
	env := setupTestService(t, nil)
	ctx := context.Background()

	s, err := env.svc.Open(ctx, "1_1")
	require.NoError(t, err)

	m, _ := env.registry.Get("1_1")
	assert.Equal(t, m.StarterCode, s.Code)
	assert.Equal(t, StatusActive, s.Status)

	got, err := env.svc.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)

	_, err = env.svc.Open(ctx, "no-such-mission")
	assert.ErrorIs(t, err, domain.ErrMissionNotFound)
}

func TestService_GetDeleteNotFound(t *testing.T) {
	env := setupTestService(t, nil)
	ctx := context.Background()

	_, err := env.svc.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, env.svc.Delete(ctx, "missing"), ErrSessionNotFound)

	s, _ := env.svc.Open(ctx, "1_1")
	require.NoError(t, env.svc.Delete(ctx, s.ID))
	_, err = env.svc.Get(ctx, s.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestService_SetCodeAndReset(t *testing.T) {
	env := setupTestService(t, nil)
	ctx := context.Background()

	s, _ := env.svc.Open(ctx, "1_1")
	_, _, err := env.svc.NextHint(ctx, s.ID)
	require.NoError(t, err)

	updated, err := env.svc.SetCode(ctx, s.ID, "x = 400\n")
	require.NoError(t, err)
	assert.Equal(t, "x = 400\n", updated.Code)

	reset, err := env.svc.Reset(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.Code, reset.Code)
	assert.Equal(t, 0, reset.HintLevel)
	assert.False(t, reset.ShowHints)
}

func TestService_NextHint(t *testing.T) {
	env := setupTestService(t, nil)
	ctx := context.Background()

	s, _ := env.svc.Open(ctx, "1_1")
	m, _ := env.registry.Get("1_1")

	var levels []int
	var last domain.Hint
	for i := 0; i < len(m.Hints)+2; i++ {
		sess, hint, err := env.svc.NextHint(ctx, s.ID)
		require.NoError(t, err)
		levels = append(levels, sess.HintLevel)
		last = hint
	}

	assert.Equal(t, []int{1, 2, 2, 2, 2}, levels)
	assert.Equal(t, m.Hints[len(m.Hints)-1].Text, last.Text)
}

func TestService_RunPasses(t *testing.T) {
	exec := &mockExecutor{result: &runner.Result{Success: true, Output: worldAt400}}
	env := setupTestService(t, exec)
	ctx := context.Background()

	s, _ := env.svc.Open(ctx, "1_1")
	report, err := env.svc.Run(ctx, s.ID, "x = 400\ny = 300\n")
	require.NoError(t, err)

	assert.True(t, report.Validation.Passed)
	assert.Equal(t, domain.ScoreThree, report.Validation.Score)
	require.NotNil(t, report.Progress)
	assert.True(t, report.Progress.Completed)
	assert.Equal(t, domain.ScoreThree, report.Progress.Score)
	assert.Equal(t, "1_2", report.NextID)
	assert.NotEmpty(t, report.Stars)

	assert.Equal(t, StatusCompleted, report.Session.Status)
	assert.Equal(t, 1, report.Session.RunCount)
	assert.Equal(t, "x = 400\ny = 300\n", report.Session.Code)
	require.NotNil(t, report.Session.Visualization.World)
	assert.Equal(t, []string{"World created: 800x600, gravity=0"}, report.Session.ConsoleText())

	rec, ok, err := env.progress.GetMissionProgress(ctx, "1_1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, domain.ScoreThree, rec.Score)
}

func TestService_RunUsesSessionCode(t *testing.T) {
	exec := &mockExecutor{result: &runner.Result{Success: true, Output: worldAt400}}
	env := setupTestService(t, exec)
	ctx := context.Background()

	s, _ := env.svc.Open(ctx, "1_1")
	report, err := env.svc.Run(ctx, s.ID, "")
	require.NoError(t, err)

	// the starter code still holds the ___ placeholder
	assert.Equal(t, s.Code, report.Session.Code)
}

func TestService_ScriptErrorStillValidates(t *testing.T) {
	exec := &mockExecutor{result: &runner.Result{
		Success: false,
		Output:  worldAt400,
		Error:   "NameError: name 'x' is not defined",
	}}
	env := setupTestService(t, exec)
	ctx := context.Background()

	s, _ := env.svc.Open(ctx, "1_1")
	report, err := env.svc.Run(ctx, s.ID, "print(x)\n")
	require.NoError(t, err)

	assert.False(t, report.Validation.Passed)
	assert.Equal(t, domain.ScoreNone, report.Validation.Score)
	assert.Nil(t, report.Progress)
	assert.True(t, report.Session.Visualization.Empty())

	last := report.Console[len(report.Console)-1]
	assert.Equal(t, LineError, last.Kind)
	assert.Contains(t, last.Text, "NameError")

	_, ok, _ := env.progress.GetMissionProgress(ctx, "1_1")
	assert.False(t, ok, "failed run must not be persisted")
}

func TestService_InfrastructureErrorBecomesFailedRun(t *testing.T) {
	exec := &mockExecutor{err: errors.New("docker not reachable")}
	env := setupTestService(t, exec)
	ctx := context.Background()

	s, _ := env.svc.Open(ctx, "1_1")
	report, err := env.svc.Run(ctx, s.ID, "x = 1\n")
	require.NoError(t, err)

	assert.False(t, report.Run.Success)
	assert.Equal(t, "docker not reachable", report.Run.Error)
	assert.False(t, report.Validation.Passed)
	m, _ := env.registry.Get("1_1")
	pm := m.Checks[0].(domain.PositionMatch)
	assert.Equal(t, []string{pm.NoState}, report.Validation.Errors)
}

func TestService_RunRejectsConcurrentRun(t *testing.T) {
	exec := &mockExecutor{
		result:  &runner.Result{Success: true, Output: worldAt400},
		block:   make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	env := setupTestService(t, exec)
	ctx := context.Background()

	s, _ := env.svc.Open(ctx, "1_1")

	var wg sync.WaitGroup
	wg.Add(1)
	var firstErr error
	go func() {
		defer wg.Done()
		_, firstErr = env.svc.Run(ctx, s.ID, "x = 400\n")
	}()

	select {
	case <-exec.started:
	case <-time.After(5 * time.Second):
		t.Fatal("first run never started")
	}
	assert.True(t, env.svc.Running(s.ID))

	_, err := env.svc.Run(ctx, s.ID, "x = 400\n")
	assert.ErrorIs(t, err, ErrRunInProgress)

	close(exec.block)
	wg.Wait()
	require.NoError(t, firstErr)
	assert.False(t, env.svc.Running(s.ID))
}

func TestService_RunWithoutExecutor(t *testing.T) {
	env := setupTestService(t, nil)
	s, _ := env.svc.Open(context.Background(), "1_1")

	_, err := env.svc.Run(context.Background(), s.ID, "x")
	assert.ErrorIs(t, err, ErrNoExecutor)
}

func TestService_SubmitCanvasMission(t *testing.T) {
	env := setupTestService(t, nil)
	ctx := context.Background()

	s, err := env.svc.Open(ctx, "5-1-3")
	require.NoError(t, err)

	output := "__MATH_CANVAS_STATE__\n" +
		`{"type": "MATH_CANVAS", "settings": {"x_range": [-6, 6], "y_range": [-6, 10], "grid": true}, ` +
		`"functions": [{"expression": "2*x + 4", "points": [[-6, -8], [0, 4], [6, 16]], "color": "blue", "name": "route", "style": "solid"}], ` +
		`"points": [{"x": 0.1, "y": 4, "label": "b", "color": "red"}], "lines": [], "shapes": [], "annotations": []}` + "\n" +
		"__END_MATH_CANVAS_STATE__\n"

	report, err := env.svc.Submit(ctx, s.ID, "canvas.point(0.1, 4, label=\"b\")\n", runner.Result{Success: true, Output: output})
	require.NoError(t, err)

	assert.True(t, report.Validation.Passed, report.Validation.Errors)
	// 0.1 from the intercept: inside tolerance 0.5, outside the 0.01 and 0.2 bands
	assert.Equal(t, domain.ScoreTwo, report.Validation.Score)
	assert.Empty(t, report.Console)
	require.NotNil(t, report.Session.Visualization.Canvas)
}

func TestService_ProgressKeepsBestScore(t *testing.T) {
	env := setupTestService(t, nil)
	ctx := context.Background()

	s, _ := env.svc.Open(ctx, "1_1")

	_, err := env.svc.Submit(ctx, s.ID, "x", runner.Result{Success: true, Output: worldAt400})
	require.NoError(t, err)

	// ball 30px off target: passes with one star
	off := "__WORLD_STATE__\n" +
		`{"width": 800, "height": 600, "gravity": 0, "boundaries": true, "bodies": [{"type": "Ball", "x": 430, "y": 300}]}` + "\n" +
		"__END_WORLD_STATE__\n"
	report, err := env.svc.Submit(ctx, s.ID, "x", runner.Result{Success: true, Output: off})
	require.NoError(t, err)

	assert.Equal(t, domain.ScoreOne, report.Validation.Score)
	require.NotNil(t, report.Progress)
	assert.Equal(t, domain.ScoreThree, report.Progress.Score)
}

func TestService_MatchesStatelessValidation(t *testing.T) {
	env := setupTestService(t, nil)
	ctx := context.Background()

	s, _ := env.svc.Open(ctx, "1_1")
	report, err := env.svc.Submit(ctx, s.ID, "x", runner.Result{Success: true, Output: worldAt400})
	require.NoError(t, err)

	m, _ := env.registry.Get("1_1")
	want := validator.Validate(m, "x", report.Session.ConsoleText(), report.Session.Visualization)
	assert.Equal(t, want, report.Validation)
}
