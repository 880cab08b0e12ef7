package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/pylab/internal/domain"
)

func positionMission(tolerance float64, bands domain.StarBands) *domain.Mission {
	return &domain.Mission{
		ID:     "1_1",
		Module: 1,
		Checks: []domain.Check{
			domain.PositionMatch{
				Messages:  domain.Messages{Success: "Ball on target!", Fail: "Ball missed the target."},
				TargetX:   400,
				TargetY:   300,
				Tolerance: tolerance,
				Stars:     bands,
				NoState:   "Run the simulation first.",
			},
		},
	}
}

func worldWithBall(x, y float64) domain.Visualization {
	return domain.Visualization{World: &domain.WorldState{
		Width: 800, Height: 600,
		Bodies: []domain.Body{
			{Type: domain.BodyPlatform, X: 0, Y: 580, Width: 800, Height: 20, Fixed: true},
			{Type: domain.BodyBall, X: x, Y: y, Radius: 20},
		},
	}}
}

func TestNewValidator(t *testing.T) {
	v := NewValidator()
	if v == nil {
		t.Fatal("NewValidator() returned nil")
	}
}

func TestValidate_PositionMatch(t *testing.T) {
	tests := []struct {
		name       string
		x, y       float64
		wantPassed bool
		wantScore  domain.Score
	}{
		{"exact hit", 400, 300, true, domain.ScoreThree},
		{"within default three band", 403, 304, true, domain.ScoreThree},
		{"close miss scores two", 430, 320, true, domain.ScoreTwo},
		{"on tolerance boundary", 450, 300, true, domain.ScoreTwo},
		{"just outside tolerance", 450.0001, 300, false, domain.ScoreNone},
		{"far away", 460, 300, false, domain.ScoreNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Validate(positionMission(50, domain.StarBands{}), "", nil, worldWithBall(tt.x, tt.y))

			assert.Equal(t, tt.wantPassed, got.Passed)
			assert.Equal(t, tt.wantScore, got.Score)
			if tt.wantPassed {
				assert.Equal(t, []string{"Ball on target!"}, got.Feedback)
				assert.Empty(t, got.Errors)
			} else {
				assert.Equal(t, []string{"Ball missed the target."}, got.Errors)
				assert.Empty(t, got.Feedback)
			}
		})
	}
}

func TestValidate_PositionMatchDeclaredBands(t *testing.T) {
	bands := domain.StarBands{Three: 5, Two: 20}

	tests := []struct {
		x, y float64
		want domain.Score
	}{
		{400, 300, domain.ScoreThree},
		{410, 300, domain.ScoreTwo},
		{430, 320, domain.ScoreOne},
	}

	for _, tt := range tests {
		got := Validate(positionMission(50, bands), "", nil, worldWithBall(tt.x, tt.y))
		require.True(t, got.Passed)
		assert.Equal(t, tt.want, got.Score, "ball at (%v, %v)", tt.x, tt.y)
	}
}

func TestValidate_NoStateIsDistinct(t *testing.T) {
	m := positionMission(50, domain.StarBands{})

	noState := Validate(m, "", nil, domain.Visualization{})
	wrong := Validate(m, "", nil, worldWithBall(600, 100))

	require.False(t, noState.Passed)
	require.False(t, wrong.Passed)
	assert.Equal(t, domain.ScoreNone, noState.Score)
	assert.Equal(t, []string{"Run the simulation first."}, noState.Errors)
	assert.NotEqual(t, noState.Errors, wrong.Errors)
}

func TestValidate_NoStateFallbacks(t *testing.T) {
	m := &domain.Mission{Checks: []domain.Check{
		domain.PositionMatch{Messages: domain.Messages{Success: "ok", Fail: "missed"}, Tolerance: 10},
		domain.FunctionPlotted{Messages: domain.Messages{Success: "ok", Fail: "no plot"}},
	}}

	got := Validate(m, "", nil, domain.Visualization{})

	assert.Equal(t, []string{MsgNoWorldState, MsgNoCanvasState}, got.Errors)

	fixedOnly := domain.Visualization{World: &domain.WorldState{Bodies: []domain.Body{
		{Type: domain.BodyPlatform, Fixed: true},
	}}}
	got = Validate(m, "", nil, fixedOnly)
	assert.Equal(t, MsgNoMovableBody, got.Errors[0])
}

func TestValidate_UnknownCheck(t *testing.T) {
	m := &domain.Mission{Checks: []domain.Check{
		domain.CodeContains{Messages: domain.Messages{Success: "uses world", Fail: "no world"}, Text: "World("},
		domain.UnknownCheck{Type: "teleport", Messages: domain.Messages{Success: "s", Fail: "f"}},
		domain.CodeAbsent{Messages: domain.Messages{Success: "filled in", Fail: "placeholders left"}, Text: "___"},
	}}

	var got domain.ValidationResult
	require.NotPanics(t, func() {
		got = Validate(m, "world = World()\n", nil, domain.Visualization{})
	})

	assert.False(t, got.Passed)
	assert.Equal(t, domain.ScoreNone, got.Score)
	assert.Equal(t, []string{`unknown check type "teleport"`}, got.Errors)
	assert.Equal(t, []string{"uses world", "filled in"}, got.Feedback)
}

func TestValidate_NilCheck(t *testing.T) {
	m := &domain.Mission{Checks: []domain.Check{nil}}

	got := Validate(m, "", nil, domain.Visualization{})

	assert.False(t, got.Passed)
	assert.Len(t, got.Errors, 1)
}

func TestValidate_CodeAndOutputChecks(t *testing.T) {
	msgs := func(name string) domain.Messages {
		return domain.Messages{Success: name + " ok", Fail: name + " failed"}
	}
	source := "from physicslab import World, Ball\nball.launch(45, 10)\n"
	console := []string{"Simulation started!", "Total bodies: 2"}

	tests := []struct {
		name  string
		check domain.Check
		pass  bool
	}{
		{"contains hit", domain.CodeContains{Messages: msgs("c"), Text: "launch("}, true},
		{"contains miss", domain.CodeContains{Messages: msgs("c"), Text: "Platform"}, false},
		{"absent hit", domain.CodeAbsent{Messages: msgs("a"), Text: "___"}, true},
		{"absent miss", domain.CodeAbsent{Messages: msgs("a"), Text: "import"}, false},
		{"matches hit", domain.CodeMatches{Messages: msgs("m"), Pattern: `launch\(\s*\d+\s*,`}, true},
		{"matches miss", domain.CodeMatches{Messages: msgs("m"), Pattern: `^import math$`}, false},
		{"output hit", domain.OutputContains{Messages: msgs("o"), Text: "Total bodies"}, true},
		{"output miss", domain.OutputContains{Messages: msgs("o"), Text: "Error"}, false},
		{"output regex hit", domain.OutputMatches{Messages: msgs("r"), Pattern: `(?m)^Total bodies: [1-9]$`}, true},
		{"output regex miss", domain.OutputMatches{Messages: msgs("r"), Pattern: `bodies: 0`}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &domain.Mission{Checks: []domain.Check{tt.check}}
			got := Validate(m, source, console, domain.Visualization{})

			assert.Equal(t, tt.pass, got.Passed)
			if tt.pass {
				assert.Equal(t, domain.ScoreThree, got.Score, "checks without precision keep full score")
				assert.Equal(t, []string{tt.check.Feedback().Success}, got.Feedback)
			} else {
				assert.Equal(t, []string{tt.check.Feedback().Fail}, got.Errors)
			}
		})
	}
}

func TestValidate_InvalidPattern(t *testing.T) {
	m := &domain.Mission{Checks: []domain.Check{
		domain.CodeMatches{Messages: domain.Messages{Success: "s", Fail: "f"}, Pattern: "("},
		domain.CodeContains{Messages: domain.Messages{Success: "still evaluated", Fail: "x"}, Text: ""},
	}}

	got := Validate(m, "anything", nil, domain.Visualization{})

	require.Len(t, got.Errors, 1)
	assert.Contains(t, got.Errors[0], "invalid pattern in code_matches check")
	assert.Equal(t, []string{"still evaluated"}, got.Feedback)
}

func TestValidate_BodyCount(t *testing.T) {
	check := domain.BodyCount{Messages: domain.Messages{Success: "enough", Fail: "too few"}, Min: 2, BodyType: domain.BodyBall}
	m := &domain.Mission{Checks: []domain.Check{check}}

	vis := worldWithBall(1, 1)
	got := Validate(m, "", nil, vis)
	assert.Equal(t, []string{"too few"}, got.Errors)

	vis.World.Bodies = append(vis.World.Bodies, domain.Body{Type: domain.BodyBall})
	got = Validate(m, "", nil, vis)
	assert.True(t, got.Passed)
}

func TestValidate_CanvasChecks(t *testing.T) {
	canvas := &domain.CanvasState{
		Type: domain.CanvasType,
		Functions: []domain.PlottedFunction{
			{Expression: "2*x + 1", Name: "f", Points: [][2]float64{{0, 1}, {1, 3}, {2, 5}}},
		},
		Points: []domain.MarkedPoint{
			{X: 0, Y: 1, Label: "b"},
			{X: -0.5, Y: 0.1, Label: "root"},
		},
	}
	vis := domain.Visualization{Canvas: canvas}
	msgs := domain.Messages{Success: "ok", Fail: "no"}

	tests := []struct {
		name      string
		check     domain.Check
		wantPass  bool
		wantScore domain.Score
	}{
		{"function by expression", domain.FunctionPlotted{Messages: msgs, Expression: "2*x+1"}, true, domain.ScoreThree},
		{"function by name", domain.FunctionPlotted{Messages: msgs, Name: "f"}, true, domain.ScoreThree},
		{"function wrong expression", domain.FunctionPlotted{Messages: msgs, Expression: "x**2"}, false, domain.ScoreNone},
		{"function too few points", domain.FunctionPlotted{Messages: msgs, Name: "f", MinPoints: 10}, false, domain.ScoreNone},
		{"point exact", domain.PointMarked{Messages: msgs, X: 0, Y: 1, Tolerance: 0.5, Stars: domain.StarBands{Three: 0.05, Two: 0.2}}, true, domain.ScoreThree},
		{"point labelled", domain.PointMarked{Messages: msgs, X: -0.5, Y: 0, Tolerance: 0.5, Label: "root", Stars: domain.StarBands{Three: 0.05, Two: 0.2}}, true, domain.ScoreTwo},
		{"point wrong label", domain.PointMarked{Messages: msgs, X: 0, Y: 1, Tolerance: 0.5, Label: "vertex"}, false, domain.ScoreNone},
		{"point too far", domain.PointMarked{Messages: msgs, X: 5, Y: 5, Tolerance: 0.5}, false, domain.ScoreNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Validate(&domain.Mission{Checks: []domain.Check{tt.check}}, "", nil, vis)
			assert.Equal(t, tt.wantPass, got.Passed)
			assert.Equal(t, tt.wantScore, got.Score)
		})
	}
}

func TestValidate_ScoreIsLowestPrecisionTier(t *testing.T) {
	m := &domain.Mission{Checks: []domain.Check{
		domain.PositionMatch{Messages: domain.Messages{Success: "ball", Fail: "x"}, TargetX: 400, TargetY: 300, Tolerance: 50},
		domain.PointMarked{Messages: domain.Messages{Success: "point", Fail: "x"}, X: 0, Y: 0, Tolerance: 1, Stars: domain.StarBands{Three: 0.1, Two: 0.2}},
		domain.CodeAbsent{Messages: domain.Messages{Success: "code", Fail: "x"}, Text: "___"},
	}}
	vis := worldWithBall(400, 300)
	vis.Canvas = &domain.CanvasState{Points: []domain.MarkedPoint{{X: 0.5, Y: 0}}}

	got := Validate(m, "print(1)", nil, vis)

	require.True(t, got.Passed)
	assert.Equal(t, domain.ScoreOne, got.Score)
	assert.Equal(t, []string{"ball", "point", "code"}, got.Feedback)
}

func TestValidate_Invariants(t *testing.T) {
	m := &domain.Mission{Checks: []domain.Check{
		domain.PositionMatch{Messages: domain.Messages{Success: "a", Fail: "b"}, TargetX: 400, TargetY: 300, Tolerance: 50},
		domain.CodeContains{Messages: domain.Messages{Success: "c", Fail: "d"}, Text: "Ball("},
		domain.OutputContains{Messages: domain.Messages{Success: "e", Fail: "f"}, Text: "started"},
		domain.BodyCount{Messages: domain.Messages{Success: "g", Fail: "h"}, Min: 5},
	}}

	inputs := []struct {
		source string
		vis    domain.Visualization
	}{
		{"", domain.Visualization{}},
		{"Ball(", worldWithBall(400, 300)},
		{"Ball(", worldWithBall(700, 300)},
	}

	for _, in := range inputs {
		got := Validate(m, in.source, []string{"Simulation started!"}, in.vis)
		assert.Len(t, got.Feedback, len(m.Checks)-len(got.Errors))
		assert.Equal(t, len(got.Errors) == 0, got.Passed)
		if !got.Passed {
			assert.Equal(t, domain.ScoreNone, got.Score)
		}
	}
}

func TestValidate_Deterministic(t *testing.T) {
	m := positionMission(50, domain.StarBands{Three: 5, Two: 20})
	m.Checks = append(m.Checks,
		domain.CodeMatches{Messages: domain.Messages{Success: "s", Fail: "f"}, Pattern: `Ball\(`},
		domain.UnknownCheck{Type: "gravity_well"},
	)
	vis := worldWithBall(412, 309)

	first := Validate(m, "ball = Ball(x=412)", []string{"out"}, vis)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Validate(m, "ball = Ball(x=412)", []string{"out"}, vis))
	}
}

func TestValidate_NilMission(t *testing.T) {
	got := Validate(nil, "", nil, domain.Visualization{})

	assert.False(t, got.Passed)
	assert.Equal(t, []string{MsgNoMission}, got.Errors)
}

func TestValidate_NoChecksPasses(t *testing.T) {
	got := Validate(&domain.Mission{ID: "empty"}, "", nil, domain.Visualization{})

	assert.True(t, got.Passed)
	assert.Equal(t, domain.ScoreThree, got.Score)
	assert.NotNil(t, got.Feedback)
	assert.NotNil(t, got.Errors)
}

func TestNormalizeExpr(t *testing.T) {
	assert.Equal(t, "2*x+1", normalizeExpr(" 2 * x +\t1 "))
}
