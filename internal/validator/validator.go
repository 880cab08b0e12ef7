// Package validator evaluates a mission's checks against one script run.
//
// Validation is pure: it reads the mission, the submitted source, the
// console lines and the visualization snapshot, and returns a result. It
// performs no I/O and never fails; every problem is reported inside the
// returned domain.ValidationResult.
package validator

import (
	"fmt"
	"regexp"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/felixgeelhaar/pylab/internal/domain"
)

// Fallback texts used only when a mission did not author its own
const (
	MsgNoWorldState  = "No simulation state was produced. Run your code and make sure it calls world.run()."
	MsgNoMovableBody = "The world has no movable body to check."
	MsgNoCanvasState = "No canvas was produced. Run your code and make sure it calls canvas.show()."
	MsgCheckFailed   = "Check failed."
	MsgCheckPassed   = "Check passed."
	MsgNoMission     = "No mission selected."
)

// DefaultMinPoints is the sample count a plotted function needs when a
// check does not say otherwise
const DefaultMinPoints = 2

// Input bundles everything a check may inspect
type Input struct {
	Source        string
	Console       []string
	Visualization domain.Visualization
}

// outcome is the verdict of one check. stars is zero for checks that do
// not carry a precision metric.
type outcome struct {
	passed  bool
	stars   domain.Score
	message string
}

// Validator evaluates mission checks
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// Validate evaluates m against one run with the default validator
func Validate(m *domain.Mission, source string, console []string, vis domain.Visualization) domain.ValidationResult {
	return NewValidator().Validate(m, Input{Source: source, Console: console, Visualization: vis})
}

// Validate evaluates every check of m in declaration order. The result
// passes only when no check failed. A passing result is scored with the
// lowest star tier earned by any precision-bearing check, or three stars
// when none of the checks measures precision.
func (v *Validator) Validate(m *domain.Mission, in Input) domain.ValidationResult {
	result := domain.ValidationResult{
		Feedback: []string{},
		Errors:   []string{},
	}

	if m == nil {
		result.Errors = append(result.Errors, MsgNoMission)
		return result
	}

	score := domain.MaxScore
	for _, check := range m.Checks {
		out := v.evaluate(check, in)
		if out.passed {
			result.Feedback = append(result.Feedback, out.message)
			if out.stars > domain.ScoreNone && out.stars < score {
				score = out.stars
			}
			continue
		}
		result.Errors = append(result.Errors, out.message)
	}

	result.Passed = len(result.Errors) == 0
	if result.Passed {
		result.Score = score
	}
	return result
}

func (v *Validator) evaluate(check domain.Check, in Input) outcome {
	switch c := check.(type) {
	case domain.PositionMatch:
		return positionMatch(c, in.Visualization.World)
	case domain.CodeContains:
		return verdict(c.Messages, strings.Contains(in.Source, c.Text))
	case domain.CodeAbsent:
		return verdict(c.Messages, !strings.Contains(in.Source, c.Text))
	case domain.CodeMatches:
		return matches(c.Messages, c.Kind(), c.Pattern, in.Source)
	case domain.OutputContains:
		return verdict(c.Messages, strings.Contains(strings.Join(in.Console, "\n"), c.Text))
	case domain.OutputMatches:
		return matches(c.Messages, c.Kind(), c.Pattern, strings.Join(in.Console, "\n"))
	case domain.BodyCount:
		return bodyCount(c, in.Visualization.World)
	case domain.FunctionPlotted:
		return functionPlotted(c, in.Visualization.Canvas)
	case domain.PointMarked:
		return pointMarked(c, in.Visualization.Canvas)
	case domain.UnknownCheck:
		return outcome{message: fmt.Sprintf("unknown check type %q", c.Type)}
	case nil:
		return outcome{message: "unknown check type \"\""}
	default:
		return outcome{message: fmt.Sprintf("unknown check type %q", check.Kind())}
	}
}

func verdict(msgs domain.Messages, ok bool) outcome {
	if ok {
		return outcome{passed: true, message: successText(msgs)}
	}
	return outcome{message: failText(msgs)}
}

func successText(msgs domain.Messages) string {
	if msgs.Success == "" {
		return MsgCheckPassed
	}
	return msgs.Success
}

func failText(msgs domain.Messages) string {
	if msgs.Fail == "" {
		return MsgCheckFailed
	}
	return msgs.Fail
}

func noStateText(authored, fallback string) string {
	if authored != "" {
		return authored
	}
	return fallback
}

func matches(msgs domain.Messages, kind domain.CheckKind, pattern, text string) outcome {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return outcome{message: fmt.Sprintf("invalid pattern in %s check: %v", kind, err)}
	}
	return verdict(msgs, re.MatchString(text))
}

func positionMatch(c domain.PositionMatch, world *domain.WorldState) outcome {
	if world == nil {
		return outcome{message: noStateText(c.NoState, MsgNoWorldState)}
	}
	body, ok := world.FirstMovable()
	if !ok {
		return outcome{message: noStateText(c.NoState, MsgNoMovableBody)}
	}

	d := floats.Distance([]float64{body.X, body.Y}, []float64{c.TargetX, c.TargetY}, 2)
	if d > c.Tolerance {
		return outcome{message: failText(c.Messages)}
	}
	return outcome{
		passed:  true,
		stars:   c.Stars.Resolve(c.Tolerance).Stars(d),
		message: successText(c.Messages),
	}
}

func bodyCount(c domain.BodyCount, world *domain.WorldState) outcome {
	if world == nil {
		return outcome{message: noStateText(c.NoState, MsgNoWorldState)}
	}
	return verdict(c.Messages, world.CountBodies(c.BodyType) >= c.Min)
}

func functionPlotted(c domain.FunctionPlotted, canvas *domain.CanvasState) outcome {
	if canvas == nil {
		return outcome{message: noStateText(c.NoState, MsgNoCanvasState)}
	}

	minPoints := c.MinPoints
	if minPoints <= 0 {
		minPoints = DefaultMinPoints
	}
	want := normalizeExpr(c.Expression)

	for _, fn := range canvas.Functions {
		if want != "" && normalizeExpr(fn.Expression) != want {
			continue
		}
		if c.Name != "" && fn.Name != c.Name {
			continue
		}
		if len(fn.Points) >= minPoints {
			return verdict(c.Messages, true)
		}
	}
	return verdict(c.Messages, false)
}

func pointMarked(c domain.PointMarked, canvas *domain.CanvasState) outcome {
	if canvas == nil {
		return outcome{message: noStateText(c.NoState, MsgNoCanvasState)}
	}

	target := []float64{c.X, c.Y}
	best, found := 0.0, false
	for _, p := range canvas.Points {
		if c.Label != "" && p.Label != c.Label {
			continue
		}
		d := floats.Distance([]float64{p.X, p.Y}, target, 2)
		if !found || d < best {
			best, found = d, true
		}
	}

	if !found || best > c.Tolerance {
		return outcome{message: failText(c.Messages)}
	}
	return outcome{
		passed:  true,
		stars:   c.Stars.Resolve(c.Tolerance).Stars(best),
		message: successText(c.Messages),
	}
}

// normalizeExpr drops whitespace so "2*x + 1" and "2*x+1" compare equal
func normalizeExpr(expr string) string {
	return strings.Join(strings.Fields(expr), "")
}
