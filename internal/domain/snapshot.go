package domain

import (
	"encoding/json"
	"fmt"
)

// Visualization is the state extracted from one script run.
// Either side may be nil; a run that printed nothing leaves both nil.
type Visualization struct {
	World  *WorldState  `json:"world,omitempty"`
	Canvas *CanvasState `json:"canvas,omitempty"`
}

// Empty reports whether the run produced no snapshot at all
func (v Visualization) Empty() bool {
	return v.World == nil && v.Canvas == nil
}

// Body types emitted by physicslab
const (
	BodyBall     = "Ball"
	BodyPlatform = "Platform"
)

// WorldState is the physicslab world snapshot printed by World.run()
type WorldState struct {
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	Gravity    float64 `json:"gravity"`
	Boundaries bool    `json:"boundaries"`
	Bodies     []Body  `json:"bodies"`
}

// Body is one object in the world
type Body struct {
	Type   string  `json:"type"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Radius float64 `json:"radius,omitempty"`
	Color  string  `json:"color,omitempty"`
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`
	VX     float64 `json:"vx,omitempty"`
	VY     float64 `json:"vy,omitempty"`
	Fixed  bool    `json:"fixed,omitempty"`
}

// FirstMovable returns the first body that is not fixed in place
func (w *WorldState) FirstMovable() (Body, bool) {
	if w == nil {
		return Body{}, false
	}
	for _, b := range w.Bodies {
		if !b.Fixed {
			return b, true
		}
	}
	return Body{}, false
}

// CountBodies counts bodies of the given type; an empty type counts all
func (w *WorldState) CountBodies(bodyType string) int {
	if w == nil {
		return 0
	}
	if bodyType == "" {
		return len(w.Bodies)
	}
	n := 0
	for _, b := range w.Bodies {
		if b.Type == bodyType {
			n++
		}
	}
	return n
}

// CanvasType is the type tag carried by every math canvas payload
const CanvasType = "MATH_CANVAS"

// CanvasState is the mathcanvas snapshot printed by Canvas.show()
type CanvasState struct {
	Type        string            `json:"type"`
	Settings    CanvasSettings    `json:"settings"`
	Functions   []PlottedFunction `json:"functions"`
	Points      []MarkedPoint     `json:"points"`
	Lines       []CanvasLine      `json:"lines"`
	Shapes      []json.RawMessage `json:"shapes"`
	Annotations []Annotation      `json:"annotations"`
}

// CanvasSettings holds axis ranges and grid visibility
type CanvasSettings struct {
	XRange [2]float64 `json:"x_range"`
	YRange [2]float64 `json:"y_range"`
	Grid   bool       `json:"grid"`
}

// Line styles accepted by the canvas renderer
const (
	StyleSolid  = "solid"
	StyleDashed = "dashed"
	StyleDotted = "dotted"
)

// PlottedFunction is a sampled function curve
type PlottedFunction struct {
	Expression string       `json:"expression"`
	Points     [][2]float64 `json:"points"`
	Color      string       `json:"color"`
	Name       string       `json:"name"`
	Style      string       `json:"style"`
}

// MarkedPoint is a labelled dot on the canvas
type MarkedPoint struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Label string  `json:"label,omitempty"`
	Color string  `json:"color"`
}

// CanvasLine is a straight segment between two points
type CanvasLine struct {
	From  Point2 `json:"from"`
	To    Point2 `json:"to"`
	Color string `json:"color"`
	Style string `json:"style"`
}

// Annotation is free text placed on the canvas
type Annotation struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Text  string  `json:"text"`
	Color string  `json:"color"`
}

// Point2 is a 2D coordinate. On the wire it appears either as [x, y]
// or as {"x": x, "y": y}; it is always written back as [x, y].
type Point2 struct {
	X float64
	Y float64
}

// MarshalJSON encodes the point as a two-element array
func (p Point2) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{p.X, p.Y})
}

// UnmarshalJSON accepts both the array and the object form
func (p *Point2) UnmarshalJSON(data []byte) error {
	var pair []float64
	if err := json.Unmarshal(data, &pair); err == nil {
		if len(pair) != 2 {
			return fmt.Errorf("point: expected 2 coordinates, got %d", len(pair))
		}
		p.X, p.Y = pair[0], pair[1]
		return nil
	}

	var obj struct {
		X *float64 `json:"x"`
		Y *float64 `json:"y"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("point: %w", err)
	}
	if obj.X == nil || obj.Y == nil {
		return fmt.Errorf("point: object form requires x and y")
	}
	p.X, p.Y = *obj.X, *obj.Y
	return nil
}
