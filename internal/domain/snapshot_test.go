package domain

import (
	"encoding/json"
	"testing"
)

func TestPoint2_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Point2
		wantErr bool
	}{
		{"array", `[1.5, -2]`, Point2{1.5, -2}, false},
		{"object", `{"x": 3, "y": 4}`, Point2{3, 4}, false},
		{"short array", `[1]`, Point2{}, true},
		{"missing y", `{"x": 3}`, Point2{}, true},
		{"string", `"1,2"`, Point2{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p Point2
			err := json.Unmarshal([]byte(tt.input), &p)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Unmarshal() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && p != tt.want {
				t.Errorf("Unmarshal() = %+v, want %+v", p, tt.want)
			}
		})
	}
}

func TestPoint2_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(Point2{X: 1, Y: 2.5})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(data) != "[1,2.5]" {
		t.Errorf("Marshal() = %s, want [1,2.5]", data)
	}
}

func TestWorldState_FirstMovable(t *testing.T) {
	w := &WorldState{Bodies: []Body{
		{Type: BodyBall, X: 400, Y: 300, Fixed: true},
		{Type: BodyPlatform, X: 0, Y: 500, Fixed: true},
		{Type: BodyBall, X: 10, Y: 20},
	}}

	b, ok := w.FirstMovable()
	if !ok {
		t.Fatal("FirstMovable() found nothing")
	}
	if b.X != 10 || b.Y != 20 {
		t.Errorf("FirstMovable() = %+v, want body at (10,20)", b)
	}

	var nilWorld *WorldState
	if _, ok := nilWorld.FirstMovable(); ok {
		t.Error("nil world should have no movable body")
	}
}

func TestWorldState_CountBodies(t *testing.T) {
	w := &WorldState{Bodies: []Body{
		{Type: BodyBall}, {Type: BodyBall}, {Type: BodyPlatform},
	}}

	if got := w.CountBodies(""); got != 3 {
		t.Errorf("CountBodies(\"\") = %d, want 3", got)
	}
	if got := w.CountBodies(BodyBall); got != 2 {
		t.Errorf("CountBodies(Ball) = %d, want 2", got)
	}
}

func TestProgressRecord_Merge(t *testing.T) {
	var r ProgressRecord

	if !r.Merge(ScoreTwo) {
		t.Error("first merge should report a change")
	}
	if r.Merge(ScoreOne) {
		t.Error("lower score should not change the record")
	}
	if !r.Completed || r.Score != ScoreTwo {
		t.Errorf("record = %+v, want completed with score 2", r)
	}
	if !r.Merge(ScoreThree) || r.Score != ScoreThree {
		t.Errorf("higher score should raise the record, got %+v", r)
	}
}

func TestMission_HintAt(t *testing.T) {
	m := &Mission{Hints: []Hint{{Level: 1, Text: "a"}, {Level: 2, Text: "b"}}}

	if h, _ := m.HintAt(5); h.Text != "b" {
		t.Errorf("HintAt(5) = %q, want clamp to last hint", h.Text)
	}
	if h, _ := m.HintAt(-1); h.Text != "a" {
		t.Errorf("HintAt(-1) = %q, want first hint", h.Text)
	}
	if m.MaxHintLevel() != 1 {
		t.Errorf("MaxHintLevel() = %d, want 1", m.MaxHintLevel())
	}

	empty := &Mission{}
	if _, ok := empty.HintAt(0); ok {
		t.Error("mission without hints should report no hint")
	}
}
