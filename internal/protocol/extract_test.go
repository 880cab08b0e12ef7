package protocol

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/felixgeelhaar/pylab/internal/domain"
)

func sampleWorld() domain.WorldState {
	return domain.WorldState{
		Width:      800,
		Height:     600,
		Gravity:    9.8,
		Boundaries: true,
		Bodies: []domain.Body{
			{Type: domain.BodyBall, X: 430, Y: 320, Radius: 20, Color: "red", VX: 1.5, VY: -2},
			{Type: domain.BodyPlatform, X: 0, Y: 550, Width: 800, Height: 20, Fixed: true},
		},
	}
}

func sampleCanvas() domain.CanvasState {
	return domain.CanvasState{
		Type: domain.CanvasType,
		Settings: domain.CanvasSettings{
			XRange: [2]float64{-10, 10},
			YRange: [2]float64{-5, 5},
			Grid:   true,
		},
		Functions: []domain.PlottedFunction{{
			Expression: "2*x + 1",
			Points:     [][2]float64{{-1, -1}, {0, 1}, {1, 3}},
			Color:      "blue",
			Name:       "f",
			Style:      domain.StyleSolid,
		}},
		Points: []domain.MarkedPoint{{X: 0, Y: 1, Label: "b", Color: "red"}},
		Lines: []domain.CanvasLine{{
			From:  domain.Point2{X: -1, Y: 0},
			To:    domain.Point2{X: 1, Y: 0},
			Color: "gray",
			Style: domain.StyleDashed,
		}},
		Shapes:      []json.RawMessage{json.RawMessage(`{"kind":"circle"}`)},
		Annotations: []domain.Annotation{{X: 2, Y: 2, Text: "slope", Color: "black"}},
	}
}

func block(t *testing.T, start, end string, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return start + "\n" + string(data) + "\n" + end + "\n"
}

func TestExtract_WorldRoundTrip(t *testing.T) {
	want := sampleWorld()
	output := "Simulation started!\n" + block(t, WorldStart, WorldEnd, want) + "done\n"

	got := Extract(output)

	if got.World == nil {
		t.Fatal("Extract() returned no world state")
	}
	if diff := cmp.Diff(want, *got.World, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("world mismatch (-want +got):\n%s", diff)
	}
	if got.Canvas != nil {
		t.Errorf("Canvas = %+v, want nil", got.Canvas)
	}
	if got.Cleaned != "Simulation started!\ndone\n" {
		t.Errorf("Cleaned = %q", got.Cleaned)
	}
}

func TestExtract_CanvasRoundTrip(t *testing.T) {
	want := sampleCanvas()
	output := block(t, CanvasStart, CanvasEnd, want)

	got := Extract(output)

	if got.Canvas == nil {
		t.Fatal("Extract() returned no canvas state")
	}
	if diff := cmp.Diff(want, *got.Canvas, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("canvas mismatch (-want +got):\n%s", diff)
	}
	if strings.Contains(got.Cleaned, CanvasStart) || strings.Contains(got.Cleaned, CanvasEnd) {
		t.Errorf("Cleaned still contains markers: %q", got.Cleaned)
	}
}

func TestExtract_BothPairs(t *testing.T) {
	output := "a\n" +
		block(t, WorldStart, WorldEnd, sampleWorld()) +
		"b\n" +
		block(t, CanvasStart, CanvasEnd, sampleCanvas()) +
		"c\n"

	got := Extract(output)

	if got.World == nil || got.Canvas == nil {
		t.Fatalf("Extract() world=%v canvas=%v, want both", got.World != nil, got.Canvas != nil)
	}
	if got.Cleaned != "a\nb\nc\n" {
		t.Errorf("Cleaned = %q, want %q", got.Cleaned, "a\nb\nc\n")
	}
}

func TestExtract_ObjectFormLineEndpoints(t *testing.T) {
	payload := `{"type":"MATH_CANVAS","settings":{"x_range":[-1,1],"y_range":[-1,1],"grid":false},` +
		`"functions":[],"points":[],"lines":[{"from":{"x":0,"y":0},"to":[1,1],"color":"k","style":"solid"}],` +
		`"shapes":[],"annotations":[]}`
	output := CanvasStart + "\n" + payload + "\n" + CanvasEnd

	got := Extract(output)

	if got.Canvas == nil || len(got.Canvas.Lines) != 1 {
		t.Fatalf("Extract() canvas = %+v", got.Canvas)
	}
	line := got.Canvas.Lines[0]
	if line.From != (domain.Point2{}) || line.To != (domain.Point2{X: 1, Y: 1}) {
		t.Errorf("line = %+v", line)
	}
	if got.Cleaned != "" {
		t.Errorf("Cleaned = %q, want empty", got.Cleaned)
	}
}

func TestExtract_NoSnapshot(t *testing.T) {
	tests := []struct {
		name   string
		output string
	}{
		{"empty", ""},
		{"plain output", "hello\nworld\n"},
		{"start without end", "x\n" + WorldStart + "\n{\"width\": 1}\n"},
		{"end before start", WorldEnd + "\n{}\n" + WorldStart + "\n"},
		{"canvas start without end", CanvasStart + "\n{}\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Extract(tt.output)
			if got.World != nil || got.Canvas != nil {
				t.Errorf("Extract() produced a snapshot: %+v", got)
			}
			if got.Cleaned != tt.output {
				t.Errorf("Cleaned = %q, want output unchanged", got.Cleaned)
			}
		})
	}
}

func TestExtract_MalformedJSON(t *testing.T) {
	output := "before\n" + WorldStart + "\n{not json\n" + WorldEnd + "\nafter\n"

	got := Extract(output)

	if got.World != nil {
		t.Errorf("World = %+v, want nil for malformed payload", got.World)
	}
	if got.Cleaned != "before\nafter\n" {
		t.Errorf("Cleaned = %q", got.Cleaned)
	}
}

func TestExtract_FirstOccurrenceWins(t *testing.T) {
	first := sampleWorld()
	second := sampleWorld()
	second.Bodies[0].X = 1

	output := block(t, WorldStart, WorldEnd, first) + block(t, WorldStart, WorldEnd, second)

	got := Extract(output)

	if got.World == nil {
		t.Fatal("Extract() returned no world state")
	}
	if got.World.Bodies[0].X != 430 {
		t.Errorf("first body X = %v, want 430 from the first block", got.World.Bodies[0].X)
	}
	if !strings.HasPrefix(got.Cleaned, WorldStart) {
		t.Errorf("second block should remain in cleaned output, got %q", got.Cleaned)
	}
}

func TestExtract_PythonFormatting(t *testing.T) {
	// json.dumps default separators
	output := "Total bodies: 1\n" +
		"__WORLD_STATE__\n" +
		`{"width": 800, "height": 600, "gravity": 9.8, "boundaries": true, "bodies": [{"type": "Ball", "x": 400, "y": 300, "radius": 20, "color": "blue", "vx": 0, "vy": 0, "fixed": false}]}` + "\n" +
		"__END_WORLD_STATE__\n"

	got := Extract(output)

	if got.World == nil {
		t.Fatal("Extract() returned no world state")
	}
	b, ok := got.World.FirstMovable()
	if !ok || b.X != 400 || b.Y != 300 {
		t.Errorf("FirstMovable() = %+v, %v", b, ok)
	}
	if diff := cmp.Diff([]string{"Total bodies: 1"}, Lines(got.Cleaned)); diff != "" {
		t.Errorf("Lines mismatch (-want +got):\n%s", diff)
	}
}

func TestLines(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"a", []string{"a"}},
		{"a\n", []string{"a"}},
		{"a\r\nb\r\n", []string{"a", "b"}},
		{"a\n\nb", []string{"a", "", "b"}},
	}

	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, Lines(tt.in)); diff != "" {
			t.Errorf("Lines(%q) mismatch (-want +got):\n%s", tt.in, diff)
		}
	}
}
