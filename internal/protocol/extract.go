// Package protocol implements the marker convention used by the Python
// libraries to embed visualization state in a script's standard output.
package protocol

import (
	"encoding/json"
	"log/slog"
	"sort"
	"strings"

	"github.com/felixgeelhaar/pylab/internal/domain"
)

// Marker pairs printed by physicslab and mathcanvas. They are bit-exact.
const (
	WorldStart  = "__WORLD_STATE__"
	WorldEnd    = "__END_WORLD_STATE__"
	CanvasStart = "__MATH_CANVAS_STATE__"
	CanvasEnd   = "__END_MATH_CANVAS_STATE__"
)

// Extraction is everything mined from one run's output
type Extraction struct {
	World   *domain.WorldState
	Canvas  *domain.CanvasState
	Cleaned string
}

// Visualization returns the extracted snapshots as a visualization state
func (e Extraction) Visualization() domain.Visualization {
	return domain.Visualization{World: e.World, Canvas: e.Canvas}
}

// Extractor parses marker-delimited JSON out of captured output
type Extractor struct {
	logger *slog.Logger
}

// NewExtractor creates an extractor that reports malformed payloads to logger.
// A nil logger falls back to slog.Default().
func NewExtractor(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{logger: logger}
}

// Extract runs the default extractor over output
func Extract(output string) Extraction {
	return NewExtractor(nil).Extract(output)
}

// region is a honored marker block: [start, end) in the original output
type region struct {
	start, end int
}

// Extract locates each marker pair independently. Only the first start
// marker and the first end marker after it are honored. A payload that
// is not valid JSON yields no snapshot but its region is still stripped.
func (e *Extractor) Extract(output string) Extraction {
	var (
		result  Extraction
		regions []region
	)

	if payload, r, ok := locate(output, WorldStart, WorldEnd); ok {
		regions = append(regions, r)
		var world domain.WorldState
		if err := json.Unmarshal([]byte(payload), &world); err != nil {
			e.logger.Warn("failed to parse world state", "error", err, "bytes", len(payload))
		} else {
			result.World = &world
		}
	}

	if payload, r, ok := locate(output, CanvasStart, CanvasEnd); ok {
		regions = append(regions, r)
		var canvas domain.CanvasState
		if err := json.Unmarshal([]byte(payload), &canvas); err != nil {
			e.logger.Warn("failed to parse math canvas state", "error", err, "bytes", len(payload))
		} else {
			result.Canvas = &canvas
		}
	}

	result.Cleaned = strip(output, regions)
	return result
}

// locate finds the first start marker and the first end marker after it.
// The returned region covers both markers plus the newline ending the end
// marker's line, so stripping it does not leave a blank line behind.
func locate(output, startMarker, endMarker string) (string, region, bool) {
	start := strings.Index(output, startMarker)
	if start < 0 {
		return "", region{}, false
	}
	bodyStart := start + len(startMarker)

	rel := strings.Index(output[bodyStart:], endMarker)
	if rel < 0 {
		return "", region{}, false
	}
	bodyEnd := bodyStart + rel
	end := bodyEnd + len(endMarker)

	switch {
	case strings.HasPrefix(output[end:], "\r\n"):
		end += 2
	case strings.HasPrefix(output[end:], "\n"):
		end++
	}

	payload := strings.TrimSpace(output[bodyStart:bodyEnd])
	return payload, region{start: start, end: end}, true
}

// strip removes regions from output, keeping everything else in order.
// Overlapping regions are merged.
func strip(output string, regions []region) string {
	if len(regions) == 0 {
		return output
	}
	sort.Slice(regions, func(i, j int) bool { return regions[i].start < regions[j].start })

	var b strings.Builder
	b.Grow(len(output))

	pos := 0
	for _, r := range regions {
		if r.start > pos {
			b.WriteString(output[pos:r.start])
		}
		if r.end > pos {
			pos = r.end
		}
	}
	b.WriteString(output[pos:])
	return b.String()
}

// Lines splits cleaned output into console lines. A single trailing
// newline does not produce an empty final line.
func Lines(s string) []string {
	if s == "" {
		return nil
	}
	s = strings.TrimSuffix(s, "\n")
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}
