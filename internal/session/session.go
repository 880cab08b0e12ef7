package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/pylab/internal/domain"
)

// Status represents the session state
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

// Console line kinds
const (
	LineLog   = "log"
	LineError = "error"
)

// ConsoleLine is one entry of the console shown to the learner
type ConsoleLine struct {
	Kind string `json:"kind"`
	Text string `json:"text"`
}

// Session is the working state of one learner on one mission: the code
// buffer, the last console and visualization, and hint progress. It is
// owned by the caller and handed to extraction and validation explicitly.
type Session struct {
	ID            string                   `json:"id"`
	MissionID     string                   `json:"mission_id"`
	Code          string                   `json:"code"`
	Console       []ConsoleLine            `json:"console"`
	Visualization domain.Visualization     `json:"visualization"`
	Result        *domain.ValidationResult `json:"result,omitempty"`
	HintLevel     int                      `json:"hint_level"`
	ShowHints     bool                     `json:"show_hints"`
	Status        Status                   `json:"status"`

	// Statistics
	RunCount  int        `json:"run_count"`
	LastRunAt *time.Time `json:"last_run_at,omitempty"`

	// Timestamps
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSession creates a new session seeded from the mission's starter code
func NewSession(m *domain.Mission) *Session {
	now := time.Now()
	return &Session{
		ID:        uuid.New().String(),
		MissionID: m.ID,
		Code:      m.StarterCode,
		Console:   []ConsoleLine{},
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// UpdateCode replaces the code buffer
func (s *Session) UpdateCode(code string) {
	s.Code = code
	s.UpdatedAt = time.Now()
}

// ResetTo restores every learner-owned field to the mission's defaults.
// Run statistics are kept.
func (s *Session) ResetTo(m *domain.Mission) {
	s.Code = m.StarterCode
	s.Console = []ConsoleLine{}
	s.Visualization = domain.Visualization{}
	s.Result = nil
	s.HintLevel = 0
	s.ShowHints = false
	s.Status = StatusActive
	s.UpdatedAt = time.Now()
}

// NextHint advances the hint level up to maxLevel and opens the hint
// panel. It reports whether the level moved.
func (s *Session) NextHint(maxLevel int) bool {
	s.ShowHints = true
	s.UpdatedAt = time.Now()
	if s.HintLevel >= maxLevel {
		return false
	}
	s.HintLevel++
	return true
}

// RecordRun stores the outcome of a validated run. The visualization is
// replaced wholesale.
func (s *Session) RecordRun(code string, console []ConsoleLine, vis domain.Visualization, result domain.ValidationResult) {
	now := time.Now()
	s.Code = code
	s.Console = console
	s.Visualization = vis
	s.Result = &result
	s.RunCount++
	s.LastRunAt = &now
	s.UpdatedAt = now
	if result.Passed {
		s.Status = StatusCompleted
	}
}

// ConsoleText returns the console as plain lines
func (s *Session) ConsoleText() []string {
	out := make([]string, 0, len(s.Console))
	for _, l := range s.Console {
		out = append(out, l.Text)
	}
	return out
}
