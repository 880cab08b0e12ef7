package domain

import (
	"strconv"
	"time"
)

// Score is the star rating of a validation pass. Zero means "not passed".
type Score int

const (
	ScoreNone  Score = 0
	ScoreOne   Score = 1
	ScoreTwo   Score = 2
	ScoreThree Score = 3
)

// MaxScore is the best rating a mission can earn
const MaxScore = ScoreThree

// Valid reports whether s is a persistable star rating (1..3)
func (s Score) Valid() bool {
	return s >= ScoreOne && s <= ScoreThree
}

func (s Score) String() string {
	return strconv.Itoa(int(s))
}

// ValidationResult is the outcome of validating one run against a mission
type ValidationResult struct {
	Passed   bool     `json:"passed"`
	Score    Score    `json:"score"`
	Feedback []string `json:"feedback"`
	Errors   []string `json:"errors"`
}

// ProgressRecord is the best result a learner achieved for a mission
type ProgressRecord struct {
	MissionID   string    `json:"mission_id"`
	Completed   bool      `json:"completed"`
	Score       Score     `json:"score"`
	CompletedAt time.Time `json:"completed_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Merge applies a new passing score: completion never clears and the
// stored score only ever rises. It reports whether anything changed.
func (r *ProgressRecord) Merge(score Score) bool {
	changed := false
	if !r.Completed {
		r.Completed = true
		changed = true
	}
	if score > r.Score {
		r.Score = score
		changed = true
	}
	return changed
}

// ModuleProgress aggregates progress over one skill-tree module
type ModuleProgress struct {
	Module       int     `json:"module"`
	Completed    int     `json:"completed"`
	Total        int     `json:"total"`
	Stars        int     `json:"stars"`
	MaxStars     int     `json:"max_stars"`
	AverageScore float64 `json:"average_score"`
}

// Fraction returns the share of completed missions in [0, 1]
func (p ModuleProgress) Fraction() float64 {
	if p.Total == 0 {
		return 0
	}
	return float64(p.Completed) / float64(p.Total)
}

// Attempt is one validated submission, kept for history and statistics
type Attempt struct {
	MissionID string    `json:"mission_id"`
	SessionID string    `json:"session_id,omitempty"`
	Passed    bool      `json:"passed"`
	Score     Score     `json:"score"`
	Errors    int       `json:"errors"`
	CreatedAt time.Time `json:"created_at"`
}

// AttemptStats summarizes the attempt history of one mission
type AttemptStats struct {
	MissionID string  `json:"mission_id"`
	Attempts  int     `json:"attempts"`
	Passes    int     `json:"passes"`
	MeanScore float64 `json:"mean_score"`
}
