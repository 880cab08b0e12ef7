package domain

// Mission represents a single authored exercise
type Mission struct {
	ID          string   `json:"id"` // "1_1", "5-1-2"
	Module      int      `json:"module"`
	Order       int      `json:"order"`
	Title       string   `json:"title"`
	Briefing    Briefing `json:"briefing"`
	StarterCode string   `json:"starter_code"`
	Theory      []string `json:"theory"` // theory article keys
	Checks      []Check  `json:"-"`
	Hints       []Hint   `json:"hints"`
	Rewards     Rewards  `json:"rewards"`
	Metadata    Metadata `json:"metadata"`
}

// Briefing is the narrative shown before a mission starts
type Briefing struct {
	Situation string `json:"situation"`
	Task      string `json:"task"`
	Context   string `json:"context,omitempty"`
}

// Hint is revealed progressively, lowest level first
type Hint struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
}

// Rewards describes what a learner earns for a mission
type Rewards struct {
	XP    int               `json:"xp"`
	Stars map[string]string `json:"stars"` // "1".."3" -> tier description
}

// Difficulty represents mission difficulty
type Difficulty string

const (
	DifficultyIntro     Difficulty = "intro"
	DifficultyBasic     Difficulty = "basic"
	DifficultyApplied   Difficulty = "applied"
	DifficultyChallenge Difficulty = "challenge"
	DifficultyMaster    Difficulty = "master"
)

// Valid reports whether d is a known difficulty
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyIntro, DifficultyBasic, DifficultyApplied, DifficultyChallenge, DifficultyMaster:
		return true
	}
	return false
}

// Metadata holds catalog information about a mission
type Metadata struct {
	Difficulty    Difficulty `json:"difficulty"`
	EstimatedTime int        `json:"estimated_time"` // minutes
	Prerequisites []string   `json:"prerequisites"`
	Tags          []string   `json:"tags"`
}

// MaxHintLevel returns the highest hint index a learner can reach.
// Missions without hints return 0.
func (m *Mission) MaxHintLevel() int {
	if len(m.Hints) == 0 {
		return 0
	}
	return len(m.Hints) - 1
}

// HintAt returns the hint at index level, clamped to the available range
func (m *Mission) HintAt(level int) (Hint, bool) {
	if len(m.Hints) == 0 {
		return Hint{}, false
	}
	if level < 0 {
		level = 0
	}
	if level > m.MaxHintLevel() {
		level = m.MaxHintLevel()
	}
	return m.Hints[level], true
}

// StarDescription returns the rewards text for a star tier
func (m *Mission) StarDescription(stars Score) string {
	if m.Rewards.Stars == nil {
		return ""
	}
	return m.Rewards.Stars[stars.String()]
}

// ModuleInfo describes a skill-tree module (a mission pack)
type ModuleInfo struct {
	ID          int      `json:"id"`
	PackID      string   `json:"pack_id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Icon        string   `json:"icon,omitempty"`
	Color       string   `json:"color,omitempty"`
	MissionIDs  []string `json:"mission_ids"` // ordered
}
