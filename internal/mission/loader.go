package mission

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/pylab/internal/domain"
)

// PackFile represents the YAML structure for a mission pack (one module)
type PackFile struct {
	ID          string   `yaml:"id"`
	Module      int      `yaml:"module"`
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Icon        string   `yaml:"icon"`
	Color       string   `yaml:"color"`
	Missions    []string `yaml:"missions"`
}

// MissionFile represents the YAML structure for a mission
type MissionFile struct {
	ID       string `yaml:"id"`
	Module   int    `yaml:"module"`
	Order    int    `yaml:"order"`
	Title    string `yaml:"title"`
	Briefing struct {
		Situation string `yaml:"situation"`
		Task      string `yaml:"task"`
		Context   string `yaml:"context"`
	} `yaml:"briefing"`
	StarterCode string      `yaml:"starter_code"`
	Theory      []string    `yaml:"theory"`
	Checks      []CheckFile `yaml:"checks"`
	Hints       []struct {
		Level int    `yaml:"level"`
		Text  string `yaml:"text"`
	} `yaml:"hints"`
	Rewards struct {
		XP    int               `yaml:"xp"`
		Stars map[string]string `yaml:"stars"`
	} `yaml:"rewards"`
	Metadata struct {
		Difficulty    string   `yaml:"difficulty"`
		EstimatedTime int      `yaml:"estimated_time"`
		Prerequisites []string `yaml:"prerequisites"`
		Tags          []string `yaml:"tags"`
	} `yaml:"metadata"`
}

// Pack is a loaded module with its missions in pack order
type Pack struct {
	Info     domain.ModuleInfo
	Missions []*domain.Mission
}

// Loader handles loading missions from YAML files.
//
// The layout is <pack>/pack.yaml plus one <pack>/<slug>.yaml per mission.
type Loader struct {
	fsys   fs.FS
	schema *Schema
}

// NewLoader creates a new mission loader reading from fsys
func NewLoader(fsys fs.FS) *Loader {
	return &Loader{fsys: fsys, schema: MissionSchema()}
}

// LoadPack loads a pack file and all missions it lists
func (l *Loader) LoadPack(dir string) (*Pack, error) {
	data, err := fs.ReadFile(l.fsys, path.Join(dir, "pack.yaml"))
	if err != nil {
		return nil, fmt.Errorf("read pack file: %w", err)
	}

	var pf PackFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("parse pack file: %w", err)
	}
	if pf.ID == "" {
		pf.ID = dir
	}
	if pf.Module <= 0 {
		return nil, fmt.Errorf("%w: pack %s has no module number", domain.ErrInvalidMission, pf.ID)
	}

	pack := &Pack{
		Info: domain.ModuleInfo{
			ID:          pf.Module,
			PackID:      pf.ID,
			Name:        pf.Name,
			Description: pf.Description,
			Icon:        pf.Icon,
			Color:       pf.Color,
			MissionIDs:  make([]string, 0, len(pf.Missions)),
		},
	}

	for i, slug := range pf.Missions {
		m, err := l.LoadMission(dir, slug)
		if err != nil {
			return nil, fmt.Errorf("load mission %s/%s: %w", dir, slug, err)
		}
		if m.Module == 0 {
			m.Module = pf.Module
		}
		if m.Module != pf.Module {
			return nil, fmt.Errorf("%w: mission %s declares module %d inside pack for module %d",
				domain.ErrInvalidMission, m.ID, m.Module, pf.Module)
		}
		if m.Order == 0 {
			m.Order = i + 1
		}
		pack.Info.MissionIDs = append(pack.Info.MissionIDs, m.ID)
		pack.Missions = append(pack.Missions, m)
	}

	return pack, nil
}

// LoadMission loads a single mission file. The document is checked
// against the mission schema before it is decoded.
func (l *Loader) LoadMission(dir, slug string) (*domain.Mission, error) {
	data, err := fs.ReadFile(l.fsys, path.Join(dir, slug+".yaml"))
	if err != nil {
		return nil, fmt.Errorf("read mission file: %w", err)
	}

	if err := l.schema.ValidateYAML(data); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidMission, err)
	}

	var mf MissionFile
	if err := yaml.Unmarshal(data, &mf); err != nil {
		return nil, fmt.Errorf("parse mission file: %w", err)
	}

	return mf.toDomain()
}

// LoadAll loads every directory that contains a pack.yaml, ordered by module
func (l *Loader) LoadAll() ([]*Pack, error) {
	entries, err := fs.ReadDir(l.fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read missions directory: %w", err)
	}

	var packs []*Pack
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, err := fs.Stat(l.fsys, path.Join(entry.Name(), "pack.yaml")); errors.Is(err, fs.ErrNotExist) {
			continue
		}

		pack, err := l.LoadPack(entry.Name())
		if err != nil {
			return nil, fmt.Errorf("load pack %s: %w", entry.Name(), err)
		}
		packs = append(packs, pack)
	}

	sort.Slice(packs, func(i, j int) bool { return packs[i].Info.ID < packs[j].Info.ID })
	return packs, nil
}

func (mf *MissionFile) toDomain() (*domain.Mission, error) {
	m := &domain.Mission{
		ID:     mf.ID,
		Module: mf.Module,
		Order:  mf.Order,
		Title:  mf.Title,
		Briefing: domain.Briefing{
			Situation: mf.Briefing.Situation,
			Task:      mf.Briefing.Task,
			Context:   mf.Briefing.Context,
		},
		StarterCode: mf.StarterCode,
		Theory:      mf.Theory,
		Rewards: domain.Rewards{
			XP:    mf.Rewards.XP,
			Stars: mf.Rewards.Stars,
		},
		Metadata: domain.Metadata{
			Difficulty:    domain.Difficulty(mf.Metadata.Difficulty),
			EstimatedTime: mf.Metadata.EstimatedTime,
			Prerequisites: mf.Metadata.Prerequisites,
			Tags:          mf.Metadata.Tags,
		},
	}

	if m.Metadata.Difficulty == "" {
		m.Metadata.Difficulty = domain.DifficultyBasic
	}
	if !m.Metadata.Difficulty.Valid() {
		return nil, fmt.Errorf("%w: mission %s has unknown difficulty %q", domain.ErrInvalidMission, m.ID, m.Metadata.Difficulty)
	}

	for i, h := range mf.Hints {
		level := h.Level
		if level == 0 {
			level = i + 1
		}
		m.Hints = append(m.Hints, domain.Hint{Level: level, Text: h.Text})
	}

	m.Checks = make([]domain.Check, 0, len(mf.Checks))
	for _, cf := range mf.Checks {
		m.Checks = append(m.Checks, cf.toDomain())
	}

	return m, nil
}
