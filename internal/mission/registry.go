package mission

import (
	"fmt"
	"sort"
	"sync"

	"github.com/felixgeelhaar/pylab/internal/domain"
)

// Registry provides thread-safe access to missions and modules
type Registry struct {
	loader *Loader

	mu       sync.RWMutex
	modules  map[int]domain.ModuleInfo
	missions map[string]*domain.Mission
}

// NewRegistry creates a new mission registry
func NewRegistry(loader *Loader) *Registry {
	return &Registry{
		loader:   loader,
		modules:  make(map[int]domain.ModuleInfo),
		missions: make(map[string]*domain.Mission),
	}
}

// NewBuiltinRegistry returns a registry loaded with the embedded missions
func NewBuiltinRegistry() (*Registry, error) {
	r := NewRegistry(NewLoader(Builtin()))
	if err := r.Load(); err != nil {
		return nil, err
	}
	return r, nil
}

// Load reads every pack and swaps the registry contents in one step.
// On error the previous contents are kept.
func (r *Registry) Load() error {
	packs, err := r.loader.LoadAll()
	if err != nil {
		return fmt.Errorf("load packs: %w", err)
	}

	modules := make(map[int]domain.ModuleInfo, len(packs))
	missions := make(map[string]*domain.Mission)
	for _, pack := range packs {
		if _, dup := modules[pack.Info.ID]; dup {
			return fmt.Errorf("%w: module %d declared by more than one pack", domain.ErrInvalidMission, pack.Info.ID)
		}
		modules[pack.Info.ID] = pack.Info

		for _, m := range pack.Missions {
			if _, dup := missions[m.ID]; dup {
				return fmt.Errorf("%w: duplicate mission id %s", domain.ErrInvalidMission, m.ID)
			}
			missions[m.ID] = m
		}
	}

	r.mu.Lock()
	r.modules = modules
	r.missions = missions
	r.mu.Unlock()
	return nil
}

// Reload re-reads the catalog (used by the file watcher)
func (r *Registry) Reload() error {
	return r.Load()
}

// Get returns a mission by ID
func (r *Registry) Get(id string) (*domain.Mission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.missions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrMissionNotFound, id)
	}
	return m, nil
}

// List returns all missions ordered by module, then order
func (r *Registry) List() []*domain.Mission {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Mission, 0, len(r.missions))
	for _, m := range r.missions {
		out = append(out, m)
	}
	sortMissions(out)
	return out
}

// ByModule returns the missions of one module in pack order
func (r *Registry) ByModule(module int) []*domain.Mission {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, ok := r.modules[module]
	if !ok {
		return nil
	}
	out := make([]*domain.Mission, 0, len(info.MissionIDs))
	for _, id := range info.MissionIDs {
		if m, ok := r.missions[id]; ok {
			out = append(out, m)
		}
	}
	return out
}

// Module returns one module by number
func (r *Registry) Module(module int) (domain.ModuleInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, ok := r.modules[module]
	if !ok {
		return domain.ModuleInfo{}, fmt.Errorf("%w: %d", domain.ErrModuleNotFound, module)
	}
	return info, nil
}

// Modules returns all modules ordered by number
func (r *Registry) Modules() []domain.ModuleInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.ModuleInfo, 0, len(r.modules))
	for _, info := range r.modules {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Next returns the mission after id in its module.
// It returns nil without error when id is the last one.
func (r *Registry) Next(id string) (*domain.Mission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.missions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrMissionNotFound, id)
	}

	ids := r.modules[m.Module].MissionIDs
	for i, mid := range ids {
		if mid == id && i+1 < len(ids) {
			return r.missions[ids[i+1]], nil
		}
	}
	return nil, nil
}

// Stats returns statistics about loaded missions
func (r *Registry) Stats() RegistryStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := RegistryStats{
		ModuleCount:  len(r.modules),
		MissionCount: len(r.missions),
		ByDifficulty: make(map[string]int),
	}
	for _, m := range r.missions {
		stats.ByDifficulty[string(m.Metadata.Difficulty)]++
	}
	return stats
}

// RegistryStats holds statistics about the registry
type RegistryStats struct {
	ModuleCount  int            `json:"module_count"`
	MissionCount int            `json:"mission_count"`
	ByDifficulty map[string]int `json:"by_difficulty"`
}

func sortMissions(ms []*domain.Mission) {
	sort.Slice(ms, func(i, j int) bool {
		if ms[i].Module != ms[j].Module {
			return ms[i].Module < ms[j].Module
		}
		if ms[i].Order != ms[j].Order {
			return ms[i].Order < ms[j].Order
		}
		return ms[i].ID < ms[j].ID
	})
}
