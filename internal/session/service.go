package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/felixgeelhaar/pylab/internal/domain"
	"github.com/felixgeelhaar/pylab/internal/progress"
	"github.com/felixgeelhaar/pylab/internal/protocol"
	"github.com/felixgeelhaar/pylab/internal/runner"
	"github.com/felixgeelhaar/pylab/internal/validator"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrRunInProgress   = errors.New("a run is already in progress for this session")
	ErrNoExecutor      = errors.New("no executor configured")
)

// RunReport is everything a caller needs to render one validated run
type RunReport struct {
	Session    *Session                `json:"session"`
	Run        runner.Result           `json:"run"`
	Console    []ConsoleLine           `json:"console"`
	Validation domain.ValidationResult `json:"validation"`
	Progress   *domain.ProgressRecord  `json:"progress,omitempty"`
	Stars      string                  `json:"stars,omitempty"`
	NextID     string                  `json:"next_mission_id,omitempty"`
}

// Service manages lab sessions
type Service struct {
	store     SessionStore
	catalog   MissionCatalog
	executor  runner.Executor
	progress  progress.ProgressService
	extractor *protocol.Extractor
	validator *validator.Validator
	logger    *slog.Logger

	// mu guards session read-modify-write and the running set
	mu      sync.Mutex
	running map[string]bool
}

// NewService creates a new session service. executor may be nil when runs
// are always executed elsewhere and reported through Submit.
func NewService(store SessionStore, catalog MissionCatalog, executor runner.Executor, prog progress.ProgressService, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "session")
	return &Service{
		store:     store,
		catalog:   catalog,
		executor:  executor,
		progress:  prog,
		extractor: protocol.NewExtractor(logger),
		validator: validator.NewValidator(),
		logger:    logger,
		running:   make(map[string]bool),
	}
}

// Open starts a new session seeded from the mission's starter code
func (s *Service) Open(ctx context.Context, missionID string) (*Session, error) {
	m, err := s.catalog.Get(missionID)
	if err != nil {
		return nil, err
	}

	session := NewSession(m)
	if err := s.store.Save(session); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	s.logger.Info("session opened", "session_id", session.ID, "mission_id", m.ID)
	return session, nil
}

// Get retrieves a session by ID
func (s *Service) Get(ctx context.Context, id string) (*Session, error) {
	session, err := s.store.Get(id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return session, nil
}

// List returns all sessions, most recently updated first
func (s *Service) List(ctx context.Context) ([]*Session, error) {
	return s.store.ListAll()
}

// Delete removes a session
func (s *Service) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Delete(id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrSessionNotFound
		}
		return err
	}
	return nil
}

// SetCode replaces the code buffer
func (s *Service) SetCode(ctx context.Context, id, code string) (*Session, error) {
	return s.update(id, func(session *Session) error {
		session.UpdateCode(code)
		return nil
	})
}

// Reset restores the code, console, visualization and hints to the mission defaults
func (s *Service) Reset(ctx context.Context, id string) (*Session, error) {
	return s.update(id, func(session *Session) error {
		m, err := s.catalog.Get(session.MissionID)
		if err != nil {
			return err
		}
		session.ResetTo(m)
		return nil
	})
}

// NextHint reveals the next hint. At the last hint the level stays put and
// the last hint is returned again. Missions without hints return a zero Hint.
func (s *Service) NextHint(ctx context.Context, id string) (*Session, domain.Hint, error) {
	var hint domain.Hint
	session, err := s.update(id, func(session *Session) error {
		m, err := s.catalog.Get(session.MissionID)
		if err != nil {
			return err
		}
		session.NextHint(m.MaxHintLevel())
		hint, _ = m.HintAt(session.HintLevel)
		return nil
	})
	return session, hint, err
}

// Run executes code (the session's buffer when code is empty) and
// validates the outcome. Only one run per session may be in flight.
func (s *Service) Run(ctx context.Context, id, code string) (*RunReport, error) {
	if s.executor == nil {
		return nil, ErrNoExecutor
	}

	if err := s.acquire(id); err != nil {
		return nil, err
	}
	defer s.release(id)

	session, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if code == "" {
		code = session.Code
	}

	res, err := s.executor.Run(ctx, code)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.logger.Warn("execution failed", "session_id", id, "error", err)
		res = runner.Failed(err)
	}

	return s.Submit(ctx, id, code, *res)
}

// Submit validates a run that has already been executed: it extracts the
// visualization, validates it against the mission, records the attempt
// and, on a pass, the learner's progress.
func (s *Service) Submit(ctx context.Context, id, code string, res runner.Result) (*RunReport, error) {
	session, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	m, err := s.catalog.Get(session.MissionID)
	if err != nil {
		return nil, err
	}

	ex := s.extractor.Extract(res.Output)

	// a script that raised leaves no visualization behind
	var vis domain.Visualization
	if res.Success {
		vis = ex.Visualization()
	}

	lines := protocol.Lines(ex.Cleaned)
	result := s.validator.Validate(m, validator.Input{
		Source:        code,
		Console:       lines,
		Visualization: vis,
	})

	console := make([]ConsoleLine, 0, len(lines)+1)
	for _, l := range lines {
		console = append(console, ConsoleLine{Kind: LineLog, Text: l})
	}
	if !res.Success && res.Error != "" {
		console = append(console, ConsoleLine{Kind: LineError, Text: res.Error})
	}

	report := &RunReport{
		Run:        res,
		Console:    console,
		Validation: result,
	}

	if s.progress != nil {
		if err := s.progress.RecordAttempt(ctx, domain.Attempt{
			MissionID: m.ID,
			SessionID: id,
			Passed:    result.Passed,
			Score:     result.Score,
			Errors:    len(result.Errors),
		}); err != nil {
			s.logger.Warn("record attempt", "mission_id", m.ID, "error", err)
		}

		if result.Passed {
			rec, err := s.progress.MarkComplete(ctx, m.ID, result.Score)
			if err != nil {
				return nil, fmt.Errorf("mark complete: %w", err)
			}
			report.Progress = &rec
		}
	}

	if result.Passed {
		report.Stars = m.StarDescription(result.Score)
		if next, err := s.catalog.Next(m.ID); err == nil && next != nil {
			report.NextID = next.ID
		}
	}

	session, err = s.update(id, func(session *Session) error {
		session.RecordRun(code, console, vis, result)
		return nil
	})
	if err != nil {
		return nil, err
	}
	report.Session = session

	s.logger.Info("run validated",
		"session_id", id,
		"mission_id", m.ID,
		"passed", result.Passed,
		"score", int(result.Score))

	return report, nil
}

// Running reports whether a run is in flight for the session
func (s *Service) Running(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running[id]
}

func (s *Service) acquire(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running[id] {
		return ErrRunInProgress
	}
	s.running[id] = true
	return nil
}

func (s *Service) release(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.running, id)
}

// update applies fn to the stored session and saves it as one step
func (s *Service) update(id string, fn func(*Session) error) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.store.Get(id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	if err := fn(session); err != nil {
		return nil, err
	}

	if err := s.store.Save(session); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return session, nil
}
