package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	mcp "github.com/felixgeelhaar/mcp-go"
	"github.com/felixgeelhaar/mcp-go/server"

	"github.com/felixgeelhaar/pylab/internal/domain"
	"github.com/felixgeelhaar/pylab/internal/progress"
	"github.com/felixgeelhaar/pylab/internal/session"
)

// Catalog is the part of the mission registry the tools read
type Catalog interface {
	Get(id string) (*domain.Mission, error)
	List() []*domain.Mission
	ByModule(module int) []*domain.Mission
}

// Server wraps the MCP server with pylab functionality
type Server struct {
	mcpServer *server.Server
	catalog   Catalog
	sessions  session.SessionService
	progress  progress.ProgressService
}

// Config contains configuration for the MCP server
type Config struct {
	Catalog  Catalog
	Sessions session.SessionService
	Progress progress.ProgressService
	Version  string
}

// NewServer creates a new MCP server for pylab
func NewServer(cfg Config) *Server {
	s := &Server{
		catalog:  cfg.Catalog,
		sessions: cfg.Sessions,
		progress: cfg.Progress,
	}

	version := cfg.Version
	if version == "" {
		version = "0.1.0"
	}

	s.mcpServer = server.New(server.Info{
		Name:    "pylab",
		Version: version,
	}, server.WithInstructions(`
pylab teaches Python through missions. Each mission asks the learner to
write a short script against the physicslab or mathcanvas library; the
script's final world or canvas is checked against the mission's goals.

Available tools:
- pylab_missions: List missions, optionally for one module
- pylab_start: Open a session on a mission and get its briefing and starter code
- pylab_run: Run code in a session and get the validation result
- pylab_hint: Reveal the next hint for a session
- pylab_reset: Restore a session to the mission's starter code
- pylab_progress: Show completion and stars per module

Scores run from 1 to 3 stars. Only passing runs are recorded.
`))

	s.registerTools()

	return s
}

// registerTools registers all pylab MCP tools
func (s *Server) registerTools() {
	s.mcpServer.Tool("pylab_missions").
		Description("List missions with their difficulty and the learner's best score").
		Handler(s.handleMissions)

	s.mcpServer.Tool("pylab_start").
		Description("Start a session on a mission. Returns the briefing and starter code.").
		Handler(s.handleStart)

	s.mcpServer.Tool("pylab_run").
		Description("Run Python code in a session and validate the result.").
		Handler(s.handleRun)

	s.mcpServer.Tool("pylab_hint").
		Description("Reveal the next hint. The last hint repeats once all are shown.").
		Handler(s.handleHint)

	s.mcpServer.Tool("pylab_reset").
		Description("Reset a session's code, console and hints to the mission defaults.").
		Handler(s.handleReset)

	s.mcpServer.Tool("pylab_progress").
		Description("Show completed missions and stars per module.").
		Handler(s.handleProgress)
}

// Input/Output types for tools

type MissionsInput struct {
	Module int `json:"module,omitempty" jsonschema:"description=Module number (1 = physics and 5 = algebra); 0 lists all"`
}

type MissionItem struct {
	ID         string `json:"id"`
	Module     int    `json:"module"`
	Title      string `json:"title"`
	Difficulty string `json:"difficulty"`
	Stars      int    `json:"stars"`
}

type MissionsOutput struct {
	Missions []MissionItem `json:"missions"`
}

type StartInput struct {
	MissionID string `json:"mission_id" jsonschema:"description=Mission ID such as 1_1 or 5-1-2"`
}

type StartOutput struct {
	SessionID   string `json:"session_id"`
	MissionID   string `json:"mission_id"`
	Title       string `json:"title"`
	Situation   string `json:"situation"`
	Task        string `json:"task"`
	StarterCode string `json:"starter_code"`
	HintCount   int    `json:"hint_count"`
}

type RunInput struct {
	SessionID string `json:"session_id" jsonschema:"description=Session ID from pylab_start"`
	Code      string `json:"code,omitempty" jsonschema:"description=Python source; omit to run the session's current code"`
}

type RunOutput struct {
	Passed        bool     `json:"passed"`
	Score         int      `json:"score"`
	Stars         string   `json:"stars,omitempty"`
	Feedback      []string `json:"feedback"`
	Errors        []string `json:"errors"`
	Console       string   `json:"console"`
	NextMissionID string   `json:"next_mission_id,omitempty"`
	Summary       string   `json:"summary"`
}

type SessionInput struct {
	SessionID string `json:"session_id" jsonschema:"description=Session ID from pylab_start"`
}

type HintOutput struct {
	Level int    `json:"level"`
	Hint  string `json:"hint"`
	Last  bool   `json:"last"`
}

type ResetOutput struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ProgressInput struct{}

type ModuleProgressItem struct {
	Module    int `json:"module"`
	Completed int `json:"completed"`
	Total     int `json:"total"`
	Stars     int `json:"stars"`
	MaxStars  int `json:"max_stars"`
}

type ProgressOutput struct {
	Modules []ModuleProgressItem `json:"modules"`
	Summary string               `json:"summary"`
}

// Tool handlers

func (s *Server) handleMissions(ctx context.Context, input MissionsInput) (MissionsOutput, error) {
	missions := s.catalog.List()
	if input.Module > 0 {
		missions = s.catalog.ByModule(input.Module)
	}

	out := MissionsOutput{Missions: make([]MissionItem, 0, len(missions))}
	for _, m := range missions {
		item := MissionItem{
			ID:         m.ID,
			Module:     m.Module,
			Title:      m.Title,
			Difficulty: string(m.Metadata.Difficulty),
		}
		if rec, ok, err := s.progress.GetMissionProgress(ctx, m.ID); err == nil && ok {
			item.Stars = int(rec.Score)
		}
		out.Missions = append(out.Missions, item)
	}
	return out, nil
}

func (s *Server) handleStart(ctx context.Context, input StartInput) (StartOutput, error) {
	m, err := s.catalog.Get(input.MissionID)
	if err != nil {
		return StartOutput{}, err
	}

	sess, err := s.sessions.Open(ctx, m.ID)
	if err != nil {
		return StartOutput{}, fmt.Errorf("failed to start session: %w", err)
	}

	return StartOutput{
		SessionID:   sess.ID,
		MissionID:   m.ID,
		Title:       m.Title,
		Situation:   m.Briefing.Situation,
		Task:        m.Briefing.Task,
		StarterCode: sess.Code,
		HintCount:   len(m.Hints),
	}, nil
}

func (s *Server) handleRun(ctx context.Context, input RunInput) (RunOutput, error) {
	report, err := s.sessions.Run(ctx, input.SessionID, input.Code)
	if err != nil {
		if errors.Is(err, session.ErrRunInProgress) {
			return RunOutput{}, fmt.Errorf("a run is already in progress for session %s", input.SessionID)
		}
		return RunOutput{}, fmt.Errorf("run failed: %w", err)
	}

	lines := make([]string, 0, len(report.Console))
	for _, l := range report.Console {
		lines = append(lines, l.Text)
	}

	out := RunOutput{
		Passed:        report.Validation.Passed,
		Score:         int(report.Validation.Score),
		Stars:         report.Stars,
		Feedback:      report.Validation.Feedback,
		Errors:        report.Validation.Errors,
		Console:       strings.Join(lines, "\n"),
		NextMissionID: report.NextID,
	}

	if out.Passed {
		out.Summary = fmt.Sprintf("Mission passed: %s", strings.Repeat("★", out.Score)+strings.Repeat("☆", int(domain.MaxScore)-out.Score))
	} else {
		out.Summary = fmt.Sprintf("Mission not passed: %d check(s) failed", len(out.Errors))
	}
	return out, nil
}

func (s *Server) handleHint(ctx context.Context, input SessionInput) (HintOutput, error) {
	sess, hint, err := s.sessions.NextHint(ctx, input.SessionID)
	if err != nil {
		return HintOutput{}, fmt.Errorf("hint failed: %w", err)
	}
	if hint.Text == "" {
		return HintOutput{Level: sess.HintLevel, Hint: "This mission has no hints.", Last: true}, nil
	}

	m, err := s.catalog.Get(sess.MissionID)
	if err != nil {
		return HintOutput{}, err
	}

	return HintOutput{
		Level: sess.HintLevel,
		Hint:  hint.Text,
		Last:  sess.HintLevel >= m.MaxHintLevel(),
	}, nil
}

func (s *Server) handleReset(ctx context.Context, input SessionInput) (ResetOutput, error) {
	sess, err := s.sessions.Reset(ctx, input.SessionID)
	if err != nil {
		return ResetOutput{}, fmt.Errorf("reset failed: %w", err)
	}
	return ResetOutput{
		Code:    sess.Code,
		Message: "Session reset to the starter code",
	}, nil
}

func (s *Server) handleProgress(ctx context.Context, _ ProgressInput) (ProgressOutput, error) {
	overview, err := s.progress.Overview(ctx)
	if err != nil {
		return ProgressOutput{}, fmt.Errorf("failed to get progress: %w", err)
	}

	out := ProgressOutput{Modules: make([]ModuleProgressItem, 0, len(overview))}
	var completed, total, stars int
	for _, mp := range overview {
		out.Modules = append(out.Modules, ModuleProgressItem{
			Module:    mp.Module,
			Completed: mp.Completed,
			Total:     mp.Total,
			Stars:     mp.Stars,
			MaxStars:  mp.MaxStars,
		})
		completed += mp.Completed
		total += mp.Total
		stars += mp.Stars
	}
	out.Summary = fmt.Sprintf("%d/%d missions completed, %d stars", completed, total, stars)
	return out, nil
}

// ServeStdio starts the MCP server on stdio
func (s *Server) ServeStdio(ctx context.Context) error {
	return mcp.ServeStdio(ctx, s.mcpServer)
}

// ServeHTTP starts the MCP server on HTTP (alternative transport)
func (s *Server) ServeHTTP(ctx context.Context, addr string) error {
	return mcp.ServeHTTP(ctx, s.mcpServer, addr)
}

// GetMCPServer returns the underlying MCP server (for testing)
func (s *Server) GetMCPServer() *server.Server {
	return s.mcpServer
}
