package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Executor runs a learner script.
//
// A returned error means the execution infrastructure failed. A script
// that raised or timed out is reported as a Result with Success=false.
type Executor interface {
	Run(ctx context.Context, code string) (*Result, error)
}

// Result is the outcome of one script run
type Result struct {
	Success  bool          `json:"success"`
	Output   string        `json:"output"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Failed builds the Result used when the bridge itself could not run the script
func Failed(err error) *Result {
	return &Result{Success: false, Error: err.Error()}
}

var (
	// ErrPythonNotFound is returned when no Python interpreter is available
	ErrPythonNotFound = errors.New("python interpreter not found")

	// ErrEmptyCode is returned for a blank script
	ErrEmptyCode = errors.New("code is empty")
)

// ScriptName is the file the learner's code is written to
const ScriptName = "main.py"

// Config holds runner configuration
type Config struct {
	Python    string
	Timeout   time.Duration
	MaxOutput int // bytes of stdout kept per run
	ErrorTail int // trailing stderr lines reported as Result.Error
}

// DefaultConfig returns default runner configuration
func DefaultConfig() Config {
	return Config{
		Python:    "python3",
		Timeout:   10 * time.Second,
		MaxOutput: 1 << 20,
		ErrorTail: 12,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Python == "" {
		c.Python = d.Python
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.MaxOutput <= 0 {
		c.MaxOutput = d.MaxOutput
	}
	if c.ErrorTail <= 0 {
		c.ErrorTail = d.ErrorTail
	}
	return c
}

// LocalExecutor runs scripts with a local Python interpreter
type LocalExecutor struct {
	config Config
}

// NewLocalExecutor creates a new local executor
func NewLocalExecutor(cfg Config) *LocalExecutor {
	return &LocalExecutor{config: cfg.withDefaults()}
}

// Available reports whether the configured interpreter can be found
func (e *LocalExecutor) Available() bool {
	_, err := exec.LookPath(e.config.Python)
	return err == nil
}

// Run writes the script next to the embedded libraries and executes it
func (e *LocalExecutor) Run(ctx context.Context, code string) (*Result, error) {
	if strings.TrimSpace(code) == "" {
		return nil, ErrEmptyCode
	}

	python, err := exec.LookPath(e.config.Python)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrPythonNotFound, e.config.Python)
	}

	tmpDir, err := createWorkspace(code)
	if err != nil {
		return nil, err
	}
	defer removeWorkspace(tmpDir)

	runCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	stdout := &limitedBuffer{limit: e.config.MaxOutput}
	var stderr bytes.Buffer

	cmd := exec.CommandContext(runCtx, python, "-u", ScriptName)
	cmd.Dir = tmpDir
	cmd.Env = append(os.Environ(), scriptEnv(tmpDir)...)
	cmd.Stdout = stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)

	res := &Result{
		Output:   stdout.String(),
		Duration: duration,
	}

	switch {
	case runErr == nil:
		res.Success = true
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		res.Error = timeoutMessage(e.config.Timeout)
	default:
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			return nil, fmt.Errorf("run python: %w", runErr)
		}
		res.Error = tail(stderr.String(), e.config.ErrorTail)
		if res.Error == "" {
			res.Error = fmt.Sprintf("script exited with status %d", exitErr.ExitCode())
		}
	}

	return res, nil
}

func scriptEnv(dir string) []string {
	return []string{
		"PYTHONPATH=" + dir,
		"PYTHONDONTWRITEBYTECODE=1",
		"PYTHONIOENCODING=utf-8",
	}
}

func timeoutMessage(d time.Duration) string {
	return fmt.Sprintf("execution timed out after %s", d)
}

// createWorkspace lays out the script and the embedded libraries in a temp dir
func createWorkspace(code string) (string, error) {
	tmpDir, err := os.MkdirTemp("", "pylab-run-*")
	if err != nil {
		return "", fmt.Errorf("create workspace: %w", err)
	}

	files := WorkspaceFiles(code)
	for name, content := range files {
		path := filepath.Join(tmpDir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			removeWorkspace(tmpDir)
			return "", fmt.Errorf("create workspace: %w", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			removeWorkspace(tmpDir)
			return "", fmt.Errorf("write %s: %w", name, err)
		}
	}

	return tmpDir, nil
}

func removeWorkspace(dir string) {
	_ = os.RemoveAll(dir)
}

// tail returns the last n lines of s
func tail(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\r\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// limitedBuffer keeps at most limit bytes and silently drops the rest
type limitedBuffer struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if room := b.limit - b.buf.Len(); room < len(p) {
		if room > 0 {
			b.buf.Write(p[:room])
		}
		b.truncated = true
		return len(p), nil
	}
	return b.buf.Write(p)
}

func (b *limitedBuffer) String() string {
	if b.truncated {
		return b.buf.String() + "\n[output truncated]\n"
	}
	return b.buf.String()
}
