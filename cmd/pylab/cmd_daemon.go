package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/felixgeelhaar/pylab/internal/config"
	"github.com/spf13/cobra"
)

func newStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the pylab daemon in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdStart(cmd.OutOrStdout())
		},
	}
}

func newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the pylab daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdStop(cmd.OutOrStdout())
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdStatus(cmd.OutOrStdout())
		},
	}
}

func newLogsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logs",
		Short: "Show recent daemon logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdLogs(cmd.OutOrStdout())
		},
	}
}

// daemonURL returns the base URL of the configured daemon
func daemonURL() string {
	cfg, err := config.LoadLocalConfig()
	if err != nil {
		cfg = config.DefaultLocalConfig()
	}
	return "http://" + cfg.Daemon.Address()
}

// cmdStart starts the daemon in the background
func cmdStart(out io.Writer) error {
	addr := daemonURL()
	if isRunning(addr) {
		fmt.Fprintln(out, "✓ Daemon is already running")
		return nil
	}

	pylabDir, err := config.EnsurePylabDir()
	if err != nil {
		return fmt.Errorf("setup pylab directory: %w", err)
	}

	pylabdPath, err := findDaemonBinary()
	if err != nil {
		return fmt.Errorf("find daemon binary: %w", err)
	}

	cmd := exec.Command(pylabdPath)
	cmd.Dir = pylabDir
	cmd.Stdout = nil
	cmd.Stderr = nil

	detach(cmd)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	fmt.Fprint(out, "Starting daemon...")
	for i := 0; i < 30; i++ {
		time.Sleep(100 * time.Millisecond)
		if isRunning(addr) {
			fmt.Fprintln(out, " ✓")
			fmt.Fprintf(out, "Daemon running at %s\n", addr)
			return nil
		}
		fmt.Fprint(out, ".")
	}

	fmt.Fprintln(out, " ✗")
	return fmt.Errorf("daemon failed to start (check logs with 'pylab logs')")
}

// cmdStop stops the daemon
func cmdStop(out io.Writer) error {
	addr := daemonURL()
	if !isRunning(addr) {
		fmt.Fprintln(out, "Daemon is not running")
		return nil
	}

	pylabDir, err := config.PylabDir()
	if err != nil {
		return err
	}

	pid, err := readPIDFile(filepath.Join(pylabDir, pidFile))
	if err != nil {
		return err
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("find process: %w", err)
	}

	fmt.Fprint(out, "Stopping daemon...")
	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("send signal: %w", err)
	}

	for i := 0; i < 50; i++ {
		time.Sleep(100 * time.Millisecond)
		if !isRunning(addr) {
			fmt.Fprintln(out, " ✓")
			return nil
		}
		fmt.Fprint(out, ".")
	}

	fmt.Fprintln(out, " ✗")
	return fmt.Errorf("daemon did not stop gracefully")
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read PID file: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parse PID: %w", err)
	}
	return pid, nil
}

type daemonStatus struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Runner  string `json:"runner"`
	Uptime  int    `json:"uptime_s"`
	Catalog struct {
		ModuleCount  int `json:"module_count"`
		MissionCount int `json:"mission_count"`
	} `json:"catalog"`
}

// cmdStatus shows daemon status
func cmdStatus(out io.Writer) error {
	addr := daemonURL()
	if !isRunning(addr) {
		fmt.Fprintln(out, "Status: stopped")
		return nil
	}

	status, err := fetchStatus(addr)
	if err != nil {
		return err
	}
	printStatus(out, addr, status)
	return nil
}

func fetchStatus(addr string) (*daemonStatus, error) {
	resp, err := http.Get(addr + "/v1/status")
	if err != nil {
		return nil, fmt.Errorf("get status: %w", err)
	}
	defer resp.Body.Close()

	var status daemonStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("parse status: %w", err)
	}
	return &status, nil
}

func printStatus(out io.Writer, addr string, status *daemonStatus) {
	fmt.Fprintf(out, "Status:    %s\n", status.Status)
	fmt.Fprintf(out, "Version:   %s\n", status.Version)
	fmt.Fprintf(out, "Runner:    %s\n", status.Runner)
	fmt.Fprintf(out, "Missions:  %d in %d modules\n", status.Catalog.MissionCount, status.Catalog.ModuleCount)
	fmt.Fprintf(out, "Uptime:    %s\n", time.Duration(status.Uptime)*time.Second)
	fmt.Fprintf(out, "Address:   %s\n", addr)
}

// cmdLogs shows daemon logs
func cmdLogs(out io.Writer) error {
	pylabDir, err := config.PylabDir()
	if err != nil {
		return err
	}

	logPath := filepath.Join(pylabDir, "logs", "pylabd.log")
	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		fmt.Fprintln(out, "No log file found. Start the daemon first.")
		return nil
	}

	file, err := os.Open(logPath)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	return tailLines(file, out, 4096)
}

// tailLines prints the complete lines within the last n bytes of f
func tailLines(f *os.File, out io.Writer, n int64) error {
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat log file: %w", err)
	}
	offset := info.Size() - n
	if offset < 0 {
		offset = 0
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return fmt.Errorf("seek log file: %w", err)
	}

	reader := bufio.NewReader(f)
	// Skip partial first line if we seeked
	if offset > 0 {
		_, _ = reader.ReadString('\n')
	}

	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		fmt.Fprintln(out, scanner.Text())
	}
	return scanner.Err()
}

// isRunning checks if the daemon is running by calling the health endpoint
func isRunning(addr string) bool {
	client := &http.Client{Timeout: time.Second}
	resp, err := client.Get(addr + "/v1/health")
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// findDaemonBinary locates the pylabd binary
func findDaemonBinary() (string, error) {
	if path, err := exec.LookPath("pylabd"); err == nil {
		return path, nil
	}

	// Check relative to this binary
	self, err := os.Executable()
	if err == nil {
		path := filepath.Join(filepath.Dir(self), "pylabd")
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	locations := []string{
		"/usr/local/bin/pylabd",
		"./pylabd",
		"./cmd/pylabd/pylabd",
	}
	for _, path := range locations {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("pylabd binary not found (build with 'go build ./cmd/pylabd')")
}
