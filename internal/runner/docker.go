package runner

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
)

const workspaceDir = "/workspace"

// DockerConfig holds Docker executor configuration
type DockerConfig struct {
	Image      string
	MemoryMB   int
	CPULimit   float64
	PidsLimit  int64
	NetworkOff bool
	Timeout    time.Duration
	ErrorTail  int
	Logger     *slog.Logger
}

// DefaultDockerConfig returns default Docker executor configuration
func DefaultDockerConfig() DockerConfig {
	return DockerConfig{
		Image:      "python:3.12-alpine",
		MemoryMB:   128,
		CPULimit:   0.5,
		PidsLimit:  64,
		NetworkOff: true,
		Timeout:    10 * time.Second,
		ErrorTail:  12,
	}
}

// DockerExecutor runs each script in a throwaway container
type DockerExecutor struct {
	client *client.Client
	config DockerConfig
	logger *slog.Logger
}

// NewDockerExecutor creates a Docker executor and verifies the daemon is reachable
func NewDockerExecutor(cfg DockerConfig) (*DockerExecutor, error) {
	d := DefaultDockerConfig()
	if cfg.Image == "" {
		cfg.Image = d.Image
	}
	if cfg.MemoryMB == 0 {
		cfg.MemoryMB = d.MemoryMB
	}
	if cfg.CPULimit == 0 {
		cfg.CPULimit = d.CPULimit
	}
	if cfg.PidsLimit == 0 {
		cfg.PidsLimit = d.PidsLimit
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = d.Timeout
	}
	if cfg.ErrorTail <= 0 {
		cfg.ErrorTail = d.ErrorTail
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := cli.Ping(ctx); err != nil {
		cli.Close()
		return nil, fmt.Errorf("docker not reachable: %w", err)
	}

	return &DockerExecutor{
		client: cli,
		config: cfg,
		logger: logger.With("component", "docker_executor"),
	}, nil
}

// Close closes the Docker client
func (e *DockerExecutor) Close() error {
	return e.client.Close()
}

// Run executes the script inside a fresh container and removes it afterwards
func (e *DockerExecutor) Run(ctx context.Context, code string) (*Result, error) {
	if strings.TrimSpace(code) == "" {
		return nil, ErrEmptyCode
	}

	if err := e.ensureImage(ctx); err != nil {
		return nil, fmt.Errorf("ensure image: %w", err)
	}

	id, err := e.createContainer(ctx)
	if err != nil {
		return nil, err
	}
	defer e.destroyContainer(id)

	archive, err := tarFiles(WorkspaceFiles(code))
	if err != nil {
		return nil, err
	}
	if err := e.client.CopyToContainer(ctx, id, workspaceDir, archive, container.CopyToContainerOptions{}); err != nil {
		return nil, fmt.Errorf("copy files: %w", err)
	}

	return e.exec(ctx, id)
}

func (e *DockerExecutor) createContainer(ctx context.Context) (string, error) {
	containerCfg := &container.Config{
		Image:           e.config.Image,
		Cmd:             []string{"sh", "-c", "while true; do sleep 3600; done"},
		WorkingDir:      workspaceDir,
		NetworkDisabled: e.config.NetworkOff,
		Tty:             false,
		Labels: map[string]string{
			"pylab.runner": "true",
		},
	}

	pids := e.config.PidsLimit
	hostCfg := &container.HostConfig{
		Resources: container.Resources{
			Memory:    int64(e.config.MemoryMB) * 1024 * 1024,
			NanoCPUs:  int64(e.config.CPULimit * 1e9),
			PidsLimit: &pids,
		},
	}
	if e.config.NetworkOff {
		hostCfg.NetworkMode = "none"
	}

	resp, err := e.client.ContainerCreate(ctx, containerCfg, hostCfg, nil, nil, "")
	if err != nil {
		return "", fmt.Errorf("create container: %w", err)
	}

	if err := e.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		e.destroyContainer(resp.ID)
		return "", fmt.Errorf("start container: %w", err)
	}

	return resp.ID, nil
}

func (e *DockerExecutor) exec(ctx context.Context, id string) (*Result, error) {
	execCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	execResp, err := e.client.ContainerExecCreate(execCtx, id, container.ExecOptions{
		Cmd:          []string{"python3", "-u", ScriptName},
		Env:          scriptEnv(workspaceDir),
		WorkingDir:   workspaceDir,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create exec: %w", err)
	}

	start := time.Now()

	attachResp, err := e.client.ContainerExecAttach(execCtx, execResp.ID, container.ExecAttachOptions{})
	if err != nil {
		return nil, fmt.Errorf("attach exec: %w", err)
	}
	defer attachResp.Close()

	type streams struct {
		stdout, stderr string
		err            error
	}
	done := make(chan streams, 1)
	go func() {
		stdout, stderr, err := demux(attachResp.Reader)
		done <- streams{stdout, stderr, err}
	}()

	var out streams
	select {
	case out = <-done:
	case <-execCtx.Done():
		attachResp.Close()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return &Result{
			Error:    timeoutMessage(e.config.Timeout),
			Duration: time.Since(start),
		}, nil
	}
	duration := time.Since(start)
	if out.err != nil {
		return nil, fmt.Errorf("read exec output: %w", out.err)
	}

	inspectResp, err := e.client.ContainerExecInspect(execCtx, execResp.ID)
	if err != nil {
		return nil, fmt.Errorf("inspect exec: %w", err)
	}

	res := &Result{
		Success:  inspectResp.ExitCode == 0,
		Output:   out.stdout,
		Duration: duration,
	}
	if !res.Success {
		res.Error = tail(out.stderr, e.config.ErrorTail)
		if res.Error == "" {
			res.Error = fmt.Sprintf("script exited with status %d", inspectResp.ExitCode)
		}
	}
	return res, nil
}

// destroyContainer removes a container even when the run context is gone
func (e *DockerExecutor) destroyContainer(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.client.ContainerRemove(ctx, id, container.RemoveOptions{Force: true}); err != nil {
		e.logger.Warn("remove container", "container_id", id, "error", err)
	}
}

func (e *DockerExecutor) ensureImage(ctx context.Context) error {
	if _, err := e.client.ImageInspect(ctx, e.config.Image); err == nil {
		return nil
	}

	e.logger.Info("pulling runner image", "image", e.config.Image)
	reader, err := e.client.ImagePull(ctx, e.config.Image, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("pull image %s: %w", e.config.Image, err)
	}
	defer reader.Close()
	_, _ = io.Copy(io.Discard, reader)
	return nil
}

// tarFiles packs files (slash-separated paths) into an archive, adding
// directory entries before their contents
func tarFiles(files map[string]string) (io.Reader, error) {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	dirs := make(map[string]bool)

	for _, name := range names {
		if dir := path.Dir(name); dir != "." && !dirs[dir] {
			dirs[dir] = true
			if err := tw.WriteHeader(&tar.Header{
				Name:     dir + "/",
				Mode:     0o755,
				Typeflag: tar.TypeDir,
			}); err != nil {
				return nil, fmt.Errorf("write tar header: %w", err)
			}
		}

		content := files[name]
		if err := tw.WriteHeader(&tar.Header{
			Name: name,
			Mode: 0o644,
			Size: int64(len(content)),
		}); err != nil {
			return nil, fmt.Errorf("write tar header: %w", err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			return nil, fmt.Errorf("write tar content: %w", err)
		}
	}

	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("close tar: %w", err)
	}
	return &buf, nil
}

// demux separates the multiplexed stdout/stderr stream of a non-TTY exec
func demux(r io.Reader) (stdout, stderr string, err error) {
	var outBuf, errBuf bytes.Buffer
	if _, err := stdcopy.StdCopy(&outBuf, &errBuf, r); err != nil {
		return outBuf.String(), errBuf.String(), err
	}
	return outBuf.String(), errBuf.String(), nil
}

var _ Executor = (*DockerExecutor)(nil)
