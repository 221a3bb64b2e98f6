// Package engine talks to the external OCI container engine (podman or
// docker, in rootless mode) strictly through its CLI, never an SDK or
// socket. Every operation is built as an argv vector and run as a
// subprocess; its exit code and stderr drive error classification.
package engine

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ybox-project/ybox/pkg/ybox"
)

// Engine runs argv commands against a detected container engine binary.
type Engine struct {
	log     *logrus.Entry
	binary  string
	command func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// candidatePaths is the detection order from YBOX_CONTAINER_MANAGER
// fallback: podman, then docker, both under /usr/bin as the engine is
// expected to be installed system-wide for rootless operation.
var candidatePaths = []string{"/usr/bin/podman", "/usr/bin/docker"}

// Detect resolves the engine binary in priority order: the
// YBOX_CONTAINER_MANAGER environment variable, else /usr/bin/podman,
// else /usr/bin/docker.
func Detect() (string, error) {
	if override := os.Getenv("YBOX_CONTAINER_MANAGER"); override != "" {
		if _, err := os.Stat(override); err != nil {
			return "", ybox.NewError(ybox.KindEngine, override, fmt.Errorf("YBOX_CONTAINER_MANAGER set but not found: %w", err))
		}
		return override, nil
	}
	for _, path := range candidatePaths {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", ybox.NewError(ybox.KindEngine, "", fmt.Errorf("no container engine found (tried %s)", strings.Join(candidatePaths, ", ")))
}

// New returns an Engine bound to the given binary path.
func New(log *logrus.Entry, binary string) *Engine {
	return &Engine{log: log, binary: binary, command: exec.CommandContext}
}

// Binary returns the path this Engine was constructed with.
func (e *Engine) Binary() string {
	return e.binary
}

// Run executes one argv vector against the engine binary and returns its
// combined stdout/stderr as a single string, classifying a non-zero exit
// as an EngineError carrying the captured output.
func (e *Engine) Run(ctx context.Context, args ...string) (string, error) {
	before := time.Now()
	cmd := e.command(ctx, e.binary, args...)
	cmd.Env = os.Environ()

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	e.log.Debugf("%s %s: %s", e.binary, strings.Join(args, " "), time.Since(before))

	if err != nil {
		return out.String(), ybox.NewError(ybox.KindEngine, strings.Join(args, " "), fmt.Errorf("%w: %s", err, strings.TrimSpace(out.String())))
	}
	return out.String(), nil
}

// RunInteractive executes one argv vector with the calling process's
// stdio wired through directly, for `exec -it`-style interactive
// sessions (ybox-cmd) and for streaming image pulls.
func (e *Engine) RunInteractive(ctx context.Context, args ...string) error {
	cmd := e.command(ctx, e.binary, args...)
	cmd.Env = os.Environ()
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return ybox.NewError(ybox.KindEngine, strings.Join(args, " "), err)
	}
	return nil
}

// ImageExists reports whether image is already present locally.
func (e *Engine) ImageExists(ctx context.Context, image string) bool {
	_, err := e.Run(ctx, "image", "exists", image)
	return err == nil
}

// PullImage pulls image, streaming progress to the interactive stdio.
func (e *Engine) PullImage(ctx context.Context, image string) error {
	return e.RunInteractive(ctx, "pull", image)
}

// Create builds `create` argv from a ContainerSpec and runs it,
// returning the engine-assigned container ID.
func (e *Engine) Create(ctx context.Context, spec ContainerSpec) (string, error) {
	args := append([]string{"create"}, spec.Argv()...)
	out, err := e.Run(ctx, args...)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// Start starts a previously created or stopped container by name.
func (e *Engine) Start(ctx context.Context, name string) error {
	_, err := e.Run(ctx, "start", name)
	return err
}

// Stop stops a running container, asking for a graceful shutdown within
// timeout before the engine escalates to SIGKILL itself.
func (e *Engine) Stop(ctx context.Context, name string, timeout time.Duration) error {
	_, err := e.Run(ctx, "stop", "-t", fmt.Sprintf("%d", int(timeout.Seconds())), name)
	return err
}

// Remove removes a stopped container. force also removes a running one.
func (e *Engine) Remove(ctx context.Context, name string, force bool) error {
	args := []string{"rm"}
	if force {
		args = append(args, "-f")
	}
	args = append(args, name)
	_, err := e.Run(ctx, args...)
	return err
}

// Exec runs argv inside a running container and returns its output.
func (e *Engine) Exec(ctx context.Context, name string, asUser string, argv []string) (string, error) {
	args := []string{"exec"}
	if asUser != "" {
		args = append(args, "--user", asUser)
	}
	args = append(args, name)
	args = append(args, argv...)
	return e.Run(ctx, args...)
}

// ExecInteractive runs argv inside a running container with stdio
// connected to the caller, for `ybox-cmd`.
func (e *Engine) ExecInteractive(ctx context.Context, name string, asUser string, argv []string) error {
	args := []string{"exec", "-it"}
	if asUser != "" {
		args = append(args, "--user", asUser)
	}
	args = append(args, name)
	args = append(args, argv...)
	return e.RunInteractive(ctx, args...)
}

// Logs returns the container's captured logs, limited to the last tail
// lines when tail is positive. It does not follow the log.
func (e *Engine) Logs(ctx context.Context, name string, tail int) (string, error) {
	args := []string{"logs"}
	if tail > 0 {
		args = append(args, "--tail", fmt.Sprintf("%d", tail))
	}
	args = append(args, name)
	return e.Run(ctx, args...)
}

// LogsFollow streams logs to the caller's stdio until the context is
// cancelled (SIGINT from ybox-logs -f).
func (e *Engine) LogsFollow(ctx context.Context, name string) error {
	return e.RunInteractive(ctx, "logs", "-f", name)
}

// listTemplate is the engine's Go-template format string the adapter
// always requests, rather than relying on default tabular output, so
// the parser never has to guess at column widths.
const listTemplate = `{{.Names}}\t{{.Image}}\t{{.Status}}\t{{.ID}}`

// ListEntry is one row of engine container listing output.
type ListEntry struct {
	Name, Image, Status, ID string
}

// List returns every container (running and stopped) managed by the
// engine, matching name prefix filter if non-empty.
func (e *Engine) List(ctx context.Context, nameFilter string) ([]ListEntry, error) {
	args := []string{"ps", "-a", "--format", listTemplate}
	if nameFilter != "" {
		args = append(args, "--filter", "name="+nameFilter)
	}
	out, err := e.Run(ctx, args...)
	if err != nil {
		return nil, err
	}
	return parseListOutput(out), nil
}

func parseListOutput(out string) []ListEntry {
	var entries []ListEntry
	for _, line := range strings.Split(strings.TrimRight(out, "\n"), "\n") {
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 4 {
			continue
		}
		entries = append(entries, ListEntry{Name: fields[0], Image: fields[1], Status: fields[2], ID: fields[3]})
	}
	return entries
}
