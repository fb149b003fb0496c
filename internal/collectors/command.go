package collectors

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/breeze-rmm/patchaudit/internal/patching"
)

const defaultCommandTimeout = 120 * time.Second

// runFunc executes a command and returns its standard output.
type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return out, nil
}

// CommandSource reads installed patch ids from the output of an OS
// command, one id per line.
type CommandSource struct {
	name    string
	command string
	args    []string
	header  string
	timeout time.Duration
	run     runFunc
}

// NewPowerShellSource lists hotfixes with Get-HotFix.
func NewPowerShellSource(timeout time.Duration) *CommandSource {
	return &CommandSource{
		name:    "powershell",
		command: "powershell",
		args: []string{"-NoProfile", "-NonInteractive", "-Command",
			"Get-HotFix | Select-Object -ExpandProperty HotFixID"},
		timeout: timeout,
		run:     runCommand,
	}
}

// NewWMICSource lists hotfixes with `wmic qfe get HotFixID`.
func NewWMICSource(timeout time.Duration) *CommandSource {
	return &CommandSource{
		name:    "wmic",
		command: "wmic",
		args:    []string{"qfe", "get", "HotFixID"},
		header:  "HotFixID",
		timeout: timeout,
		run:     runCommand,
	}
}

func (s *CommandSource) Name() string {
	return s.name
}

func (s *CommandSource) InstalledPatchIDs(ctx context.Context) (patching.PatchSet, error) {
	timeout := s.timeout
	if timeout <= 0 {
		timeout = defaultCommandTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := s.run(ctx, s.command, s.args...)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%s timed out after %s", s.command, timeout)
		}
		return nil, fmt.Errorf("%s: %w", s.command, err)
	}
	return parseIDLines(bytes.NewReader(out), s.header)
}

// parseIDLines reads one patch id per line. Blank lines, # comments and a
// line equal to header are skipped.
func parseIDLines(r io.Reader, header string) (patching.PatchSet, error) {
	set := patching.NewPatchSet()
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), "\ufeff"))
		if line == "" || strings.HasPrefix(line, "#") || (header != "" && strings.EqualFold(line, header)) {
			continue
		}
		set.Add(line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return set, nil
}
