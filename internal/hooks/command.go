package hooks

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

// CommandHook runs a shell command with the payload in DOGAN_* variables
type CommandHook struct {
	Command string
	Events  []Event
	Timeout time.Duration
}

// NewCommandHook creates a command hook. Without events it reacts to
// completion and failure.
func NewCommandHook(command string, events ...Event) *CommandHook {
	if len(events) == 0 {
		events = []Event{EventComplete, EventError}
	}
	return &CommandHook{
		Command: command,
		Events:  events,
		Timeout: 30 * time.Second,
	}
}

func (h *CommandHook) Name() string {
	return "command:" + h.Command
}

func (h *CommandHook) Execute(ctx context.Context, payload *Payload) error {
	if !eventSet(h.Events).has(payload.Event) {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, h.Timeout)
	defer cancel()

	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.CommandContext(ctx, "cmd", "/C", h.Command)
	} else {
		cmd = exec.CommandContext(ctx, "sh", "-c", h.Command)
	}
	cmd.Env = append(os.Environ(), Env(payload)...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("hook command failed: %w (stderr: %s)", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// Env renders the payload as environment assignments
func Env(p *Payload) []string {
	return []string{
		"DOGAN_EVENT=" + string(p.Event),
		"DOGAN_JOB_ID=" + p.JobID,
		"DOGAN_URL=" + p.URL,
		"DOGAN_MODE=" + p.Mode,
		"DOGAN_SELECTOR=" + p.Selector,
		"DOGAN_OUTPUT=" + p.OutputPath,
		fmt.Sprintf("DOGAN_PERCENT=%.1f", p.Percent),
		"DOGAN_CHECKSUM=" + p.Checksum,
		"DOGAN_PUBLISHED=" + p.Published,
		"DOGAN_ERROR=" + p.Error,
		fmt.Sprintf("DOGAN_DURATION=%.2f", p.Duration),
	}
}
