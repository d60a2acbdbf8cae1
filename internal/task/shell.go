package task

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"

	"github.com/LotharSee/mortar-luigi/internal/apperrors"
	"github.com/LotharSee/mortar-luigi/internal/token"
)

// ShellConfig configures one shell task.
type ShellConfig struct {
	TaskID    string // stable task identity, names the token (required)
	TokenPath string // base path for the token (required)
	Command   string // command line run via the shell (required)
}

// validate checks required fields.
func (c ShellConfig) validate() error {
	if c.TaskID == "" {
		return apperrors.Validation("task_id", "task ID is required")
	}
	if c.TokenPath == "" {
		return apperrors.Validation("token_path", "token path is required")
	}
	if c.Command == "" {
		return apperrors.Validation("command", "command is required")
	}
	return nil
}

// ShellTask runs a local shell command exactly once, synchronously. It
// is not idempotent against external side effects: re-running
// re-executes the command. Success is recorded only on a clean exit
// with empty stderr.
type ShellTask struct {
	config ShellConfig
	store  token.Store
	logger *slog.Logger
}

// NewShellTask creates a shell task.
func NewShellTask(cfg ShellConfig, store token.Store) (*ShellTask, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &ShellTask{
		config: cfg,
		store:  store,
		logger: slog.With("taskId", cfg.TaskID),
	}, nil
}

// Output returns the declared outputs of the task: its success token.
func (t *ShellTask) Output() []string {
	return []string{t.config.TokenPath + "/" + t.config.TaskID}
}

// Run executes the command, capturing stdout, stderr, and return code.
// A non-zero return code or any stderr output is fatal; the error
// carries the full diagnostic block. No retry, no cleanup.
func (t *ShellTask) Run(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, "sh", "-c", t.config.Command)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	returnCode := 0
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return fmt.Errorf("run command: %w", err)
		}
		returnCode = exitErr.ExitCode()
	}

	report := formatCommandReport(t.config.Command, stdout.String(), stderr.String(), returnCode)
	t.logger.Debug("Command finished", "report", report)

	if returnCode != 0 || stderr.Len() > 0 {
		return apperrors.CommandFailure(report)
	}

	if err := t.store.Write(ctx, t.Output()[0], nil); err != nil {
		return fmt.Errorf("write success token: %w", err)
	}
	return nil
}

// formatCommandReport builds the diagnostic block attached to command
// failures and debug logs.
func formatCommandReport(command, stdout, stderr string, returnCode int) string {
	return fmt.Sprintf(
		"\n-----------------------------"+
			"\nCMD         : %s"+
			"\nSTDOUT      : %q"+
			"\nSTDERR      : %q"+
			"\nRETURN CODE : %d"+
			"\n-----------------------------",
		command, stdout, stderr, returnCode,
	)
}
