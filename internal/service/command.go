package service

import (
	"context"
	"strings"
)

// CommandRunner executes an external program and returns its trimmed stdout.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
	// RunWithInput feeds stdin to the program, used when a payload must not travel through argv.
	RunWithInput(ctx context.Context, stdin string, name string, args ...string) (string, error)
}

// CommandError describes a failed external invocation.
type CommandError struct {
	Name   string
	Args   []string
	Stderr string
	Err    error
}

func (e *CommandError) Error() string {
	cmd := strings.TrimSpace(e.Name + " " + strings.Join(e.Args, " "))
	if e.Stderr != "" {
		return "command failed: " + cmd + ": " + e.Err.Error() + " (stderr: " + e.Stderr + ")"
	}
	return "command failed: " + cmd + ": " + e.Err.Error()
}

func (e *CommandError) Unwrap() error {
	return e.Err
}
