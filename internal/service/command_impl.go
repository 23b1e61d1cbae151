package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/compozy/autorelease/internal/logger"
	"go.uber.org/zap"
)

// execRunner is the os/exec implementation of CommandRunner.
type execRunner struct {
	dir     string
	timeout time.Duration
	log     *zap.Logger
}

// NewCommandRunner creates a CommandRunner rooted at dir. A zero timeout uses DefaultCommandTimeout.
func NewCommandRunner(dir string, timeout time.Duration, log *zap.Logger) CommandRunner {
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &execRunner{dir: dir, timeout: timeout, log: log}
}

func (r *execRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	return r.execute(ctx, "", name, args...)
}

func (r *execRunner) RunWithInput(ctx context.Context, stdin string, name string, args ...string) (string, error) {
	return r.execute(ctx, stdin, name, args...)
}

// execute runs a command with timeout and proper resource cleanup.
func (r *execRunner) execute(ctx context.Context, stdin string, name string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = r.dir
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}
	// Capture both stdout and stderr for better error handling
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	start := time.Now()
	err := cmd.Run()
	r.log.Debug("external command",
		zap.String("command", name),
		zap.Strings("args", args),
		zap.Duration("duration", time.Since(start)),
		zap.String("stdout", logger.Truncate(stdout.String(), maxTracedOutput)),
		zap.String("stderr", logger.Truncate(stderr.String(), maxTracedOutput)),
		zap.Error(err),
	)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("command timed out after %v: %w", r.timeout, ctx.Err())
		}
		return strings.TrimSpace(stdout.String()), &CommandError{
			Name:   name,
			Args:   args,
			Stderr: strings.TrimSpace(stderr.String()),
			Err:    err,
		}
	}
	return strings.TrimSpace(stdout.String()), nil
}
