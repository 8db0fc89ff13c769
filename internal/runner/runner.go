// Package runner executes external tools (unpaper, ocrmypdf) behind an
// interface so that stages can be exercised in tests without the binaries.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Runner lets us stub external commands in tests.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// ExitError reports a command that ran but exited non-zero, along with the
// tail of its diagnostic output.
type ExitError struct {
	Name     string
	ExitCode int
	Stderr   string
}

func (e *ExitError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s exited with status %d: %s", e.Name, e.ExitCode, e.Stderr)
	}
	return fmt.Sprintf("%s exited with status %d", e.Name, e.ExitCode)
}

// Exec runs commands with os/exec.
type Exec struct {
	Log zerolog.Logger
}

// NewExec returns a Runner backed by os/exec.
func NewExec(log zerolog.Logger) *Exec {
	return &Exec{Log: log}
}

func (r *Exec) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	start := time.Now()

	cmd := exec.CommandContext(ctx, name, args...)
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb

	err := cmd.Run()
	dur := time.Since(start)

	if err != nil {
		r.Log.Error().
			Err(err).
			Str("cmd", name).
			Str("args", strings.Join(args, " ")).
			Int64("duration_ms", dur.Milliseconds()).
			Str("stderr", truncate(errb.String(), 8<<10)).
			Msg("exec failed")

		if ctxErr := ctx.Err(); ctxErr != nil {
			return out.Bytes(), errb.Bytes(), fmt.Errorf("%s: %w", name, ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return out.Bytes(), errb.Bytes(), &ExitError{
				Name:     name,
				ExitCode: exitErr.ExitCode(),
				Stderr:   truncate(strings.TrimSpace(errb.String()), 1<<10),
			}
		}
		return out.Bytes(), errb.Bytes(), fmt.Errorf("%s: %w", name, err)
	}

	r.Log.Debug().
		Str("cmd", name).
		Str("args", strings.Join(args, " ")).
		Int64("duration_ms", dur.Milliseconds()).
		Int("stdout_bytes", out.Len()).
		Int("stderr_bytes", errb.Len()).
		Msg("exec ok")

	return out.Bytes(), errb.Bytes(), nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
