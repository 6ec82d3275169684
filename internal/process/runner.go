// Package process runs external programs with a byte stream on stdin.
package process

import (
	"bytes"
	"context"
	"os/exec"
	"path/filepath"

	"github.com/kballard/go-shellquote"
	"go.uber.org/zap"

	"github.com/geoknoesis/semlift-go/errors"
	"github.com/geoknoesis/semlift-go/internal/metrics"
	"github.com/geoknoesis/semlift-go/logger"
)

// Result holds the captured output of a finished process.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Runner starts external programs.
type Runner interface {
	// Run executes argv with stdin and waits for it. A non-zero exit is
	// reported in Result, not as an error; err covers start failures and
	// cancellation.
	Run(ctx context.Context, argv []string, stdin []byte) (*Result, error)
}

// Exec is the os/exec Runner.
type Exec struct {
	Logger  *zap.SugaredLogger
	Metrics *metrics.Metrics
}

// Run implements Runner.
func (e *Exec) Run(ctx context.Context, argv []string, stdin []byte) (*Result, error) {
	if len(argv) == 0 {
		return nil, errors.Configuration("empty command")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log := logger.Or(e.Logger)

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdin = bytes.NewReader(stdin)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	res := &Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, errors.Mark(
				errors.WithHintf(errors.Wrapf(err, "start %s", argv[0]), "is %s installed and on PATH?", argv[0]),
				errors.ErrExternalProcess)
		}
		res.ExitCode = exitErr.ExitCode()
	}
	program := filepath.Base(argv[0])
	e.Metrics.RecordProcessExit(program, res.ExitCode)
	log.Debugw("process finished", "program", program, "exit_code", res.ExitCode)
	return res, nil
}

// Split parses a command line into argv with shell quoting rules.
func Split(commandLine string) ([]string, error) {
	argv, err := shellquote.Split(commandLine)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "parse command %q", commandLine), errors.ErrConfiguration)
	}
	if len(argv) == 0 {
		return nil, errors.Configuration("empty command")
	}
	return argv, nil
}

// Join renders argv as a shell-quoted command line.
func Join(argv []string) string {
	return shellquote.Join(argv...)
}

// Check converts a non-zero exit into a ProcessError.
func Check(argv []string, res *Result) error {
	if res.ExitCode == 0 {
		return nil
	}
	return &errors.ProcessError{
		Command:  Join(argv),
		ExitCode: res.ExitCode,
		Stderr:   string(res.Stderr),
	}
}

// Output runs argv and returns stdout, failing on any non-zero exit.
func Output(ctx context.Context, r Runner, argv []string, stdin []byte) ([]byte, error) {
	res, err := r.Run(ctx, argv, stdin)
	if err != nil {
		return nil, err
	}
	if err := Check(argv, res); err != nil {
		return nil, err
	}
	return res.Stdout, nil
}
