package docker

//go:generate mockgen -destination=mock/mock_runner.go -package=mockdocker -source=runner.go

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os/exec"
	"strings"
)

// Result is the outcome of a finished docker invocation.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Runner executes the docker CLI for compose projects. A non-zero exit status is reported in
// Result.ExitCode with a nil error; errors mean the command could not run.
type Runner interface {
	Run(ctx context.Context, dir string, args []string) (Result, error)
	Stream(ctx context.Context, dir string, args []string, stdout, stderr io.Writer) error
}

// ExecRunner runs the docker binary found on PATH.
type ExecRunner struct {
	Binary string
}

func NewExecRunner() *ExecRunner {
	return &ExecRunner{Binary: "docker"}
}

func (r *ExecRunner) Run(ctx context.Context, dir string, args []string) (Result, error) {
	cmd := exec.CommandContext(ctx, r.Binary, args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && ctx.Err() == nil {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}
	return res, err
}

func (r *ExecRunner) Stream(ctx context.Context, dir string, args []string, stdout, stderr io.Writer) error {
	cmd := exec.CommandContext(ctx, r.Binary, args...)
	cmd.Dir = dir
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	err := cmd.Run()
	if ctx.Err() != nil {
		// follow mode ends by cancellation
		return nil
	}
	return err
}

func describe(args []string) string {
	return "docker " + strings.Join(args, " ")
}
