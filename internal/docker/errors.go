package docker

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrComposeFileMissing  = errors.New("docker compose file not found")
	ErrContainerNotFound   = errors.New("container not found")
	ErrContainerNotRunning = errors.New("container is not running")
	ErrNotHealthy          = errors.New("container failed to become healthy within timeout")
	ErrEmptyCommand        = errors.New("command cannot be empty")
	ErrDaemonUnavailable   = errors.New("docker is not available, make sure Docker is installed and running")
)

// CommandError reports a docker invocation that exited non-zero.
type CommandError struct {
	Args     []string
	ExitCode int
	Stderr   string
}

func (e *CommandError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		return fmt.Sprintf("%s exited with status %d", describe(e.Args), e.ExitCode)
	}
	return fmt.Sprintf("%s exited with status %d: %s", describe(e.Args), e.ExitCode, msg)
}
