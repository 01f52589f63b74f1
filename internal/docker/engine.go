package docker

//go:generate mockgen -destination=mock/mock_engine.go -package=mockdocker -source=engine.go

import (
	"bytes"
	"context"
	"sync"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/pkg/errors"
)

// Engine is the daemon API used for single containers and images. Compose
// projects go through Runner.
type Engine interface {
	Ping(ctx context.Context) error
	// Inspect reports a container; a missing one is a not-created Status.
	Inspect(ctx context.Context, name string) (Status, error)
	// Exec runs argv in a running container. A non-zero exit code is
	// reported in Result, not as an error.
	Exec(ctx context.Context, name string, argv []string) (Result, error)
	RemoveImage(ctx context.Context, ref string) error
	Close() error
}

// SDKEngine implements Engine with the Docker client. The client is created
// on first use so commands that never touch docker do not need a daemon.
type SDKEngine struct {
	opts []client.Opt

	once sync.Once
	cli  *client.Client
	err  error
}

// NewSDKEngine configures the client from DOCKER_HOST and friends unless
// opts are given.
func NewSDKEngine(opts ...client.Opt) *SDKEngine {
	if len(opts) == 0 {
		opts = []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	}
	return &SDKEngine{opts: opts}
}

func (e *SDKEngine) conn() (*client.Client, error) {
	e.once.Do(func() {
		e.cli, e.err = client.NewClientWithOpts(e.opts...)
		if e.err != nil {
			e.err = errors.Wrap(e.err, "failed to create docker client")
		}
	})
	return e.cli, e.err
}

func (e *SDKEngine) Ping(ctx context.Context) error {
	cli, err := e.conn()
	if err != nil {
		return err
	}
	_, err = cli.Ping(ctx)
	return err
}

func (e *SDKEngine) Inspect(ctx context.Context, name string) (Status, error) {
	cli, err := e.conn()
	if err != nil {
		return Status{}, err
	}
	resp, err := cli.ContainerInspect(ctx, name)
	if client.IsErrNotFound(err) {
		return notCreated(name), nil
	}
	if err != nil {
		return Status{}, errors.Wrapf(err, "failed to inspect %s", name)
	}
	return statusFromInspect(name, resp), nil
}

func (e *SDKEngine) Exec(ctx context.Context, name string, argv []string) (Result, error) {
	cli, err := e.conn()
	if err != nil {
		return Result{}, err
	}
	created, err := cli.ContainerExecCreate(ctx, name, container.ExecOptions{
		Cmd:          argv,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return Result{}, errors.Wrapf(err, "failed to create exec in %s", name)
	}

	attach, err := cli.ContainerExecAttach(ctx, created.ID, container.ExecAttachOptions{})
	if err != nil {
		return Result{}, errors.Wrap(err, "failed to attach to exec")
	}
	defer attach.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, attach.Reader); err != nil {
		return Result{}, errors.Wrap(err, "failed to read exec output")
	}

	info, err := cli.ContainerExecInspect(ctx, created.ID)
	if err != nil {
		return Result{}, errors.Wrap(err, "failed to read exec status")
	}
	return Result{ExitCode: info.ExitCode, Stdout: stdout.String(), Stderr: stderr.String()}, nil
}

func (e *SDKEngine) RemoveImage(ctx context.Context, ref string) error {
	cli, err := e.conn()
	if err != nil {
		return err
	}
	_, err = cli.ImageRemove(ctx, ref, image.RemoveOptions{Force: true})
	return err
}

func (e *SDKEngine) Close() error {
	if e.cli == nil {
		return nil
	}
	return e.cli.Close()
}
