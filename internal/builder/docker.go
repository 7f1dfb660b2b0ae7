package builder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/strslice"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/docker/pkg/stdcopy"
)

// containerDir is where the workspace is mounted inside the build container.
const containerDir = "/workspace"

// Docker runs the build tool in a container.
// The workspace is bind-mounted at /workspace and the container has no network.
type Docker struct {
	Client  *client.Client // required
	Image   string         // required
	Command []string       // required, may contain {makefile} and {output}
	Log     *slog.Logger   // required
}

func NewDocker(image string, command []string, log *slog.Logger) (*Docker, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("builder.NewDocker: %w", err)
	}
	return &Docker{Client: cli, Image: image, Command: command, Log: log}, nil
}

func (d *Docker) Build(ctx context.Context, params *Params) error {
	if len(d.Command) == 0 {
		return errors.New("builder.Docker: empty command")
	}
	cmd := expandArgs(
		d.Command,
		path.Join(containerDir, params.MakefileName),
		path.Join(containerDir, params.OutputName),
	)
	log := logWriter(params.Log)

	// Create build container.
	cont, err := d.createContainer(ctx, cmd, params.Dir)
	if err != nil {
		return fmt.Errorf("builder.Docker: %w", err)
	}
	defer func() {
		// The request context may be done already.
		removeCtx := context.WithoutCancel(ctx)
		err := d.Client.ContainerRemove(removeCtx, cont.ID, container.RemoveOptions{Force: true})
		if err != nil {
			d.Log.Error("didn't remove container", "id", cont.ID, "error", err)
		}
	}()
	if len(cont.Warnings) > 0 {
		d.Log.Warn("created container with warnings", "id", cont.ID, "warnings", cont.Warnings)
	}

	// Attach build container streams.
	contConn, err := d.Client.ContainerAttach(ctx, cont.ID, container.AttachOptions{
		Stream: true,
		Stdout: true,
		Stderr: true,
	})
	if err != nil {
		return fmt.Errorf("builder.Docker: %w", err)
	}
	defer contConn.Close()

	// Start build container.
	if _, err = fmt.Fprintf(log, "$ %s\n", strings.Join(cmd, " ")); err != nil {
		return fmt.Errorf("builder.Docker: %w", err)
	}
	d.Log.Debug("starting container", "id", cont.ID, "image", d.Image, "cmd", cmd)
	if err = d.Client.ContainerStart(ctx, cont.ID, container.StartOptions{}); err != nil {
		return fmt.Errorf("builder.Docker: %w", err)
	}

	// Read build container stdout and stderr until it exits.
	copyErrCh := make(chan error, 1)
	go func() {
		_, err := stdcopy.StdCopy(log, log, contConn.Reader)
		copyErrCh <- err
	}()

	var waitResp container.WaitResponse
	waitRespCh, waitErrCh := d.Client.ContainerWait(ctx, cont.ID, container.WaitConditionNotRunning)
	select {
	case waitResp = <-waitRespCh:
	case err = <-waitErrCh:
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("builder.Docker: %w", ctxErr)
		}
		return fmt.Errorf("builder.Docker: %w", err)
	case <-ctx.Done():
		return fmt.Errorf("builder.Docker: %w", ctx.Err())
	}

	select {
	case err = <-copyErrCh:
		if err != nil {
			d.Log.Warn("didn't copy container output", "id", cont.ID, "error", err)
		}
	case <-ctx.Done():
		return fmt.Errorf("builder.Docker: %w", ctx.Err())
	}

	if waitResp.Error != nil {
		return fmt.Errorf("builder.Docker: %s", waitResp.Error.Message)
	}
	if waitResp.StatusCode != 0 {
		return fmt.Errorf("builder.Docker: %w", &ExitError{ExitCode: int(waitResp.StatusCode)})
	}

	return nil
}

// createContainer creates the build container, pulling the image when it is missing.
func (d *Docker) createContainer(ctx context.Context, cmd []string, dir string) (container.CreateResponse, error) {
	contConfig := &container.Config{
		Image:        d.Image,
		Cmd:          strslice.StrSlice(cmd),
		WorkingDir:   containerDir,
		User:         fmt.Sprintf("%d:%d", os.Getuid(), os.Getgid()), // keeps output files removable
		AttachStdout: true,
		AttachStderr: true,
	}
	hostConfig := &container.HostConfig{
		NetworkMode:    "none",
		CapDrop:        strslice.StrSlice{"ALL"},
		ReadonlyRootfs: true,
		Mounts: []mount.Mount{
			{
				Type:   mount.TypeBind,
				Source: dir,
				Target: containerDir,
			},
			{
				Type:   mount.TypeTmpfs,
				Target: "/tmp",
				TmpfsOptions: &mount.TmpfsOptions{
					SizeBytes: 256 * 1024 * 1024, // 256MB
				},
			},
		},
	}

	cont, err := d.Client.ContainerCreate(ctx, contConfig, hostConfig, nil, nil, "")
	if err == nil {
		return cont, nil
	}
	if !errdefs.IsNotFound(err) {
		return container.CreateResponse{}, err
	}

	d.Log.Info("pulling image", "image", d.Image)
	pullReader, err := d.Client.ImagePull(ctx, d.Image, image.PullOptions{})
	if err != nil {
		return container.CreateResponse{}, err
	}
	_, err = io.Copy(io.Discard, pullReader)
	_ = pullReader.Close()
	if err != nil {
		return container.CreateResponse{}, err
	}

	return d.Client.ContainerCreate(ctx, contConfig, hostConfig, nil, nil, "")
}
