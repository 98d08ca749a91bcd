package container

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
)

const (
	// LabelManagedBy marks containers launched by nestbox so teardown
	// and listing never touch anything else.
	LabelManagedBy = "nestbox.managed-by"

	managedByValue = "nestbox"
)

// DockerRuntime implements Runtime against the Docker Engine API.
type DockerRuntime struct {
	client *client.Client
}

// NewDockerRuntime connects to the Docker daemon, trying the
// environment settings first and then the usual socket locations.
func NewDockerRuntime() (*DockerRuntime, error) {
	cli, err := createDockerClient()
	if err != nil {
		return nil, err
	}
	return &DockerRuntime{client: cli}, nil
}

// createDockerClient creates a Docker client, trying multiple socket
// locations for compatibility with Docker Desktop on macOS.
func createDockerClient() (*client.Client, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err == nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := cli.Ping(ctx); err == nil {
			return cli, nil
		}
		cli.Close()
	}

	socketPaths := []string{
		"unix://" + os.Getenv("HOME") + "/.docker/run/docker.sock", // Docker Desktop macOS
		"unix:///var/run/docker.sock",                              // Linux default
		"unix://" + os.Getenv("HOME") + "/.colima/docker.sock",     // Colima
	}

	for _, socketPath := range socketPaths {
		cli, err := client.NewClientWithOpts(
			client.WithHost(socketPath),
			client.WithAPIVersionNegotiation(),
		)
		if err != nil {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_, err = cli.Ping(ctx)
		cancel()

		if err == nil {
			return cli, nil
		}
		cli.Close()
	}

	return nil, fmt.Errorf("could not connect to Docker daemon")
}

// Run creates and starts a container per spec. With Detach it returns
// once the container is started; otherwise it waits for exit and fails
// on a non-zero exit code.
func (r *DockerRuntime) Run(ctx context.Context, spec RunSpec) error {
	if err := r.ensureImage(ctx, spec.Image); err != nil {
		return fmt.Errorf("pull image %s: %w", spec.Image, err)
	}

	env := make([]string, 0, len(spec.Env))
	for k, v := range spec.Env {
		env = append(env, k+"="+v)
	}

	cfg := &container.Config{
		Image:      spec.Image,
		Env:        env,
		WorkingDir: spec.WorkDir,
		Labels: map[string]string{
			LabelManagedBy: managedByValue,
		},
	}
	if spec.Entrypoint != "" {
		cfg.Entrypoint = []string{spec.Entrypoint}
	}
	if len(spec.Args) > 0 {
		cfg.Cmd = spec.Args
	}

	hostCfg := &container.HostConfig{
		Mounts: toDockerMounts(spec.Mounts),
	}

	resp, err := r.client.ContainerCreate(ctx, cfg, hostCfg, nil, nil, spec.Name)
	if err != nil {
		return fmt.Errorf("create container %s: %w", spec.Name, err)
	}

	if err := r.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		// Don't leave a created-but-never-started container behind.
		_ = r.client.ContainerRemove(ctx, resp.ID, container.RemoveOptions{Force: true})
		return fmt.Errorf("start container %s: %w", spec.Name, err)
	}

	if spec.Detach {
		return nil
	}

	waitCh, errCh := r.client.ContainerWait(ctx, resp.ID, container.WaitConditionNotRunning)
	select {
	case status := <-waitCh:
		if status.StatusCode != 0 {
			return fmt.Errorf("container %s exited with %d", spec.Name, status.StatusCode)
		}
		return nil
	case err := <-errCh:
		return fmt.Errorf("wait for container %s: %w", spec.Name, err)
	}
}

// Stop stops a running container by name.
func (r *DockerRuntime) Stop(ctx context.Context, name string) error {
	id, err := r.findContainer(ctx, name)
	if err != nil {
		return err
	}
	timeout := 10
	return r.client.ContainerStop(ctx, id, container.StopOptions{Timeout: &timeout})
}

// Remove deletes a container by name, forcing if still running.
func (r *DockerRuntime) Remove(ctx context.Context, name string) error {
	id, err := r.findContainer(ctx, name)
	if err != nil {
		return err
	}
	return r.client.ContainerRemove(ctx, id, container.RemoveOptions{Force: true})
}

// Exists reports whether a container with that name exists.
func (r *DockerRuntime) Exists(ctx context.Context, name string) (bool, error) {
	_, err := r.findContainer(ctx, name)
	if err != nil {
		if err == errContainerNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ListRunning returns names of running containers matching prefix.
func (r *DockerRuntime) ListRunning(ctx context.Context, prefix string) ([]string, error) {
	containers, err := r.client.ContainerList(ctx, container.ListOptions{
		Filters: filters.NewArgs(
			filters.Arg("name", prefix),
			filters.Arg("label", LabelManagedBy+"="+managedByValue),
		),
	})
	if err != nil {
		return nil, err
	}

	var names []string
	for _, c := range containers {
		for _, n := range c.Names {
			names = append(names, trimLeadingSlash(n))
		}
	}
	return names, nil
}

// Close closes the Docker client.
func (r *DockerRuntime) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

var errContainerNotFound = fmt.Errorf("container not found")

// findContainer resolves a container name to its ID.
func (r *DockerRuntime) findContainer(ctx context.Context, name string) (string, error) {
	containers, err := r.client.ContainerList(ctx, container.ListOptions{
		All: true,
		Filters: filters.NewArgs(
			filters.Arg("name", name),
		),
	})
	if err != nil {
		return "", err
	}

	for _, c := range containers {
		for _, n := range c.Names {
			if n == "/"+name {
				return c.ID, nil
			}
		}
	}
	return "", errContainerNotFound
}

// ensureImage pulls an image if not present locally.
func (r *DockerRuntime) ensureImage(ctx context.Context, imageName string) error {
	_, _, err := r.client.ImageInspectWithRaw(ctx, imageName)
	if err == nil {
		return nil
	}

	reader, err := r.client.ImagePull(ctx, imageName, image.PullOptions{})
	if err != nil {
		return err
	}
	defer reader.Close()

	// Consume the reader to complete the pull
	_, err = io.Copy(io.Discard, reader)
	return err
}

func toDockerMounts(mounts []Mount) []mount.Mount {
	out := make([]mount.Mount, 0, len(mounts))
	for _, m := range mounts {
		out = append(out, mount.Mount{
			Type:     mount.TypeBind,
			Source:   m.Source,
			Target:   m.Destination,
			ReadOnly: m.Options == "ro",
		})
	}
	return out
}

func trimLeadingSlash(name string) string {
	if len(name) > 0 && name[0] == '/' {
		return name[1:]
	}
	return name
}
