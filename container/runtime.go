// Package container runs helper containers and defines the runtime
// contract the hub depends on.
package container

import "context"

// Mount is a bind mount from a host path into a container.
type Mount struct {
	// Source is the host path.
	Source string
	// Destination is the path inside the container.
	Destination string
	// Options is "ro", "rw", or "" (runtime default).
	Options string
}

// RunSpec describes one container launch.
type RunSpec struct {
	Image      string
	Name       string
	Entrypoint string
	Args       []string
	Env        map[string]string
	Mounts     []Mount
	WorkDir    string
	Detach     bool
}

// Runtime is the container runtime contract consumed by the hub. The
// hub never inspects containers beyond these operations; anything it
// launches it also stops and removes by name.
type Runtime interface {
	// Run creates and starts a container. With Detach it returns as
	// soon as the container is running; otherwise it waits for exit and
	// returns an error on a non-zero exit code.
	Run(ctx context.Context, spec RunSpec) error

	// Stop stops a running container by name.
	Stop(ctx context.Context, name string) error

	// Remove deletes a container by name, forcing if necessary.
	Remove(ctx context.Context, name string) error

	// Exists reports whether a container with that name exists,
	// running or not.
	Exists(ctx context.Context, name string) (bool, error)

	// ListRunning returns names of running containers matching prefix.
	ListRunning(ctx context.Context, prefix string) ([]string, error)
}
