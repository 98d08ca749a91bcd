package hub

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/everydev1618/nestbox/container"
)

// Container-side paths. Every helper sees the same layout regardless of
// its number; the host side varies per helper.
const (
	agentHome        = "/home/agent"
	helperInitScript = "/home/agent/playbook/scripts/helper-init.sh"
	helperSocketDest = "/home/agent/.nestbox/helper.sock"
)

// buildHelperMounts assembles the bind mounts for helper n: its own
// directory tree, the sibling peer channels, the broadcast link, the
// read-only spawn budget, the hub socket, and the externally supplied
// agent binary mounts. Host paths that don't exist are skipped rather
// than letting the runtime fail on them.
func buildHelperMounts(hctx HelperContext, n int) []container.Mount {
	root := filepath.Join(hctx.HelpersDir, strconv.Itoa(n))
	mounts := []container.Mount{
		{Source: root, Destination: agentHome, Options: "rw"},
	}

	if dir := filepath.Join(root, "workspace"); isDir(dir) {
		mounts = append(mounts, container.Mount{
			Source: dir, Destination: agentHome + "/workspace", Options: "rw",
		})
	}
	if dir := filepath.Join(root, "vault", "share-ro"); isDir(dir) {
		mounts = append(mounts, container.Mount{
			Source: dir, Destination: agentHome + "/share-ro", Options: "ro",
		})
	}
	if dir := filepath.Join(root, "vault", "share-rw"); isDir(dir) {
		mounts = append(mounts, container.Mount{
			Source: dir, Destination: agentHome + "/share-rw", Options: "rw",
		})
	}

	// Bidirectional channels shared with sibling helpers.
	if dir := filepath.Join(root, "peers"); isDir(dir) {
		mounts = append(mounts, container.Mount{
			Source: dir, Destination: agentHome + "/peers", Options: "rw",
		})
	}

	// Broadcast link.
	if path := filepath.Join(root, "all"); exists(path) {
		mounts = append(mounts, container.Mount{
			Source: path, Destination: agentHome + "/all", Options: "rw",
		})
	}

	// Spawn budget written by the parent; the child may only read it.
	if path := filepath.Join(root, "spawn.toml"); exists(path) {
		mounts = append(mounts, container.Mount{
			Source: path, Destination: agentHome + "/spawn.toml", Options: "ro",
		})
	}

	// The hub socket itself, so the helper can register and spawn its
	// own children.
	if exists(hctx.SocketPath) {
		mounts = append(mounts, container.Mount{
			Source: hctx.SocketPath, Destination: helperSocketDest,
		})
	}

	mounts = append(mounts, hctx.BinaryMounts...)
	return mounts
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
