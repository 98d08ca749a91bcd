// Package layout owns the on-host directory structure of helpers:
// per-helper roots, sibling peer channels, the broadcast directory, and
// the per-helper state file.
package layout

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
)

// Directory names inside a helper root. The hub mounts these into the
// helper container; see the hub package for the container-side paths.
const (
	workspaceDir = "workspace"
	vaultRODir   = "share-ro"
	vaultRWDir   = "share-rw"
	peersDir     = "peers"
	broadcastDir = "all"
	channelsDir  = ".channels"

	// SpawnConfigName is the read-only spawn budget file a parent
	// writes for its child.
	SpawnConfigName = "spawn.toml"

	stateName = "state.json"
)

// HelperRoot returns the root directory of helper n.
func HelperRoot(helpersDir string, n int) string {
	return filepath.Join(helpersDir, strconv.Itoa(n))
}

// SpawnConfigPath returns the path of helper n's read-only spawn config.
func SpawnConfigPath(helpersDir string, n int) string {
	return filepath.Join(HelperRoot(helpersDir, n), SpawnConfigName)
}

// StatePath returns the path of helper n's state file.
func StatePath(helpersDir string, n int) string {
	return filepath.Join(HelperRoot(helpersDir, n), stateName)
}

// Create builds the directory tree for helper n: workspace, vault
// shares, peers, playbook scripts, the shared broadcast directory, and
// bidirectional channels to every existing sibling.
func Create(helpersDir string, n int, siblings []int) error {
	root := HelperRoot(helpersDir, n)
	for _, dir := range []string{
		filepath.Join(root, workspaceDir),
		filepath.Join(root, "vault", vaultRODir),
		filepath.Join(root, "vault", vaultRWDir),
		filepath.Join(root, peersDir),
		filepath.Join(root, "playbook", "scripts"),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create helper dirs: %w", err)
		}
	}

	if err := linkBroadcast(helpersDir, n); err != nil {
		return err
	}

	for _, sibling := range siblings {
		if err := createPeerChannel(helpersDir, n, sibling); err != nil {
			return err
		}
	}
	return nil
}

// linkBroadcast ensures the shared broadcast directory exists and
// symlinks it into helper n's root as all/.
func linkBroadcast(helpersDir string, n int) error {
	shared := filepath.Join(helpersDir, broadcastDir)
	if err := os.MkdirAll(shared, 0o755); err != nil {
		return fmt.Errorf("create broadcast dir: %w", err)
	}

	link := filepath.Join(HelperRoot(helpersDir, n), broadcastDir)
	if _, err := os.Lstat(link); err == nil {
		return nil
	}
	if err := os.Symlink(shared, link); err != nil {
		return fmt.Errorf("link broadcast dir: %w", err)
	}
	return nil
}

// createPeerChannel creates the shared channel directory between two
// helpers and symlinks it into both peers/ directories, each link named
// after the other helper.
func createPeerChannel(helpersDir string, a, b int) error {
	lo, hi := a, b
	if lo > hi {
		lo, hi = hi, lo
	}
	channel := filepath.Join(helpersDir, channelsDir, fmt.Sprintf("%d-%d", lo, hi))
	if err := os.MkdirAll(channel, 0o755); err != nil {
		return fmt.Errorf("create peer channel: %w", err)
	}

	for _, pair := range [][2]int{{a, b}, {b, a}} {
		owner, peer := pair[0], pair[1]
		link := filepath.Join(HelperRoot(helpersDir, owner), peersDir, strconv.Itoa(peer))
		if _, err := os.Lstat(link); err == nil {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(link), 0o755); err != nil {
			return fmt.Errorf("create peers dir: %w", err)
		}
		if err := os.Symlink(channel, link); err != nil {
			return fmt.Errorf("link peer channel: %w", err)
		}
	}
	return nil
}

// Remove deletes helper n's tree, its channels, and the symlinks its
// siblings hold to it.
func Remove(helpersDir string, n int, siblings []int) error {
	for _, sibling := range siblings {
		link := filepath.Join(HelperRoot(helpersDir, sibling), peersDir, strconv.Itoa(n))
		os.Remove(link)

		lo, hi := n, sibling
		if lo > hi {
			lo, hi = hi, lo
		}
		os.RemoveAll(filepath.Join(helpersDir, channelsDir, fmt.Sprintf("%d-%d", lo, hi)))
	}
	return os.RemoveAll(HelperRoot(helpersDir, n))
}

// List scans helpersDir for existing helper roots (numeric directory
// names) and returns their numbers in ascending order.
func List(helpersDir string) []int {
	entries, err := os.ReadDir(helpersDir)
	if err != nil {
		return nil
	}

	var nums []int
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if n, err := strconv.Atoi(entry.Name()); err == nil {
			nums = append(nums, n)
		}
	}
	sort.Ints(nums)
	return nums
}

// NextHelperNumber returns the lowest unused helper number. Zero is the
// director, so numbering starts at 1.
func NextHelperNumber(existing []int) int {
	used := make(map[int]bool, len(existing))
	for _, n := range existing {
		used[n] = true
	}
	n := 1
	for used[n] {
		n++
	}
	return n
}

// State is the persisted per-helper state, stored inside the helper's
// own root so it travels with the helper's mounts.
type State struct {
	Status        string `json:"status"`
	Model         string `json:"model,omitempty"`
	Depth         int    `json:"depth"`
	Breadth       int    `json:"breadth"`
	Peers         []int  `json:"peers,omitempty"`
	ContainerName string `json:"container_name,omitempty"`
	Error         string `json:"error,omitempty"`
}

// ReadState reads helper n's state file. A missing file yields a zero
// State.
func ReadState(helpersDir string, n int) (State, error) {
	data, err := os.ReadFile(StatePath(helpersDir, n))
	if err != nil {
		if os.IsNotExist(err) {
			return State{}, nil
		}
		return State{}, fmt.Errorf("read helper state: %w", err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return State{}, fmt.Errorf("parse helper state: %w", err)
	}
	return state, nil
}

// WriteState writes helper n's state file.
func WriteState(helpersDir string, n int, state State) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	path := StatePath(helpersDir, n)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create helper dir: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
