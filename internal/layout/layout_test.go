package layout

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCreateBuildsHelperTree(t *testing.T) {
	dir := t.TempDir()

	if err := Create(dir, 1, nil); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	root := HelperRoot(dir, 1)
	for _, sub := range []string{
		"workspace",
		filepath.Join("vault", "share-ro"),
		filepath.Join("vault", "share-rw"),
		"peers",
		filepath.Join("playbook", "scripts"),
	} {
		path := filepath.Join(root, sub)
		info, err := os.Stat(path)
		if err != nil || !info.IsDir() {
			t.Errorf("missing helper directory %s", path)
		}
	}

	// The broadcast link points at the shared all/ directory.
	link := filepath.Join(root, "all")
	target, err := os.Readlink(link)
	if err != nil {
		t.Fatalf("broadcast link: %v", err)
	}
	if target != filepath.Join(dir, "all") {
		t.Errorf("broadcast link target = %q, want %q", target, filepath.Join(dir, "all"))
	}
}

func TestCreatePeerChannels(t *testing.T) {
	dir := t.TempDir()

	if err := Create(dir, 1, nil); err != nil {
		t.Fatal(err)
	}
	if err := Create(dir, 2, []int{1}); err != nil {
		t.Fatal(err)
	}

	// Both helpers see the same channel through their peers/ links.
	link1 := filepath.Join(HelperRoot(dir, 1), "peers", "2")
	link2 := filepath.Join(HelperRoot(dir, 2), "peers", "1")

	target1, err := os.Readlink(link1)
	if err != nil {
		t.Fatalf("peer link for helper 1: %v", err)
	}
	target2, err := os.Readlink(link2)
	if err != nil {
		t.Fatalf("peer link for helper 2: %v", err)
	}
	if target1 != target2 {
		t.Errorf("peer links diverge: %q vs %q", target1, target2)
	}
	if info, err := os.Stat(target1); err != nil || !info.IsDir() {
		t.Errorf("channel dir %s missing", target1)
	}
}

func TestListAndNextHelperNumber(t *testing.T) {
	dir := t.TempDir()

	if got := List(dir); got != nil {
		t.Errorf("List(empty) = %v, want nil", got)
	}
	if got := NextHelperNumber(nil); got != 1 {
		t.Errorf("NextHelperNumber(nil) = %d, want 1", got)
	}

	for _, n := range []int{1, 2, 4} {
		if err := Create(dir, n, nil); err != nil {
			t.Fatal(err)
		}
	}
	// Non-numeric directories are ignored.
	os.MkdirAll(filepath.Join(dir, "all"), 0o755)

	got := List(dir)
	want := []int{1, 2, 4}
	if len(got) != len(want) {
		t.Fatalf("List() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("List() = %v, want %v", got, want)
		}
	}

	if next := NextHelperNumber(got); next != 3 {
		t.Errorf("NextHelperNumber(%v) = %d, want 3 (first gap)", got, next)
	}
}

func TestRemoveCleansUpChannels(t *testing.T) {
	dir := t.TempDir()

	if err := Create(dir, 1, nil); err != nil {
		t.Fatal(err)
	}
	if err := Create(dir, 2, []int{1}); err != nil {
		t.Fatal(err)
	}

	if err := Remove(dir, 2, []int{1}); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}

	if _, err := os.Stat(HelperRoot(dir, 2)); !os.IsNotExist(err) {
		t.Error("helper 2 root still exists")
	}
	if _, err := os.Lstat(filepath.Join(HelperRoot(dir, 1), "peers", "2")); !os.IsNotExist(err) {
		t.Error("helper 1 still holds a peer link to 2")
	}
	if _, err := os.Stat(filepath.Join(dir, ".channels", "1-2")); !os.IsNotExist(err) {
		t.Error("channel dir 1-2 still exists")
	}
}

func TestStateRoundTrip(t *testing.T) {
	dir := t.TempDir()

	want := State{
		Status:        "running",
		Model:         "sonnet",
		Depth:         2,
		Breadth:       3,
		Peers:         []int{1, 2},
		ContainerName: "nestbox-test-helper-3",
	}
	if err := WriteState(dir, 3, want); err != nil {
		t.Fatalf("WriteState() error = %v", err)
	}

	got, err := ReadState(dir, 3)
	if err != nil {
		t.Fatalf("ReadState() error = %v", err)
	}
	if got.Status != want.Status || got.Model != want.Model ||
		got.Depth != want.Depth || got.Breadth != want.Breadth ||
		got.ContainerName != want.ContainerName || len(got.Peers) != 2 {
		t.Errorf("ReadState() = %+v, want %+v", got, want)
	}
}

func TestReadStateMissing(t *testing.T) {
	got, err := ReadState(t.TempDir(), 9)
	if err != nil {
		t.Fatalf("ReadState() error = %v", err)
	}
	if got.Status != "" || got.ContainerName != "" || got.Peers != nil {
		t.Errorf("ReadState(missing) = %+v, want zero state", got)
	}
}
