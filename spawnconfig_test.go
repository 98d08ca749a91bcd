package nestbox

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSpawnConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spawn.toml")

	want := SpawnBudget{Depth: 2, Breadth: 3}
	if err := WriteSpawnConfig(path, want); err != nil {
		t.Fatalf("WriteSpawnConfig() error = %v", err)
	}

	got, err := ReadSpawnConfig(path)
	if err != nil {
		t.Fatalf("ReadSpawnConfig() error = %v", err)
	}
	if got == nil || *got != want {
		t.Errorf("ReadSpawnConfig() = %+v, want %+v", got, want)
	}
}

func TestReadSpawnConfigMissingFile(t *testing.T) {
	got, err := ReadSpawnConfig(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("ReadSpawnConfig() error = %v", err)
	}
	if got != nil {
		t.Errorf("ReadSpawnConfig() = %+v, want nil for missing file", got)
	}
}

func TestReadSpawnConfigNoSpawnTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "other.toml")
	if err := os.WriteFile(path, []byte("[other]\nkey = \"value\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := ReadSpawnConfig(path)
	if err != nil {
		t.Fatalf("ReadSpawnConfig() error = %v", err)
	}
	if got != nil {
		t.Errorf("ReadSpawnConfig() = %+v, want nil without [spawn] table", got)
	}
}

func TestReadSpawnConfigUnlimited(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spawn.toml")
	if err := os.WriteFile(path, []byte("[spawn]\ndepth = -1\nbreadth = -1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := ReadSpawnConfig(path)
	if err != nil {
		t.Fatalf("ReadSpawnConfig() error = %v", err)
	}
	want := SpawnBudget{Depth: Unlimited, Breadth: Unlimited}
	if got == nil || *got != want {
		t.Errorf("ReadSpawnConfig() = %+v, want %+v", got, want)
	}
}

func TestWriteSpawnConfigPreservesOtherTables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	initial := "[other]\nkey = \"value\"\n\n[spawn]\ndepth = 9\nbreadth = 9\n"
	if err := os.WriteFile(path, []byte(initial), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := WriteSpawnConfig(path, SpawnBudget{Depth: 1, Breadth: 2}); err != nil {
		t.Fatalf("WriteSpawnConfig() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "[other]") {
		t.Errorf("rewritten config lost the [other] table:\n%s", data)
	}

	got, err := ReadSpawnConfig(path)
	if err != nil {
		t.Fatalf("ReadSpawnConfig() error = %v", err)
	}
	want := SpawnBudget{Depth: 1, Breadth: 2}
	if got == nil || *got != want {
		t.Errorf("ReadSpawnConfig() after rewrite = %+v, want %+v", got, want)
	}
}

func TestReadSpawnConfigPartialFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spawn.toml")
	if err := os.WriteFile(path, []byte("[spawn]\ndepth = 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := ReadSpawnConfig(path)
	if err != nil {
		t.Fatalf("ReadSpawnConfig() error = %v", err)
	}
	want := SpawnBudget{Depth: 2, Breadth: DefaultBreadth}
	if got == nil || *got != want {
		t.Errorf("ReadSpawnConfig() = %+v, want %+v", got, want)
	}
}
