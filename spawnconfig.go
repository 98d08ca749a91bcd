package nestbox

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// spawnSection mirrors the [spawn] table of a spawn config file.
type spawnSection struct {
	Depth   *int `toml:"depth"`
	Breadth *int `toml:"breadth"`
}

// ReadSpawnConfig reads spawn limits from a TOML file: either the host
// config or the read-only spawn.toml a parent wrote for its child.
// Returns (nil, nil) when the file or its [spawn] table is absent.
func ReadSpawnConfig(path string) (*SpawnBudget, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read spawn config: %w", err)
	}

	var doc struct {
		Spawn *spawnSection `toml:"spawn"`
	}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse spawn config %s: %w", path, err)
	}
	if doc.Spawn == nil {
		return nil, nil
	}

	budget := SpawnBudget{Depth: DefaultDepth, Breadth: DefaultBreadth}
	if doc.Spawn.Depth != nil {
		budget.Depth = *doc.Spawn.Depth
	}
	if doc.Spawn.Breadth != nil {
		budget.Breadth = *doc.Spawn.Breadth
	}
	return &budget, nil
}

// WriteSpawnConfig writes budget as the [spawn] table of the TOML file
// at path, preserving any unrelated tables already present.
func WriteSpawnConfig(path string, budget SpawnBudget) error {
	doc := map[string]any{}
	if data, err := os.ReadFile(path); err == nil {
		if err := toml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("parse existing spawn config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("read spawn config: %w", err)
	}

	doc["spawn"] = map[string]int{
		"depth":   budget.Depth,
		"breadth": budget.Breadth,
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create spawn config dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write spawn config: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(doc); err != nil {
		return fmt.Errorf("encode spawn config: %w", err)
	}
	return nil
}
