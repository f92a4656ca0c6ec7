package orders

import (
	"fmt"
	"os"
	"path/filepath"

	yamlv3 "gopkg.in/yaml.v3"

	"github.com/valmere/tradesman/internal/market"
)

const snapshotSchemaVersion = 1

type snapshot struct {
	SchemaVersion int            `yaml:"schema_version"`
	Orders        []market.Order `yaml:"orders"`
}

// saveSnapshot writes the order set via temp file + rename so a crash never
// leaves a torn file behind.
func saveSnapshot(path string, orders []market.Order) error {
	content, err := yamlv3.Marshal(snapshot{SchemaVersion: snapshotSchemaVersion, Orders: orders})
	if err != nil {
		return fmt.Errorf("yaml marshal: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("ensure dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".tradesman-tmp-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("atomic rename: %w", err)
	}
	return nil
}

// loadSnapshot reads a previously saved order set. A missing file is an empty
// set, not an error.
func loadSnapshot(path string) ([]market.Order, error) {
	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var s snapshot
	if err := yamlv3.Unmarshal(content, &s); err != nil {
		return nil, fmt.Errorf("yaml unmarshal: %w", err)
	}
	return s.Orders, nil
}
