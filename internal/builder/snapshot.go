package builder

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"missionctl/internal/model"
)

// DefaultSnapshotRelPath is where the document snapshot lives, relative to
// the workspace root. The watcher must exclude this file or every build would
// trigger the next.
const DefaultSnapshotRelPath = "mission-control/data.json"

// WriteSnapshot persists the document as pretty-printed JSON, overwriting any
// previous snapshot. The write goes through a temp file and rename so a
// concurrent reader never sees a partially written file.
func WriteSnapshot(path string, doc *model.AggregateDocument) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot reads a previously written snapshot, used as a cold-start
// fallback before the first live build completes. A missing file returns
// (nil, nil).
func LoadSnapshot(path string) (*model.AggregateDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var doc model.AggregateDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	return &doc, nil
}
