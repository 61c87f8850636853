package store

import (
	"encoding/json"
	"os"
)

// Snapshots provide a compact, point-in-time copy of the entire store so a
// restart does not have to replay the whole log.

// SnapshotState is the full serialised store.
type SnapshotState struct {
	KV    map[string]string   `json:"kv"`
	Lists map[string][]string `json:"lists"`
	Clock uint64              `json:"clock"`
}

type SnapshotManager struct {
	path string
}

func NewSnapshotManager(path string) *SnapshotManager {
	return &SnapshotManager{path: path}
}

// Save writes the state to a temp file and renames it into place, so the old
// snapshot survives a crash mid-write.
func (s *SnapshotManager) Save(state *SnapshotState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	tempPath := s.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return err
	}
	return os.Rename(tempPath, s.path)
}

// Load reads the snapshot, returning (nil, nil) when none exists yet.
func (s *SnapshotManager) Load() (*SnapshotState, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var state SnapshotState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	return &state, nil
}
