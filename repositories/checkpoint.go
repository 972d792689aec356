package repositories

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/KorryKatti/Mirage/domain"
)

// CheckpointStore persists the ephemeral message log as a flat JSON file.
// It is a warm-start cache only; entries past their lifespan are evicted by
// the log itself after loading.
type CheckpointStore struct {
	path string
}

func NewCheckpointStore(path string) *CheckpointStore {
	return &CheckpointStore{path: path}
}

// Save writes the snapshot atomically via a temp file rename so a crash
// mid-write never truncates the previous checkpoint.
func (s *CheckpointStore) Save(entries []domain.Message) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".checkpoint-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

// Load reads the checkpoint. A missing file is a cold start, not an error.
func (s *CheckpointStore) Load() ([]domain.Message, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var entries []domain.Message
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("unmarshal checkpoint: %w", err)
	}
	return entries, nil
}
