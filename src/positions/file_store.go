package positions

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/jiaming2012/telegram-trading/src/models"
)

// FileStore persists the single current-position record as a JSON file. It
// is single-writer: the trading loop owns it while running, the reconciler
// only writes before the loop starts.
type FileStore struct {
	Path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

func (s *FileStore) Load() (*models.StoredPosition, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("FileStore.Load: failed to read %s: %w", s.Path, err)
	}

	var position models.StoredPosition
	if err := json.Unmarshal(data, &position); err != nil {
		return nil, fmt.Errorf("FileStore.Load: failed to parse %s: %w", s.Path, err)
	}

	return &position, nil
}

func (s *FileStore) Save(position *models.StoredPosition) error {
	position.SavedAt = time.Now().UTC()

	data, err := json.MarshalIndent(position, "", "  ")
	if err != nil {
		return fmt.Errorf("FileStore.Save: failed to marshal position: %w", err)
	}

	// write-then-rename keeps a crash from leaving a torn file behind
	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("FileStore.Save: failed to write %s: %w", tmp, err)
	}

	if err := os.Rename(tmp, s.Path); err != nil {
		return fmt.Errorf("FileStore.Save: failed to rename %s: %w", tmp, err)
	}

	return nil
}

func (s *FileStore) Clear() error {
	if err := os.Remove(s.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("FileStore.Clear: failed to remove %s: %w", s.Path, err)
	}

	return nil
}
