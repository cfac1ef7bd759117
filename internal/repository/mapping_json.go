package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/ahmednasr/mapping-assistant/internal/models"
)

// MappingJSON keeps the current mapping set in memory and mirrors every
// change to a JSON file.
type MappingJSON struct {
	path   string
	logger *zap.Logger

	mu       sync.RWMutex
	mappings models.MappingSet
}

// NewMappingJSON loads path if it exists. A file that cannot be decoded is
// logged and ignored so the app still starts with an empty set.
func NewMappingJSON(path string, logger *zap.Logger) *MappingJSON {
	s := &MappingJSON{path: path, logger: logger.Named("mappings"), mappings: models.MappingSet{}}

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		s.logger.Warn("failed to read mappings file", zap.String("path", path), zap.Error(err))
	default:
		var loaded models.MappingSet
		if err := json.Unmarshal(raw, &loaded); err != nil {
			s.logger.Warn("failed to load mappings file", zap.String("path", path), zap.Error(err))
		} else if loaded != nil {
			s.mappings = loaded
		}
	}
	return s
}

// All returns a copy of the current mappings.
func (s *MappingJSON) All() models.MappingSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mappings.Clone()
}

// Set stores one mapping and persists the whole set.
func (s *MappingJSON) Set(field string, value models.MappingValue) error {
	return s.Merge(models.MappingSet{field: value})
}

// Merge overwrites the given fields and persists the whole set. On a write
// failure the in-memory set is left unchanged.
func (s *MappingJSON) Merge(update models.MappingSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.mappings.Clone()
	for k, v := range update {
		next[k] = v
	}
	if err := s.persist(next); err != nil {
		return err
	}
	s.mappings = next
	return nil
}

// Clear empties the set and persists it.
func (s *MappingJSON) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.persist(models.MappingSet{}); err != nil {
		return err
	}
	s.mappings = models.MappingSet{}
	return nil
}

// persist writes to a temp file in the target directory and renames it over
// the previous file, so readers never observe a partial write.
func (s *MappingJSON) persist(set models.MappingSet) error {
	data, err := json.MarshalIndent(set, "", "  ")
	if err != nil {
		return fmt.Errorf("encode mappings: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create mappings dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".mappings-*.json")
	if err != nil {
		return fmt.Errorf("create temp mappings file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write mappings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write mappings: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace mappings file: %w", err)
	}
	return nil
}
