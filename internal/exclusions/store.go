// Package exclusions persists the list of conversation ids that are never
// auto-processed. The list is a JSON array that operators may also edit by hand.
package exclusions

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"csbridge/internal/security"
)

// FileStore reads and writes the exclusion list file. Nothing is cached:
// every Load reads the file again. Writers are not serialized, last write wins.
type FileStore struct {
	path string
}

func NewFileStore(path string) (*FileStore, error) {
	if err := security.ValidateFilePath(path); err != nil {
		return nil, fmt.Errorf("invalid exclusions path: %w", err)
	}
	return &FileStore{path: path}, nil
}

func (s *FileStore) Path() string { return s.path }

// Load returns the current list. A missing file is an empty list.
func (s *FileStore) Load(_ context.Context) ([]string, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read exclusions file: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return []string{}, nil
	}

	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to parse exclusions file: %w", err)
	}
	return list, nil
}

// Add appends id unless it is already present. It reports whether the list changed.
func (s *FileStore) Add(ctx context.Context, id string) (bool, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return false, fmt.Errorf("conversation id is required")
	}
	list, err := s.Load(ctx)
	if err != nil {
		return false, err
	}
	for _, existing := range list {
		if existing == id {
			return false, nil
		}
	}
	return true, s.save(append(list, id))
}

// Remove drops every occurrence of id. It reports whether the list changed.
func (s *FileStore) Remove(ctx context.Context, id string) (bool, error) {
	list, err := s.Load(ctx)
	if err != nil {
		return false, err
	}
	kept := list[:0]
	for _, existing := range list {
		if existing != id {
			kept = append(kept, existing)
		}
	}
	if len(kept) == len(list) {
		return false, nil
	}
	return true, s.save(kept)
}

// save writes through a temp file and rename so readers never see a torn list.
func (s *FileStore) save(list []string) error {
	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode exclusions: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create exclusions directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".exclusions-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write exclusions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace exclusions file: %w", err)
	}
	return nil
}
