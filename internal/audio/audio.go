// Package audio stores entry audio blobs by key. The interface is
// write/read/delete-by-key so callers never assume a local filesystem,
// though the shipped implementation is one.
package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type Store interface {
	// Write creates or truncates the blob at key.
	Write(key string, data []byte) error
	// Append adds data to an existing blob.
	Append(key string, data []byte) error
	Read(key string) ([]byte, error)
	Delete(key string) error
}

// FSStore keeps blobs as files in a single directory.
type FSStore struct {
	dir string
}

func NewFSStore(dir string) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create audio directory: %w", err)
	}
	return &FSStore{dir: dir}, nil
}

func (s *FSStore) path(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid audio key %q", key)
	}
	return filepath.Join(s.dir, key), nil
}

func (s *FSStore) Write(key string, data []byte) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return fmt.Errorf("write audio %s: %w", key, err)
	}
	return nil
}

func (s *FSStore) Append(key string, data []byte) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(p, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open audio %s for append: %w", key, err)
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("append audio %s: %w", key, err)
	}
	return nil
}

func (s *FSStore) Read(key string) ([]byte, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("read audio %s: %w", key, err)
	}
	return data, nil
}

func (s *FSStore) Delete(key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		return fmt.Errorf("delete audio %s: %w", key, err)
	}
	return nil
}
