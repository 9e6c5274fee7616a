// Package blob provides a content-addressed file store for large task
// payloads. The orchestration core holds only references; the bytes
// live here.
package blob

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// RefPrefix tags references produced by this store.
const RefPrefix = "sha256:"

// ErrNotFound indicates no blob exists for the given reference.
var ErrNotFound = errors.New("blob not found")

// Store is a content-addressed blob store backed by the filesystem.
// A blob's reference is the hex SHA-256 of its contents, so writes are
// idempotent and references are verifiable on read.
type Store struct {
	dir string
}

// NewStore opens a store rooted at dir, creating it if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create blob directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the store's root directory.
func (s *Store) Dir() string {
	return s.dir
}

// Put stores data and returns its reference. Storing the same bytes
// twice returns the same reference without rewriting.
func (s *Store) Put(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	ref := RefPrefix + hex.EncodeToString(sum[:])

	path := s.path(ref)
	if _, err := os.Stat(path); err == nil {
		return ref, nil
	}

	// Write through a temp file so a crash never leaves a partial blob
	// under its final name.
	tmp, err := os.CreateTemp(s.dir, ".put-*")
	if err != nil {
		return "", fmt.Errorf("create temp blob: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close blob: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("commit blob: %w", err)
	}
	return ref, nil
}

// Get returns the bytes for a reference.
func (s *Store) Get(ref string) ([]byte, error) {
	if !strings.HasPrefix(ref, RefPrefix) {
		return nil, fmt.Errorf("malformed reference %q", ref)
	}
	data, err := os.ReadFile(s.path(ref))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", ref, ErrNotFound)
		}
		return nil, fmt.Errorf("read blob: %w", err)
	}

	sum := sha256.Sum256(data)
	if RefPrefix+hex.EncodeToString(sum[:]) != ref {
		return nil, fmt.Errorf("blob %s failed checksum verification", ref)
	}
	return data, nil
}

// Has reports whether a blob exists for the reference.
func (s *Store) Has(ref string) bool {
	if !strings.HasPrefix(ref, RefPrefix) {
		return false
	}
	_, err := os.Stat(s.path(ref))
	return err == nil
}

func (s *Store) path(ref string) string {
	return filepath.Join(s.dir, strings.TrimPrefix(ref, RefPrefix))
}
