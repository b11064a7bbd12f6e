// Package blobstore keeps opaque byte blobs as files in one flat directory.
//
// Names are used as file names, so they must not contain a path separator.
// A blob is first written to a scratch subdirectory and moved into place once
// complete; an existing name is never overwritten.
package blobstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"
)

const scratchdir = "scratch"

var (
	// ErrKeyExists indicates an attempt to write a name which already exists.
	ErrKeyExists = errors.New("blob already exists")

	// ErrInvalidName means the name is empty or holds a separator, whitespace,
	// a control character or invalid unicode.
	ErrInvalidName = errors.New("invalid blob name")
)

// Store is a flat directory of blobs.
type Store struct {
	root string

	mu sync.Mutex
}

// New returns a Store rooted at dir. The directory is created on first write.
func New(dir string) *Store {
	return &Store{root: dir}
}

// Root returns the directory backing the store.
func (s *Store) Root() string {
	return s.root
}

// Path returns the absolute location a blob called name would occupy.
func (s *Store) Path(name string) string {
	p := filepath.Join(s.root, name)
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

// Write stores data under name and returns its path.
func (s *Store) Write(name string, data []byte) (string, error) {
	if err := validName(name); err != nil {
		return "", err
	}
	target := s.Path(name)
	if _, err := os.Stat(target); !os.IsNotExist(err) {
		return "", ErrKeyExists
	}

	scratch := filepath.Join(s.root, scratchdir)
	if err := os.MkdirAll(scratch, 0o755); err != nil {
		return "", fmt.Errorf("creating blob dir: %w", err)
	}
	temp := filepath.Join(scratch, name)
	f, err := os.OpenFile(temp, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return "", ErrKeyExists
		}
		return "", err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(temp)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(temp)
		return "", err
	}

	// the existence check and the rename happen under one lock so two writers
	// racing on the same name cannot both win
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := os.Stat(target); !os.IsNotExist(err) {
		os.Remove(temp)
		return "", ErrKeyExists
	}
	if err := os.Rename(temp, target); err != nil {
		os.Remove(temp)
		return "", err
	}
	return target, nil
}

// Exists reports whether a regular file is present at path.
func (s *Store) Exists(path string) bool {
	if path == "" {
		return false
	}
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}

// Read returns the content at path. A missing file yields an error satisfying
// errors.Is(err, fs.ErrNotExist).
func (s *Store) Read(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// List returns the names of every blob, sorted. A missing root is empty.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// ListContaining returns the sorted names that contain substr.
func (s *Store) ListContaining(substr string) ([]string, error) {
	names, err := s.List()
	if err != nil {
		return nil, err
	}
	result := names[:0]
	for _, n := range names {
		if strings.Contains(n, substr) {
			result = append(result, n)
		}
	}
	return result, nil
}

func validName(name string) error {
	if name == "" || name == "." || name == ".." || name == scratchdir {
		return ErrInvalidName
	}
	if !utf8.ValidString(name) || strings.ContainsAny(name, `/\`) {
		return ErrInvalidName
	}
	for _, r := range name {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return ErrInvalidName
		}
	}
	return nil
}
