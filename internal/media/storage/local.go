// Copyright (c) 2026 Atelier. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Local stores artifacts as files below a root directory.
type Local struct {
	root string
}

// NewLocal creates the root directory (and any extra subdirectories) and returns the store.
func NewLocal(root string, directories ...string) (*Local, error) {
	absoluteRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolving root %q: %w", root, err)
	}

	for _, directory := range append([]string{""}, directories...) {
		if err := os.MkdirAll(filepath.Join(absoluteRoot, filepath.FromSlash(directory)), 0o755); err != nil {
			return nil, fmt.Errorf("storage: creating directory %q: %w", directory, err)
		}
	}

	return &Local{root: absoluteRoot}, nil
}

// Root returns the absolute root directory.
func (local *Local) Root() string {
	return local.root
}

// Path resolves key to a filesystem path, rejecting keys that escape the root.
func (local *Local) Path(key string) (string, error) {
	cleaned := path.Clean("/" + key)
	if key == "" || cleaned == "/" || strings.Contains(key, "\\") || cleaned != "/"+key {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return filepath.Join(local.root, filepath.FromSlash(cleaned[1:])), nil
}

func (local *Local) Write(_ context.Context, key string, data []byte, _ string) error {
	target, err := local.Path(key)
	if err != nil {
		return err
	}

	directory := filepath.Dir(target)
	if err := os.MkdirAll(directory, 0o755); err != nil {
		return fmt.Errorf("storage: creating %s: %w", directory, err)
	}

	temporary := filepath.Join(directory, "."+uuid.NewString()+".part")
	if err := os.WriteFile(temporary, data, 0o644); err != nil {
		return fmt.Errorf("storage: writing %s: %w", key, err)
	}

	if err := os.Rename(temporary, target); err != nil {
		_ = os.Remove(temporary)
		return fmt.Errorf("storage: committing %s: %w", key, err)
	}

	return nil
}

func (local *Local) Read(_ context.Context, key string) ([]byte, error) {
	target, err := local.Path(key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(target)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: reading %s: %w", key, err)
	}

	return data, nil
}

func (local *Local) Open(_ context.Context, key string) (*Object, error) {
	target, err := local.Path(key)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(target)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: opening %s: %w", key, err)
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("storage: stat %s: %w", key, err)
	}
	if info.IsDir() {
		_ = file.Close()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	return &Object{ReadSeekCloser: file, Size: info.Size(), ModTime: info.ModTime()}, nil
}

func (local *Local) Delete(_ context.Context, key string) error {
	target, err := local.Path(key)
	if err != nil {
		return err
	}

	err = os.Remove(target)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return fmt.Errorf("storage: deleting %s: %w", key, err)
	}

	return nil
}

func (local *Local) Exists(_ context.Context, key string) (bool, error) {
	target, err := local.Path(key)
	if err != nil {
		return false, err
	}

	info, err := os.Stat(target)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("storage: stat %s: %w", key, err)
	}

	return !info.IsDir(), nil
}
