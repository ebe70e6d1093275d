// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package fsutil resolves asset names against their storage roots.
package fsutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrOutsideRoot is returned when a name resolves outside its root.
	ErrOutsideRoot = errors.New("path escapes root")
	// ErrNotRegular is returned when a path exists but is not a plain file.
	ErrNotRegular = errors.New("not a regular file")
)

// ConfineRelPath joins root and rel and ensures the result (after resolving
// symlinks) stays underneath root. rel must be relative and free of
// backslashes.
func ConfineRelPath(root, rel string) (string, error) {
	if strings.Contains(rel, "\\") {
		return "", fmt.Errorf("%w: backslash in %q", ErrOutsideRoot, rel)
	}
	clean := filepath.Clean(rel)
	if filepath.IsAbs(clean) {
		return "", fmt.Errorf("%w: %q is absolute", ErrOutsideRoot, rel)
	}
	// Segment check so names like "a..b.mp4" stay legal.
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrOutsideRoot, rel)
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("invalid root path: %w", err)
	}
	realRoot, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return "", err
		}
		realRoot = absRoot
	}

	full := filepath.Join(realRoot, clean)
	resolved := full
	if _, err := os.Lstat(full); err == nil {
		if resolved, err = filepath.EvalSymlinks(full); err != nil {
			return "", fmt.Errorf("failed to resolve path: %w", err)
		}
	} else if dir, derr := filepath.EvalSymlinks(filepath.Dir(full)); derr == nil {
		resolved = filepath.Join(dir, filepath.Base(full))
	}

	relToRoot, err := filepath.Rel(realRoot, resolved)
	if err != nil {
		return "", fmt.Errorf("rel computation failed: %w", err)
	}
	if relToRoot == ".." || strings.HasPrefix(relToRoot, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w via symlink: %s", ErrOutsideRoot, resolved)
	}
	return resolved, nil
}

// IsRegularFile checks that path exists and is a regular file.
func IsRegularFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s", ErrNotRegular, path)
	}
	return nil
}

// ResolveFile confines name to root and requires it to be an existing
// regular file.
func ResolveFile(root, name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: empty name", os.ErrNotExist)
	}
	path, err := ConfineRelPath(root, name)
	if err != nil {
		return "", err
	}
	if err := IsRegularFile(path); err != nil {
		return "", err
	}
	return path, nil
}
