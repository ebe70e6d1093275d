// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

//go:build !windows

package fsutil

import (
	"context"
	"fmt"
	"io"
	"os"

	lclog "github.com/ManuGH/loopcast/internal/log"
	"github.com/google/renameio/v2"
)

// WriteAtomic replaces path with the contents of r: temp file, fsync, rename.
// Readers see either the old file or the new one, never a torn file.
func WriteAtomic(ctx context.Context, path string, r io.Reader, perm os.FileMode) (int64, error) {
	logger := lclog.FromContext(ctx)

	pendingFile, err := renameio.NewPendingFile(path, renameio.WithPermissions(perm))
	if err != nil {
		return 0, fmt.Errorf("create pending file: %w", err)
	}
	defer func() {
		if err := pendingFile.Cleanup(); err != nil {
			logger.Debug().Err(err).Str(lclog.FieldPath, path).Msg("cleanup pending file")
		}
	}()

	n, err := io.Copy(pendingFile, r)
	if err != nil {
		return n, fmt.Errorf("write pending file: %w", err)
	}
	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return n, fmt.Errorf("atomically replace: %w", err)
	}
	return n, nil
}
