// Package fileutil provides tmp+rename writes so a failed write never
// leaves a half-written book behind.
package fileutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// WriteTmpThenMove writes outPath through a temporary file in the same
// directory. writeFunc receives the open temporary file and must write the
// complete contents. The temporary file is fsynced and renamed over outPath
// only when writeFunc succeeds; on any error outPath is left untouched.
func WriteTmpThenMove(outPath string, writeFunc func(w io.Writer) error) error {
	dir := filepath.Dir(outPath)
	tmpPath := filepath.Join(dir, "."+filepath.Base(outPath)+"."+uuid.NewString()+".tmp")

	perm := os.FileMode(0o644)
	if info, err := os.Stat(outPath); err == nil {
		perm = info.Mode().Perm()
	}

	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	if err := writeFunc(f); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return err
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, outPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp to final: %w", err)
	}
	return nil
}

// WriteFile writes data to outPath with WriteTmpThenMove.
func WriteFile(outPath string, data []byte) error {
	return WriteTmpThenMove(outPath, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}
