package facestore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Disk stores audit crops as files under a base directory, one per
// (subject, token id).
type Disk struct {
	dir string
}

// NewDisk creates the directory if needed.
func NewDisk(dir string) (*Disk, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("facestore: create dir: %w", err)
	}
	return &Disk{dir: dir}, nil
}

func (d *Disk) path(subject, tokenID string) string {
	return filepath.Join(d.dir, subject+"_"+tokenID+".jpg")
}

// Save writes the crop atomically: a temp file is renamed into place so a
// failed write never leaves a truncated image behind.
func (d *Disk) Save(_ context.Context, subject, tokenID string, image []byte) error {
	tmp, err := os.CreateTemp(d.dir, ".crop-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(image); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), d.path(subject, tokenID))
}

// Delete removes the crop; a missing file is not an error.
func (d *Disk) Delete(_ context.Context, subject, tokenID string) error {
	if err := os.Remove(d.path(subject, tokenID)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
