//go:build windows

package lock

import (
	"fmt"
	"os"
	"path/filepath"
)

// Acquire claims dir by creating the lock file exclusively. An existing
// lock file means the directory is held by another engine instance.
func Acquire(dir string) (*Lock, error) {
	f, err := os.OpenFile(filepath.Join(dir, fileName), os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("storage dir %s is locked by another engine instance", dir)
	}

	return &Lock{file: f}, nil
}

// Release closes and removes the lock file.
func (l *Lock) Release() error {
	name := l.file.Name()
	err := l.file.Close()
	if rmErr := os.Remove(name); err == nil {
		err = rmErr
	}
	return err
}
