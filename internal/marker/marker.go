// Package marker records which engine backend owns a storage directory,
// so the server fails fast instead of opening a directory with the wrong
// engine and misreading its files.
package marker

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const fileName = "ENGINE"

// CheckOrWrite verifies that dir was created by the named engine. A
// fresh directory is claimed by writing the marker; a mismatch is an
// error.
func CheckOrWrite(dir, engine string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create storage dir: %w", err)
	}

	path := filepath.Join(dir, fileName)

	data, err := os.ReadFile(path)
	if err == nil {
		existing := strings.TrimSpace(string(data))
		if existing != engine {
			return fmt.Errorf("storage dir %s belongs to engine %q, refusing to open with %q", dir, existing, engine)
		}
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("read engine marker: %w", err)
	}

	if err := os.WriteFile(path, []byte(engine+"\n"), 0o644); err != nil {
		return fmt.Errorf("write engine marker: %w", err)
	}
	return nil
}
