// Package restyutil persists raw HTTP exchanges for debugging a scrape.
package restyutil

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// FilesystemOutput writes each exchange to its own file in a directory.
type FilesystemOutput struct {
	directory string
}

// NewFilesystemOutput empties dir (creating it if needed) so a dump only ever holds the
// exchanges of one run.
func NewFilesystemOutput(dir string) (FilesystemOutput, error) {
	err := os.RemoveAll(dir)
	if err != nil {
		return FilesystemOutput{}, fmt.Errorf("clear %s: %w", dir, err)
	}
	err = os.MkdirAll(dir, 0777)
	if err != nil {
		return FilesystemOutput{}, fmt.Errorf("create %s: %w", dir, err)
	}
	return FilesystemOutput{directory: dir}, nil
}

func (o FilesystemOutput) Write(id string, contents string) {
	name := strings.ReplaceAll(id, string(filepath.Separator), "_")
	err := os.WriteFile(filepath.Join(o.directory, name), []byte(contents), 0600)
	if err != nil {
		slog.Warn("failed to write message info file", "id", id, "err", err)
	}
}
