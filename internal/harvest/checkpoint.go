package harvest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
	"utmbindex-backend/internal/datafile"

	"github.com/mazen160/go-random"
)

// ErrCheckpointLocked is returned when another run holds the checkpoint path.
var ErrCheckpointLocked = errors.New("checkpoint is locked by another run")

// Saver persists a snapshot of a collection.
type Saver interface {
	Save(value any) error
}

// Checkpoint is a JSON file owned by a single run. Ownership is a "<path>.lock" file
// created exclusively, so two runs never overwrite each other's progress.
type Checkpoint struct {
	path  string
	saves int
}

// RunPath returns a fresh checkpoint path in dir, e.g.
// "raw_race/race_20241018T101500_x8Gk2p.json".
func RunPath(dir, prefix string, now time.Time) (string, error) {
	suffix, err := random.String(6)
	if err != nil {
		return "", fmt.Errorf("generate run suffix: %w", err)
	}
	name := fmt.Sprintf("%s_%s_%s.json", prefix, now.Format("20060102T150405"), suffix)
	return filepath.Join(dir, name), nil
}

// ClaimCheckpoint takes ownership of path, creating its directory if needed.
func ClaimCheckpoint(path string) (*Checkpoint, error) {
	err := os.MkdirAll(filepath.Dir(path), 0777)
	if err != nil {
		return nil, fmt.Errorf("create checkpoint dir: %w", err)
	}
	lock, err := os.OpenFile(path+".lock", os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("%w: %s", ErrCheckpointLocked, path)
	}
	if err != nil {
		return nil, fmt.Errorf("lock checkpoint: %w", err)
	}
	fmt.Fprintf(lock, "%d\n", os.Getpid())
	err = lock.Close()
	if err != nil {
		return nil, err
	}
	return &Checkpoint{path: path}, nil
}

func (c *Checkpoint) Path() string {
	return c.path
}

// Saves is how many times the checkpoint has been written.
func (c *Checkpoint) Saves() int {
	return c.saves
}

// Save replaces the checkpoint with value. The file on disk is always either the
// previous snapshot or the new one, never a partial write.
func (c *Checkpoint) Save(value any) error {
	err := datafile.WriteJSON(c.path, value)
	if err != nil {
		return err
	}
	c.saves++
	return nil
}

// Release gives up ownership, the checkpoint itself stays.
func (c *Checkpoint) Release() error {
	err := os.Remove(c.path + ".lock")
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
