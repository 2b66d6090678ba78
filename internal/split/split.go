// Package split cuts a runner id list into chunk files so several harvests can share
// the work.
package split

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"utmbindex-backend/internal/datafile"
)

var (
	ErrInvalidSize = errors.New("chunk size must be a positive integer")
	ErrNotList     = errors.New("expected a JSON list of runner ids")
	ErrEmpty       = errors.New("the id list is empty")
)

// ChunkPath names chunk i (1-based) of path: "runner_id.json" -> "runner_id.2.json".
func ChunkPath(path string, i int) string {
	return fmt.Sprintf("%s.%d.json", strings.TrimSuffix(path, ".json"), i)
}

// Split writes the ids in path to chunks of at most size ids and returns the chunk paths.
func Split(path string, size int) ([]string, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidSize, size)
	}
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var ids []string
	err = json.Unmarshal(contents, &ids)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrNotList, path, err)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmpty, path)
	}

	var paths []string
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		chunkPath := ChunkPath(path, len(paths)+1)
		err = datafile.WriteJSON(chunkPath, ids[start:end])
		if err != nil {
			return paths, err
		}
		paths = append(paths, chunkPath)
	}
	return paths, nil
}
