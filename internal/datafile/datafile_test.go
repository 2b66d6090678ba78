package datafile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteJSONReplaces(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cleaned_runner_id.json")

	require.NoError(t, WriteJSON(path, []string{"a"}))
	require.NoError(t, WriteJSON(path, []string{"a", "b & c"}))

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "[\n    \"a\",\n    \"b & c\"\n]\n", string(contents))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	ids, err := ReadJSON[[]string](path)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b & c"}, ids)
}

func TestWriteJSONMissingDir(t *testing.T) {
	err := WriteJSON(filepath.Join(t.TempDir(), "nope", "x.json"), 1)
	require.Error(t, err)
}

func TestReadJSONInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"a": `), 0644))
	_, err := ReadJSON[map[string]int](path)
	require.ErrorContains(t, err, "bad.json")
}
