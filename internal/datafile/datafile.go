// Package datafile reads and writes the JSON data files shared by every command.
package datafile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Encode encodes value the way every data file is stored: indented by four spaces with
// a trailing newline.
func Encode(value any) ([]byte, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetIndent("", "    ")
	encoder.SetEscapeHTML(false)
	err := encoder.Encode(value)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteJSON writes value to a temporary file next to path and renames it over path, so
// path always holds either the previous contents or the new ones.
func WriteJSON(path string, value any) error {
	contents, err := Encode(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	_, err = tmp.Write(contents)
	if err == nil {
		err = tmp.Sync()
	}
	closeErr := tmp.Close()
	if err != nil {
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if closeErr != nil {
		return closeErr
	}
	err = os.Rename(tmp.Name(), path)
	if err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

func ReadJSON[T any](path string) (T, error) {
	var out T
	contents, err := os.ReadFile(path)
	if err != nil {
		return out, err
	}
	err = json.Unmarshal(contents, &out)
	if err != nil {
		return out, fmt.Errorf("parse %s: %w", path, err)
	}
	return out, nil
}
