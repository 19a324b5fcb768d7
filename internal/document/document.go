// Package document reads and writes the flat, order-preserving key/value
// documents that hold category rules and category directories.
//
// The on-disk format is picked from the file extension: .json (the format
// the rule files have always used), .yaml/.yml, or .toml. Key order is
// significant because classification is first-match-wins, so every codec
// preserves the order in which keys appear.
package document

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Format identifies a document encoding
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// Entry is one key of an ordered document
type Entry[V any] struct {
	Key   string
	Value V
}

// ListEntry maps a key to an array of strings (rule documents)
type ListEntry = Entry[[]string]

// StringEntry maps a key to a single string (directory documents)
type StringEntry = Entry[string]

// PersistenceError reports a document that exists but cannot be decoded
type PersistenceError struct {
	Path string
	Err  error
}

// Error implements the error interface
func (e *PersistenceError) Error() string {
	return fmt.Sprintf("malformed document %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying decode error
func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// IsPersistenceError reports whether err is (or wraps) a PersistenceError
func IsPersistenceError(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}

// FormatFor returns the document format implied by a file name
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("unsupported document format: %q", filepath.Ext(path))
	}
}

// ReadLists reads a key -> []string document. A missing file is reported
// with an error satisfying errors.Is(err, fs.ErrNotExist).
func ReadLists(path string) ([]ListEntry, error) {
	return read[[]string](path)
}

// WriteLists atomically writes a key -> []string document
func WriteLists(path string, entries []ListEntry) error {
	return write(path, entries)
}

// ReadStrings reads a key -> string document
func ReadStrings(path string) ([]StringEntry, error) {
	return read[string](path)
}

// WriteStrings atomically writes a key -> string document
func WriteStrings(path string, entries []StringEntry) error {
	return write(path, entries)
}

func read[V any](path string) ([]Entry[V], error) {
	format, err := FormatFor(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var entries []Entry[V]
	switch format {
	case FormatJSON:
		entries, err = decodeJSON[V](data)
	case FormatYAML:
		entries, err = decodeYAML[V](data)
	case FormatTOML:
		entries, err = decodeTOML[V](data)
	}
	if err != nil {
		return nil, &PersistenceError{Path: path, Err: err}
	}

	return dedupe(entries), nil
}

func write[V any](path string, entries []Entry[V]) error {
	format, err := FormatFor(path)
	if err != nil {
		return err
	}

	var data []byte
	switch format {
	case FormatJSON:
		data, err = encodeJSON(entries)
	case FormatYAML:
		data, err = encodeYAML(entries)
	case FormatTOML:
		data, err = encodeTOML(entries)
	}
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}

	return WriteFileAtomic(path, data, 0o644)
}

// dedupe collapses repeated keys: the first occurrence keeps its position and
// the last occurrence supplies the value.
func dedupe[V any](entries []Entry[V]) []Entry[V] {
	index := make(map[string]int, len(entries))
	out := make([]Entry[V], 0, len(entries))
	for _, e := range entries {
		if i, ok := index[e.Key]; ok {
			out[i].Value = e.Value
			continue
		}
		index[e.Key] = len(out)
		out = append(out, e)
	}
	return out
}

// WriteFileAtomic writes data to a temp file next to path and renames it into
// place, so a crash mid-write leaves the previous document intact.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		// no-op once the rename succeeded
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}

	return nil
}
