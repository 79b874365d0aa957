// Package persistence writes local files: JSON documents such as run
// reports, and streamed artifacts such as fetched database dumps.
package persistence

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

const (
	indent = "    " // Default indentation for JSON output (4 spaces)
	prefix = ""     // Default prefix for JSON output
)

type Serializer interface {
	Marshal(data any) ([]byte, error)
}

type Writer interface {
	Write(filename string, data []byte) error
}

type JSONSerializer struct {
	Prefix, Indent string
}

func (s JSONSerializer) Marshal(data any) ([]byte, error) {
	return json.MarshalIndent(data, s.Prefix, s.Indent)
}

// FileWriter writes files through a temp file in the destination directory,
// so a failed write never leaves a truncated file behind.
type FileWriter struct {
	Overwrite bool
}

func (w FileWriter) Write(filename string, data []byte) error {
	return w.WriteStream(filename, func(dst io.Writer) error {
		_, err := dst.Write(data)
		return err
	})
}

// WriteStream creates filename from whatever fill writes. The file appears
// only if fill returns nil; the error from fill is returned unchanged.
func (w FileWriter) WriteStream(filename string, fill func(io.Writer) error) error {
	if filename == "" {
		return os.ErrInvalid
	}
	if _, err := os.Stat(filename); !os.IsNotExist(err) && !w.Overwrite {
		return os.ErrExist
	}
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(filename)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if err := fill(tmp); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmpName, filename); err != nil {
		return err
	}
	committed = true
	return nil
}

// WriteJSONToFile persists data as JSON to a destination using the provided Serializer and Writer.
func WriteJSONToFile(data any, filename string, serializer Serializer, writer Writer) error {
	if filename == "" {
		return fmt.Errorf("invalid filename: %w", os.ErrInvalid)
	}

	bytes, err := serializer.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	if err := writer.Write(filename, bytes); err != nil {
		return fmt.Errorf("failed to write data: %w", err)
	}
	return nil
}

// WriteJSON persists data as JSON to a file with default settings (overwrite enabled, 4-space indent).
func WriteJSON(data any, filename string) error {
	serializer := JSONSerializer{Prefix: prefix, Indent: indent}
	writer := FileWriter{Overwrite: true}
	return WriteJSONToFile(data, filename, serializer, writer)
}
