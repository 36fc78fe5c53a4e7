package record

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrMalformed is returned when a line of a stage file is not valid JSON for
// the expected record type.
var ErrMalformed = errors.New("malformed record")

const maxLineBytes = 64 << 20

// Decode streams line-delimited JSON from r, calling fn for every record.
// Blank lines are skipped.
func Decode[T any](r io.Reader, fn func(T) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var v T
		if err := json.Unmarshal(line, &v); err != nil {
			return fmt.Errorf("line %d: %w: %v", lineNo, ErrMalformed, err)
		}
		if err := fn(v); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// ReadFile loads every record of a stage file.
func ReadFile[T any](path string) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var out []T
	err = Decode(f, func(v T) error {
		out = append(out, v)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return out, nil
}

// Writer emits one JSON object per line without HTML escaping.
type Writer struct {
	buf *bufio.Writer
	enc *json.Encoder
	n   int
}

func NewWriter(w io.Writer) *Writer {
	buf := bufio.NewWriter(w)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	return &Writer{buf: buf, enc: enc}
}

// Write encodes v followed by a newline.
func (w *Writer) Write(v any) error {
	if err := w.enc.Encode(v); err != nil {
		return err
	}
	w.n++
	return nil
}

// Count returns the number of records written.
func (w *Writer) Count() int {
	return w.n
}

// Flush writes any buffered data to the underlying writer.
func (w *Writer) Flush() error {
	return w.buf.Flush()
}

// WriteFile replaces path with the given records, creating parent
// directories as needed.
func WriteFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	w := NewWriter(f)
	for _, r := range records {
		if err := w.Write(r); err != nil {
			f.Close()
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("flush %s: %w", path, err)
	}
	return f.Close()
}
