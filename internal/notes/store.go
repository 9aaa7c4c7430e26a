package notes

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/kuitang/notes-log/internal/obs"
)

// Store persists the note log as JSON Lines, one record per line.
//
// The file is the only source of truth: every read parses it from the top and
// every mutation other than an append rewrites it whole. Nothing is locked, so
// concurrent writers can interleave.
type Store struct {
	path string
}

// NewStore returns a store backed by the log file at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the log file location.
func (s *Store) Path() string {
	return s.path
}

// Load reads every record from the log in file order.
// A missing file is an empty log. Lines that are not JSON objects are skipped.
func (s *Store) Load() ([]Record, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return []Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open note log: %w", err)
	}
	defer f.Close()

	records, skipped, err := decodeRecords(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read note log: %w", err)
	}
	if skipped > 0 {
		obs.Pkg("notes").Debug("skipped malformed log lines", "path", s.path, "skipped", skipped, "loaded", len(records))
	}
	return records, nil
}

// Raw returns the log bytes as stored, malformed lines included. A missing
// file is empty.
func (s *Store) Raw() ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read note log: %w", err)
	}
	return data, nil
}

// Append writes one record at the end of the log, creating the directory and
// file when needed. A missing final newline left by an earlier writer is
// repaired first so the record lands on its own line.
func (s *Store) Append(rec Record) error {
	line, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	if err := s.ensureDir(); err != nil {
		return err
	}

	f, err := os.OpenFile(s.path, os.O_RDWR|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open note log for append: %w", err)
	}
	defer f.Close()

	needsNewline, err := missingTrailingNewline(f)
	if err != nil {
		return err
	}
	if needsNewline {
		line = append([]byte{'\n'}, line...)
	}
	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("failed to append to note log: %w", err)
	}
	return nil
}

// SaveAll truncates the log and writes records in the given order.
// The rewrite happens in place: a failure partway leaves a partial file.
func (s *Store) SaveAll(records []Record) error {
	if err := s.ensureDir(); err != nil {
		return err
	}

	f, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("failed to truncate note log: %w", err)
	}

	w := bufio.NewWriter(f)
	for _, rec := range records {
		line, err := encodeRecord(rec)
		if err != nil {
			f.Close()
			return err
		}
		if _, err := w.Write(line); err != nil {
			f.Close()
			return fmt.Errorf("failed to rewrite note log: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("failed to rewrite note log: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close note log: %w", err)
	}
	return nil
}

func (s *Store) ensureDir() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create note log directory: %w", err)
	}
	return nil
}

// DecodeLog parses JSON Lines content the same way Load does.
func DecodeLog(r io.Reader) ([]Record, error) {
	records, _, err := decodeRecords(r)
	return records, err
}

func decodeRecords(r io.Reader) ([]Record, int, error) {
	records := []Record{}
	skipped := 0
	br := bufio.NewReader(r)
	for {
		line, readErr := br.ReadString('\n')
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			if rec, ok := decodeRecord(trimmed); ok {
				records = append(records, rec)
			} else {
				skipped++
			}
		}
		if readErr == io.EOF {
			return records, skipped, nil
		}
		if readErr != nil {
			return nil, skipped, readErr
		}
	}
}

func decodeRecord(line string) (Record, bool) {
	dec := json.NewDecoder(strings.NewReader(line))
	dec.UseNumber()
	var rec Record
	if err := dec.Decode(&rec); err != nil || rec == nil {
		return nil, false
	}
	// Anything after the object, even a stray '}' or ']', makes the line malformed.
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, false
	}
	return rec, true
}

func encodeRecord(rec Record) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(rec); err != nil {
		return nil, fmt.Errorf("failed to encode note record: %w", err)
	}
	// Encode terminates the value with exactly one newline.
	return buf.Bytes(), nil
}

func missingTrailingNewline(f *os.File) (bool, error) {
	info, err := f.Stat()
	if err != nil {
		return false, fmt.Errorf("failed to stat note log: %w", err)
	}
	if info.Size() == 0 {
		return false, nil
	}
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, info.Size()-1); err != nil {
		return false, fmt.Errorf("failed to read note log tail: %w", err)
	}
	return last[0] != '\n', nil
}
