package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// document is the flat identifier -> answer JSON document shared by the file and s3 backends
type document struct {
	mu      sync.RWMutex
	records map[string]string
}

func newDocument() *document {
	return &document{records: make(map[string]string)}
}

func (d *document) decode(data []byte) error {
	records, err := decodeRecords(data)
	if err != nil {
		return err
	}
	d.replace(records)
	return nil
}

func (d *document) replace(records map[string]string) {
	d.mu.Lock()
	d.records = records
	d.mu.Unlock()
}

func decodeRecords(data []byte) (map[string]string, error) {
	records := make(map[string]string)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("failed to parse answer document: %w", err)
		}
	}
	return records, nil
}

func (d *document) encode() ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return json.MarshalIndent(d.records, "", "  ")
}

func (d *document) get(identifier string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	a, ok := d.records[identifier]
	return a, ok
}

func (d *document) put(identifier, answer string) {
	d.mu.Lock()
	d.records[identifier] = answer
	d.mu.Unlock()
}

func (d *document) all() map[string]string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string]string, len(d.records))
	for k, v := range d.records {
		out[k] = v
	}
	return out
}

// File keeps answers in a JSON document on local disk
type File struct {
	path string
	doc  *document
	// writeMu serialises rewrites of the document file
	writeMu sync.Mutex
}

// NewFile loads the document at path; a missing file starts an empty store
func NewFile(path string) (*File, error) {
	if path == "" {
		path = "answers.json"
	}

	f := &File{path: path, doc: newDocument()}

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := f.doc.decode(data); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Get returns the answer for identifier
func (f *File) Get(_ context.Context, identifier string) (string, bool, error) {
	a, ok := f.doc.get(identifier)
	return a, ok, nil
}

// Put records the answer and rewrites the document
func (f *File) Put(ctx context.Context, identifier, answer string) error {
	f.doc.put(identifier, answer)
	return f.Flush(ctx)
}

// All returns a copy of the document
func (f *File) All(context.Context) (map[string]string, error) {
	return f.doc.all(), nil
}

// Flush writes the document atomically via a temp file and rename
func (f *File) Flush(context.Context) error {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	data, err := f.doc.encode()
	if err != nil {
		return fmt.Errorf("failed to encode answer document: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", f.path, err)
	}
	return nil
}

// Close flushes the document
func (f *File) Close() error {
	return f.Flush(context.Background())
}
