// Package store persists the telemetry document as a single JSON file.
// Writes are atomic from any concurrent reader's point of view: the document
// is written to a temporary file in the same directory and renamed into
// place, so a reader sees either the prior complete version or the new one,
// never a partial write. Reads retry with a short backoff when they catch a
// file mid-replacement, and that retry policy lives here and nowhere else.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/runnerscope/runnerscope/internal/models"
)

const (
	loadRetries  = 3
	retryBackoff = 100 * time.Millisecond
)

// ErrNoDocument means no telemetry document exists at the configured path.
// Operations that require a prior start (mark, stop) surface this to the user.
var ErrNoDocument = errors.New("no telemetry document found")

// ErrCorrupt means the document could not be parsed after exhausting
// retries. It is never papered over with fabricated data.
var ErrCorrupt = errors.New("telemetry document is corrupt")

// Store reads and writes the telemetry document at a fixed path.
type Store struct {
	path   string
	logger *zap.Logger
}

// New creates a Store for the document at path.
func New(path string, logger *zap.Logger) *Store {
	return &Store{path: path, logger: logger}
}

// Path returns the document path.
func (s *Store) Path() string { return s.path }

// Exists reports whether a document is present at the configured path.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Load reads and parses the document. Parse failures are retried a bounded
// number of times with backoff, since a concurrent writer may be mid-replace;
// if retries exhaust, ErrCorrupt is returned. A missing file returns
// ErrNoDocument immediately.
func (s *Store) Load() (*models.Document, error) {
	var lastErr error
	for attempt := 0; attempt < loadRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(retryBackoff)
		}

		data, err := os.ReadFile(s.path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("%w at %s", ErrNoDocument, s.path)
			}
			lastErr = err
			continue
		}

		var doc models.Document
		if err := json.Unmarshal(data, &doc); err != nil {
			s.logger.Warn("Failed to parse telemetry document, retrying",
				zap.Int("attempt", attempt+1),
				zap.Error(err))
			lastErr = err
			continue
		}
		return &doc, nil
	}
	return nil, fmt.Errorf("%w at %s: %v", ErrCorrupt, s.path, lastErr)
}

// Save atomically replaces the document on disk. On any failure the
// temporary file is removed and the previous version stays intact.
func (s *Store) Save(doc *models.Document) error {
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("encoding document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replacing document: %w", err)
	}
	return nil
}
