package snapshot

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/epiwatch/covidtrack/pkg/logger"
)

var (
	// ErrNotFound means no snapshot exists for the exact date.
	ErrNotFound = errors.New("snapshot: not found")

	// ErrCorrupt means a stored snapshot cannot be parsed as a uniform
	// table. Surfaced to callers, never silently skipped: it is
	// on-disk corruption needing operator attention.
	ErrCorrupt = errors.New("snapshot: corrupt data")
)

// Repository is an on-disk keyed store of one dataset per date, one
// CSV file named MM-DD-YYYY.csv.
type Repository struct {
	dir    string
	logger *logger.Logger
}

// NewRepository creates a repository rooted at dir, creating it if
// needed.
func NewRepository(dir string, log *logger.Logger) (*Repository, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &Repository{
		dir:    dir,
		logger: log.WithField("module", "repository"),
	}, nil
}

func (r *Repository) path(date Date) string {
	return filepath.Join(r.dir, date.String()+".csv")
}

// Exists reports whether a snapshot file for the exact date is present.
func (r *Repository) Exists(date Date) bool {
	_, err := os.Stat(r.path(date))
	return err == nil
}

// Read loads the snapshot for the exact date.
func (r *Repository) Read(date Date) (*Snapshot, error) {
	data, err := os.ReadFile(r.path(date))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, date)
		}
		return nil, fmt.Errorf("read snapshot %s: %w", date, err)
	}

	snap, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, date, err)
	}

	return snap, nil
}

// Write persists the snapshot for the date, overwriting any existing
// one. The write goes to a temp file in the same directory and is
// renamed into place, so a reader never observes a half-written file.
func (r *Repository) Write(date Date, snap *Snapshot) error {
	tmp, err := os.CreateTemp(r.dir, "."+date.String()+".csv.tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if err := snap.Encode(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("encode snapshot %s: %w", date, err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpName, r.path(date)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename snapshot %s: %w", date, err)
	}

	r.logger.WithFields(map[string]interface{}{
		"date":    date.String(),
		"records": len(snap.Records),
	}).Debug("Snapshot written")

	return nil
}
