package eventstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/rafaeljc/valkyrie/internal/events"
)

const (
	dayLayout     = "2006-01-02"
	dayFilePrefix = "events-"
	dayFileSuffix = ".json"
)

// DayKey returns the UTC calendar day of t as YYYY-MM-DD.
func DayKey(t time.Time) string {
	return t.UTC().Format(dayLayout)
}

// DayFileName returns the file name holding the events of t's UTC day.
func DayFileName(t time.Time) string {
	return dayFileName(DayKey(t))
}

func dayFileName(day string) string {
	return dayFilePrefix + day + dayFileSuffix
}

// readDayFile decodes the JSON array at path. A missing file is an empty day.
func readDayFile(path string) ([]events.Event, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, &StorageError{Op: "read", Path: path, Err: err}
	}

	if len(raw) == 0 {
		return nil, nil
	}

	var out []events.Event
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptDayFile, path, err)
	}
	return out, nil
}

// writeDayFile replaces path with a JSON array of the pre-encoded entries. The
// new content is written to a temp file in the same directory and renamed over
// path, so readers see either the old array or the new one.
func writeDayFile(path string, entries []json.RawMessage, mode os.FileMode) error {
	raw, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode day-file: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return &StorageError{Op: "create", Path: path, Err: err}
	}
	tmpName := tmp.Name()

	// Removal fails harmlessly once the rename has happened.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return &StorageError{Op: "write", Path: tmpName, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return &StorageError{Op: "sync", Path: tmpName, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &StorageError{Op: "close", Path: tmpName, Err: err}
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		return &StorageError{Op: "chmod", Path: tmpName, Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		return &StorageError{Op: "rename", Path: path, Err: err}
	}
	return nil
}
