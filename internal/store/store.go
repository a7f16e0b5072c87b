// Package store keeps the in-memory event index and writes it through to a
// BlobStore after every mutation. The whole index is serialized as one JSON
// blob (date key -> ordered event list), the same shape older browser-side
// versions kept in local storage.
package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	appLog "github.com/sambabiba/shinbis-calendar/internal/log"
	"github.com/sambabiba/shinbis-calendar/internal/model"
)

// Store owns the event index. All reads and mutations go through it; every
// mutation triggers a synchronous whole-blob save. Save failures are logged
// only, so the in-memory state may run ahead of storage.
type Store struct {
	mu    sync.RWMutex
	blob  BlobStore
	index model.Index
}

// New creates a Store over the given blob and loads the persisted index.
// A missing or malformed blob yields an empty index, never an error.
func New(blob BlobStore) *Store {
	s := &Store{
		blob:  blob,
		index: model.Index{},
	}
	s.load()
	return s
}

// load deserializes the persisted blob into the index. Corrupt or missing
// data falls back to an empty index; the failure is logged, not surfaced.
func (s *Store) load() {
	data, err := s.blob.Get()
	if err != nil {
		appLog.Error("store: blob read failed, starting empty", err)
		return
	}
	if len(data) == 0 {
		return
	}

	var idx model.Index
	if err := json.Unmarshal(data, &idx); err != nil {
		appLog.Error("store: blob is malformed, starting empty", err)
		return
	}

	// Migrate legacy records once at load so business logic never has to
	// branch on field presence, and drop any empty lists a buggy writer
	// may have left behind.
	for key, events := range idx {
		if len(events) == 0 {
			delete(idx, key)
			continue
		}
		for i := range events {
			migrateLegacy(&events[i])
		}
	}

	s.index = idx
	appLog.Info("store: index loaded", "date_keys", len(idx))
}

// migrateLegacy copies an old single "time" field into StartTime. Older blobs
// stored only a start time; EndTime stays empty for those records.
func migrateLegacy(ev *model.Event) {
	if ev.LegacyTime == "" {
		return
	}
	if !ev.AllDay && ev.StartTime == "" {
		ev.StartTime = ev.LegacyTime
	}
	ev.LegacyTime = ""
}

// save serializes the full index and overwrites the blob. Callers must not
// assume success; failures are logged only. Must be called with mu held.
func (s *Store) save() {
	data, err := json.Marshal(s.index)
	if err != nil {
		appLog.Error("store: index marshal failed", err)
		return
	}
	if err := s.blob.Put(data); err != nil {
		appLog.Error("store: blob write failed", err, "bytes", len(data))
	}
}

// Upsert inserts event under dateKey, or replaces it in place when an event
// with the same ID already exists there (position preserved). Triggers an
// implicit save.
func (s *Store) Upsert(dateKey string, ev model.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	events := s.index[dateKey]
	replaced := false
	for i := range events {
		if events[i].ID == ev.ID {
			events[i] = ev
			replaced = true
			break
		}
	}
	if !replaced {
		events = append(events, ev)
	}
	s.index[dateKey] = events
	s.save()
}

// Remove deletes the event with eventID under dateKey. When the resulting
// list is empty the key itself is removed, so no key ever maps to an empty
// list. No-op when the event is not found.
func (s *Store) Remove(dateKey string, eventID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	events, ok := s.index[dateKey]
	if !ok {
		return
	}

	kept := events[:0]
	for _, ev := range events {
		if ev.ID != eventID {
			kept = append(kept, ev)
		}
	}
	if len(kept) == len(events) {
		return
	}

	if len(kept) == 0 {
		delete(s.index, dateKey)
	} else {
		s.index[dateKey] = kept
	}
	s.save()
}

// EventsOn returns a copy of the events stored under dateKey, in insertion
// order. Absent keys yield an empty slice.
func (s *Store) EventsOn(dateKey string) []model.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := s.index[dateKey]
	out := make([]model.Event, len(events))
	copy(out, events)
	return out
}

// Snapshot returns a deep copy of the whole index, for export and backups.
func (s *Store) Snapshot() model.Index {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(model.Index, len(s.index))
	for key, events := range s.index {
		cp := make([]model.Event, len(events))
		copy(cp, events)
		out[key] = cp
	}
	return out
}

// Backup writes the current index as indented JSON to path, atomically via a
// temp file in the same directory. Used by the cron-scheduled backup job.
func (s *Store) Backup(path string) error {
	snap := s.Snapshot()
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".shinbiscal-backup-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
