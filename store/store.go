// Package store is the server-side staging area for uploaded audio segments.
// Segments live on disk between upload and transcription; each one is tracked
// by a record that walks a linear lifecycle until the bytes are reclaimed.
package store

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// State is one step in a segment record's lifecycle.
type State string

const (
	StateSaved        State = "saved"
	StateTranscribing State = "transcribing"
	StateProcessed    State = "processed"
	StateDeleted      State = "deleted"
)

// next maps each state to the only state it may advance to. The lifecycle is
// linear: saved -> transcribing -> processed -> deleted.
var next = map[State]State{
	StateSaved:        StateTranscribing,
	StateTranscribing: StateProcessed,
	StateProcessed:    StateDeleted,
}

// Transition validates a single lifecycle step.
func Transition(current, target State) (State, error) {
	if next[current] != target {
		return current, errors.Errorf("invalid transition: %s --> %s", current, target)
	}
	return target, nil
}

var (
	// ErrNotFound means no live record exists under the given name.
	ErrNotFound = errors.New("segment not found")
	// ErrUnavailable means the backing medium rejected the operation.
	ErrUnavailable = errors.New("storage unavailable")
)

// Record tracks one stored segment.
type Record struct {
	Name     string
	State    State
	Location string // current on-disk path, changes when the segment is relocated
	Text     string // transcript cached at relocation, for idempotent re-reads
}

// FileStore keeps segment bytes under a staging directory and processed
// segments under a "processed" subdirectory. Both are created lazily on
// first write.
type FileStore struct {
	dir       string
	retention time.Duration

	mu      sync.Mutex
	records map[string]*Record
	timers  map[string]*time.Timer

	// Expired is invoked (outside the lock) each time a record reaches the
	// deleted state. Optional; used for instrumentation.
	Expired func(name string)
}

// New creates a store rooted at dir. A retention of zero deletes processed
// segments immediately; anything larger keeps them around that long.
func New(dir string, retention time.Duration) *FileStore {
	return &FileStore{
		dir:       dir,
		retention: retention,
		records:   make(map[string]*Record),
		timers:    make(map[string]*time.Timer),
	}
}

// Dir returns the staging directory.
func (s *FileStore) Dir() string { return s.dir }

// Put writes a segment's bytes and creates its record in the saved state.
// Re-uploading the same name while still saved overwrites in place; a name
// that has already advanced past saved is never reused.
func (s *FileStore) Put(name string, data []byte) error {
	s.mu.Lock()
	if rec, ok := s.records[name]; ok && rec.State != StateSaved {
		s.mu.Unlock()
		return errors.Wrapf(ErrUnavailable, "segment %s already %s", name, rec.State)
	}
	s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return errors.Wrap(ErrUnavailable, err.Error())
	}
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(ErrUnavailable, err.Error())
	}

	s.mu.Lock()
	s.records[name] = &Record{Name: name, State: StateSaved, Location: path}
	s.mu.Unlock()
	return nil
}

// Get returns a segment's bytes while it is saved or transcribing.
func (s *FileStore) Get(name string) ([]byte, error) {
	s.mu.Lock()
	rec, ok := s.records[name]
	if !ok || (rec.State != StateSaved && rec.State != StateTranscribing) {
		s.mu.Unlock()
		return nil, errors.Wrap(ErrNotFound, name)
	}
	path := rec.Location
	s.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(ErrNotFound, name)
	}
	return data, nil
}

// Lookup returns a snapshot of a record, if one exists.
func (s *FileStore) Lookup(name string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[name]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// Begin marks a saved segment as transcribing. Calling it again on a segment
// that is already transcribing is a no-op, so a failed attempt can be retried.
func (s *FileStore) Begin(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[name]
	if !ok || rec.State == StateDeleted {
		return errors.Wrap(ErrNotFound, name)
	}
	if rec.State == StateTranscribing {
		return nil
	}
	state, err := Transition(rec.State, StateTranscribing)
	if err != nil {
		return errors.Wrap(ErrNotFound, name)
	}
	rec.State = state
	return nil
}

// Relocate moves a segment into the processed area, caches its transcript,
// and arms the retention timer. A segment still in the saved state is routed
// through transcribing so the lifecycle never skips a step.
func (s *FileStore) Relocate(name, text string) error {
	s.mu.Lock()
	rec, ok := s.records[name]
	if !ok || (rec.State != StateSaved && rec.State != StateTranscribing) {
		s.mu.Unlock()
		return errors.Wrap(ErrNotFound, name)
	}
	if rec.State == StateSaved {
		rec.State = StateTranscribing
	}
	processedDir := filepath.Join(s.dir, "processed")
	oldPath := rec.Location
	newPath := filepath.Join(processedDir, name)
	s.mu.Unlock()

	if err := os.MkdirAll(processedDir, 0o755); err != nil {
		return errors.Wrap(ErrUnavailable, err.Error())
	}
	if err := os.Rename(oldPath, newPath); err != nil {
		return errors.Wrap(ErrUnavailable, err.Error())
	}

	s.mu.Lock()
	rec.State = StateProcessed
	rec.Location = newPath
	rec.Text = text
	retention := s.retention
	if retention > 0 {
		s.timers[name] = time.AfterFunc(retention, func() { _ = s.Expire(name) })
	}
	s.mu.Unlock()

	if retention == 0 {
		return s.Expire(name)
	}
	return nil
}

// Expire deletes a processed segment's bytes and marks its record deleted.
// Deleted is terminal; the name is never reused.
func (s *FileStore) Expire(name string) error {
	s.mu.Lock()
	rec, ok := s.records[name]
	if !ok || rec.State != StateProcessed {
		s.mu.Unlock()
		return errors.Wrap(ErrNotFound, name)
	}
	state, err := Transition(rec.State, StateDeleted)
	if err != nil {
		s.mu.Unlock()
		return errors.Wrap(ErrNotFound, name)
	}
	rec.State = state
	path := rec.Location
	rec.Location = ""
	rec.Text = ""
	if t, ok := s.timers[name]; ok {
		t.Stop()
		delete(s.timers, name)
	}
	expired := s.Expired
	s.mu.Unlock()

	_ = os.Remove(path)
	if expired != nil {
		expired(name)
	}
	return nil
}

// LiveCount reports how many records have not yet been deleted.
func (s *FileStore) LiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, rec := range s.records {
		if rec.State != StateDeleted {
			n++
		}
	}
	return n
}

// Close stops all pending retention timers.
func (s *FileStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, t := range s.timers {
		t.Stop()
		delete(s.timers, name)
	}
}
