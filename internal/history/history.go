package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
)

var (
	// ErrEmptyPath indicates the store was created without a file path.
	ErrEmptyPath = errors.New("history file path is empty")

	// ErrNilLogger indicates the store was created without a logger.
	ErrNilLogger = errors.New("logger is required")
)

// Message roles as they appear in the JSON document.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single transcript entry.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Document is an opaque search result. Bookmark deduplication compares
// documents structurally, nested values included.
type Document = map[string]any

// Session is an opaque session record.
type Session = map[string]any

// NewSession builds a session record with a fresh id and creation time.
// Callers may add whatever keys they like before storing it.
func NewSession(name string) Session {
	return Session{
		"id":         uuid.NewString(),
		"name":       name,
		"created_at": time.Now().UTC().Format(time.RFC3339),
	}
}

// fileState is the exact on-disk document shape. Missing keys unmarshal as
// nil slices and are normalized to empty on load.
type fileState struct {
	History   []Message  `json:"history"`
	Bookmarks []Document `json:"bookmarks"`
	Sessions  []Session  `json:"sessions"`
}

// Store keeps conversation state in memory and mirrors it to one JSON file.
// All methods are safe for concurrent use.
type Store struct {
	path   string
	logger *slog.Logger

	mu        sync.Mutex
	history   []Message
	bookmarks []Document
	sessions  []Session
}

// New creates a store bound to path. No I/O happens until Load or Save.
func New(path string, logger *slog.Logger) (*Store, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	if logger == nil {
		return nil, ErrNilLogger
	}
	return &Store{
		path:      path,
		logger:    logger,
		history:   []Message{},
		bookmarks: []Document{},
		sessions:  []Session{},
	}, nil
}

// Path returns the file the store reads and writes.
func (s *Store) Path() string {
	return s.path
}

// Append adds a message to the in-memory transcript. It never touches disk;
// call Save (or SaveAsync) to persist.
func (s *Store) Append(msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, msg)
}

// Clear resets the in-memory transcript. Bookmarks and sessions survive.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = []Message{}
}

// History returns a copy of the transcript.
func (s *Store) History() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.history)
}

// Recent returns a copy of the last n transcript messages.
func (s *Store) Recent(n int) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n <= 0 {
		return []Message{}
	}
	if n >= len(s.history) {
		return slices.Clone(s.history)
	}
	return slices.Clone(s.history[len(s.history)-n:])
}

// Bookmarks returns a copy of the bookmark list.
func (s *Store) Bookmarks() []Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.bookmarks)
}

// Sessions returns a copy of the session list.
func (s *Store) Sessions() []Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.sessions)
}

// AddBookmark stores a document and saves immediately. A document that is
// structurally equal to an existing bookmark is ignored, so repeated
// bookmarking of the same result stays idempotent.
func (s *Store) AddBookmark(doc Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.bookmarks {
		if reflect.DeepEqual(existing, doc) {
			return nil
		}
	}
	s.bookmarks = append(s.bookmarks, doc)
	return s.saveLocked()
}

// AddSession stores a session record and saves immediately.
func (s *Store) AddSession(session Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = append(s.sessions, session)
	return s.saveLocked()
}

// Save writes the full state to disk.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

// SaveAsync persists in the background and reports the result on the
// returned channel. The channel is buffered; the caller may drop it.
func (s *Store) SaveAsync() <-chan error {
	done := make(chan error, 1)
	go func() {
		done <- s.Save()
	}()
	return done
}

// Load replaces the in-memory state with the file contents. A missing,
// unreadable, or corrupt file resets to empty state and returns nil; the
// last two cases log one warning.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("history file unreadable, starting with empty state",
				"path", s.path, "error", err)
		}
		s.resetLocked()
		return nil
	}

	var state fileState
	if err := json.Unmarshal(data, &state); err != nil {
		s.logger.Warn("history file corrupt, starting with empty state",
			"path", s.path, "error", err)
		s.resetLocked()
		return nil
	}

	s.history = state.History
	s.bookmarks = state.Bookmarks
	s.sessions = state.Sessions
	s.normalizeLocked()
	return nil
}

// LoadAsync loads in the background and reports the result on the returned
// channel.
func (s *Store) LoadAsync() <-chan error {
	done := make(chan error, 1)
	go func() {
		done <- s.Load()
	}()
	return done
}

// saveLocked serializes and writes the state. Caller holds s.mu.
//
// The write is atomic: marshal, write a temp file, rename over the target.
// An exclusive flock around the whole sequence keeps saves from separate
// processes from racing on the same temp path.
func (s *Store) saveLocked() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating history directory: %w", err)
	}

	lock := flock.New(s.path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("locking history file: %w", err)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			s.logger.Warn("releasing history file lock failed", "path", s.path, "error", err)
		}
	}()

	s.normalizeLocked()
	data, err := json.MarshalIndent(fileState{
		History:   s.history,
		Bookmarks: s.bookmarks,
		Sessions:  s.sessions,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding history: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("writing history temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("replacing history file: %w", err)
	}
	return nil
}

// resetLocked drops all state. Caller holds s.mu.
func (s *Store) resetLocked() {
	s.history = []Message{}
	s.bookmarks = []Document{}
	s.sessions = []Session{}
}

// normalizeLocked replaces nil slices with empty ones so the JSON document
// always carries all three keys as arrays. Caller holds s.mu.
func (s *Store) normalizeLocked() {
	if s.history == nil {
		s.history = []Message{}
	}
	if s.bookmarks == nil {
		s.bookmarks = []Document{}
	}
	if s.sessions == nil {
		s.sessions = []Session{}
	}
}
