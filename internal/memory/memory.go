// Package memory implements the append-only notes store backing the
// memory_write and memory_query capabilities. Notes live in a single
// markdown file; entries are timestamped and never rewritten, so the
// history is preserved across sessions.
package memory

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hpungsan/arbiter/internal/errors"
)

// separator splits entries in the notes file.
const separator = "\n---\n"

// Store reads and appends the notes file at baseDir/memory/notes.md.
type Store struct {
	baseDir string
	now     func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore creates a notes store rooted at baseDir.
func NewStore(baseDir string, opts ...Option) *Store {
	s := &Store{baseDir: baseDir, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NotesPath returns the absolute path of the notes file.
func (s *Store) NotesPath() string {
	return filepath.Join(s.baseDir, "memory", "notes.md")
}

// Append adds a timestamped note. Append-only: existing content is never
// truncated. An empty note is an invalid request.
func (s *Store) Append(note string) error {
	if strings.TrimSpace(note) == "" {
		return errors.NewInvalidRequest("note must not be empty")
	}

	path := s.NotesPath()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return errors.NewInternal(err)
	}

	ts := s.now().UTC().Format(time.RFC3339)
	entry := fmt.Sprintf("%s**%s**\n\n%s\n", separator, ts, strings.TrimSpace(note))

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return errors.NewInternal(err)
	}
	defer f.Close()

	if _, err := f.WriteString(entry); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// Query returns note entries containing the query string, case-insensitive.
// An empty query returns no results rather than the whole file; a missing
// notes file is simply an empty store.
func (s *Store) Query(query string) ([]string, error) {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return []string{}, nil
	}

	content, err := os.ReadFile(s.NotesPath())
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, errors.NewInternal(err)
	}

	matches := []string{}
	for _, section := range strings.Split(string(content), separator) {
		section = strings.TrimSpace(section)
		if section == "" {
			continue
		}
		if strings.Contains(strings.ToLower(section), query) {
			matches = append(matches, section)
		}
	}
	return matches, nil
}

// Content returns the whole notes file. A missing file is an empty store.
func (s *Store) Content() (string, error) {
	content, err := os.ReadFile(s.NotesPath())
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", errors.NewInternal(err)
	}
	return string(content), nil
}

// Stats reports the notes file state for diagnostics.
type Stats struct {
	NotesFile  string `json:"notes_file"`
	NotesExist bool   `json:"notes_exists"`
	NotesBytes int64  `json:"notes_bytes"`
	Entries    int    `json:"entries"`
}

// Stat returns the current notes file stats.
func (s *Store) Stat() Stats {
	stats := Stats{NotesFile: s.NotesPath()}

	info, err := os.Stat(s.NotesPath())
	if err != nil {
		return stats
	}
	stats.NotesExist = true
	stats.NotesBytes = info.Size()

	content, err := os.ReadFile(s.NotesPath())
	if err != nil {
		return stats
	}
	for _, section := range strings.Split(string(content), separator) {
		if strings.TrimSpace(section) != "" {
			stats.Entries++
		}
	}
	return stats
}
