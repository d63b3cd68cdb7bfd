// Package searches persists the list of recent searches to a JSON file.
package searches

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"crawshaw.dev/jsonfile"
)

// DefaultMax is the number of searches kept when no other limit is given.
const DefaultMax = 20

// Entry is a single remembered search.
type Entry struct {
	Query string    `json:"query"`
	At    time.Time `json:"at"`
}

type data struct {
	Entries []Entry `json:"entries"` // newest first
}

// History is a bounded, most-recent-first list of searches backed by a JSON
// file. It is safe for concurrent use.
type History struct {
	file    *jsonfile.JSONFile[data]
	max     int
	timeNow func() time.Time
}

// Open loads the history stored at path, creating the file if it does not
// exist yet. At most max entries are kept; if max is zero or less,
// DefaultMax is used.
func Open(path string, max int) (*History, error) {
	f, err := jsonfile.Load[data](path)
	if errors.Is(err, os.ErrNotExist) {
		f, err = jsonfile.New[data](path)
	}
	if err != nil {
		return nil, fmt.Errorf("opening search history: %w", err)
	}
	if max <= 0 {
		max = DefaultMax
	}
	return &History{file: f, max: max, timeNow: time.Now}, nil
}

// Add records query as the most recent search. Leading and trailing
// whitespace is removed and blank queries are ignored. A query that matches
// an earlier one (ignoring case) replaces it.
func (h *History) Add(query string) error {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	now := h.timeNow()
	return h.file.Write(func(d *data) error {
		entries := make([]Entry, 0, len(d.Entries)+1)
		entries = append(entries, Entry{Query: query, At: now})
		for _, e := range d.Entries {
			if strings.EqualFold(e.Query, query) {
				continue
			}
			entries = append(entries, e)
		}
		if len(entries) > h.max {
			entries = entries[:h.max]
		}
		d.Entries = entries
		return nil
	})
}

// Recent returns up to n entries, newest first. If n is zero or less, all
// entries are returned.
func (h *History) Recent(n int) []Entry {
	var out []Entry
	h.file.Read(func(d *data) {
		if n <= 0 || n > len(d.Entries) {
			n = len(d.Entries)
		}
		out = make([]Entry, n)
		copy(out, d.Entries)
	})
	return out
}

// Clear forgets all searches.
func (h *History) Clear() error {
	return h.file.Write(func(d *data) error {
		d.Entries = nil
		return nil
	})
}
