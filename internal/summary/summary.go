// Package summary implements a small, bounded cache of short message
// summaries, keyed by message ID.
package summary

import (
	"fmt"
	"strings"
	"unicode/utf8"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	DefaultSize     = 512
	DefaultMaxRunes = 140
)

// Cache is a least-recently-used cache of message summaries. It is safe for
// concurrent use.
type Cache struct {
	lru      *lru.Cache[string, string]
	maxRunes int
}

// New creates a Cache holding at most size summaries, each truncated to
// maxRunes runes. Zero or negative values select the defaults.
func New(size, maxRunes int) (*Cache, error) {
	if size <= 0 {
		size = DefaultSize
	}
	if maxRunes <= 0 {
		maxRunes = DefaultMaxRunes
	}
	c, err := lru.New[string, string](size)
	if err != nil {
		return nil, fmt.Errorf("creating summary cache: %w", err)
	}
	return &Cache{lru: c, maxRunes: maxRunes}, nil
}

// Put stores a summary of text for the message id, replacing any existing
// one, and returns the stored summary.
func (c *Cache) Put(id, text string) string {
	s := Summarize(text, c.maxRunes)
	c.lru.Add(id, s)
	return s
}

// Get returns the summary for id, if cached.
func (c *Cache) Get(id string) (string, bool) {
	return c.lru.Get(id)
}

// Len returns the number of cached summaries.
func (c *Cache) Len() int {
	return c.lru.Len()
}

// Purge empties the cache.
func (c *Cache) Purge() {
	c.lru.Purge()
}

// Summarize collapses runs of whitespace in text and truncates the result to
// at most maxRunes runes, marking truncation with a trailing ellipsis.
func Summarize(text string, maxRunes int) string {
	s := strings.Join(strings.Fields(text), " ")
	if maxRunes <= 0 || utf8.RuneCountInString(s) <= maxRunes {
		return s
	}

	// Leave room for the ellipsis.
	n := 0
	for i := range s {
		if n == maxRunes-1 {
			return strings.TrimRight(s[:i], " ") + "…"
		}
		n++
	}
	return s
}
