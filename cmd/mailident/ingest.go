package main

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/mail"
	"os"
	"strings"
	"time"

	"github.com/jordan-wright/email"

	"github.com/andrew-d/mailident/internal/db"
	"github.com/andrew-d/mailident/internal/norm"
	"github.com/andrew-d/mailident/internal/summary"
)

// snippetRunes is how much of each message body is kept in the database.
const snippetRunes = 280

var errNoSender = errors.New("message has no usable From address")

// runNormalize prints the identity of each address in addrs as a JSON line.
// It returns false if any address could not be normalized.
func (s *server) runNormalize(w io.Writer, addrs []string) bool {
	enc := json.NewEncoder(w)
	allOK := true
	for _, addr := range addrs {
		id, ok := norm.Normalize(addr, s.kb)
		if !ok {
			allOK = false
			enc.Encode(map[string]string{
				"raw_input": addr,
				"error":     "not an email address",
			})
			continue
		}
		enc.Encode(s.describe(id, ""))
	}
	return allOK
}

// runIngest stores every message file in paths. Files that fail are logged
// and skipped; the returned error reports how many failed.
func (s *server) runIngest(ctx context.Context, paths []string) error {
	var failed int
	for _, path := range paths {
		m, err := s.ingestFile(ctx, path)
		if err != nil {
			failed++
			s.logger.Error("failed to ingest message", slog.String("path", path), errAttr(err))
			continue
		}
		s.logger.Info("ingested message",
			slog.String("path", path),
			slog.String("id", m.ID),
			slog.String("group", m.GroupKey),
		)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d messages failed", failed, len(paths))
	}
	return nil
}

func (s *server) ingestFile(ctx context.Context, path string) (*db.Message, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return s.ingest(ctx, raw)
}

// ingest parses a raw RFC 5322 message, stores its metadata, and caches a
// summary of its body.
func (s *server) ingest(ctx context.Context, raw []byte) (*db.Message, error) {
	e, err := email.NewEmailFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parsing message: %w", err)
	}

	ident, ok := norm.Normalize(e.From, s.kb)
	if !ok {
		return nil, errNoSender
	}

	m := &db.Message{
		ID:         messageID(e, raw),
		Subject:    e.Subject,
		Snippet:    summary.Summarize(string(e.Text), snippetRunes),
		ReceivedAt: messageDate(e),
	}
	m.SetSender(e.From, ident)

	if err := s.db.Write(ctx, func(tx *db.Tx) error {
		return tx.PutMessage(ctx, m)
	}); err != nil {
		return nil, err
	}
	s.summaries.Put(m.ID, string(e.Text))
	return m, nil
}

// messageID returns the message's Message-ID without angle brackets, or a
// hash of the raw message if it has none.
func messageID(e *email.Email, raw []byte) string {
	if id := strings.Trim(e.Headers.Get("Message-Id"), "<> \t"); id != "" {
		return id
	}
	sum := sha256.Sum256(raw)
	return "sha256:" + hex.EncodeToString(sum[:16])
}

// messageDate returns the time from the Date header, or the current time if
// it is missing or malformed.
func messageDate(e *email.Email) time.Time {
	if d, err := mail.ParseDate(e.Headers.Get("Date")); err == nil {
		return d
	}
	return time.Now()
}
