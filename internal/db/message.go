package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/andrew-d/mailident/internal/norm"
)

// Message is the stored metadata for a single email message.
type Message struct {
	ID string
	// Sender is the From header exactly as received.
	Sender string
	// Address and GroupKey are derived from Sender; see SetSender.
	Address  string
	GroupKey string
	// BrandDomain is empty for messages from personal addresses.
	BrandDomain string
	Subject     string
	Snippet     string
	ReceivedAt  time.Time
}

// SetSender fills in the sender fields of m from a raw From header and its
// normalized identity.
func (m *Message) SetSender(raw string, id norm.Identity) {
	m.Sender = raw
	m.Address = id.Address
	m.GroupKey = norm.GroupKey(id)
	m.BrandDomain = id.BrandDomain
}

// SenderGroup summarizes all messages sharing a group key.
type SenderGroup struct {
	Key string
	// BrandDomain is empty when the group is a single personal address.
	BrandDomain  string
	Messages     int
	LastReceived time.Time
}

const messageColumns = `id, sender, address, group_key, brand_domain, subject, snippet, received_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*Message, error) {
	var (
		m          Message
		brand      sql.NullString
		receivedMs int64
	)
	if err := row.Scan(&m.ID, &m.Sender, &m.Address, &m.GroupKey, &brand, &m.Subject, &m.Snippet, &receivedMs); err != nil {
		return nil, err
	}
	m.BrandDomain = brand.String
	m.ReceivedAt = time.UnixMilli(receivedMs)
	return &m, nil
}

// GetMessage retrieves a message by ID, returning ErrNotFound if there is no
// such message.
func (tx *Tx) GetMessage(ctx context.Context, id string) (*Message, error) {
	m, err := scanMessage(tx.QueryRowContext(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying message: %w", err)
	}
	return m, nil
}

// PutMessage inserts a message, replacing any existing message with the same
// ID.
func (tx *Tx) PutMessage(ctx context.Context, m *Message) error {
	if m.ID == "" {
		return errors.New("message has no ID")
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO messages (`+messageColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			sender       = excluded.sender,
			address      = excluded.address,
			group_key    = excluded.group_key,
			brand_domain = excluded.brand_domain,
			subject      = excluded.subject,
			snippet      = excluded.snippet,
			received_at  = excluded.received_at
	`,
		m.ID,
		m.Sender,
		m.Address,
		m.GroupKey,
		sql.NullString{String: m.BrandDomain, Valid: m.BrandDomain != ""},
		m.Subject,
		m.Snippet,
		m.ReceivedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}
	return nil
}

// ListSenderGroups returns one entry per group key, most recently active
// first.
func (tx *Tx) ListSenderGroups(ctx context.Context) ([]SenderGroup, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT group_key, MAX(brand_domain), COUNT(*), MAX(received_at)
		FROM messages
		GROUP BY group_key
		ORDER BY MAX(received_at) DESC, group_key
	`)
	if err != nil {
		return nil, fmt.Errorf("querying sender groups: %w", err)
	}
	defer rows.Close()

	var groups []SenderGroup
	for rows.Next() {
		var (
			g      SenderGroup
			brand  sql.NullString
			lastMs int64
		)
		if err := rows.Scan(&g.Key, &brand, &g.Messages, &lastMs); err != nil {
			return nil, fmt.Errorf("scanning sender group: %w", err)
		}
		g.BrandDomain = brand.String
		g.LastReceived = time.UnixMilli(lastMs)
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// ListGroupMessages returns up to limit messages with the given group key,
// newest first. A limit of zero or less means no limit.
func (tx *Tx) ListGroupMessages(ctx context.Context, key string, limit int) ([]*Message, error) {
	if limit <= 0 {
		limit = -1 // SQLite treats a negative LIMIT as unbounded
	}
	rows, err := tx.QueryContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE group_key = ?
		ORDER BY received_at DESC, id
		LIMIT ?
	`, key, limit)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var msgs []*Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// DeleteMessagesBefore removes every message received before t, returning
// the number removed.
func (tx *Tx) DeleteMessagesBefore(ctx context.Context, t time.Time) (int64, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE received_at < ?`, t.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("deleting messages: %w", err)
	}
	return res.RowsAffected()
}
