package db

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/andrew-d/mailident/internal/brand"
	"github.com/andrew-d/mailident/internal/norm"
)

func putTestMessage(tb testing.TB, db *DB, id, from string, received time.Time) *Message {
	tb.Helper()

	ident, ok := norm.Normalize(from, brand.Default())
	if !ok {
		tb.Fatalf("normalizing %q failed", from)
	}
	m := &Message{
		ID:         id,
		Subject:    "subject " + id,
		Snippet:    "snippet " + id,
		ReceivedAt: received,
	}
	m.SetSender(from, ident)

	ctx := context.Background()
	if err := db.Write(ctx, func(tx *Tx) error {
		return tx.PutMessage(ctx, m)
	}); err != nil {
		tb.Fatalf("PutMessage: %v", err)
	}
	return m
}

func TestMessage(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	received := time.UnixMilli(1700000000123)
	want := putTestMessage(t, db, "m1", "GitHub <noreply@github.com>", received)

	var got *Message
	if err := db.Read(ctx, func(tx *Tx) (err error) {
		got, err = tx.GetMessage(ctx, "m1")
		return err
	}); err != nil {
		t.Fatalf("GetMessage: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got message %+v, want %+v", got, want)
	}
	if got.BrandDomain != "github.com" || got.GroupKey != "github.com" {
		t.Errorf("brand fields = %q/%q, want github.com", got.BrandDomain, got.GroupKey)
	}

	err := db.Read(ctx, func(tx *Tx) error {
		_, err := tx.GetMessage(ctx, "missing")
		return err
	})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetMessage(missing) error = %v, want ErrNotFound", err)
	}
}

func TestPutMessageReplaces(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	now := time.UnixMilli(1700000000000)
	putTestMessage(t, db, "m1", "a@example.com", now)
	putTestMessage(t, db, "m1", "Friend <friend+x@gmail.com>", now.Add(time.Minute))

	var got *Message
	if err := db.Read(ctx, func(tx *Tx) (err error) {
		got, err = tx.GetMessage(ctx, "m1")
		return err
	}); err != nil {
		t.Fatalf("GetMessage: %v", err)
	}
	if got.Address != "friend@gmail.com" {
		t.Errorf("Address = %q, want friend@gmail.com", got.Address)
	}
	if got.BrandDomain != "" {
		t.Errorf("BrandDomain = %q, want empty for a personal sender", got.BrandDomain)
	}
	if got.GroupKey != "friend@gmail.com" {
		t.Errorf("GroupKey = %q, want friend@gmail.com", got.GroupKey)
	}

	if err := db.Write(ctx, func(tx *Tx) error {
		return tx.PutMessage(ctx, &Message{})
	}); err == nil {
		t.Error("PutMessage without an ID succeeded")
	}
}

func TestSenderGroups(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	base := time.UnixMilli(1700000000000)
	putTestMessage(t, db, "a1", "Amazon <orders@amazon.co.uk>", base)
	putTestMessage(t, db, "a2", "ship-confirm@amazon.com", base.Add(2*time.Hour))
	putTestMessage(t, db, "g1", "friend+one@gmail.com", base.Add(time.Hour))
	putTestMessage(t, db, "g2", "Friend <friend@googlemail.com>", base.Add(30*time.Minute))

	var groups []SenderGroup
	if err := db.Read(ctx, func(tx *Tx) (err error) {
		groups, err = tx.ListSenderGroups(ctx)
		return err
	}); err != nil {
		t.Fatalf("ListSenderGroups: %v", err)
	}

	want := []SenderGroup{
		{Key: "amazon.com", BrandDomain: "amazon.com", Messages: 2, LastReceived: base.Add(2 * time.Hour)},
		{Key: "friend@gmail.com", Messages: 1, LastReceived: base.Add(time.Hour)},
		{Key: "friend@googlemail.com", Messages: 1, LastReceived: base.Add(30 * time.Minute)},
	}
	if !reflect.DeepEqual(groups, want) {
		t.Errorf("groups:\n got %+v\nwant %+v", groups, want)
	}

	var msgs []*Message
	if err := db.Read(ctx, func(tx *Tx) (err error) {
		msgs, err = tx.ListGroupMessages(ctx, "amazon.com", 0)
		return err
	}); err != nil {
		t.Fatalf("ListGroupMessages: %v", err)
	}
	var ids []string
	for _, m := range msgs {
		ids = append(ids, m.ID)
	}
	if want := []string{"a2", "a1"}; !reflect.DeepEqual(ids, want) {
		t.Errorf("message IDs = %v, want %v", ids, want)
	}

	if err := db.Read(ctx, func(tx *Tx) (err error) {
		msgs, err = tx.ListGroupMessages(ctx, "amazon.com", 1)
		return err
	}); err != nil {
		t.Fatalf("ListGroupMessages: %v", err)
	}
	if len(msgs) != 1 || msgs[0].ID != "a2" {
		t.Errorf("limited messages = %v, want just a2", msgs)
	}
}

func TestDeleteMessagesBefore(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	base := time.UnixMilli(1700000000000)
	putTestMessage(t, db, "old", "a@example.com", base)
	putTestMessage(t, db, "new", "b@example.com", base.Add(48*time.Hour))

	var n int64
	if err := db.Write(ctx, func(tx *Tx) (err error) {
		n, err = tx.DeleteMessagesBefore(ctx, base.Add(24*time.Hour))
		return err
	}); err != nil {
		t.Fatalf("DeleteMessagesBefore: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted %d messages, want 1", n)
	}

	err := db.Read(ctx, func(tx *Tx) error {
		_, err := tx.GetMessage(ctx, "old")
		return err
	})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("old message still present (err = %v)", err)
	}
}
