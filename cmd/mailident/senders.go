package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/andrew-d/mailident/internal/db"
)

// runSenders prints the stored sender groups as a table.
func (s *server) runSenders(ctx context.Context, w io.Writer, now time.Time) error {
	var groups []db.SenderGroup
	if err := s.db.Read(ctx, func(tx *db.Tx) (err error) {
		groups, err = tx.ListSenderGroups(ctx)
		return err
	}); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SENDER\tKIND\tMESSAGES\tLAST SEEN")
	for _, g := range groups {
		kind := "brand"
		if g.BrandDomain == "" {
			kind = "personal"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			g.Key,
			kind,
			humanize.Comma(int64(g.Messages)),
			humanize.RelTime(g.LastReceived, now, "ago", "from now"),
		)
	}
	return tw.Flush()
}
