package searches

import (
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func queries(entries []Entry) []string {
	var out []string
	for _, e := range entries {
		out = append(out, e.Query)
	}
	return out
}

func newTestHistory(t *testing.T, max int) (*History, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "searches.json")
	h, err := Open(path, max)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	now := time.Unix(1729223000, 0).UTC()
	h.timeNow = func() time.Time {
		now = now.Add(time.Second)
		return now
	}
	return h, path
}

func TestHistory(t *testing.T) {
	h, path := newTestHistory(t, 3)

	for _, q := range []string{"github.com", "  ", "amazon.com", "GitHub.com ", "stripe.com", "slack.com"} {
		if err := h.Add(q); err != nil {
			t.Fatalf("Add(%q): %v", q, err)
		}
	}

	want := []string{"slack.com", "stripe.com", "GitHub.com"}
	if got := queries(h.Recent(0)); !reflect.DeepEqual(got, want) {
		t.Errorf("Recent(0) = %v, want %v", got, want)
	}
	if got := queries(h.Recent(2)); !reflect.DeepEqual(got, want[:2]) {
		t.Errorf("Recent(2) = %v, want %v", got, want[:2])
	}
	if got := queries(h.Recent(10)); !reflect.DeepEqual(got, want) {
		t.Errorf("Recent(10) = %v, want %v", got, want)
	}

	// The history survives reopening the file.
	h2, err := Open(path, 3)
	if err != nil {
		t.Fatalf("reopening: %v", err)
	}
	if got := queries(h2.Recent(0)); !reflect.DeepEqual(got, want) {
		t.Errorf("after reopen, Recent(0) = %v, want %v", got, want)
	}

	if err := h2.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if got := h2.Recent(0); len(got) != 0 {
		t.Errorf("after Clear, Recent(0) = %v, want empty", got)
	}
}

func TestRecentReturnsCopy(t *testing.T) {
	h, _ := newTestHistory(t, 0)
	if err := h.Add("example.com"); err != nil {
		t.Fatal(err)
	}

	got := h.Recent(0)
	got[0].Query = "mutated"
	if q := h.Recent(0)[0].Query; q != "example.com" {
		t.Errorf("history was mutated through Recent: %q", q)
	}
}

func TestOpenDefaultMax(t *testing.T) {
	h, _ := newTestHistory(t, 0)
	for i := 0; i < DefaultMax+5; i++ {
		if err := h.Add(time.Duration(i).String()); err != nil {
			t.Fatal(err)
		}
	}
	if got := len(h.Recent(0)); got != DefaultMax {
		t.Errorf("kept %d entries, want %d", got, DefaultMax)
	}
}
