package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	logx "pirateradio/pkg/logx"
)

func openTestFileStore(t *testing.T, dir string) Store {
	t.Helper()
	st, err := Open(Config{Driver: "file", Path: filepath.Join(dir, "radio.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestOpenDisabled(t *testing.T) {
	t.Parallel()

	for _, driver := range []string{"", "none", " NONE "} {
		st, err := Open(Config{Driver: driver}, logx.Nop())
		if err != nil {
			t.Fatalf("Open(%q): %v", driver, err)
		}
		if st != nil {
			t.Fatalf("Open(%q) returned a store", driver)
		}
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Parallel()

	if _, err := Open(Config{Driver: "postgres"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestFileProductionRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := openTestFileStore(t, t.TempDir())

	for i := 0; i < 3; i++ {
		rec := ProductionRecord{Kind: "news", Title: "bulletin", OK: true, Bytes: int64(100 + i)}
		if err := st.AppendProduction(ctx, rec); err != nil {
			t.Fatalf("AppendProduction: %v", err)
		}
	}

	recs, err := st.RecentProductions(ctx, 2)
	if err != nil {
		t.Fatalf("RecentProductions: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	// Newest first.
	if recs[0].Bytes != 102 || recs[1].Bytes != 101 {
		t.Fatalf("order wrong: %+v", recs)
	}
}

func TestFileSeenWindow(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := openTestFileStore(t, t.TempDir())

	if ok, err := st.Seen(ctx, "headline-1"); err != nil || ok {
		t.Fatalf("Seen before mark = (%v, %v)", ok, err)
	}
	if err := st.MarkSeen(ctx, "headline-1", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("MarkSeen: %v", err)
	}
	if ok, err := st.Seen(ctx, "headline-1"); err != nil || !ok {
		t.Fatalf("Seen after mark = (%v, %v)", ok, err)
	}

	// Expired entries read as unseen.
	if err := st.MarkSeen(ctx, "headline-2", time.Now().Add(-time.Minute)); err != nil {
		t.Fatal(err)
	}
	if ok, err := st.Seen(ctx, "headline-2"); err != nil || ok {
		t.Fatalf("expired Seen = (%v, %v)", ok, err)
	}
}

func TestFileSeenSurvivesReopen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "radio.db")

	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if err := st.MarkSeen(ctx, "persisted", time.Now().Add(time.Hour)); err != nil {
		t.Fatal(err)
	}
	if err := st.Close(); err != nil {
		t.Fatal(err)
	}

	st2, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer st2.Close()
	if ok, err := st2.Seen(ctx, "persisted"); err != nil || !ok {
		t.Fatalf("Seen after reopen = (%v, %v)", ok, err)
	}
}
