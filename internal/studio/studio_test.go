package studio

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"pirateradio/internal/playlist"
	"pirateradio/internal/storage"
	logx "pirateradio/pkg/logx"
)

type recordingStore struct {
	recs []storage.ProductionRecord
}

func (r *recordingStore) AppendProduction(_ context.Context, rec storage.ProductionRecord) error {
	r.recs = append(r.recs, rec)
	return nil
}
func (r *recordingStore) RecentProductions(context.Context, int) ([]storage.ProductionRecord, error) {
	return nil, nil
}
func (r *recordingStore) MarkSeen(context.Context, string, time.Time) error { return nil }
func (r *recordingStore) Seen(context.Context, string) (bool, error)        { return false, nil }
func (r *recordingStore) Close() error                                      { return nil }

func TestSegmentFromFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "seg.mp3")
	if err := os.WriteFile(path, []byte("audio"), 0o644); err != nil {
		t.Fatal(err)
	}

	seg, err := segmentFromFile(path, playlist.KindMusic, "track", true)
	if err != nil {
		t.Fatalf("segmentFromFile: %v", err)
	}
	if seg.ID == "" || seg.Size != 5 || !seg.Ephemeral || seg.Kind != playlist.KindMusic {
		t.Fatalf("segment = %+v", seg)
	}
}

func TestSegmentFromFileRejectsEmptyAndMissing(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.mp3")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := segmentFromFile(empty, playlist.KindNews, "", true); err == nil {
		t.Fatal("empty file accepted")
	}
	if _, err := segmentFromFile(filepath.Join(dir, "nope.mp3"), playlist.KindNews, "", true); err == nil {
		t.Fatal("missing file accepted")
	}
}

func TestFailRecordsAudit(t *testing.T) {
	t.Parallel()

	store := &recordingStore{}
	s := New(Config{Station: "Test FM"}, nil, nil, nil, nil, nil, nil, store, nil, logx.Nop())

	cause := errors.New("source down")
	err := s.fail(context.Background(), playlist.KindNews, "bulletin", cause)
	if !errors.Is(err, cause) {
		t.Fatalf("fail did not wrap cause: %v", err)
	}
	if !strings.Contains(err.Error(), "news pipeline") {
		t.Fatalf("fail message = %q", err)
	}
	if len(store.recs) != 1 || store.recs[0].OK || store.recs[0].Error == "" {
		t.Fatalf("audit records = %+v", store.recs)
	}
}

func TestOutPathUnique(t *testing.T) {
	t.Parallel()

	s := New(Config{OutputDir: "/tmp/out"}, nil, nil, nil, nil, nil, nil, nil, nil, logx.Nop())
	a := s.outPath("news")
	b := s.outPath("news")
	if a == b {
		t.Fatalf("outPath not unique: %q", a)
	}
	if !strings.HasPrefix(filepath.Base(a), "news-") || !strings.HasSuffix(a, ".mp3") {
		t.Fatalf("outPath shape: %q", a)
	}
}
