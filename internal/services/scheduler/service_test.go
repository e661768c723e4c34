package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"pirateradio/internal/playlist"
	logx "pirateradio/pkg/logx"
)

// fakeProducer counts calls and fails on demand per pipeline.
type fakeProducer struct {
	newsCalls    int
	weatherCalls int
	musicCalls   int
	identCalls   int
	timeCalls    int

	newsErr    error
	weatherErr error
	musicErr   error
	identErr   func(call int) error
}

func (f *fakeProducer) NewsSegments(context.Context) ([]*playlist.Segment, error) {
	f.newsCalls++
	if f.newsErr != nil {
		return nil, f.newsErr
	}
	return []*playlist.Segment{
		{ID: fmt.Sprintf("jingle-%d", f.newsCalls), Kind: playlist.KindJingle},
		{ID: fmt.Sprintf("news-%d", f.newsCalls), Kind: playlist.KindNews},
	}, nil
}

func (f *fakeProducer) WeatherSegment(context.Context) (*playlist.Segment, error) {
	f.weatherCalls++
	if f.weatherErr != nil {
		return nil, f.weatherErr
	}
	return &playlist.Segment{ID: fmt.Sprintf("weather-%d", f.weatherCalls), Kind: playlist.KindWeather}, nil
}

func (f *fakeProducer) Interstitial(context.Context, string) (*playlist.Segment, error) {
	f.identCalls++
	if f.identErr != nil {
		if err := f.identErr(f.identCalls); err != nil {
			return nil, err
		}
	}
	return &playlist.Segment{ID: fmt.Sprintf("ident-%d", f.identCalls), Kind: playlist.KindInterstitial}, nil
}

func (f *fakeProducer) MusicSegment(context.Context) (*playlist.Segment, error) {
	f.musicCalls++
	if f.musicErr != nil {
		return nil, f.musicErr
	}
	return &playlist.Segment{ID: fmt.Sprintf("music-%d", f.musicCalls), Kind: playlist.KindMusic}, nil
}

func (f *fakeProducer) TimeAnnouncement(context.Context) (*playlist.Segment, error) {
	f.timeCalls++
	return &playlist.Segment{ID: fmt.Sprintf("time-%d", f.timeCalls), Kind: playlist.KindTimecheck}, nil
}

func newTestService(p Producer, cfg Config) (*Service, *playlist.Queue) {
	q := playlist.NewQueue(nil)
	s := New(cfg, p, q, logx.Nop())
	return s, q
}

func TestTickAirsEverythingDueOnFirstRun(t *testing.T) {
	t.Parallel()

	p := &fakeProducer{}
	s, q := newTestService(p, Config{Enabled: true})

	s.tick(context.Background())

	if p.newsCalls != 1 || p.weatherCalls != 1 {
		t.Fatalf("calls: news=%d weather=%d", p.newsCalls, p.weatherCalls)
	}
	// Jingle, bulletin, weather in that order.
	ids := drainIDs(q)
	want := []string{"jingle-1", "news-1", "weather-1"}
	if len(ids) != len(want) {
		t.Fatalf("queue = %v", ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("queue order = %v, want %v", ids, want)
		}
	}
}

func TestTickRespectsCadence(t *testing.T) {
	t.Parallel()

	p := &fakeProducer{}
	s, _ := newTestService(p, Config{Enabled: true, NewsInterval: 15 * time.Minute, WeatherInterval: 30 * time.Minute})

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	now := base
	s.now = func() time.Time { return now }

	s.tick(context.Background()) // first run airs both
	now = base.Add(10 * time.Minute)
	s.tick(context.Background()) // nothing due
	if p.newsCalls != 1 || p.weatherCalls != 1 {
		t.Fatalf("early tick produced: news=%d weather=%d", p.newsCalls, p.weatherCalls)
	}

	now = base.Add(16 * time.Minute)
	s.tick(context.Background()) // news due, weather not
	if p.newsCalls != 2 || p.weatherCalls != 1 {
		t.Fatalf("after 16m: news=%d weather=%d", p.newsCalls, p.weatherCalls)
	}

	now = base.Add(31 * time.Minute)
	s.tick(context.Background()) // weather due; news due again at 16m+15m=31m
	if p.weatherCalls != 2 || p.newsCalls != 3 {
		t.Fatalf("after 31m: news=%d weather=%d", p.newsCalls, p.weatherCalls)
	}
}

func TestTickFailureLeavesCadenceUntouched(t *testing.T) {
	t.Parallel()

	p := &fakeProducer{newsErr: errors.New("sources down")}
	s, q := newTestService(p, Config{Enabled: true, NewsInterval: 15 * time.Minute})

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	now := base
	s.now = func() time.Time { return now }

	s.tick(context.Background())
	if !s.lastNewsAt().IsZero() {
		t.Fatal("failure advanced lastNews")
	}

	// Still due on the very next tick.
	p.newsErr = nil
	now = base.Add(time.Minute)
	s.tick(context.Background())
	if s.lastNewsAt() != now {
		t.Fatalf("lastNews = %v, want production start %v", s.lastNewsAt(), now)
	}
	// Failed run enqueued nothing for news; successful run did.
	ids := drainIDs(q)
	for _, id := range ids {
		if id == "jingle-1" || id == "news-1" {
			t.Fatalf("failed run leaked segments: %v", ids)
		}
	}
}

func TestRefillInterleavesIdentsWithMusic(t *testing.T) {
	t.Parallel()

	p := &fakeProducer{}
	s, q := newTestService(p, Config{Enabled: true, BufferFloor: 4, InterstitialPool: 2})

	s.replenishPool(context.Background())
	if got := s.poolLen(); got != 2 {
		t.Fatalf("pool = %d, want 2", got)
	}

	s.refill(context.Background())
	if got := q.Len(); got != 4 {
		t.Fatalf("queue depth = %d, want 4", got)
	}
	ids := drainIDs(q)
	// Each pooled ident airs right before a music segment, never alone.
	want := []string{"ident-1", "music-1", "ident-2", "music-2"}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("queue order = %v, want %v", ids, want)
		}
	}
	if p.musicCalls != 2 {
		t.Fatalf("music productions = %d, want 2", p.musicCalls)
	}
}

func TestRefillNeverFillsFloorWithIdentsAlone(t *testing.T) {
	t.Parallel()

	// Pool large enough to cover the whole deficit by itself.
	p := &fakeProducer{}
	s, q := newTestService(p, Config{Enabled: true, BufferFloor: 5, InterstitialPool: 5})

	s.replenishPool(context.Background())
	s.refill(context.Background())

	music := 0
	for _, id := range drainIDs(q) {
		if strings.HasPrefix(id, "music-") {
			music++
		}
	}
	if music == 0 {
		t.Fatal("refill satisfied the floor with spoken idents only")
	}
	if p.musicCalls != music {
		t.Fatalf("music produced = %d, enqueued = %d", p.musicCalls, music)
	}
}

func TestRefillStopsOnProductionFailure(t *testing.T) {
	t.Parallel()

	p := &fakeProducer{musicErr: errors.New("library empty")}
	s, q := newTestService(p, Config{Enabled: true, BufferFloor: 5})

	s.refill(context.Background())
	if q.Len() != 0 {
		t.Fatalf("queue depth = %d", q.Len())
	}
	if p.musicCalls != 1 {
		t.Fatalf("music calls = %d, want 1 (no spinning)", p.musicCalls)
	}
}

func TestReplenishPoolSkipsFailures(t *testing.T) {
	t.Parallel()

	p := &fakeProducer{identErr: func(call int) error {
		if call == 1 {
			return errors.New("tts hiccup")
		}
		return nil
	}}
	s, _ := newTestService(p, Config{Enabled: true, InterstitialPool: 3})

	s.replenishPool(context.Background())
	if got := s.poolLen(); got != 3 {
		t.Fatalf("pool = %d, want 3 despite one failure", got)
	}
}

func TestStartDisabledIsNoop(t *testing.T) {
	t.Parallel()

	p := &fakeProducer{}
	s, _ := newTestService(p, Config{Enabled: false})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	s.Stop()
	if p.newsCalls != 0 && p.musicCalls != 0 {
		t.Fatal("disabled scheduler produced content")
	}
}

func drainIDs(q *playlist.Queue) []string {
	var ids []string
	for {
		seg, ok := q.Pop()
		if !ok {
			return ids
		}
		ids = append(ids, seg.ID)
	}
}
