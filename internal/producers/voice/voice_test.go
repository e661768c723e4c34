package voice

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	logx "pirateradio/pkg/logx"
)

func TestCacheNameStableAndLanguageScoped(t *testing.T) {
	t.Parallel()

	a := cacheName("Hello there", "en")
	b := cacheName("  Hello there  ", "en")
	if a != b {
		t.Fatalf("whitespace changed cache name: %q vs %q", a, b)
	}
	if a == cacheName("Hello there", "fr") {
		t.Fatal("language not part of cache key")
	}
	if a == cacheName("Different text", "en") {
		t.Fatal("distinct texts collided")
	}
}

func TestSayRejectsEmptyText(t *testing.T) {
	t.Parallel()

	s := NewSynth(Config{CacheDir: t.TempDir()}, logx.Nop())
	if _, err := s.Say(context.Background(), "   "); err == nil {
		t.Fatal("expected error for empty text")
	}
}

func TestSayReturnsCachedFileWithoutSynthesis(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := NewSynth(Config{CacheDir: dir}, logx.Nop())

	// Pre-seed the cache; Say must return it without touching the network.
	text := "Station ident"
	path := filepath.Join(dir, cacheName(text, "en")+".mp3")
	if err := os.WriteFile(path, []byte("mp3data"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := s.Say(context.Background(), text)
	if err != nil {
		t.Fatalf("Say: %v", err)
	}
	if got != path {
		t.Fatalf("Say returned %q, want %q", got, path)
	}
}

func TestDefaultsApplied(t *testing.T) {
	t.Parallel()

	s := NewSynth(Config{CacheDir: t.TempDir()}, logx.Nop())
	if s.cfg.Language != "en" || s.cfg.RatePerMin != 12 {
		t.Fatalf("defaults not applied: %+v", s.cfg)
	}
}
