package app

import (
	"strings"
	"testing"
)

func TestIntroPhrase(t *testing.T) {
	t.Parallel()

	got := introPhrase("Night Owl FM", "Music for the small hours.")
	if !strings.Contains(got, "Welcome to Night Owl FM") {
		t.Fatalf("intro = %q", got)
	}
	if !strings.Contains(got, "Music for the small hours") {
		t.Fatalf("intro missing description: %q", got)
	}
	if strings.Contains(got, "..") {
		t.Fatalf("double period in intro: %q", got)
	}

	got = introPhrase("  Night Owl FM  ", "")
	if !strings.Contains(got, "Welcome to Night Owl FM, broadcasting around the clock") {
		t.Fatalf("no-description intro = %q", got)
	}
}
