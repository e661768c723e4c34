package script

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"pirateradio/internal/producers/news"
	"pirateradio/internal/producers/weather"
	logx "pirateradio/pkg/logx"
)

func offlineWriter() *Writer {
	return NewWriter(Config{Station: "Night Owl FM"}, logx.Nop())
}

// brokenWriter has a configured client pointed at an endpoint that
// always fails.
func brokenWriter(t *testing.T) *Writer {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, _ *http.Request) {
		http.Error(rw, "upstream down", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	w := NewWriter(Config{APIKey: "test-key", Station: "Night Owl FM"}, logx.Nop())
	oc := openai.DefaultConfig("test-key")
	oc.BaseURL = srv.URL
	w.client = openai.NewClientWithConfig(oc)
	return w
}

func TestNewsFallbackWithoutKey(t *testing.T) {
	t.Parallel()

	w := offlineWriter()
	out, err := w.News(context.Background(), []news.Item{
		{Title: "First thing happened"},
		{Title: "Second thing happened."},
	})
	if err != nil {
		t.Fatalf("News: %v", err)
	}
	for _, want := range []string{"Night Owl FM", "First thing happened", "Second thing happened"} {
		if !strings.Contains(out, want) {
			t.Fatalf("bulletin missing %q: %q", want, out)
		}
	}
}

func TestNewsErrorPropagatesWithConfiguredClient(t *testing.T) {
	t.Parallel()

	w := brokenWriter(t)
	out, err := w.News(context.Background(), []news.Item{{Title: "Something happened"}})
	if err == nil {
		t.Fatalf("expected error from failed generation, got bulletin %q", out)
	}
	if out != "" {
		t.Fatalf("no copy should air on failure, got %q", out)
	}
}

func TestWeatherFallsBackWhenClientFails(t *testing.T) {
	t.Parallel()

	out, err := brokenWriter(t).Weather(context.Background(), &weather.Report{
		City: "Belgrade", TempC: 8, FeelsLikeC: 5, Condition: "Light rain",
	})
	if err != nil {
		t.Fatalf("Weather: %v", err)
	}
	if !strings.Contains(out, "Belgrade") {
		t.Fatalf("weather fallback copy = %q", out)
	}
}

func TestNewsRequiresHeadlines(t *testing.T) {
	t.Parallel()

	if _, err := offlineWriter().News(context.Background(), nil); err == nil {
		t.Fatal("expected error for empty headline list")
	}
}

func TestWeatherFallback(t *testing.T) {
	t.Parallel()

	out, err := offlineWriter().Weather(context.Background(), &weather.Report{
		City: "Belgrade", TempC: 8, FeelsLikeC: 5, Condition: "Light rain",
	})
	if err != nil {
		t.Fatalf("Weather: %v", err)
	}
	if !strings.Contains(out, "Belgrade") || !strings.Contains(out, "8 degrees") {
		t.Fatalf("weather copy = %q", out)
	}
}

func TestTimeCheckSpeaksClockTime(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 15, 0, 0, 0, time.UTC)
	out, err := offlineWriter().TimeCheck(context.Background(), now)
	if err != nil {
		t.Fatalf("TimeCheck: %v", err)
	}
	if !strings.Contains(out, "3:00 PM") {
		t.Fatalf("time copy = %q", out)
	}
}

func TestInterstitialPassthroughWithoutKey(t *testing.T) {
	t.Parallel()

	out, err := offlineWriter().Interstitial(context.Background(), "Stay tuned.")
	if err != nil {
		t.Fatalf("Interstitial: %v", err)
	}
	if out != "Stay tuned." {
		t.Fatalf("got %q", out)
	}

	out, err = offlineWriter().Interstitial(context.Background(), "  ")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Night Owl FM") {
		t.Fatalf("default ident = %q", out)
	}
}

func TestDefaultsApplied(t *testing.T) {
	t.Parallel()

	w := NewWriter(Config{}, logx.Nop())
	if w.cfg.Model == "" || w.cfg.Style == "" {
		t.Fatalf("defaults not applied: %+v", w.cfg)
	}
	if w.client != nil {
		t.Fatal("client created without key")
	}
}
