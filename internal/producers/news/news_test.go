package news

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"pirateradio/internal/storage"
	logx "pirateradio/pkg/logx"
)

// memStore implements just enough of storage.Store for dedup tests.
type memStore struct {
	seen map[string]time.Time
}

func newMemStore() *memStore { return &memStore{seen: map[string]time.Time{}} }

func (m *memStore) AppendProduction(context.Context, storage.ProductionRecord) error { return nil }
func (m *memStore) RecentProductions(context.Context, int) ([]storage.ProductionRecord, error) {
	return nil, nil
}
func (m *memStore) MarkSeen(_ context.Context, key string, until time.Time) error {
	m.seen[key] = until
	return nil
}
func (m *memStore) Seen(_ context.Context, key string) (bool, error) {
	until, ok := m.seen[key]
	return ok && until.After(time.Now()), nil
}
func (m *memStore) Close() error { return nil }

const listingJSON = `{"data":{"children":[
	{"data":{"title":"Big story","score":900,"url":"http://x/1","created_utc":1700000000}},
	{"data":{"title":"Pinned rules","score":5000,"stickied":true}},
	{"data":{"title":"Small story","score":10,"url":"http://x/2","created_utc":1700000100}}
]}}`

func redditTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			http.Error(w, "no user agent", http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(listingJSON))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchSubredditParsesAndSkipsStickied(t *testing.T) {
	t.Parallel()

	srv := redditTestServer(t)
	s := NewScraper(Config{}, nil, logx.Nop())
	s.client = srv.Client()

	items, err := s.parseListingURL(context.Background(), srv.URL, "golang")
	if err != nil {
		t.Fatalf("parseListingURL: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2 (stickied skipped)", len(items))
	}
	if items[0].Title != "Big story" || items[0].Score != 900 {
		t.Fatalf("first item = %+v", items[0])
	}
	if items[0].Source != "r/golang" {
		t.Fatalf("source = %q", items[0].Source)
	}
}

func TestFilterSeenSuppressesAiredTitles(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	s := NewScraper(Config{MaxItems: 5}, store, logx.Nop())

	ctx := context.Background()
	items := []Item{
		{Title: "Alpha happens", Score: 100},
		{Title: "  alpha   HAPPENS ", Score: 90}, // same after normalization
		{Title: "Beta happens", Score: 80},
	}

	fresh := s.filterSeen(ctx, items)
	if len(fresh) != 2 {
		t.Fatalf("local dedup: got %d, want 2", len(fresh))
	}

	s.markSeen(ctx, fresh)
	again := s.filterSeen(ctx, []Item{
		{Title: "Alpha happens", Score: 100},
		{Title: "Gamma happens", Score: 70},
	})
	if len(again) != 1 || again[0].Title != "Gamma happens" {
		t.Fatalf("store dedup: got %+v", again)
	}
}

func TestSeenKeyNormalization(t *testing.T) {
	t.Parallel()

	a := seenKey("Breaking: The Thing")
	b := seenKey("  breaking:   the THING ")
	if a != b {
		t.Fatalf("keys differ: %q vs %q", a, b)
	}
	if a == seenKey("different headline") {
		t.Fatal("distinct titles collided")
	}
}
