// Package news gathers headline material for the bulletin pipeline from
// Reddit listings and RSS feeds.
package news

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"pirateradio/internal/storage"
	logx "pirateradio/pkg/logx"
)

const (
	// Reddit rejects default Go user agents with 429s.
	userAgent = "pirateradio/1.0 (unattended broadcast bulletin fetcher)"

	// A headline that already aired stays suppressed for this long.
	seenWindow = 24 * time.Hour
)

// Item is one candidate headline.
type Item struct {
	Title     string
	Source    string
	Link      string
	Score     int
	Published time.Time
}

type Config struct {
	Subreddits []string
	Feeds      []string
	MaxItems   int
}

// Scraper fetches and ranks headlines. Titles that aired recently are
// filtered out through the seen window in the store; with no store every
// fetch is dedup-free.
type Scraper struct {
	cfg    Config
	client *http.Client
	parser *gofeed.Parser
	store  storage.Store
	log    logx.Logger
}

func NewScraper(cfg Config, store storage.Store, log logx.Logger) *Scraper {
	client := &http.Client{Timeout: 15 * time.Second}
	parser := gofeed.NewParser()
	parser.UserAgent = userAgent
	return &Scraper{cfg: cfg, client: client, parser: parser, store: store, log: log}
}

// Fetch returns up to MaxItems fresh headlines, highest score first.
// Individual source failures are logged and skipped; Fetch errors only
// when every source failed or nothing fresh remains.
func (s *Scraper) Fetch(ctx context.Context) ([]Item, error) {
	var items []Item
	sources := 0
	failures := 0

	for _, sub := range s.cfg.Subreddits {
		sources++
		got, err := s.fetchSubreddit(ctx, sub)
		if err != nil {
			failures++
			s.log.Warn("subreddit fetch failed", logx.String("subreddit", sub), logx.Err(err))
			continue
		}
		items = append(items, got...)
	}
	for _, url := range s.cfg.Feeds {
		sources++
		got, err := s.fetchFeed(ctx, url)
		if err != nil {
			failures++
			s.log.Warn("feed fetch failed", logx.String("url", url), logx.Err(err))
			continue
		}
		items = append(items, got...)
	}

	if sources == 0 {
		return nil, fmt.Errorf("news: no sources configured")
	}
	if failures == sources {
		return nil, fmt.Errorf("news: all %d sources failed", sources)
	}

	items = s.filterSeen(ctx, items)
	if len(items) == 0 {
		return nil, fmt.Errorf("news: no fresh headlines")
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].Score > items[j].Score })
	max := s.cfg.MaxItems
	if max <= 0 {
		max = 5
	}
	if len(items) > max {
		items = items[:max]
	}

	s.markSeen(ctx, items)
	return items, nil
}

type redditListing struct {
	Data struct {
		Children []struct {
			Data struct {
				Title    string  `json:"title"`
				Score    int     `json:"score"`
				URL      string  `json:"url"`
				Stickied bool    `json:"stickied"`
				Created  float64 `json:"created_utc"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

func (s *Scraper) fetchSubreddit(ctx context.Context, sub string) ([]Item, error) {
	sub = strings.TrimPrefix(strings.TrimSpace(sub), "r/")
	url := fmt.Sprintf("https://www.reddit.com/r/%s/hot.json?limit=15", sub)
	return s.parseListingURL(ctx, url, sub)
}

func (s *Scraper) parseListingURL(ctx context.Context, url, sub string) ([]Item, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("reddit r/%s: status %d", sub, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}
	var listing redditListing
	if err := json.Unmarshal(body, &listing); err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		d := child.Data
		if d.Stickied || strings.TrimSpace(d.Title) == "" {
			continue
		}
		items = append(items, Item{
			Title:     d.Title,
			Source:    "r/" + sub,
			Link:      d.URL,
			Score:     d.Score,
			Published: time.Unix(int64(d.Created), 0),
		})
	}
	return items, nil
}

func (s *Scraper) fetchFeed(ctx context.Context, url string) ([]Item, error) {
	feed, err := s.parser.ParseURLWithContext(url, ctx)
	if err != nil {
		return nil, err
	}
	source := feed.Title
	if source == "" {
		source = url
	}

	// RSS entries carry no vote counts; score by recency so feed items can
	// compete with Reddit scores without dominating them.
	items := make([]Item, 0, len(feed.Items))
	for i, it := range feed.Items {
		if i >= 10 {
			break
		}
		if strings.TrimSpace(it.Title) == "" {
			continue
		}
		published := time.Time{}
		if it.PublishedParsed != nil {
			published = *it.PublishedParsed
		}
		score := 50
		if !published.IsZero() {
			age := time.Since(published)
			if age < time.Hour {
				score = 200
			} else if age < 6*time.Hour {
				score = 120
			}
		}
		items = append(items, Item{
			Title:     it.Title,
			Source:    source,
			Link:      it.Link,
			Score:     score,
			Published: published,
		})
	}
	return items, nil
}

func (s *Scraper) filterSeen(ctx context.Context, items []Item) []Item {
	out := items[:0]
	local := map[string]bool{}
	for _, it := range items {
		key := seenKey(it.Title)
		if local[key] {
			continue
		}
		local[key] = true
		if s.store != nil {
			seen, err := s.store.Seen(ctx, key)
			if err != nil {
				s.log.Debug("seen lookup failed", logx.Err(err))
			} else if seen {
				continue
			}
		}
		out = append(out, it)
	}
	return out
}

func (s *Scraper) markSeen(ctx context.Context, items []Item) {
	if s.store == nil {
		return
	}
	until := time.Now().Add(seenWindow)
	for _, it := range items {
		if err := s.store.MarkSeen(ctx, seenKey(it.Title), until); err != nil {
			s.log.Debug("mark seen failed", logx.Err(err))
		}
	}
}

// seenKey normalizes a headline so trivial rewording still collides.
func seenKey(title string) string {
	title = strings.ToLower(strings.TrimSpace(title))
	title = strings.Join(strings.Fields(title), " ")
	h := fnv.New64a()
	_, _ = h.Write([]byte(title))
	return fmt.Sprintf("news:%x", h.Sum64())
}
