// Package scheduler drives content production: periodic news and weather
// cadences, the queue buffer floor, the pre-warmed interstitial pool, and
// the hourly time announcements.
package scheduler

import (
	"context"
	"time"

	"pirateradio/internal/playlist"
)

// Producer is the production surface the scheduler drives. A nil segment
// with a nil error never happens; failures return an error and produce
// nothing.
type Producer interface {
	NewsSegments(ctx context.Context) ([]*playlist.Segment, error)
	WeatherSegment(ctx context.Context) (*playlist.Segment, error)
	Interstitial(ctx context.Context, phrase string) (*playlist.Segment, error)
	MusicSegment(ctx context.Context) (*playlist.Segment, error)
	TimeAnnouncement(ctx context.Context) (*playlist.Segment, error)
}

// Config is the runtime tuning. Zero values take the defaults below.
type Config struct {
	Enabled           bool
	PollInterval      time.Duration
	NewsInterval      time.Duration
	WeatherInterval   time.Duration
	BufferFloor       int
	RefillPoll        time.Duration
	InterstitialPool  int
	PoolReplenish     time.Duration
	TimeAnnouncements bool
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = time.Minute
	}
	if c.NewsInterval <= 0 {
		c.NewsInterval = 15 * time.Minute
	}
	if c.WeatherInterval <= 0 {
		c.WeatherInterval = 30 * time.Minute
	}
	if c.BufferFloor <= 0 {
		c.BufferFloor = 5
	}
	if c.RefillPoll <= 0 {
		c.RefillPoll = 10 * time.Second
	}
	if c.InterstitialPool < 0 {
		c.InterstitialPool = 0
	}
	if c.PoolReplenish <= 0 {
		c.PoolReplenish = 10 * time.Minute
	}
	return c
}
