package config

import (
	"fmt"
	"strings"
)

type Config struct {
	Station   StationConfig   `json:"station"`
	Stream    StreamConfig    `json:"stream"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Content   ContentConfig   `json:"content"`
	Paths     PathsConfig     `json:"paths"`
	Logging   LoggingConfig   `json:"logging"`

	// Storage controls the optional persistence layer (production audit +
	// news dedup window). If omitted, persistence is disabled.
	Storage *StorageConfig `json:"storage,omitempty"`
}

type StationConfig struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Genre       string `json:"genre,omitempty"`
}

// StreamConfig controls the broadcast output.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
//
// PaceFactor scales the per-chunk pacing delay below strict real time so
// listener buffers stay ahead across segment transitions. It must be in
// (0, 1]; the default 0.65 streams roughly 1.5x real time. Treat it as a
// buffer-safety margin, not a precise timing requirement: the encoded
// bitrate of individual files rarely matches the nominal bitrate exactly.
type StreamConfig struct {
	ListenAddr  string  `json:"listen_addr,omitempty"`  // default ":8080"
	BitrateKbps int     `json:"bitrate_kbps,omitempty"` // default 128
	ChunkSize   int     `json:"chunk_size,omitempty"`   // default 65536
	PaceFactor  float64 `json:"pace_factor,omitempty"`  // default 0.65
	IdlePoll    string  `json:"idle_poll,omitempty"`    // default "1s"

	// FallbackSeconds is the length of the generated continuity filler.
	FallbackSeconds int `json:"fallback_seconds,omitempty"` // default 30
}

// SchedulerConfig controls content cadences and the buffer floor.
//
// NewsInterval/WeatherInterval gate how often those kinds are injected;
// a failed production leaves the cadence clock untouched so the next poll
// retries. PollInterval is the coarse granularity at which cadences are
// checked, so actual injection can lag the configured cadence by up to
// one poll interval.
type SchedulerConfig struct {
	Enabled bool `json:"enabled"`

	PollInterval    string `json:"poll_interval,omitempty"`    // default "60s"
	NewsInterval    string `json:"news_interval,omitempty"`    // default "15m"
	WeatherInterval string `json:"weather_interval,omitempty"` // default "30m"

	// BufferFloor is the minimum number of queued segments the refill rule
	// maintains. RefillPoll is how often the floor is checked.
	BufferFloor int    `json:"buffer_floor,omitempty"` // default 5
	RefillPoll  string `json:"refill_poll,omitempty"`  // default "10s"

	// InterstitialPool is the number of spoken fillers pre-warmed at startup.
	InterstitialPool int    `json:"interstitial_pool,omitempty"` // default 4
	PoolReplenish    string `json:"pool_replenish,omitempty"`    // default "10m"

	// TimeAnnouncements enables the hourly spoken clock.
	TimeAnnouncements bool `json:"time_announcements,omitempty"`
}

// ContentConfig selects raw material sources and the script style.
//
// The Groq API key is deliberately NOT part of the file config; it is read
// from the GROQ_API_KEY environment variable so config files stay shareable.
type ContentConfig struct {
	Subreddits   []string `json:"subreddits,omitempty"`
	Feeds        []string `json:"feeds,omitempty"`
	MaxNewsItems int      `json:"max_news_items,omitempty"` // default 5

	WeatherCity string `json:"weather_city,omitempty"` // default "Belgrade"

	Language  string `json:"language,omitempty"`   // e.g. "en", "fr", default "en"
	NewsStyle string `json:"news_style,omitempty"` // default "professional"
	Model     string `json:"model,omitempty"`      // default "llama-3.3-70b-versatile"

	// MusicVolume is the music bed level under spoken bulletins (0..1).
	MusicVolume float64 `json:"music_volume,omitempty"` // default 0.15

	// TrackSeconds trims prepared music tracks; 0 keeps full length.
	TrackSeconds int `json:"track_seconds,omitempty"` // default 180

	// SynthRatePerMin caps speech synthesis calls (pre-warm pacing).
	SynthRatePerMin int `json:"synth_rate_per_min,omitempty"` // default 12
}

type PathsConfig struct {
	MusicDir  string `json:"music_dir,omitempty"`  // default "./music"
	OutputDir string `json:"output_dir,omitempty"` // default "./output"
	CacheDir  string `json:"cache_dir,omitempty"`  // default "./cache"

	// FFmpeg/FFprobe binaries; empty means "resolve from PATH".
	FFmpeg  string `json:"ffmpeg,omitempty"`
	FFprobe string `json:"ffprobe,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig controls the optional persistence layer.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./pirateradio.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// Validate rejects configs that would misbehave at runtime. It is also used
// as the hot-reload validator so a bad edit never reaches running services.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Station.Name) == "" {
		return fmt.Errorf("station.name: must not be empty")
	}
	if c.Stream.BitrateKbps < 0 {
		return fmt.Errorf("stream.bitrate_kbps: must be >= 0")
	}
	if c.Stream.ChunkSize < 0 {
		return fmt.Errorf("stream.chunk_size: must be >= 0")
	}
	if pf := c.Stream.PaceFactor; pf != 0 && (pf <= 0 || pf > 1) {
		return fmt.Errorf("stream.pace_factor: must be in (0, 1], got %v", pf)
	}
	if c.Scheduler.BufferFloor < 0 {
		return fmt.Errorf("scheduler.buffer_floor: must be >= 0")
	}
	if c.Scheduler.InterstitialPool < 0 {
		return fmt.Errorf("scheduler.interstitial_pool: must be >= 0")
	}
	if mv := c.Content.MusicVolume; mv < 0 || mv > 1 {
		return fmt.Errorf("content.music_volume: must be in [0, 1], got %v", mv)
	}
	for _, f := range []struct{ path, raw string }{
		{"stream.idle_poll", c.Stream.IdlePoll},
		{"scheduler.poll_interval", c.Scheduler.PollInterval},
		{"scheduler.news_interval", c.Scheduler.NewsInterval},
		{"scheduler.weather_interval", c.Scheduler.WeatherInterval},
		{"scheduler.refill_poll", c.Scheduler.RefillPoll},
		{"scheduler.pool_replenish", c.Scheduler.PoolReplenish},
	} {
		if _, err := ParseDurationField(f.path, f.raw); err != nil {
			return err
		}
	}
	if c.Storage != nil {
		if _, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
			return err
		}
	}
	return nil
}
