package config

import (
	"reflect"
	"strings"

	logx "pirateradio/pkg/logx"
)

// SummarizeChange returns a compact list of changed sections plus safe
// structured attrs for logging. Secrets never appear here (the Groq key is
// env-only and not part of Config at all).
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 6)
	attrs := make([]logx.Field, 0, 16)

	if oldCfg.Station != newCfg.Station {
		changed = append(changed, "station")
		attrs = append(attrs, logx.String("station.name", newCfg.Station.Name))
	}

	if oldCfg.Stream != newCfg.Stream {
		changed = append(changed, "stream")
		attrs = append(attrs,
			logx.String("stream.listen_addr", strings.TrimSpace(newCfg.Stream.ListenAddr)),
			logx.Int("stream.bitrate_kbps", newCfg.Stream.BitrateKbps),
			logx.Float64("stream.pace_factor", newCfg.Stream.PaceFactor),
		)
	}

	if oldCfg.Scheduler != newCfg.Scheduler {
		changed = append(changed, "scheduler")
		attrs = append(attrs,
			logx.Bool("scheduler.enabled", newCfg.Scheduler.Enabled),
			logx.Int("scheduler.buffer_floor", newCfg.Scheduler.BufferFloor),
			logx.String("scheduler.news_interval", strings.TrimSpace(newCfg.Scheduler.NewsInterval)),
			logx.String("scheduler.weather_interval", strings.TrimSpace(newCfg.Scheduler.WeatherInterval)),
		)
	}

	if !reflect.DeepEqual(oldCfg.Content, newCfg.Content) {
		changed = append(changed, "content")
		attrs = append(attrs,
			logx.Int("content.subreddits", len(newCfg.Content.Subreddits)),
			logx.Int("content.feeds", len(newCfg.Content.Feeds)),
			logx.String("content.language", newCfg.Content.Language),
		)
	}

	if oldCfg.Paths != newCfg.Paths {
		changed = append(changed, "paths")
	}

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logx.level", newCfg.Logging.Level),
			logx.Bool("logx.console", newCfg.Logging.Console),
			logx.Bool("logx.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	if !reflect.DeepEqual(oldCfg.Storage, newCfg.Storage) {
		changed = append(changed, "storage")
	}

	return changed, attrs
}
