// Package app wires the station together: config, logging, storage, the
// production studio, the scheduler, the streamer, and the watchers that
// keep them current while the process runs.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"pirateradio/internal/config"
	"pirateradio/internal/eventbus"
	"pirateradio/internal/library"
	"pirateradio/internal/playlist"
	"pirateradio/internal/producers/news"
	"pirateradio/internal/producers/script"
	"pirateradio/internal/producers/sound"
	"pirateradio/internal/producers/voice"
	"pirateradio/internal/producers/weather"
	"pirateradio/internal/runtime/supervisor"
	"pirateradio/internal/services/scheduler"
	"pirateradio/internal/services/streamer"
	"pirateradio/internal/storage"
	"pirateradio/internal/studio"
	logx "pirateradio/pkg/logx"
)

type App struct {
	manager *config.Manager
	logSvc  *logx.Service
	log     logx.Logger

	bus   eventbus.Bus
	store storage.Store
	lib   *library.Library

	queue     *playlist.Queue
	studio    *studio.Studio
	scheduler *scheduler.Service
	streamer  *streamer.Service

	sup *supervisor.Supervisor
}

// New loads and validates the config at path and builds every component.
// Nothing starts running until Start.
func New(path string) (*App, error) {
	manager := config.NewManager(path)
	manager.SetValidator(func(_ context.Context, cfg *config.Config) error {
		return cfg.Validate()
	})

	cfg, err := manager.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	manager.SetLogger(log.With(logx.String("svc", "config")))

	paths := resolvedPaths(cfg)
	for _, dir := range []string{paths.OutputDir, paths.CacheDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			_ = logSvc.Close()
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}

	var store storage.Store
	if cfg.Storage != nil {
		busy, _ := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
		store, err = storage.Open(storage.Config{
			Driver:      cfg.Storage.Driver,
			Path:        cfg.Storage.Path,
			BusyTimeout: busy,
		}, log.With(logx.String("svc", "storage")))
		if err != nil {
			_ = logSvc.Close()
			return nil, fmt.Errorf("open storage: %w", err)
		}
	}

	bus := eventbus.New()
	lib := library.New(paths.MusicDir, log.With(logx.String("svc", "library")))

	scraper := news.NewScraper(news.Config{
		Subreddits: cfg.Content.Subreddits,
		Feeds:      cfg.Content.Feeds,
		MaxItems:   cfg.Content.MaxNewsItems,
	}, store, log.With(logx.String("svc", "news")))

	writer := script.NewWriter(script.Config{
		APIKey:  strings.TrimSpace(os.Getenv("GROQ_API_KEY")),
		Model:   cfg.Content.Model,
		Style:   cfg.Content.NewsStyle,
		Station: cfg.Station.Name,
	}, log.With(logx.String("svc", "script")))

	synth := voice.NewSynth(voice.Config{
		CacheDir:   paths.CacheDir,
		Language:   cfg.Content.Language,
		RatePerMin: cfg.Content.SynthRatePerMin,
	}, log.With(logx.String("svc", "voice")))

	engine := sound.NewEngine(sound.Config{
		FFmpeg:      cfg.Paths.FFmpeg,
		FFprobe:     cfg.Paths.FFprobe,
		BitrateKbps: cfg.Stream.BitrateKbps,
		MusicVolume: cfg.Content.MusicVolume,
	}, log.With(logx.String("svc", "sound")))

	st := studio.New(studio.Config{
		Station:      cfg.Station.Name,
		WeatherCity:  cfg.Content.WeatherCity,
		OutputDir:    paths.OutputDir,
		TrackSeconds: cfg.Content.TrackSeconds,
		FallbackPath: filepath.Join(paths.OutputDir, "fallback.mp3"),
		FallbackSecs: cfg.Stream.FallbackSeconds,
	}, scraper, weather.NewClient(), writer, synth, engine, lib, store, bus,
		log.With(logx.String("svc", "studio")))

	queue := playlist.NewQueue(bus)
	sched := scheduler.New(schedulerConfig(cfg), st, queue,
		log.With(logx.String("svc", "scheduler")))
	strm := streamer.New(streamerConfig(cfg), queue, bus, store,
		log.With(logx.String("svc", "streamer")))

	return &App{
		manager:   manager,
		logSvc:    logSvc,
		log:       log.With(logx.String("svc", "app")),
		bus:       bus,
		store:     store,
		lib:       lib,
		queue:     queue,
		studio:    st,
		scheduler: sched,
		streamer:  strm,
	}, nil
}

// Start brings the station on air. It returns once everything is running;
// loops are owned by the services and the supervisor.
func (a *App) Start(ctx context.Context) error {
	cfg := a.manager.Get()
	a.log.Info("starting", logx.String("station", cfg.Station.Name))

	if err := a.lib.Scan(); err != nil {
		return fmt.Errorf("scan library: %w", err)
	}

	fb, err := a.studio.Fallback(ctx)
	if err != nil {
		a.log.Warn("continuity fallback unavailable", logx.Err(err))
	} else {
		a.streamer.SetFallback(fb)
	}

	// A spoken station intro opens the broadcast ahead of the first
	// scheduled content; skipping it is not fatal.
	if intro, err := a.studio.Interstitial(ctx, introPhrase(cfg.Station.Name, cfg.Station.Description)); err != nil {
		a.log.Warn("station intro unavailable", logx.Err(err))
	} else {
		a.queue.Enqueue(intro)
	}

	if err := a.streamer.Start(ctx); err != nil {
		return fmt.Errorf("start streamer: %w", err)
	}
	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log))
	a.sup.GoRestart("config.watch", a.manager.Watch)
	a.sup.GoRestart("library.watch", a.lib.Watch)
	a.sup.Go0("config.reload", a.reloadLoop)
	a.sup.Go0("events", a.eventLoop)

	if sent, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		a.log.Debug("sd_notify failed", logx.Err(err))
	} else if sent {
		a.log.Debug("sd_notify ready sent")
	}

	a.log.Info("on air", logx.String("addr", cfg.Stream.ListenAddr))
	return nil
}

// Stop shuts down in reverse order: production first, then the broadcast
// (which finishes its in-flight segment), then the watchers and storage.
func (a *App) Stop() {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	a.scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	a.streamer.Stop(ctx)

	if a.sup != nil {
		if err := a.sup.Stop(ctx); err != nil {
			a.log.Warn("supervisor stop", logx.Err(err))
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("storage close", logx.Err(err))
		}
	}
	a.log.Info("stopped")
	_ = a.logSvc.Close()
}

// reloadLoop applies validated config edits to the running services.
func (a *App) reloadLoop(ctx context.Context) {
	sub := a.manager.Subscribe(1)
	defer a.manager.Unsubscribe(sub)

	old := a.manager.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-sub:
			if !ok {
				return
			}
			changed, attrs := config.SummarizeChange(old, cfg)
			if len(changed) == 0 {
				continue
			}
			a.log.Info("config reloaded",
				append([]logx.Field{logx.Any("sections", changed)}, attrs...)...)

			a.logSvc.Apply(logx.Config{
				Level:   cfg.Logging.Level,
				Console: cfg.Logging.Console,
				File: logx.FileConfig{
					Enabled: cfg.Logging.File.Enabled,
					Path:    cfg.Logging.File.Path,
				},
			})
			a.scheduler.Apply(schedulerConfig(cfg))
			a.streamer.Apply(streamerConfig(cfg))
			old = cfg
		}
	}
}

// eventLoop mirrors bus traffic into the debug log.
func (a *App) eventLoop(ctx context.Context) {
	ch, unsub := a.bus.Subscribe(64)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			a.log.Debug("event", logx.String("type", ev.Type), logx.Any("data", ev.Data))
		}
	}
}

func schedulerConfig(cfg *config.Config) scheduler.Config {
	poll, _ := config.ParseDurationOrDefault("scheduler.poll_interval", cfg.Scheduler.PollInterval, time.Minute)
	newsIv, _ := config.ParseDurationOrDefault("scheduler.news_interval", cfg.Scheduler.NewsInterval, 15*time.Minute)
	weatherIv, _ := config.ParseDurationOrDefault("scheduler.weather_interval", cfg.Scheduler.WeatherInterval, 30*time.Minute)
	refill, _ := config.ParseDurationOrDefault("scheduler.refill_poll", cfg.Scheduler.RefillPoll, 10*time.Second)
	replenish, _ := config.ParseDurationOrDefault("scheduler.pool_replenish", cfg.Scheduler.PoolReplenish, 10*time.Minute)

	return scheduler.Config{
		Enabled:           cfg.Scheduler.Enabled,
		PollInterval:      poll,
		NewsInterval:      newsIv,
		WeatherInterval:   weatherIv,
		BufferFloor:       cfg.Scheduler.BufferFloor,
		RefillPoll:        refill,
		InterstitialPool:  cfg.Scheduler.InterstitialPool,
		PoolReplenish:     replenish,
		TimeAnnouncements: cfg.Scheduler.TimeAnnouncements,
	}
}

func streamerConfig(cfg *config.Config) streamer.Config {
	idle, _ := config.ParseDurationOrDefault("stream.idle_poll", cfg.Stream.IdlePoll, time.Second)
	return streamer.Config{
		Station:     cfg.Station.Name,
		ListenAddr:  cfg.Stream.ListenAddr,
		BitrateKbps: cfg.Stream.BitrateKbps,
		ChunkSize:   cfg.Stream.ChunkSize,
		PaceFactor:  cfg.Stream.PaceFactor,
		IdlePoll:    idle,
	}
}

// introPhrase is the copy spoken once when the station comes on air.
func introPhrase(name, description string) string {
	name = strings.TrimSpace(name)
	description = strings.TrimSpace(description)
	if description != "" {
		return fmt.Sprintf("Welcome to %s. %s. Stay with us.", name, strings.TrimRight(description, "."))
	}
	return fmt.Sprintf("Welcome to %s, broadcasting around the clock. Stay with us.", name)
}

type paths struct {
	MusicDir  string
	OutputDir string
	CacheDir  string
}

func resolvedPaths(cfg *config.Config) paths {
	p := paths{
		MusicDir:  cfg.Paths.MusicDir,
		OutputDir: cfg.Paths.OutputDir,
		CacheDir:  cfg.Paths.CacheDir,
	}
	if p.MusicDir == "" {
		p.MusicDir = "./music"
	}
	if p.OutputDir == "" {
		p.OutputDir = "./output"
	}
	if p.CacheDir == "" {
		p.CacheDir = "./cache"
	}
	return p
}
