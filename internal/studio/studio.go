// Package studio composes the content producers into complete segment
// pipelines: each method takes raw inputs all the way to an encoded file
// on disk, ready for the queue.
package studio

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"pirateradio/internal/eventbus"
	"pirateradio/internal/library"
	"pirateradio/internal/playlist"
	"pirateradio/internal/producers/news"
	"pirateradio/internal/producers/script"
	"pirateradio/internal/producers/sound"
	"pirateradio/internal/producers/voice"
	"pirateradio/internal/producers/weather"
	"pirateradio/internal/storage"
	logx "pirateradio/pkg/logx"
)

// Built-in station idents used when the caller does not supply a phrase.
var identPhrases = []string{
	"You're locked in. Don't touch that dial.",
	"Broadcasting around the clock, wherever you are.",
	"More music coming right up.",
	"The signal never sleeps.",
}

type Config struct {
	Station      string
	WeatherCity  string
	OutputDir    string
	TrackSeconds int
	FallbackPath string
	FallbackSecs int
}

// Studio owns the production pipelines. All methods are synchronous and
// return an error instead of a segment when any stage fails; nothing is
// enqueued on failure.
type Studio struct {
	cfg     Config
	scraper *news.Scraper
	weather *weather.Client
	writer  *script.Writer
	synth   *voice.Synth
	engine  *sound.Engine
	lib     *library.Library
	store   storage.Store
	bus     eventbus.Bus
	log     logx.Logger
}

func New(
	cfg Config,
	scraper *news.Scraper,
	wc *weather.Client,
	writer *script.Writer,
	synth *voice.Synth,
	engine *sound.Engine,
	lib *library.Library,
	store storage.Store,
	bus eventbus.Bus,
	log logx.Logger,
) *Studio {
	if cfg.TrackSeconds <= 0 {
		cfg.TrackSeconds = 180
	}
	if cfg.FallbackSecs <= 0 {
		cfg.FallbackSecs = 30
	}
	return &Studio{
		cfg:     cfg,
		scraper: scraper,
		weather: wc,
		writer:  writer,
		synth:   synth,
		engine:  engine,
		lib:     lib,
		store:   store,
		bus:     bus,
		log:     log,
	}
}

// NewsSegments runs the full bulletin pipeline and returns the segments
// in air order: a short jingle first, then the bulletin mixed over a
// music bed.
func (s *Studio) NewsSegments(ctx context.Context) ([]*playlist.Segment, error) {
	items, err := s.scraper.Fetch(ctx)
	if err != nil {
		return nil, s.fail(ctx, playlist.KindNews, "", err)
	}

	text, err := s.writer.News(ctx, items)
	if err != nil {
		return nil, s.fail(ctx, playlist.KindNews, "", err)
	}

	jingle, err := s.spoken(ctx, playlist.KindJingle,
		fmt.Sprintf("This is %s. Time for the news.", s.cfg.Station), "news intro")
	if err != nil {
		return nil, s.fail(ctx, playlist.KindNews, "", err)
	}

	voicePath, err := s.synth.Say(ctx, text)
	if err != nil {
		return nil, s.fail(ctx, playlist.KindNews, "", err)
	}

	title := fmt.Sprintf("news bulletin (%d stories)", len(items))
	bulletin, err := s.mixOverBed(ctx, voicePath, playlist.KindNews, title)
	if err != nil {
		// Bed mixing needs a music track; a dry library still gets a
		// plain spoken bulletin.
		s.log.Warn("bed mix unavailable, encoding dry bulletin", logx.Err(err))
		bulletin, err = s.encodeSpokenFile(ctx, voicePath, playlist.KindNews, title)
		if err != nil {
			return nil, s.fail(ctx, playlist.KindNews, title, err)
		}
	}

	s.ok(ctx, bulletin)
	return []*playlist.Segment{jingle, bulletin}, nil
}

// WeatherSegment produces one weather break.
func (s *Studio) WeatherSegment(ctx context.Context) (*playlist.Segment, error) {
	rep, err := s.weather.Current(ctx, s.cfg.WeatherCity)
	if err != nil {
		return nil, s.fail(ctx, playlist.KindWeather, "", err)
	}
	text, err := s.writer.Weather(ctx, rep)
	if err != nil {
		return nil, s.fail(ctx, playlist.KindWeather, "", err)
	}
	seg, err := s.spoken(ctx, playlist.KindWeather, text, "weather "+rep.City)
	if err != nil {
		return nil, s.fail(ctx, playlist.KindWeather, "", err)
	}
	s.ok(ctx, seg)
	return seg, nil
}

// Interstitial produces a short station ident. An empty phrase picks one
// of the built-in idents at random.
func (s *Studio) Interstitial(ctx context.Context, phrase string) (*playlist.Segment, error) {
	if strings.TrimSpace(phrase) == "" {
		phrase = identPhrases[rand.Intn(len(identPhrases))]
	}
	text, err := s.writer.Interstitial(ctx, phrase)
	if err != nil {
		return nil, s.fail(ctx, playlist.KindInterstitial, "", err)
	}
	seg, err := s.spoken(ctx, playlist.KindInterstitial, text, "ident")
	if err != nil {
		return nil, s.fail(ctx, playlist.KindInterstitial, "", err)
	}
	s.ok(ctx, seg)
	return seg, nil
}

// TimeAnnouncement produces the hourly time check.
func (s *Studio) TimeAnnouncement(ctx context.Context) (*playlist.Segment, error) {
	text, err := s.writer.TimeCheck(ctx, time.Now())
	if err != nil {
		return nil, s.fail(ctx, playlist.KindTimecheck, "", err)
	}
	seg, err := s.spoken(ctx, playlist.KindTimecheck, text, "time check")
	if err != nil {
		return nil, s.fail(ctx, playlist.KindTimecheck, "", err)
	}
	s.ok(ctx, seg)
	return seg, nil
}

// MusicSegment prepares one library track for air: trimmed, faded, and
// re-encoded at the broadcast bitrate.
func (s *Studio) MusicSegment(ctx context.Context) (*playlist.Segment, error) {
	track, err := s.lib.Pick()
	if err != nil {
		return nil, s.fail(ctx, playlist.KindMusic, "", err)
	}
	out := s.outPath("track")
	if err := s.engine.PrepareTrack(ctx, track.Path, out, s.cfg.TrackSeconds); err != nil {
		return nil, s.fail(ctx, playlist.KindMusic, track.Name, err)
	}
	seg, err := segmentFromFile(out, playlist.KindMusic, track.Name, true)
	if err != nil {
		return nil, s.fail(ctx, playlist.KindMusic, track.Name, err)
	}
	s.ok(ctx, seg)
	return seg, nil
}

// Fallback renders the continuity silence file if it does not already
// exist, and returns a non-ephemeral segment pointing at it.
func (s *Studio) Fallback(ctx context.Context) (*playlist.Segment, error) {
	path := s.cfg.FallbackPath
	if path == "" {
		path = filepath.Join(s.cfg.OutputDir, "fallback.mp3")
	}
	if info, err := os.Stat(path); err != nil || info.Size() == 0 {
		if err := s.engine.Silence(ctx, path, s.cfg.FallbackSecs); err != nil {
			return nil, err
		}
	}
	return segmentFromFile(path, playlist.KindFallback, "continuity", false)
}

// spoken renders text to speech and encodes it at the broadcast bitrate.
func (s *Studio) spoken(ctx context.Context, kind playlist.Kind, text, title string) (*playlist.Segment, error) {
	voicePath, err := s.synth.Say(ctx, text)
	if err != nil {
		return nil, err
	}
	return s.encodeSpokenFile(ctx, voicePath, kind, title)
}

func (s *Studio) encodeSpokenFile(ctx context.Context, voicePath string, kind playlist.Kind, title string) (*playlist.Segment, error) {
	out := s.outPath(string(kind))
	if err := s.engine.Encode(ctx, voicePath, out); err != nil {
		return nil, err
	}
	return segmentFromFile(out, kind, title, true)
}

func (s *Studio) mixOverBed(ctx context.Context, voicePath string, kind playlist.Kind, title string) (*playlist.Segment, error) {
	track, err := s.lib.Pick()
	if err != nil {
		return nil, err
	}
	out := s.outPath(string(kind))
	if err := s.engine.MixVoiceOverBed(ctx, voicePath, track.Path, out); err != nil {
		return nil, err
	}
	return segmentFromFile(out, kind, title, true)
}

func (s *Studio) outPath(stem string) string {
	return filepath.Join(s.cfg.OutputDir, fmt.Sprintf("%s-%s.mp3", stem, uuid.NewString()[:8]))
}

func (s *Studio) ok(ctx context.Context, seg *playlist.Segment) {
	if s.store != nil {
		err := s.store.AppendProduction(ctx, storage.ProductionRecord{
			Time:  time.Now(),
			Kind:  string(seg.Kind),
			Title: seg.Title,
			Path:  seg.Path,
			Bytes: seg.Size,
			OK:    true,
		})
		if err != nil {
			s.log.Debug("production record failed", logx.Err(err))
		}
	}
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{
			Type: eventbus.EventProductionOK,
			Data: map[string]any{"kind": seg.Kind, "title": seg.Title},
		})
	}
}

func (s *Studio) fail(ctx context.Context, kind playlist.Kind, title string, err error) error {
	if s.store != nil {
		rerr := s.store.AppendProduction(ctx, storage.ProductionRecord{
			Time:  time.Now(),
			Kind:  string(kind),
			Title: title,
			OK:    false,
			Error: err.Error(),
		})
		if rerr != nil {
			s.log.Debug("production record failed", logx.Err(rerr))
		}
	}
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{
			Type: eventbus.EventProductionFailed,
			Data: map[string]any{"kind": kind, "err": err.Error()},
		})
	}
	return fmt.Errorf("%s pipeline: %w", kind, err)
}

func segmentFromFile(path string, kind playlist.Kind, title string, ephemeral bool) (*playlist.Segment, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() == 0 {
		return nil, fmt.Errorf("studio: produced empty file %s", path)
	}
	return &playlist.Segment{
		ID:        uuid.NewString(),
		Path:      path,
		Size:      info.Size(),
		Kind:      kind,
		Title:     title,
		Ephemeral: ephemeral,
	}, nil
}
