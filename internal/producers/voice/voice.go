// Package voice renders script text to speech files, with a content-hash
// cache so repeated phrases (idents, the fallback loop) synthesize once.
package voice

import (
	"context"
	"crypto/md5"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Duckduckgot/gtts"
	"golang.org/x/time/rate"

	logx "pirateradio/pkg/logx"
)

type Config struct {
	CacheDir string
	Language string
	// RatePerMin bounds synthesis calls so bursty production (pool
	// pre-warm, long bulletins) doesn't trip the TTS endpoint.
	RatePerMin int
}

type Synth struct {
	cfg     Config
	speech  gtts.Speech
	limiter *rate.Limiter
	log     logx.Logger
}

func NewSynth(cfg Config, log logx.Logger) *Synth {
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	if cfg.RatePerMin <= 0 {
		cfg.RatePerMin = 12
	}
	return &Synth{
		cfg:     cfg,
		speech:  gtts.Speech{Folder: cfg.CacheDir, Language: cfg.Language},
		limiter: rate.NewLimiter(rate.Limit(float64(cfg.RatePerMin)/60.0), 2),
		log:     log,
	}
}

// Say renders text to an mp3 under the cache dir and returns its path.
// A cache hit skips both the limiter and the network.
func (s *Synth) Say(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("voice: empty text")
	}

	name := cacheName(text, s.cfg.Language)
	cached := filepath.Join(s.cfg.CacheDir, name+".mp3")
	if info, err := os.Stat(cached); err == nil && info.Size() > 0 {
		s.log.Debug("tts cache hit", logx.String("file", name))
		return cached, nil
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return "", err
	}

	path, err := s.speech.CreateSpeechFile(text, name)
	if err != nil {
		return "", fmt.Errorf("voice: synthesize: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("voice: synthesized file missing: %w", err)
	}
	if info.Size() == 0 {
		_ = os.Remove(path)
		return "", fmt.Errorf("voice: synthesized file is empty")
	}
	return path, nil
}

func cacheName(text, lang string) string {
	sum := md5.Sum([]byte(lang + "\x00" + strings.TrimSpace(text)))
	return fmt.Sprintf("tts-%x", sum)
}
