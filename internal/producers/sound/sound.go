// Package sound shells out to ffmpeg and ffprobe for every audio
// transform the station needs: mixing voice over a music bed, trimming
// and fading library tracks, generating continuity silence, and probing
// durations.
package sound

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	logx "pirateradio/pkg/logx"
)

type Config struct {
	FFmpeg      string
	FFprobe     string
	BitrateKbps int
	// MusicVolume scales the bed under spoken word, 0..1.
	MusicVolume float64
}

type Engine struct {
	cfg Config
	log logx.Logger
}

func NewEngine(cfg Config, log logx.Logger) *Engine {
	if cfg.FFmpeg == "" {
		cfg.FFmpeg = "ffmpeg"
	}
	if cfg.FFprobe == "" {
		cfg.FFprobe = "ffprobe"
	}
	if cfg.BitrateKbps <= 0 {
		cfg.BitrateKbps = 128
	}
	if cfg.MusicVolume <= 0 || cfg.MusicVolume > 1 {
		cfg.MusicVolume = 0.15
	}
	return &Engine{cfg: cfg, log: log}
}

// Duration probes the playable length of an audio file in seconds.
func (e *Engine) Duration(ctx context.Context, path string) (float64, error) {
	out, err := e.run(ctx, e.cfg.FFprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, err
	}
	sec, err := strconv.ParseFloat(strings.TrimSpace(out), 64)
	if err != nil {
		return 0, fmt.Errorf("sound: parse duration %q: %w", strings.TrimSpace(out), err)
	}
	return sec, nil
}

// MixVoiceOverBed lays voicePath over musicPath at the configured bed
// volume, fading the bed in and out, and writes an mp3 to outPath. The
// result runs as long as the voice plus a short tail.
func (e *Engine) MixVoiceOverBed(ctx context.Context, voicePath, musicPath, outPath string) error {
	voiceDur, err := e.Duration(ctx, voicePath)
	if err != nil {
		return err
	}
	total := voiceDur + 2.0
	filter := mixFilter(e.cfg.MusicVolume, total)

	_, err = e.run(ctx, e.cfg.FFmpeg,
		"-y",
		"-i", voicePath,
		"-stream_loop", "-1", "-i", musicPath,
		"-filter_complex", filter,
		"-map", "[out]",
		"-t", formatSeconds(total),
		"-b:a", fmt.Sprintf("%dk", e.cfg.BitrateKbps),
		"-ar", "44100",
		outPath,
	)
	return err
}

// Encode re-encodes a voice file to the broadcast bitrate without a bed.
func (e *Engine) Encode(ctx context.Context, inPath, outPath string) error {
	_, err := e.run(ctx, e.cfg.FFmpeg,
		"-y",
		"-i", inPath,
		"-b:a", fmt.Sprintf("%dk", e.cfg.BitrateKbps),
		"-ar", "44100",
		outPath,
	)
	return err
}

// PrepareTrack trims a library track to at most maxSeconds with entry and
// exit fades and re-encodes it at the broadcast bitrate.
func (e *Engine) PrepareTrack(ctx context.Context, inPath, outPath string, maxSeconds int) error {
	if maxSeconds <= 0 {
		maxSeconds = 180
	}
	dur, err := e.Duration(ctx, inPath)
	if err != nil {
		return err
	}
	cut := float64(maxSeconds)
	if dur < cut {
		cut = dur
	}

	_, err = e.run(ctx, e.cfg.FFmpeg,
		"-y",
		"-i", inPath,
		"-t", formatSeconds(cut),
		"-af", trackFilter(cut),
		"-b:a", fmt.Sprintf("%dk", e.cfg.BitrateKbps),
		"-ar", "44100",
		outPath,
	)
	return err
}

// Silence writes seconds of encoded stereo silence to outPath. It backs
// the continuity fallback when the queue runs dry.
func (e *Engine) Silence(ctx context.Context, outPath string, seconds int) error {
	if seconds <= 0 {
		seconds = 30
	}
	_, err := e.run(ctx, e.cfg.FFmpeg,
		"-y",
		"-f", "lavfi",
		"-i", "anullsrc=r=44100:cl=stereo",
		"-t", strconv.Itoa(seconds),
		"-b:a", fmt.Sprintf("%dk", e.cfg.BitrateKbps),
		outPath,
	)
	return err
}

func (e *Engine) run(ctx context.Context, bin string, args ...string) (string, error) {
	start := time.Now()
	cmd := exec.CommandContext(ctx, bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	e.log.Debug("exec finished",
		logx.String("bin", bin),
		logx.Duration("took", time.Since(start)),
		logx.Bool("ok", err == nil),
	)
	if err != nil {
		return "", fmt.Errorf("sound: %s: %w (%s)", bin, err, tail(stderr.String(), 300))
	}
	return stdout.String(), nil
}

// mixFilter builds the filter graph that ducks the bed under the voice.
func mixFilter(volume, totalSeconds float64) string {
	fadeOutStart := totalSeconds - 3.0
	if fadeOutStart < 0 {
		fadeOutStart = 0
	}
	return fmt.Sprintf(
		"[1:a]volume=%.2f,afade=t=in:st=0:d=2,afade=t=out:st=%s:d=3[bed];"+
			"[0:a][bed]amix=inputs=2:duration=first:dropout_transition=2[out]",
		volume, formatSeconds(fadeOutStart))
}

// trackFilter fades a trimmed track in over one second and out over three.
func trackFilter(cutSeconds float64) string {
	fadeOutStart := cutSeconds - 3.0
	if fadeOutStart < 0 {
		fadeOutStart = 0
	}
	return fmt.Sprintf("afade=t=in:st=0:d=1,afade=t=out:st=%s:d=3", formatSeconds(fadeOutStart))
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 2, 64)
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
