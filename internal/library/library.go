// Package library indexes the on-disk music collection and hands out
// uniformly random tracks for the scheduler's refill loop.
package library

import (
	"context"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	logx "pirateradio/pkg/logx"
)

// Audio container extensions the scanner accepts. Everything else in the
// music directory (artwork, playlists, dotfiles) is skipped silently.
var audioExts = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".ogg":  true,
	".flac": true,
	".m4a":  true,
}

var ErrEmpty = errors.New("library: no tracks")

// Track is one playable file in the music directory.
type Track struct {
	Path string
	Name string
	Size int64
}

// Library holds the current index. Scan and Pick are safe for concurrent
// use; selection is random with replacement, so repeats are expected.
type Library struct {
	mu     sync.RWMutex
	dir    string
	tracks []Track

	rngMu sync.Mutex
	rng   *rand.Rand

	log logx.Logger
}

func New(dir string, log logx.Logger) *Library {
	return &Library{
		dir: dir,
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
		log: log,
	}
}

// Scan rebuilds the index from disk. A missing or empty directory is not an
// error here; callers decide whether an empty library is fatal.
func (l *Library) Scan() error {
	var tracks []Track
	err := filepath.WalkDir(l.dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtree: log and keep walking the rest.
			l.log.Warn("library walk error", logx.String("path", path), logx.Err(err))
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != l.dir {
				return filepath.SkipDir
			}
			return nil
		}
		if !audioExts[strings.ToLower(filepath.Ext(d.Name()))] {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		tracks = append(tracks, Track{
			Path: path,
			Name: strings.TrimSuffix(d.Name(), filepath.Ext(d.Name())),
			Size: info.Size(),
		})
		return nil
	})
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	sort.Slice(tracks, func(i, j int) bool { return tracks[i].Path < tracks[j].Path })

	l.mu.Lock()
	l.tracks = tracks
	l.mu.Unlock()

	l.log.Info("library scanned", logx.String("dir", l.dir), logx.Int("tracks", len(tracks)))
	return nil
}

// Pick returns a uniformly random track. Selection is with replacement.
func (l *Library) Pick() (Track, error) {
	l.mu.RLock()
	n := len(l.tracks)
	if n == 0 {
		l.mu.RUnlock()
		return Track{}, ErrEmpty
	}
	l.rngMu.Lock()
	idx := l.rng.Intn(n)
	l.rngMu.Unlock()
	t := l.tracks[idx]
	l.mu.RUnlock()
	return t, nil
}

// Len returns the number of indexed tracks.
func (l *Library) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.tracks)
}

// Watch rescans the library when files under the music directory change.
// Rescans are debounced so bulk copies trigger one pass, not hundreds.
// Blocks until ctx is canceled.
func (l *Library) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(l.dir); err != nil {
		return err
	}

	const debounce = 2 * time.Second
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.Events:
			if !ok {
				return errors.New("library: watcher closed")
			}
			if ev.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename|fsnotify.Write) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
				timerC = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(debounce)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return errors.New("library: watcher closed")
			}
			l.log.Warn("library watcher error", logx.Err(err))
		case <-timerC:
			timer = nil
			timerC = nil
			if err := l.Scan(); err != nil {
				l.log.Warn("library rescan failed", logx.Err(err))
			}
		}
	}
}
