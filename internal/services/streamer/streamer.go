// Package streamer owns the live side of the station: the single
// broadcast loop that paces file chunks out in real time, the listener
// set it fans out to, and the HTTP surface listeners connect through.
package streamer

import (
	"context"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"pirateradio/internal/eventbus"
	"pirateradio/internal/playlist"
	"pirateradio/internal/storage"
	logx "pirateradio/pkg/logx"
)

type Config struct {
	Station     string
	ListenAddr  string
	BitrateKbps int
	ChunkSize   int
	PaceFactor  float64
	IdlePoll    time.Duration
}

func (c Config) withDefaults() Config {
	if c.ListenAddr == "" {
		c.ListenAddr = ":8080"
	}
	if c.BitrateKbps <= 0 {
		c.BitrateKbps = 128
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = 64 * 1024
	}
	if c.PaceFactor <= 0 || c.PaceFactor > 1 {
		c.PaceFactor = 0.65
	}
	if c.IdlePoll <= 0 {
		c.IdlePoll = time.Second
	}
	return c
}

// listener is one connected client. The broadcast loop is the only
// writer; the HTTP handler parks on done until detach.
type listener struct {
	id    string
	w     io.Writer
	flush func()
	done  chan struct{}
	once  sync.Once
}

func (l *listener) close() {
	l.once.Do(func() { close(l.done) })
}

type Service struct {
	mu  sync.Mutex
	cfg Config

	queue    *playlist.Queue
	fallback *playlist.Segment
	bus      eventbus.Bus
	store    storage.Store
	log      logx.Logger

	listeners map[string]*listener

	nowPlaying atomic.Value // string
	started    time.Time
	segsAired  atomic.Uint64
	bytesAired atomic.Uint64

	srv     *httpServer
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// New builds the service. store may be nil; it only feeds the recent
// production list on /status.
func New(cfg Config, queue *playlist.Queue, bus eventbus.Bus, store storage.Store, log logx.Logger) *Service {
	s := &Service{
		cfg:       cfg.withDefaults(),
		queue:     queue,
		bus:       bus,
		store:     store,
		log:       log,
		listeners: map[string]*listener{},
	}
	s.nowPlaying.Store("")
	return s
}

// SetFallback installs the continuity segment looped when the queue is
// empty with listeners connected. Must be set before Start.
func (s *Service) SetFallback(seg *playlist.Segment) {
	s.mu.Lock()
	s.fallback = seg
	s.mu.Unlock()
}

func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.started = time.Now()
	s.stopCh = make(chan struct{})
	cfg := s.cfg
	s.mu.Unlock()

	s.srv = newHTTPServer(s)
	if err := s.srv.start(cfg.ListenAddr); err != nil {
		return err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.broadcastLoop(ctx)
	}()

	s.log.Info("streamer started",
		logx.String("addr", cfg.ListenAddr),
		logx.Int("bitrate_kbps", cfg.BitrateKbps),
		logx.Float64("pace_factor", cfg.PaceFactor),
	)
	return nil
}

// Stop finishes the in-flight segment, detaches every listener, and
// shuts the HTTP server down.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	s.detachAll("shutdown")
	if s.srv != nil {
		s.srv.shutdown(ctx)
	}
	s.log.Info("streamer stopped")
}

// Apply installs new pacing parameters. The listen address cannot change
// without a restart.
func (s *Service) Apply(cfg Config) {
	cfg = cfg.withDefaults()
	s.mu.Lock()
	if s.running && cfg.ListenAddr != s.cfg.ListenAddr {
		s.log.Warn("listen_addr change requires restart, keeping old address",
			logx.String("old", s.cfg.ListenAddr), logx.String("new", cfg.ListenAddr))
		cfg.ListenAddr = s.cfg.ListenAddr
	}
	s.cfg = cfg
	s.mu.Unlock()
	s.log.Info("streamer config applied")
}

func (s *Service) snapshot() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

func (s *Service) stopping() bool {
	select {
	case <-s.stopCh:
		return true
	default:
		return false
	}
}

// broadcastLoop is the station's only consumer. Stop requests are only
// honored between segments, so the in-flight one always finishes.
func (s *Service) broadcastLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		default:
		}

		cfg := s.snapshot()

		// With nobody connected the queue is left alone so scheduled
		// content isn't burned into the void.
		if s.ListenerCount() == 0 {
			s.nowPlaying.Store("")
			if !s.sleep(ctx, cfg.IdlePoll) {
				return
			}
			continue
		}

		seg, ok := s.queue.Pop()
		if !ok {
			s.mu.Lock()
			fb := s.fallback
			s.mu.Unlock()
			if fb == nil {
				if !s.sleep(ctx, cfg.IdlePoll) {
					return
				}
				continue
			}
			// One fallback pass, then re-check the queue so real
			// content cuts in at the next loop boundary.
			s.playSegment(fb)
			continue
		}

		if s.playSegment(seg) && seg.Ephemeral {
			if err := os.Remove(seg.Path); err != nil {
				s.log.Debug("ephemeral cleanup failed", logx.String("path", seg.Path), logx.Err(err))
			}
		}
	}
}

// playSegment streams one file to every listener at the paced rate.
// Returns false when the file could not be opened (segment dropped).
// It runs to completion even under shutdown or context cancellation.
func (s *Service) playSegment(seg *playlist.Segment) bool {
	f, err := os.Open(seg.Path)
	if err != nil {
		s.log.Warn("segment unreadable, dropping",
			logx.String("id", seg.ID), logx.String("path", seg.Path), logx.Err(err))
		s.publish(eventbus.EventSegmentDropped, map[string]any{"id": seg.ID, "kind": seg.Kind})
		return false
	}
	defer f.Close()

	title := seg.Title
	if title == "" {
		title = string(seg.Kind)
	}
	s.nowPlaying.Store(title)
	s.publish(eventbus.EventSegmentStarted, map[string]any{"id": seg.ID, "kind": seg.Kind, "title": title})
	s.log.Info("on air", logx.String("kind", string(seg.Kind)), logx.String("title", title))

	cfg := s.snapshot()
	buf := make([]byte, cfg.ChunkSize)
	for {
		n, rerr := f.Read(buf)
		if n > 0 {
			s.fanout(buf[:n])
			s.bytesAired.Add(uint64(n))

			// The final chunk ships without a pace sleep so the next
			// segment starts while client buffers are still full. The
			// sleep deliberately ignores shutdown: stop requests are
			// honored between segments, and an in-flight segment is
			// delivered whole.
			if rerr == nil {
				time.Sleep(paceDelay(n, cfg.BitrateKbps, cfg.PaceFactor))
			}
		}
		if rerr != nil {
			if rerr != io.EOF {
				s.log.Warn("segment read error", logx.String("id", seg.ID), logx.Err(rerr))
			}
			break
		}
	}

	s.segsAired.Add(1)
	s.publish(eventbus.EventSegmentFinished, map[string]any{"id": seg.ID, "kind": seg.Kind})
	return true
}

// fanout writes one chunk to every listener. The set is snapshotted
// first; writers that fail are detached after the pass, never during it.
func (s *Service) fanout(chunk []byte) {
	s.mu.Lock()
	snapshot := make([]*listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		snapshot = append(snapshot, l)
	}
	s.mu.Unlock()

	var failed []string
	for _, l := range snapshot {
		if _, err := l.w.Write(chunk); err != nil {
			failed = append(failed, l.id)
			continue
		}
		if l.flush != nil {
			l.flush()
		}
	}
	for _, id := range failed {
		s.detach(id, "write failed")
	}
}

func (s *Service) attach(l *listener) {
	s.mu.Lock()
	s.listeners[l.id] = l
	n := len(s.listeners)
	s.mu.Unlock()

	s.publish(eventbus.EventListenerAttached, map[string]any{"id": l.id, "listeners": n})
	s.log.Info("listener attached", logx.String("id", l.id), logx.Int("listeners", n))
}

func (s *Service) detach(id, reason string) {
	s.mu.Lock()
	l, ok := s.listeners[id]
	if ok {
		delete(s.listeners, id)
	}
	n := len(s.listeners)
	s.mu.Unlock()
	if !ok {
		return
	}
	l.close()

	s.publish(eventbus.EventListenerDetached, map[string]any{"id": id, "reason": reason, "listeners": n})
	s.log.Info("listener detached", logx.String("id", id), logx.String("reason", reason), logx.Int("listeners", n))
}

func (s *Service) detachAll(reason string) {
	s.mu.Lock()
	ids := make([]string, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	s.mu.Unlock()
	for _, id := range ids {
		s.detach(id, reason)
	}
}

func (s *Service) ListenerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners)
}

func (s *Service) NowPlaying() string {
	v, _ := s.nowPlaying.Load().(string)
	return v
}

// sleep waits d unless the service is stopping; returns false on stop.
func (s *Service) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	select {
	case <-ctx.Done():
		return false
	case <-s.stopCh:
		return false
	case <-time.After(d):
		return true
	}
}

func (s *Service) publish(typ string, data any) {
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: typ, Data: data})
	}
}

// paceDelay is the real-time cost of a chunk at the broadcast bitrate,
// scaled down so the stream runs slightly hot and client buffers stay
// ahead of the wire.
func paceDelay(chunkLen, bitrateKbps int, factor float64) time.Duration {
	bytesPerSec := float64(bitrateKbps) * 1000 / 8
	if bytesPerSec <= 0 {
		return 0
	}
	return time.Duration(float64(chunkLen) / bytesPerSec * factor * float64(time.Second))
}
