package scheduler

import (
	"context"
	"time"

	"pirateradio/internal/playlist"
	logx "pirateradio/pkg/logx"
)

func (s *Service) refillLoop(ctx context.Context) {
	for {
		cfg := s.snapshot()
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-time.After(cfg.RefillPoll):
			s.refill(ctx)
		}
	}
}

// refill tops the queue back up to the buffer floor. Every iteration
// produces one music segment; a pooled ident, when available, goes in
// right before it so fillers interleave with music but never satisfy
// the floor on their own. A production failure ends the pass early
// rather than spinning against a broken producer.
func (s *Service) refill(ctx context.Context) {
	cfg := s.snapshot()
	for s.queue.Len() < cfg.BufferFloor {
		if seg := s.takeFromPool(); seg != nil {
			s.queue.Enqueue(seg)
		}
		seg, err := s.producer.MusicSegment(ctx)
		if err != nil {
			s.log.Warn("refill music production failed", logx.Err(err))
			return
		}
		s.queue.Enqueue(seg)
	}
}

// replenishPool synthesizes idents until the pool is full. Failures are
// skipped so one bad synthesis doesn't starve the pool; the voice
// limiter paces the calls.
func (s *Service) replenishPool(ctx context.Context) {
	cfg := s.snapshot()
	for i := 0; s.poolLen() < cfg.InterstitialPool && i < cfg.InterstitialPool*2; i++ {
		seg, err := s.producer.Interstitial(ctx, "")
		if err != nil {
			s.log.Warn("ident synthesis failed, skipping", logx.Err(err))
			continue
		}
		s.mu.Lock()
		s.pool = append(s.pool, seg)
		n := len(s.pool)
		s.mu.Unlock()
		s.log.Debug("ident pooled", logx.Int("pool", n))
	}
}

func (s *Service) takeFromPool() *playlist.Segment {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pool) == 0 {
		return nil
	}
	seg := s.pool[0]
	s.pool[0] = nil
	s.pool = s.pool[1:]
	return seg
}

func (s *Service) poolLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pool)
}
