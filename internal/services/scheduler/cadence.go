package scheduler

import (
	"context"
	"time"

	logx "pirateradio/pkg/logx"
)

func (s *Service) cadenceLoop(ctx context.Context) {
	// First tick immediately so a fresh start airs news without waiting
	// out a full poll interval.
	s.tick(ctx)

	for {
		cfg := s.snapshot()
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-time.After(cfg.PollInterval):
			s.tick(ctx)
		}
	}
}

// tick runs at most one production per due kind. The success timestamp
// is set to the time production STARTED, so long productions don't drift
// the cadence; failures leave the timestamp untouched and the kind comes
// up again next poll.
func (s *Service) tick(ctx context.Context) {
	cfg := s.snapshot()
	now := s.now()

	if due(s.lastNewsAt(), cfg.NewsInterval, now) {
		start := now
		segs, err := s.producer.NewsSegments(ctx)
		if err != nil {
			s.log.Warn("news production failed, will retry", logx.Err(err))
		} else {
			for _, seg := range segs {
				s.queue.Enqueue(seg)
			}
			s.setLastNews(start)
			s.log.Info("news aired", logx.Int("segments", len(segs)))
		}
	}

	if due(s.lastWeatherAt(), cfg.WeatherInterval, now) {
		start := now
		seg, err := s.producer.WeatherSegment(ctx)
		if err != nil {
			s.log.Warn("weather production failed, will retry", logx.Err(err))
		} else {
			s.queue.Enqueue(seg)
			s.setLastWeather(start)
			s.log.Info("weather aired")
		}
	}
}

// due reports whether a kind should produce now. A zero last timestamp
// means it never succeeded and is due immediately.
func due(last time.Time, interval time.Duration, now time.Time) bool {
	if last.IsZero() {
		return true
	}
	return now.Sub(last) >= interval
}

func (s *Service) lastNewsAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastNews
}

func (s *Service) setLastNews(t time.Time) {
	s.mu.Lock()
	s.lastNews = t
	s.mu.Unlock()
}

func (s *Service) lastWeatherAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastWeather
}

func (s *Service) setLastWeather(t time.Time) {
	s.mu.Lock()
	s.lastWeather = t
	s.mu.Unlock()
}
