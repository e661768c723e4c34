package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"pirateradio/internal/playlist"
	logx "pirateradio/pkg/logx"
)

type Service struct {
	mu  sync.Mutex
	cfg Config

	producer Producer
	queue    *playlist.Queue
	log      logx.Logger

	// Cadence state. A zero lastSuccess means the kind has never aired
	// and is due immediately. Advanced only on success, to the time the
	// production run started.
	lastNews    time.Time
	lastWeather time.Time

	pool []*playlist.Segment

	cron    *cron.Cron
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	now func() time.Time
}

func New(cfg Config, producer Producer, queue *playlist.Queue, log logx.Logger) *Service {
	return &Service{
		cfg:      cfg.withDefaults(),
		producer: producer,
		queue:    queue,
		log:      log,
		now:      time.Now,
	}
}

// Start launches the cadence poller, the refill loop, the pool pre-warm,
// and the cron entries. It returns immediately; loops run until Stop.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	cfg := s.cfg
	if !cfg.Enabled {
		s.mu.Unlock()
		s.log.Info("scheduler disabled")
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.mu.Unlock()

	s.startCron(cfg)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		// Warm the ident pool before the first refill pass needs it.
		s.replenishPool(ctx)
		s.cadenceLoop(ctx)
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.refillLoop(ctx)
	}()

	s.log.Info("scheduler started",
		logx.Duration("poll", cfg.PollInterval),
		logx.Duration("news", cfg.NewsInterval),
		logx.Duration("weather", cfg.WeatherInterval),
		logx.Int("buffer_floor", cfg.BufferFloor),
	)
	return nil
}

func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	cr := s.cron
	s.cron = nil
	s.mu.Unlock()

	if cr != nil {
		<-cr.Stop().Done()
	}
	s.wg.Wait()
	s.log.Info("scheduler stopped")
}

// Apply installs new tuning. Interval changes take effect on the next
// poll; cron-backed entries are rebuilt when their schedule changed.
func (s *Service) Apply(cfg Config) {
	cfg = cfg.withDefaults()
	s.mu.Lock()
	old := s.cfg
	s.cfg = cfg
	running := s.running
	s.mu.Unlock()

	if running && (old.PoolReplenish != cfg.PoolReplenish || old.TimeAnnouncements != cfg.TimeAnnouncements) {
		s.restartCron(cfg)
	}
	s.log.Info("scheduler config applied")
}

func (s *Service) snapshot() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

func (s *Service) startCron(cfg Config) {
	cr := cron.New()
	if cfg.TimeAnnouncements {
		_, err := cr.AddFunc("0 * * * *", func() { s.airTimeCheck(context.Background()) })
		if err != nil {
			s.log.Error("time announcement cron failed", logx.Err(err))
		}
	}
	_, err := cr.AddFunc("@every "+cfg.PoolReplenish.String(), func() {
		s.replenishPool(context.Background())
	})
	if err != nil {
		s.log.Error("pool replenish cron failed", logx.Err(err))
	}
	cr.Start()

	s.mu.Lock()
	s.cron = cr
	s.mu.Unlock()
}

func (s *Service) restartCron(cfg Config) {
	s.mu.Lock()
	cr := s.cron
	s.cron = nil
	s.mu.Unlock()
	if cr != nil {
		<-cr.Stop().Done()
	}
	s.startCron(cfg)
}

func (s *Service) airTimeCheck(ctx context.Context) {
	seg, err := s.producer.TimeAnnouncement(ctx)
	if err != nil {
		s.log.Warn("time announcement failed", logx.Err(err))
		return
	}
	s.queue.Enqueue(seg)
}
