package streamer

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	logx "pirateradio/pkg/logx"
)

type httpServer struct {
	echo *echo.Echo
	svc  *Service
}

func newHTTPServer(s *Service) *httpServer {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	h := &httpServer{echo: e, svc: s}
	e.GET("/", h.handleIndex)
	e.GET("/stream", h.handleStream)
	e.GET("/status", h.handleStatus)
	e.GET("/healthz", h.handleHealthz)
	return h
}

func (h *httpServer) start(addr string) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- h.echo.Start(addr)
	}()
	// Give the listener a beat to fail fast on bind errors.
	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-time.After(200 * time.Millisecond):
		return nil
	}
}

func (h *httpServer) shutdown(ctx context.Context) {
	if err := h.echo.Shutdown(ctx); err != nil {
		h.svc.log.Warn("http shutdown", logx.Err(err))
	}
}

// handleStream attaches the client to the broadcast and parks until the
// fanout detaches it or the client goes away. All audio writes happen on
// the broadcast goroutine.
func (h *httpServer) handleStream(c echo.Context) error {
	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "audio/mpeg")
	resp.Header().Set("Cache-Control", "no-cache, no-store")
	resp.Header().Set("Connection", "keep-alive")
	resp.Header().Set("icy-name", h.svc.snapshot().Station)
	resp.WriteHeader(http.StatusOK)
	resp.Flush()

	l := &listener{
		id:    uuid.NewString(),
		w:     resp,
		flush: resp.Flush,
		done:  make(chan struct{}),
	}
	h.svc.attach(l)
	defer h.svc.detach(l.id, "disconnected")

	select {
	case <-c.Request().Context().Done():
	case <-l.done:
	}
	return nil
}

type statusResponse struct {
	Name           string             `json:"name"`
	NowPlaying     string             `json:"now_playing"`
	UpNext         string             `json:"up_next,omitempty"`
	PlaylistLength int                `json:"playlist_length"`
	Listeners      int                `json:"listeners"`
	UptimeSeconds  int64              `json:"uptime_s"`
	SegmentsAired  uint64             `json:"segments_aired"`
	BytesAired     uint64             `json:"bytes_aired"`
	BitrateKbps    int                `json:"bitrate_kbps"`
	Recent         []recentProduction `json:"recent,omitempty"`
}

type recentProduction struct {
	At    time.Time `json:"at"`
	Kind  string    `json:"kind"`
	Title string    `json:"title,omitempty"`
	OK    bool      `json:"ok"`
}

func (h *httpServer) handleStatus(c echo.Context) error {
	s := h.svc
	cfg := s.snapshot()

	upNext := ""
	if seg := s.queue.Peek(); seg != nil {
		upNext = seg.Title
		if upNext == "" {
			upNext = string(seg.Kind)
		}
	}

	var recent []recentProduction
	if s.store != nil {
		recs, err := s.store.RecentProductions(c.Request().Context(), 5)
		if err != nil {
			s.log.Debug("recent productions lookup failed", logx.Err(err))
		}
		for _, rec := range recs {
			recent = append(recent, recentProduction{
				At:    rec.Time,
				Kind:  rec.Kind,
				Title: rec.Title,
				OK:    rec.OK,
			})
		}
	}

	return c.JSON(http.StatusOK, statusResponse{
		Name:           cfg.Station,
		NowPlaying:     s.NowPlaying(),
		UpNext:         upNext,
		PlaylistLength: s.queue.Len(),
		Listeners:      s.ListenerCount(),
		UptimeSeconds:  int64(time.Since(s.started).Seconds()),
		SegmentsAired:  s.segsAired.Load(),
		BytesAired:     s.bytesAired.Load(),
		BitrateKbps:    cfg.BitrateKbps,
		Recent:         recent,
	})
}

func (h *httpServer) handleHealthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (h *httpServer) handleIndex(c echo.Context) error {
	name := h.svc.snapshot().Station
	page := `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>` + name + `</title>
<style>
body { background:#111; color:#eee; font-family:monospace; text-align:center; padding-top:10vh; }
h1 { letter-spacing:0.2em; }
#np { color:#8f8; min-height:1.5em; }
audio { margin-top:2em; width:320px; }
</style>
</head>
<body>
<h1>` + name + `</h1>
<p id="np"></p>
<audio id="player" controls autoplay src="/stream"></audio>
<script>
var player = document.getElementById('player');
player.addEventListener('error', function() {
  setTimeout(function() { player.src = '/stream'; player.play(); }, 3000);
});
player.addEventListener('stalled', function() {
  setTimeout(function() { player.load(); player.play(); }, 3000);
});
function poll() {
  fetch('/status').then(function(r) { return r.json(); }).then(function(s) {
    document.getElementById('np').textContent = s.now_playing || 'standing by';
  }).catch(function() {});
}
poll();
setInterval(poll, 10000);
</script>
</body>
</html>`
	return c.HTML(http.StatusOK, page)
}
