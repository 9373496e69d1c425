// Package server is the HTTP frontend: one streaming pipeline per request,
// the way a network tuner serves live channels, plus health and metrics
// endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/net/netutil"

	"github.com/tsradio/ts2cast/internal/config"
	"github.com/tsradio/ts2cast/internal/fetch"
	"github.com/tsradio/ts2cast/internal/logging"
	"github.com/tsradio/ts2cast/internal/metrics"
	"github.com/tsradio/ts2cast/internal/paramcache"
	"github.com/tsradio/ts2cast/internal/pipeline"
	"github.com/tsradio/ts2cast/internal/shoutcast"
)

// Server streams programmes from the configured head-end.
type Server struct {
	cfg   *config.Config
	cache *paramcache.Cache // may be nil
}

// New returns a server. cache may be nil.
func New(cfg *config.Config, cache *paramcache.Cache) *Server {
	return &Server{cfg: cfg, cache: cache}
}

// Handler returns the frontend routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/stream/", s.handleStream)
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.Handle("/metrics", metrics.Handler())
	return mux
}

// ListenAndServe runs the frontend until ctx is cancelled. The listener is
// capped at MaxClients+2 concurrent connections, two above the tuner count as
// headroom for health and metrics requests (the two slots are not reserved
// for them); a client beyond the cap waits in the accept queue.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", s.cfg.ListenAddr, err)
	}
	ln = netutil.LimitListener(ln, s.cfg.MaxClients+2) // + health/metrics headroom

	srv := &http.Server{Handler: s.Handler()}
	go func() {
		<-ctx.Done()
		srv.Close()
	}()
	logging.Printf("Listening on %s", s.cfg.ListenAddr)
	err = srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintln(w, `{"status":"ok"}`)
}

// handleStream runs one fetch pipeline for GET /stream/{programme}.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	programme := strings.TrimPrefix(r.URL.Path, "/stream/")
	if programme == "" || strings.Contains(programme, "/") {
		http.NotFound(w, r)
		return
	}
	upstream := s.cfg.UpstreamURL(programme)
	if upstream == "" {
		http.Error(w, "no upstream head-end configured", http.StatusServiceUnavailable)
		return
	}
	wantMeta := s.cfg.Shoutcast && r.Header.Get("Icy-MetaData") == "1"

	p := pipeline.New(pipeline.Options{
		Programme:  programme,
		Shoutcast:  wantMeta,
		WantAC3:    s.cfg.WantAC3,
		PreferRDS:  s.cfg.PreferRDS,
		EmitHeader: true,
		Cache:      s.cache,
	}, &flushWriter{w: w})

	// Replace the CGI-style header block with real response headers.
	flusher, _ := w.(http.Flusher)
	p.Writer().HeaderFunc = func(h shoutcast.HeaderInfo) error {
		hdr := w.Header()
		hdr.Set("Content-Type", h.MIME)
		hdr.Set("Connection", "close")
		hdr.Set("icy-br", strconv.Itoa(h.BitrateKbps*1000))
		hdr.Set("icy-sr", strconv.Itoa(h.Samplerate))
		hdr.Set("icy-name", h.Station)
		if h.Metadata {
			hdr.Set("icy-metaint", strconv.Itoa(shoutcast.MetaInterval))
		}
		w.WriteHeader(http.StatusOK)
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	}

	if s.cache != nil {
		if params, ok, err := s.cache.Lookup(programme, s.cfg.WantAC3); err == nil && ok {
			p.SetParams(params)
		}
	}

	client := fetch.NewClient()
	client.UserAgent = r.UserAgent()
	client.ForwardedFor = r.RemoteAddr
	client.StallBytesPerSec = s.cfg.StallBytesPerSec
	client.StallWindow = s.cfg.StallWindow

	logging.Printf("Streaming programme %s for %s %s", programme, r.RemoteAddr,
		streamModeLabel(wantMeta))
	err := client.Stream(r.Context(), upstream, p)
	switch {
	case err == nil:
		p.LogSummary("Upstream EOF")
	case errors.Is(err, context.Canceled):
		p.LogSummary("Client disconnected")
	default:
		p.LogSummary(fmt.Sprintf("Streaming error (%v)", err))
	}
}

// flushWriter flushes after every write so audio leaves the process at chunk
// granularity instead of sitting in the response buffer.
type flushWriter struct {
	w http.ResponseWriter
}

func (f *flushWriter) Write(b []byte) (int, error) {
	n, err := f.w.Write(b)
	if fl, ok := f.w.(http.Flusher); ok {
		fl.Flush()
	}
	return n, err
}

func streamModeLabel(meta bool) string {
	if meta {
		return "with shoutcast StreamTitles"
	}
	return "without shoutcast support, mpeg only"
}
