// Command ts2cast turns an MPEG transport stream carrying a radio service
// into a Shoutcast-style audio stream with in-band StreamTitle metadata taken
// from DVB tables (SDT/EIT) or from RDS data hidden in the audio padding.
//
// Three modes, selected by configuration:
//
//   - filter: stdin → stdout, the classic pipe (default)
//   - fetch:  pull the TS from the head-end (CGI: TVHEADEND + PROGRAMMNO)
//   - serve:  HTTP frontend, GET /stream/{programme} (TS2CAST_LISTEN)
package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tsradio/ts2cast/internal/config"
	"github.com/tsradio/ts2cast/internal/fetch"
	"github.com/tsradio/ts2cast/internal/logging"
	"github.com/tsradio/ts2cast/internal/mpegts"
	"github.com/tsradio/ts2cast/internal/paramcache"
	"github.com/tsradio/ts2cast/internal/pipeline"
	"github.com/tsradio/ts2cast/internal/server"
)

func main() {
	cfg := config.Load()

	noshout := flag.Bool("noshout", false, "disable shoutcast metadata, raw audio only")
	ac3 := flag.Bool("ac3", cfg.WantAC3, "prefer the AC-3 elementary stream")
	rdsFlag := flag.Bool("rds", cfg.PreferRDS, "prefer RDS radiotext over EIT")
	listen := flag.String("listen", cfg.ListenAddr, "HTTP listen address (serve mode)")
	upstream := flag.String("upstream", cfg.Upstream, "head-end base URL (fetch mode)")
	programme := flag.String("programme", cfg.Programme, "programme path at the head-end")
	cachePath := flag.String("cache", cfg.CachePath, "parameter cache database, empty disables")
	plain := flag.Bool("plain-log", cfg.PlainLog, "plain log lines instead of Apache errorlog format")
	flag.Parse()

	if *noshout {
		cfg.Shoutcast = false
	}
	cfg.WantAC3 = *ac3
	cfg.PreferRDS = *rdsFlag
	cfg.ListenAddr = *listen
	cfg.Upstream = *upstream
	cfg.Programme = *programme
	cfg.CachePath = *cachePath
	cfg.PlainLog = *plain
	logging.SetPlain(cfg.PlainLog)

	// A closed downstream must surface as a write error, not kill us.
	signal.Ignore(syscall.SIGPIPE)
	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	var cache *paramcache.Cache
	if cfg.CachePath != "" {
		var err error
		cache, err = paramcache.Open(cfg.CachePath)
		if err != nil {
			logging.Printf("Warning: parameter cache unavailable: %v", err)
		} else {
			defer cache.Close()
		}
	}

	os.Exit(run(ctx, cfg, cache))
}

func run(ctx context.Context, cfg *config.Config, cache *paramcache.Cache) int {
	switch {
	case cfg.ListenAddr != "":
		if err := server.New(cfg, cache).ListenAndServe(ctx); err != nil {
			logging.Printf("HTTP frontend failed: %v", err)
			return 1
		}
		return 0
	case cfg.Upstream != "" && cfg.Programme != "":
		return runFetch(ctx, cfg, cache)
	case cfg.CGI:
		logging.Printf("cgi mode: TVHEADEND and PROGRAMMNO must be set in the environment")
		return 1
	default:
		return runFilter(ctx, cfg)
	}
}

// runFetch pulls the TS from the head-end and streams to stdout (CGI mode).
func runFetch(ctx context.Context, cfg *config.Config, cache *paramcache.Cache) int {
	logging.Printf("Streaming %s in CGI mode.", shoutLabel(cfg.Shoutcast))
	p := pipeline.New(pipeline.Options{
		Programme:  cfg.Programme,
		Shoutcast:  cfg.Shoutcast,
		WantAC3:    cfg.WantAC3,
		PreferRDS:  cfg.PreferRDS,
		EmitHeader: true,
		Cache:      cache,
	}, os.Stdout)
	if cache != nil {
		if params, ok, err := cache.Lookup(cfg.Programme, cfg.WantAC3); err == nil && ok {
			p.SetParams(params)
		}
	}

	client := fetch.NewClient()
	client.UserAgent = cfg.UserAgent
	client.ForwardedFor = cfg.RemoteAddr
	client.StallBytesPerSec = cfg.StallBytesPerSec
	client.StallWindow = cfg.StallWindow

	err := client.Stream(ctx, cfg.UpstreamURL(""), p)
	switch {
	case err == nil:
		p.LogSummary("Upstream EOF")
		return 0
	case errors.Is(err, context.Canceled):
		p.LogSummary("Caught signal - closing cleanly")
		return 0
	case errors.Is(err, mpegts.ErrSyncLost):
		p.LogSummary("Lost synchronisation")
		return 1
	default:
		p.LogSummary("Streaming error (" + err.Error() + ")")
		// Downstream gone or upstream stalled: a normal end of session.
		return 0
	}
}

// runFilter is the classic pipe: stdin → stdout, audio output from the first
// packet on, no response header.
func runFilter(ctx context.Context, cfg *config.Config) int {
	logging.Printf("Streaming %s in FILTER mode.", shoutLabel(cfg.Shoutcast))
	p := pipeline.New(pipeline.Options{
		Shoutcast: cfg.Shoutcast,
		WantAC3:   cfg.WantAC3,
		PreferRDS: cfg.PreferRDS,
	}, os.Stdout)

	return readLoop(ctx, os.Stdin, p)
}

// readLoop reads packet-sized blocks. A short read gets one retry after a
// settle delay; persistent short reads count against the sync-loss budget.
func readLoop(ctx context.Context, r io.Reader, p *pipeline.Pipeline) int {
	const settleDelay = 450 * time.Millisecond
	buf := make([]byte, mpegts.PacketSize)
	shortReads := 0
	for {
		if ctx.Err() != nil {
			p.LogSummary("Caught signal - closing cleanly")
			return 0
		}
		n, err := io.ReadFull(r, buf)
		if errors.Is(err, io.EOF) {
			p.LogSummary("No bytes left to read - EOF")
			return 0
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			logging.Printf("Short read, only got %d of %d bytes, trying to resync", n, mpegts.PacketSize)
			time.Sleep(settleDelay)
			m, rerr := io.ReadFull(r, buf[n:])
			n += m
			shortReads++
			if shortReads >= mpegts.MaxSyncLosses {
				p.LogSummary("Lost synchronisation (short read budget exceeded)")
				return 1
			}
			if rerr != nil {
				p.LogSummary("No bytes left to read - EOF")
				return 0
			}
		} else if err != nil {
			logging.Printf("Read returned an error: %v", err)
			p.LogSummary("Input error")
			return 1
		} else {
			shortReads = 0
		}
		if _, werr := p.Write(buf); werr != nil {
			if errors.Is(werr, mpegts.ErrSyncLost) {
				p.LogSummary("Lost synchronisation")
				return 1
			}
			p.LogSummary("Write error (" + werr.Error() + ")")
			return 0
		}
	}
}

func shoutLabel(on bool) string {
	if on {
		return "with shoutcast StreamTitles"
	}
	return "without shoutcast support, mpeg only"
}
