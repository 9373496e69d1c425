// Package config loads tuner settings from the environment. The original CGI
// deployment drives everything through Apache environment variables
// (TVHEADEND, PROGRAMMNO, MetaData and their REDIRECT_ twins); TS2CAST_*
// variables override them for non-CGI use.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the pipeline and frontend settings.
type Config struct {
	// Upstream head-end (e.g. http://tvheadend:9981/stream/channelnumber)
	// and the programme path component appended to it.
	Upstream  string
	Programme string

	// Stream shaping.
	Shoutcast bool // interleave StreamTitle metadata every 8192 bytes
	WantAC3   bool // prefer an AC-3 elementary stream over MPEG/AAC
	PreferRDS bool // prefer RDS radiotext over EIT present-event data

	// Serve mode.
	ListenAddr string // empty = no HTTP frontend
	MaxClients int    // concurrent streaming connections (tuner count)

	// Parameter cache. Empty disables caching.
	CachePath string

	// Upstream fetch watchdog: abort when throughput stays below
	// StallBytesPerSec for StallWindow.
	StallBytesPerSec int
	StallWindow      time.Duration

	// Logging.
	PlainLog bool

	// CGI passthrough: forwarded client identity for the upstream request.
	UserAgent  string
	RemoteAddr string

	// True when invoked by the web server (QUERY_STRING present).
	CGI bool
}

// Load reads the configuration from the environment. CGI semantics follow the
// original: in CGI mode the Shoutcast interleaver is only enabled when the
// client announced Icy-MetaData support (MetaData=1).
func Load() *Config {
	c := &Config{
		Upstream:         redirectEnv("TVHEADEND"),
		Programme:        redirectEnv("PROGRAMMNO"),
		Shoutcast:        getEnvBool("TS2CAST_SHOUTCAST", true),
		WantAC3:          getEnvBool("TS2CAST_AC3", false),
		PreferRDS:        getEnvBool("TS2CAST_RDS", false),
		ListenAddr:       os.Getenv("TS2CAST_LISTEN"),
		MaxClients:       getEnvInt("TS2CAST_MAX_CLIENTS", 8),
		CachePath:        getEnv("TS2CAST_CACHE", "/var/tmp/ts2cast.cache.db"),
		StallBytesPerSec: getEnvInt("TS2CAST_STALL_RATE", 2000),
		StallWindow:      getEnvDuration("TS2CAST_STALL_WINDOW", 5*time.Second),
		PlainLog:         getEnvBool("TS2CAST_PLAIN_LOG", false),
		UserAgent:        os.Getenv("HTTP_USER_AGENT"),
		RemoteAddr:       os.Getenv("REMOTE_ADDR"),
	}
	if _, ok := os.LookupEnv("QUERY_STRING"); ok {
		c.CGI = true
		c.Shoutcast = redirectEnv("MetaData") == "1"
	}
	if c.MaxClients <= 0 {
		c.MaxClients = 8
	}
	if c.StallBytesPerSec <= 0 {
		c.StallBytesPerSec = 2000
	}
	if c.StallWindow <= 0 {
		c.StallWindow = 5 * time.Second
	}
	return c
}

// UpstreamURL joins the head-end base URL and programme path. An http://
// scheme is assumed when none is given, matching the original CGI behaviour.
func (c *Config) UpstreamURL(programme string) string {
	if programme == "" {
		programme = c.Programme
	}
	base := strings.TrimSuffix(c.Upstream, "/")
	if base == "" || programme == "" {
		return ""
	}
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return base + "/" + programme
}

// redirectEnv returns key from the environment, preferring the REDIRECT_
// variant Apache sets for internally redirected requests.
func redirectEnv(key string) string {
	if v := os.Getenv("REDIRECT_" + key); v != "" {
		return v
	}
	return os.Getenv(key)
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "1" || strings.EqualFold(v, "true") || strings.EqualFold(v, "yes")
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
