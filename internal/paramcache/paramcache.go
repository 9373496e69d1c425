// Package paramcache persists the per-programme stream parameters (bitrate,
// samplerate, station name, stream type) in a small SQLite database. Fetch
// mode reads them back at session start so the icy response header can be
// announced as soon as the audio framing locks, without waiting for the SDT.
package paramcache

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Params is one cached parameter set. WantAC3 is part of the key: the same
// programme announces different parameters depending on the preferred
// elementary stream.
type Params struct {
	Programme   string
	WantAC3     bool
	BitrateKbps int
	Samplerate  int
	Station     string
	StreamType  string
}

// Cache wraps the database handle.
type Cache struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS params (
	programme   TEXT    NOT NULL,
	want_ac3    INTEGER NOT NULL,
	bitrate     INTEGER NOT NULL,
	samplerate  INTEGER NOT NULL,
	station     TEXT    NOT NULL,
	stream_type TEXT    NOT NULL,
	updated_at  INTEGER NOT NULL,
	PRIMARY KEY (programme, want_ac3)
)`

// Open opens (and if needed creates) the cache database at path.
func Open(path string) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("paramcache: open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("paramcache: create schema: %w", err)
	}
	return &Cache{db: db}, nil
}

// Close releases the database handle.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Lookup returns the cached parameters for (programme, wantAC3).
func (c *Cache) Lookup(programme string, wantAC3 bool) (Params, bool, error) {
	p := Params{Programme: programme, WantAC3: wantAC3}
	row := c.db.QueryRow(
		`SELECT bitrate, samplerate, station, stream_type FROM params WHERE programme = ? AND want_ac3 = ?`,
		programme, boolInt(wantAC3))
	err := row.Scan(&p.BitrateKbps, &p.Samplerate, &p.Station, &p.StreamType)
	if errors.Is(err, sql.ErrNoRows) {
		return p, false, nil
	}
	if err != nil {
		return p, false, fmt.Errorf("paramcache: lookup %s: %w", programme, err)
	}
	return p, true, nil
}

// Store upserts the parameters for the session's programme.
func (c *Cache) Store(p Params) error {
	_, err := c.db.Exec(
		`INSERT INTO params (programme, want_ac3, bitrate, samplerate, station, stream_type, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (programme, want_ac3) DO UPDATE SET
		   bitrate = excluded.bitrate,
		   samplerate = excluded.samplerate,
		   station = excluded.station,
		   stream_type = excluded.stream_type,
		   updated_at = excluded.updated_at`,
		p.Programme, boolInt(p.WantAC3), p.BitrateKbps, p.Samplerate, p.Station, p.StreamType,
		time.Now().Unix())
	if err != nil {
		return fmt.Errorf("paramcache: store %s: %w", p.Programme, err)
	}
	return nil
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
