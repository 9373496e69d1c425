// Package shoutcast implements the icy response header and the in-band
// metadata interleaving: every MetaInterval bytes of audio payload a
// length-prefixed "StreamTitle='...';" block is spliced into the output, a
// single zero byte when the title is unchanged.
package shoutcast

import (
	"fmt"
	"io"

	"github.com/tsradio/ts2cast/internal/metrics"
)

// MetaInterval is the fixed icy-metaint announced to clients.
const MetaInterval = 8192

// maxTitleLen caps the title text inside a metadata block.
const maxTitleLen = 2000

// maxStationLen caps the station name in the icy-name header.
const maxStationLen = 120

// HeaderInfo carries everything the pre-audio header block announces.
type HeaderInfo struct {
	MIME        string
	BitrateKbps int
	Samplerate  int
	Station     string
	Metadata    bool // announce icy-metaint
}

// Writer interleaves Shoutcast metadata into an audio stream. Not safe for
// concurrent use; the pipeline is single-threaded by design.
type Writer struct {
	out       io.Writer
	shoutcast bool

	// HeaderFunc emits the pre-audio header. The default writes the
	// CGI-style header block to the output; serve mode replaces it with
	// real HTTP response headers.
	HeaderFunc func(HeaderInfo) error

	title     string
	lastTitle string

	sinceMeta int   // payload bytes since the last metadata block
	written   int64 // total bytes written, metadata included
}

// NewWriter returns a writer. When shoutcast is false no metadata is ever
// spliced (the byte accounting still runs).
func NewWriter(out io.Writer, shoutcast bool) *Writer {
	w := &Writer{out: out, shoutcast: shoutcast}
	w.HeaderFunc = w.writeHeaderBlock
	return w
}

// SetTitle stages a new stream title. It is sent with the next metadata
// block; setting the same title twice is a no-op on the wire.
func (w *Writer) SetTitle(t string) {
	w.title = t
}

// Title returns the currently staged title.
func (w *Writer) Title() string { return w.title }

// TotalWritten returns all bytes written including metadata blocks.
func (w *Writer) TotalWritten() int64 { return w.written }

// EmitHeader announces the stream. Called exactly once, before any audio.
func (w *Writer) EmitHeader(h HeaderInfo) error {
	h.Metadata = w.shoutcast
	return w.HeaderFunc(h)
}

func (w *Writer) writeHeaderBlock(h HeaderInfo) error {
	station := h.Station
	if len(station) > maxStationLen {
		station = station[:maxStationLen]
	}
	var block string
	if h.Metadata {
		block = fmt.Sprintf("Content-Type: %s\nConnection: close\nicy-br: %d\nicy-sr: %d\nicy-name: %s\nicy-metaint: %d\n\n",
			h.MIME, h.BitrateKbps*1000, h.Samplerate, station, MetaInterval)
	} else {
		block = fmt.Sprintf("Content-Type: %s\nConnection: close\n\n", h.MIME)
	}
	n, err := io.WriteString(w.out, block)
	w.written += int64(n)
	return err
}

// WriteChunk writes one audio chunk, splicing a metadata block whenever the
// MetaInterval boundary falls inside it. Chunk sizes never exceed the
// interval (the PES extractor caps them at 2048 bytes).
func (w *Writer) WriteChunk(chunk []byte) error {
	if !w.shoutcast {
		// No splicing, but the interval accounting keeps running.
		w.sinceMeta = (w.sinceMeta + len(chunk)) % MetaInterval
		return w.writeAll(chunk)
	}
	if w.sinceMeta+len(chunk) <= MetaInterval {
		if err := w.writeAll(chunk); err != nil {
			return err
		}
		w.sinceMeta += len(chunk)
		return nil
	}
	first := MetaInterval - w.sinceMeta
	if err := w.writeAll(chunk[:first]); err != nil {
		return err
	}
	if err := w.writeAll(w.metaBlock()); err != nil {
		return err
	}
	second := chunk[first:]
	if err := w.writeAll(second); err != nil {
		return err
	}
	w.sinceMeta = len(second)
	return nil
}

// metaBlock renders the length-prefixed metadata block for the staged title.
// A zero length byte means "unchanged".
func (w *Writer) metaBlock() []byte {
	if w.title == w.lastTitle {
		return []byte{0}
	}
	w.lastTitle = w.title
	metrics.TitleUpdates.Inc()
	title := w.title
	if len(title) > maxTitleLen {
		title = title[:maxTitleLen]
	}
	text := "StreamTitle='" + title + "';"
	blocks := (len(text) + 15) / 16
	buf := make([]byte, 1+blocks*16)
	buf[0] = byte(blocks)
	copy(buf[1:], text)
	return buf
}

func (w *Writer) writeAll(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	n, err := w.out.Write(b)
	w.written += int64(n)
	metrics.BytesWritten.Add(float64(n))
	return err
}
