package mpegts

import (
	"bytes"
	"errors"
	"time"

	"golang.org/x/time/rate"

	"github.com/tsradio/ts2cast/internal/logging"
	"github.com/tsradio/ts2cast/internal/metrics"
)

// MaxSyncLosses is the number of consecutive resynchronisation events that
// declares the stream unusable.
const MaxSyncLosses = 5

// ErrSyncLost is returned once MaxSyncLosses consecutive resync events have
// occurred without a valid packet in between.
var ErrSyncLost = errors.New("transport stream synchronisation lost")

// Framer accepts the raw byte stream in arbitrary-size chunks and calls emit
// for every validated 188-byte packet. Chunks need not align with packet
// boundaries; a carry-over buffer spans them. Framer implements io.Writer so
// it can sit directly under an HTTP body copy.
type Framer struct {
	emit func(Packet) error

	buf        []byte
	syncLosses int // consecutive; reset by every valid packet
	skipped    uint64
	warn       *rate.Limiter
}

// NewFramer returns a framer delivering packets to emit. An error from emit
// stops the stream (Write returns it).
func NewFramer(emit func(Packet) error) *Framer {
	return &Framer{
		emit: emit,
		buf:  make([]byte, 0, 4*PacketSize),
		warn: rate.NewLimiter(rate.Every(time.Second), 5),
	}
}

// Skipped returns the total number of bytes discarded while resynchronising.
func (f *Framer) Skipped() uint64 { return f.skipped }

// Write feeds a chunk of the transport stream. It returns ErrSyncLost after
// MaxSyncLosses consecutive resync events, or the first error returned by the
// emit callback.
func (f *Framer) Write(p []byte) (int, error) {
	f.buf = append(f.buf, p...)
	for {
		if len(f.buf) < PacketSize {
			return len(p), nil
		}
		if f.buf[0] != SyncByte {
			n := bytes.IndexByte(f.buf[1:], SyncByte)
			if n < 0 {
				// Nothing to sync on; keep a tail so a sync byte
				// split across chunks is still found.
				dropped := len(f.buf)
				if dropped > PacketSize-1 {
					f.buf = append(f.buf[:0], f.buf[dropped-(PacketSize-1):]...)
					dropped -= len(f.buf)
				} else {
					dropped = 0
				}
				if err := f.lostSync(dropped); err != nil {
					return len(p), err
				}
				return len(p), nil
			}
			f.buf = f.buf[n+1:]
			if err := f.lostSync(n + 1); err != nil {
				return len(p), err
			}
			continue
		}
		pkt := Packet(f.buf[:PacketSize])
		if err := f.emit(pkt); err != nil {
			return len(p), err
		}
		f.syncLosses = 0
		f.buf = f.buf[PacketSize:]
	}
}

// Pending returns how many carried-over bytes await the rest of a packet.
func (f *Framer) Pending() int { return len(f.buf) }

func (f *Framer) lostSync(skippedBytes int) error {
	f.syncLosses++
	f.skipped += uint64(skippedBytes)
	metrics.SyncLosses.Inc()
	if f.warn.Allow() {
		logString := "Lost synchronisation - skipping %d bytes (loss counter %d, aborting at %d)"
		logging.Printf(logString, skippedBytes, f.syncLosses, MaxSyncLosses)
	}
	if f.syncLosses >= MaxSyncLosses {
		return ErrSyncLost
	}
	return nil
}
