// Package psi reassembles DVB service information sections from transport
// stream packets and parses the four tables this tuner cares about: PAT, PMT,
// SDT and EIT.
package psi

import (
	"github.com/tsradio/ts2cast/internal/logging"
	"github.com/tsradio/ts2cast/internal/metrics"
)

// MaxSectionSize caps a reassembled section. The standard recommends ~4 KiB;
// anything larger is treated as stream corruption and the aggregator resets.
const MaxSectionSize = 5000

const stuffingTableID = 0xFF

// sectionTotal returns the full section length including the 3-byte header,
// or -1 when b does not yet hold the header.
func sectionTotal(b []byte) int {
	if len(b) < 3 {
		return -1
	}
	return (int(b[1]&0x0F)<<8 | int(b[2])) + 3
}

// Aggregator reassembles sections that may span several TS packets. One
// aggregator serves one table-carrying PID. Sections are CRC-32 validated;
// failures are dropped silently (counted in metrics).
type Aggregator struct {
	table string // for log lines: "SDT", "EIT", ...

	buf          []byte
	total        int // declared section length incl. header; -1 unknown
	continuation bool
}

// NewAggregator returns an aggregator labelled with the table name it serves.
func NewAggregator(table string) *Aggregator {
	return &Aggregator{table: table, total: -1}
}

// Reset drops any partially assembled section. Called on continuity errors.
func (a *Aggregator) Reset() {
	a.buf = a.buf[:0]
	a.total = -1
	a.continuation = false
}

// Feed consumes one TS packet payload and returns the CRC-valid sections that
// completed with it, in stream order. pusi is the packet's
// payload_unit_start_indicator; when set, the first payload byte is the
// pointer_field.
func (a *Aggregator) Feed(payload []byte, pusi bool) [][]byte {
	var out [][]byte
	if !pusi {
		if !a.continuation {
			return nil // mid-section noise while idle
		}
		a.buf = append(a.buf, payload...)
		if len(a.buf) > MaxSectionSize {
			logging.Printf("%s: section exceeds %d bytes, resetting aggregator", a.table, MaxSectionSize)
			a.Reset()
			return nil
		}
		return a.drain(out)
	}

	if len(payload) < 1 {
		return nil
	}
	ptr := int(payload[0])
	if 1+ptr > len(payload) {
		a.Reset()
		return nil
	}
	if a.continuation {
		// Bytes before the pointer target are the tail of the section
		// in flight.
		a.buf = append(a.buf, payload[1:1+ptr]...)
		out = a.drain(out)
		if a.continuation {
			// The pointer says a new section starts here; whatever is
			// still unfinished is abandoned.
			a.Reset()
		}
	}
	return a.start(payload[1+ptr:], out)
}

// start parses one or more sections beginning at b. Short sections chained
// within the same packet are all handled; a section running past the packet
// is carried over.
func (a *Aggregator) start(b []byte, out [][]byte) [][]byte {
	for len(b) > 0 {
		if b[0] == stuffingTableID {
			return out
		}
		total := sectionTotal(b)
		if total > MaxSectionSize {
			logging.Printf("%s: declared section length %d exceeds %d bytes, dropping", a.table, total, MaxSectionSize)
			return out
		}
		if total < 0 || total > len(b) {
			// Header or body incomplete; accumulate.
			a.buf = append(a.buf[:0], b...)
			a.total = total
			a.continuation = true
			return out
		}
		if sec := a.validate(b[:total]); sec != nil {
			out = append(out, sec)
		}
		b = b[total:]
		if len(b) < 5 {
			// Too short to hold even a section header plus CRC.
			return out
		}
	}
	return out
}

// drain completes the in-flight section once enough bytes have accumulated
// and feeds any trailing bytes back through start (chained sections).
func (a *Aggregator) drain(out [][]byte) [][]byte {
	if a.total < 0 {
		a.total = sectionTotal(a.buf)
		if a.total < 0 {
			return out
		}
		if a.total > MaxSectionSize {
			a.Reset()
			return out
		}
	}
	if len(a.buf) < a.total {
		return out
	}
	if sec := a.validate(a.buf[:a.total]); sec != nil {
		out = append(out, sec)
	}
	rest := a.buf[a.total:]
	a.total = -1
	a.continuation = false
	if len(rest) >= 5 && rest[0] != stuffingTableID {
		tail := make([]byte, len(rest))
		copy(tail, rest)
		a.buf = a.buf[:0]
		return a.start(tail, out)
	}
	a.buf = a.buf[:0]
	return out
}

// validate checks the section CRC and returns an owned copy, or nil.
func (a *Aggregator) validate(sec []byte) []byte {
	if len(sec) < 8 {
		return nil
	}
	if CRC32(sec) != 0 {
		metrics.CRCErrors.Inc()
		return nil
	}
	metrics.Sections.WithLabelValues(a.table).Inc()
	out := make([]byte, len(sec))
	copy(out, sec)
	return out
}
