// Package demux routes transport stream packets to per-PID handlers and
// enforces continuity counter monotonicity.
package demux

import (
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/tsradio/ts2cast/internal/logging"
	"github.com/tsradio/ts2cast/internal/metrics"
	"github.com/tsradio/ts2cast/internal/mpegts"
)

// MaxChannels bounds the PID table; a healthy radio service needs five
// (PAT, SDT, EIT, one PMT, one payload).
const MaxChannels = 32

// Kind classifies what a PID carries.
type Kind int

const (
	KindPAT Kind = iota
	KindPMT
	KindSDT
	KindEIT
	KindPayload
)

func (k Kind) String() string {
	switch k {
	case KindPAT:
		return "PAT"
	case KindPMT:
		return "PMT"
	case KindSDT:
		return "SDT"
	case KindEIT:
		return "EIT"
	default:
		return "PAYLOAD"
	}
}

// Handler receives the packet payload (adaptation field stripped) and the
// payload_unit_start_indicator.
type Handler func(payload []byte, pusi bool) error

// Channel is one subscribed PID.
type Channel struct {
	PID     uint16
	Kind    Kind
	handler Handler
	lastCC  int // -1 until the first packet is seen
}

// Demux is the PID router. OnSoftError is invoked for transport errors and
// continuity breaks so the owner can reset dependent state (audio sync,
// section aggregators); it may be nil.
type Demux struct {
	channels map[uint16]*Channel

	// OnSoftError receives the affected channel; nil channel means the
	// error was not attributable to a subscribed PID.
	OnSoftError func(ch *Channel, reason string)

	warn *rate.Limiter
}

// New returns an empty demultiplexer.
func New() *Demux {
	return &Demux{
		channels: make(map[uint16]*Channel),
		warn:     rate.NewLimiter(rate.Every(time.Second), 5),
	}
}

// Add subscribes a PID. Adding a known PID or exceeding MaxChannels is an
// error.
func (d *Demux) Add(kind Kind, pid uint16, h Handler) error {
	if len(d.channels) >= MaxChannels {
		return fmt.Errorf("demux: more than %d channels", MaxChannels)
	}
	if _, ok := d.channels[pid]; ok {
		return fmt.Errorf("demux: PID %d already subscribed", pid)
	}
	if kind == KindPMT || kind == KindPayload {
		logging.Printf("Subscribing to MPEG-TS PID %d (type %s)", pid, kind)
	}
	d.channels[pid] = &Channel{PID: pid, Kind: kind, handler: h, lastCC: -1}
	return nil
}

// Has reports whether the PID is subscribed.
func (d *Demux) Has(pid uint16) bool {
	_, ok := d.channels[pid]
	return ok
}

// Dispatch routes one packet. Soft conditions (transport error, scrambling,
// adaptation-only, unknown PID, continuity break) never return an error;
// only handler failures do.
func (d *Demux) Dispatch(pkt mpegts.Packet) error {
	pid := pkt.PID()
	ch := d.channels[pid]

	if pkt.TransportError() {
		if d.warn.Allow() {
			logging.Printf("Warning: transport error in PID %d", pid)
		}
		d.softError(ch, "transport error")
		return nil
	}
	if pkt.ScramblingControl() != 0 {
		if d.warn.Allow() {
			logging.Printf("Warning: PID %d is scrambled", pid)
		}
		return nil
	}
	payload, ok := pkt.Payload()
	if !ok || ch == nil {
		return nil
	}
	d.continuityCheck(ch, pkt.ContinuityCounter())
	return ch.handler(payload, pkt.PayloadUnitStart())
}

// continuityCheck verifies cc == last+1 mod 16 and reports discontinuities.
// The first packet of a PID never warns.
func (d *Demux) continuityCheck(ch *Channel, cc byte) {
	if ch.lastCC >= 0 && byte(ch.lastCC+1)&0x0F != cc {
		metrics.ContinuityErrors.Inc()
		if d.warn.Allow() {
			logging.Printf("TS continuity error (pid: %d)", ch.PID)
		}
		d.softError(ch, "continuity")
	}
	ch.lastCC = int(cc)
}

func (d *Demux) softError(ch *Channel, reason string) {
	if d.OnSoftError != nil {
		d.OnSoftError(ch, reason)
	}
}
