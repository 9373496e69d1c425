// Package rds recovers Radio Data System messages smuggled into the padding
// bytes of MPEG audio frames on German and Swiss DVB radio services.
//
// The encapsulation (TS 101 154 ancillary data): right before each audio
// frame header the padding tail of the previous frame carries, in reverse
// byte order, a length byte, a 0xFD marker and the RDS bytes. Reassembled in
// arrival order the bytes form messages framed by 0xFE (start) and 0xFF
// (end), with 0xFD 0x01 / 0xFD 0x02 escaping literal 0xFE / 0xFF. A complete
// message is CRC-16 protected; radiotext (type 0x0A) carries the now-playing
// title in two 64-byte halves.
package rds

import (
	"bytes"
	"strings"

	"github.com/tsradio/ts2cast/internal/logging"
	"github.com/tsradio/ts2cast/internal/metrics"
	"github.com/tsradio/ts2cast/internal/psi"
)

const (
	markerEscape = 0xFD
	markerStart  = 0xFE
	markerEnd    = 0xFF

	maxMessage = 255
	carryLen   = 60 // bytes kept from the previous chunk for early matches
	halfLen    = 0x40

	typeRadiotext = 0x0A
)

// Decoder scans audio chunks for RDS data and assembles radiotext. onTitle is
// called with the UTF-8 now-playing string whenever the assembled radiotext
// settles on a new value.
type Decoder struct {
	onTitle func(string)

	sync0, sync1 byte // audio frame sync pattern (second byte masked 0xF0)
	haveSync     bool

	carry []byte

	msg    [maxMessage]byte
	msgLen int

	rt        [2 * halfLen]byte
	rtChanged bool
	lastTitle string
}

// NewDecoder returns a decoder publishing titles through onTitle.
func NewDecoder(onTitle func(string)) *Decoder {
	d := &Decoder{onTitle: onTitle}
	for i := range d.rt {
		d.rt[i] = ' '
	}
	return d
}

// SetSyncPattern records the first two bytes of the audio frame header the
// scanner should look for. Taken from the frame header at initial sync.
func (d *Decoder) SetSyncPattern(b0, b1 byte) {
	d.sync0, d.sync1 = b0, b1&0xF0
	d.haveSync = true
}

// Scan walks one audio chunk. The chunk is scanned for audio frame starts;
// the reversed padding tail in front of each one is harvested. The last
// bytes of the chunk are kept so a frame header early in the next chunk can
// still reach its padding.
func (d *Decoder) Scan(chunk []byte) {
	if !d.haveSync || len(chunk) < 2 {
		return
	}
	joined := chunk
	start := 0
	if len(d.carry) > 0 {
		joined = make([]byte, 0, len(d.carry)+len(chunk))
		joined = append(joined, d.carry...)
		joined = append(joined, chunk...)
		start = len(d.carry)
	}
	for i := start; i+1 < len(joined); i++ {
		if joined[i] != d.sync0 || joined[i+1]&0xF0 != d.sync1 {
			continue
		}
		if i < 32 {
			continue // not enough history to walk back into
		}
		if joined[i-1] != markerEscape {
			continue // no RDS tail on this frame
		}
		d.harvest(joined, i)
	}
	// Keep the tail for the next chunk.
	keep := len(chunk)
	if keep > carryLen {
		keep = carryLen
	}
	d.carry = append(d.carry[:0], chunk[len(chunk)-keep:]...)
}

// harvest walks the reversed padding tail in front of the frame header at
// offset i, feeding bytes into the message assembler.
func (d *Decoder) harvest(buf []byte, i int) {
	length := int(buf[i-2])
	if length == 0 {
		return
	}
	for j := 3; j < length+3; j++ {
		if i-j < 0 {
			return
		}
		c := buf[i-j]
		switch c {
		case markerStart:
			d.msgLen = 0
		case markerEnd:
			d.handleMessage(d.msg[:d.msgLen])
			d.msgLen = 0
		case markerEscape:
			j++
			if j >= length+3 || i-j < 0 {
				return
			}
			d.appendByte(markerEscape + buf[i-j])
		default:
			d.appendByte(c)
		}
	}
}

func (d *Decoder) appendByte(c byte) {
	if d.msgLen < maxMessage {
		d.msg[d.msgLen] = c
		d.msgLen++
	}
}

// handleMessage validates and dispatches one complete RDS message.
func (d *Decoder) handleMessage(msg []byte) {
	if len(msg) < 9 {
		return
	}
	if crc16(msg) != 0 {
		return // corrupt, drop silently
	}
	metrics.RDSMessages.Inc()
	if msg[4] == typeRadiotext {
		d.handleRadiotext(msg)
	}
	if d.rtChanged {
		d.rtChanged = false
		d.publish()
	}
}

// handleRadiotext merges one radiotext segment into its half of the buffer.
func (d *Decoder) handleRadiotext(msg []byte) {
	msgLen := int(msg[7])
	index := int(msg[8])
	if index > 1 {
		index = 1
	}
	if msgLen > halfLen+1 {
		msgLen = halfLen + 1
	}
	if msgLen > 0 {
		for i := msgLen - 1; i < halfLen; i++ {
			d.rt[i+index*halfLen] = ' '
		}
	}
	for i := 9; i < 8+msgLen && i < len(msg); i++ {
		c := ebuToLatin1(msg[i])
		pos := i - 9 + index*halfLen
		if d.rt[pos] != c {
			d.rtChanged = true
		}
		d.rt[pos] = c
	}
}

// publish post-processes the radiotext buffer and hands the title out.
func (d *Decoder) publish() {
	first, second := d.rt[:halfLen], d.rt[halfLen:]
	if bytes.Equal(first, second) {
		for i := range second {
			second[i] = ' '
		}
	}
	text := strings.TrimRight(string(d.rt[:]), " \x00")
	text = rewriteTitle(text)
	text = collapseSpaces(text)
	if text == "" || text == d.lastTitle {
		return
	}
	d.lastTitle = text
	title := psi.Latin1ToUTF8([]byte(text))
	logging.Printf("RDS: %s", title)
	if d.onTitle != nil {
		d.onTitle(title)
	}
}

// rewriteTitle normalises the common "title / artist" and "title von artist"
// radiotext forms to "artist - title".
func rewriteTitle(s string) string {
	if i := strings.Index(s, " / "); i >= 0 {
		return strings.TrimSpace(s[i+3:]) + " - " + strings.TrimSpace(s[:i])
	}
	if i := strings.Index(s, " von "); i >= 0 {
		return strings.TrimSpace(s[i+5:]) + " - " + strings.TrimSpace(s[:i])
	}
	return s
}

func collapseSpaces(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	space := false
	for i := 0; i < len(s); i++ {
		if s[i] == ' ' {
			space = true
			continue
		}
		if space && sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		space = false
		sb.WriteByte(s[i])
	}
	return sb.String()
}
