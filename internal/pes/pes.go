// Package pes unwraps the packetised elementary stream on the audio PID,
// locks onto the audio frame framing and buffers payload-sized chunks for
// the writer.
package pes

import (
	"github.com/Comcast/gots"

	"github.com/tsradio/ts2cast/internal/audio"
	"github.com/tsradio/ts2cast/internal/logging"
)

// PES stream ids of interest. MPEG audio lives in 0xC0..0xDF, AC-3 in the
// private stream 0xBD; 0x89 carries a separate RDS PES on some transponders
// and is skipped without locking onto it.
const (
	streamIDPrivate  = 0xBD
	streamIDRDS      = 0x89
	streamIDAudioLo  = 0xC0
	streamIDAudioHi  = 0xDF
	pesFixedHeaderSz = 9
)

// chunkTarget is the nominal audio chunk size handed to the writer; the
// actual chunk is rounded down to whole audio frames when the frame size is
// known.
const chunkTarget = 2048

// Config wires an extractor into the pipeline.
type Config struct {
	Type audio.StreamType

	// LATM sync parameters derived from the PMT AAC descriptor.
	LATMMagic2     byte
	LATMSamplerate int
	LATMBitrate    int

	// OnSync fires each time the audio framing is found, including again
	// after ResetSync.
	OnSync func(audio.FrameHeader)
	// OnChunk receives each filled chunk; an error stops the stream.
	OnChunk func([]byte) error
	// OutputEnabled gates buffering: audio arriving before the response
	// header may be emitted is dropped.
	OutputEnabled func() bool
}

// Extractor is the per-session audio PID handler.
type Extractor struct {
	cfg Config

	streamID  byte
	remaining int
	pts       uint64
	hasPTS    bool

	synced      bool
	header      audio.FrameHeader
	payloadSize int
	buf         []byte
}

// NewExtractor returns an extractor for the configured stream type.
func NewExtractor(cfg Config) *Extractor {
	return &Extractor{cfg: cfg}
}

// Synced reports whether audio framing has been found.
func (e *Extractor) Synced() bool { return e.synced }

// Header returns the frame header seen at sync time.
func (e *Extractor) Header() audio.FrameHeader { return e.header }

// PTS returns the presentation timestamp of the current PES packet.
func (e *Extractor) PTS() (uint64, bool) { return e.pts, e.hasPTS }

// ResetSync drops framing state after a transport or continuity error.
func (e *Extractor) ResetSync() {
	e.synced = false
	e.buf = e.buf[:0]
}

// Feed consumes one TS payload of the audio PID.
func (e *Extractor) Feed(payload []byte, pusi bool) error {
	var es []byte
	if pusi {
		es = e.parsePES(payload)
	} else if e.streamID != 0 {
		es = payload
		if len(es) > e.remaining {
			es = es[:e.remaining]
		}
	}
	if es == nil {
		return nil
	}
	e.remaining -= len(es)

	if !e.synced {
		es = e.scanSync(es)
	}
	if !e.synced || len(es) == 0 || !e.cfg.OutputEnabled() {
		return nil
	}
	e.buf = append(e.buf, es...)
	for len(e.buf) > e.payloadSize {
		if err := e.cfg.OnChunk(e.buf[:e.payloadSize]); err != nil {
			return err
		}
		e.buf = append(e.buf[:0], e.buf[e.payloadSize:]...)
	}
	return nil
}

// parsePES unwraps a PES header and returns the elementary stream bytes in
// this packet, or nil when the packet is not usable audio.
func (e *Extractor) parsePES(b []byte) []byte {
	if len(b) < pesFixedHeaderSz {
		return nil
	}
	if b[0] != 0x00 || b[1] != 0x00 || b[2] != 0x01 {
		logging.Printf("Invalid PES header on audio PID")
		return nil
	}
	streamID := b[3]
	pesLen := int(b[4])<<8 | int(b[5])
	headerLen := int(b[8])

	if streamID != e.streamID {
		if streamID == streamIDRDS {
			return nil // separate RDS PES, not processed here
		}
		if streamID != streamIDPrivate && (streamID < streamIDAudioLo || streamID > streamIDAudioHi) {
			logging.Printf("Ignoring non-audio stream id 0x%x", streamID)
			return nil
		}
		if e.streamID != 0 {
			logging.Printf("Ignoring additional audio stream id 0x%x", streamID)
			return nil
		}
		e.streamID = streamID
	}
	if b[6]&0xC0 != 0x80 {
		logging.Printf("Invalid sync code in PES extension header")
		return nil
	}
	if b[6]&0x30 != 0 {
		logging.Printf("PES payload is scrambled, dropping")
		return nil
	}
	ind := int(b[7] >> 6)
	if (ind == gots.PTS_DTS_INDICATOR_BOTH || ind == gots.PTS_DTS_INDICATOR_ONLY_PTS) && len(b) >= 14 {
		e.pts = gots.ExtractTime(b[9:14])
		e.hasPTS = true
	}
	if pesLen > 0 {
		e.remaining = pesLen - (3 + headerLen)
	} else {
		e.remaining = int(^uint(0) >> 1) // unbounded PES
	}
	if pesFixedHeaderSz+headerLen >= len(b) {
		return nil
	}
	return b[pesFixedHeaderSz+headerLen:]
}

// scanSync slides over the elementary stream until a valid audio frame
// header is found, then sizes the chunk buffer and reports the format.
// Returns the stream from the frame start on success.
func (e *Extractor) scanSync(es []byte) []byte {
	need := 4
	switch e.cfg.Type {
	case audio.StreamAAC:
		need = 6
	case audio.StreamAC3:
		need = 7
	case audio.StreamAACLATM:
		need = 2
	}
	for len(es) >= need {
		h, ok := e.parseHeader(es)
		if !ok {
			es = es[1:]
			continue
		}
		e.header = h
		e.synced = true
		e.payloadSize = chunkSize(h.FrameSize)
		if cap(e.buf) < e.payloadSize+188 {
			e.buf = make([]byte, 0, e.payloadSize+188)
		}
		logging.Printf("%s", h.Describe(e.cfg.Type))
		if e.cfg.OnSync != nil {
			e.cfg.OnSync(h)
		}
		return es
	}
	return nil
}

func (e *Extractor) parseHeader(b []byte) (audio.FrameHeader, bool) {
	switch e.cfg.Type {
	case audio.StreamAAC:
		return audio.ParseADTS(b)
	case audio.StreamAACLATM:
		return audio.ParseLATM(b, e.cfg.LATMMagic2, e.cfg.LATMSamplerate, e.cfg.LATMBitrate)
	case audio.StreamAC3:
		return audio.ParseAC3(b)
	default:
		return audio.ParseMPEG(b)
	}
}

// chunkSize rounds the chunk target down to whole frames when possible.
func chunkSize(frameSize int) int {
	if frameSize > 0 && frameSize <= chunkTarget {
		return chunkTarget / frameSize * frameSize
	}
	return chunkTarget
}
