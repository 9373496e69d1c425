// Package audio parses the frame headers of the elementary stream formats a
// DVB radio service can carry: MPEG-1/2 layer I-III, MPEG-2/4 AAC with ADTS
// framing, HE-AAC in LATM (no in-stream header; detected via magic bytes
// derived from the PMT AAC descriptor) and AC-3.
package audio

import "fmt"

// StreamType identifies the selected elementary stream format.
type StreamType int

const (
	StreamMPEG StreamType = iota
	StreamAAC
	StreamAACLATM
	StreamAC3
)

// MIME returns the content type announced to the client.
func (t StreamType) MIME() string {
	switch t {
	case StreamAAC:
		return "audio/aac"
	case StreamAACLATM:
		return "audio/aacp"
	case StreamAC3:
		return "audio/ac3"
	default:
		return "audio/mpeg"
	}
}

func (t StreamType) String() string {
	switch t {
	case StreamAAC:
		return "AAC"
	case StreamAACLATM:
		return "HE-AAC"
	case StreamAC3:
		return "AC-3"
	default:
		return "MPEG"
	}
}

// FrameHeader is the parsed view of an audio frame header plus the derived
// fields the pipeline needs. Sync holds the first bytes of the frame as seen
// on the wire; the RDS scanner uses them to find frame starts.
type FrameHeader struct {
	Sync [4]byte

	Version byte // MPEG: 3=MPEG-1, 2=MPEG-2, 0=MPEG-2.5; AC-3: bsid
	Layer   byte // MPEG header coding: 3=layer I, 2=layer II, 1=layer III

	BitrateKbps int
	Samplerate  int
	Channels    int
	ChannelMode byte // MPEG mode / AC-3 acmod / AAC channel configuration
	Samples     int  // samples per frame and channel
	Padding     int  // MPEG padding bit
	FrameSize   int  // bytes per frame, 0 when not derivable
}

// Describe renders the "Synced to ..." log line for the format.
func (h *FrameHeader) Describe(t StreamType) string {
	switch t {
	case StreamAAC:
		return fmt.Sprintf("Synced to AAC, samplerate %d Hz, channel configuration %d", h.Samplerate, h.ChannelMode)
	case StreamAACLATM:
		return fmt.Sprintf("Synced to HE-AAC, guessed samplerate %d Hz, bitrate %d kBit/s", h.Samplerate, h.BitrateKbps)
	case StreamAC3:
		return fmt.Sprintf("Synced to AC-3, %d kbit/s, %d Hz, %d channels", h.BitrateKbps, h.Samplerate, h.Channels)
	default:
		return fmt.Sprintf("Synced to %s layer %d, %d kbps, %d Hz, %s",
			h.mpegStd(), mpegLayerNumber(h.Layer), h.BitrateKbps, h.Samplerate, h.mpegMode())
	}
}

func (h *FrameHeader) mpegStd() string {
	switch h.Version {
	case 3:
		return "MPEG-1"
	case 2:
		return "MPEG-2"
	case 0:
		return "MPEG-2.5"
	}
	return "MPEG-unknown"
}

func (h *FrameHeader) mpegMode() string {
	switch h.ChannelMode {
	case modeStereo:
		return "Stereo"
	case modeJoint:
		return "Joint Stereo"
	case modeDual:
		return "Dual"
	default:
		return "Mono"
	}
}

// mpegLayerNumber maps the header layer coding to the human layer number
// (header 3 = layer I).
func mpegLayerNumber(code byte) int {
	return 4 - int(code)
}
