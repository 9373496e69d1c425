package audio

// AC-3 syncframe header fields per ATSC A/52 §5.4.1.

var ac3Samplerate = [4]int{48000, 44100, 32000, 0}

var ac3Bitrate = [64]int{
	32, 32, 40, 40, 48, 48, 56, 56,
	64, 64, 80, 80, 96, 96, 112, 112,
	128, 128, 160, 160, 192, 192, 224, 224,
	256, 256, 320, 320, 384, 384, 448, 448,
	512, 512, 576, 576, 640, 640, 0, 0,
}

var ac3Channels = [8]int{2, 1, 2, 3, 3, 4, 4, 5}

// ParseAC3 validates the bytes at b as an AC-3 syncframe header
// (0x0B 0x77 syncword).
func ParseAC3(b []byte) (FrameHeader, bool) {
	var h FrameHeader
	if len(b) < 7 || b[0] != 0x0B || b[1] != 0x77 {
		return h, false
	}
	h.Samplerate = ac3Samplerate[(b[4]>>6)&0x03]
	h.BitrateKbps = ac3Bitrate[b[4]&0x3F]
	h.Version = b[5] >> 3 // bsid
	h.ChannelMode = b[6] >> 5
	h.Channels = ac3Channels[h.ChannelMode]
	if h.Version == 0 || h.BitrateKbps == 0 || h.Samplerate == 0 {
		return h, false
	}
	copy(h.Sync[:], b[:4])
	return h, true
}
