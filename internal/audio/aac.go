package audio

// aacSamplerate maps the ADTS sampling_frequency_index to Hz.
var aacSamplerate = [16]int{
	96000, 88200, 64000, 48000, 44100, 32000, 24000, 22050,
	16000, 12000, 11025, 8000, 7350, 0, 0, 0,
}

// ParseADTS validates the bytes at b as an ADTS fixed header (syncword 0xFFF,
// layer 0). The declared bitrate of an ADTS stream is not carried in the
// header; a nominal 16 kbit/s placeholder is reported and the PMT
// maximum-bitrate descriptor overrides it when present.
func ParseADTS(b []byte) (FrameHeader, bool) {
	var h FrameHeader
	if len(b) < 4 || b[0] != 0xFF || b[1]&0xF0 != 0xF0 {
		return h, false
	}
	if (b[1]>>1)&0x03 != 0 { // layer must be 00
		return h, false
	}
	srIndex := (b[2] >> 2) & 0x0F
	if srIndex >= 14 {
		return h, false
	}
	channelCfg := (b[2]&0x01)<<2 | (b[3]&0xC0)>>6
	h.Samplerate = aacSamplerate[srIndex]
	if h.Samplerate == 0 {
		return h, false
	}
	h.ChannelMode = channelCfg
	h.Channels = int(channelCfg)
	h.Samples = 1024
	h.BitrateKbps = 16
	if len(b) >= 6 {
		h.FrameSize = int(b[3]&0x03)<<11 | int(b[4])<<3 | int(b[5])>>5
	}
	copy(h.Sync[:], b[:4])
	return h, true
}

// LATMMagic derives the two sync bytes used to spot HE-AAC LATM frame starts
// from the AAC descriptor's profile_and_level byte, together with a plausible
// samplerate/bitrate pair for the icy header. LATM carries no self-describing
// header in-stream and full LATM parsing is not attempted; the values are a
// documented guess, good enough to announce the stream.
func LATMMagic(profileAndLevel byte) (magic1, magic2 byte, samplerate, bitrateKbps int) {
	magic1 = 0x56
	if profileAndLevel >= 0x30 {
		// HE-AAC v2 profile levels
		return magic1, 0xE2, 48000, 128
	}
	return magic1, 0xE1, 48000, 64
}

// ParseLATM matches the reverse-engineered LATM frame start: first byte
// magic1 (0x56), second byte equal to magic2 in its top six bits. Samplerate
// and bitrate come from the PMT-derived guess.
func ParseLATM(b []byte, magic2 byte, samplerate, bitrateKbps int) (FrameHeader, bool) {
	var h FrameHeader
	if len(b) < 2 || b[0] != 0x56 || b[1]&0xFC != magic2&0xFC {
		return h, false
	}
	h.Samplerate = samplerate
	h.BitrateKbps = bitrateKbps
	h.Channels = 2
	h.Samples = 1024
	if len(b) >= 4 {
		copy(h.Sync[:], b[:4])
	} else {
		copy(h.Sync[:], b)
	}
	return h, true
}
