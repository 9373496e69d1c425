package audio

// MPEG audio frame handling borrowed from the usual libshout tables.

const (
	modeStereo = 0
	modeJoint  = 1
	modeDual   = 2
	modeMono   = 3
)

// mpegBitrate is indexed [version][layer][bitrate_index]; kbit/s. Version
// and layer use the raw header coding (version 1 is reserved, layer 0 does
// not exist).
var mpegBitrate = [4][4][16]int{
	{ // MPEG-2.5
		{},
		{0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160, 0},
		{0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160, 0},
		{0, 32, 48, 56, 64, 80, 96, 112, 128, 144, 160, 176, 192, 224, 256, 0},
	},
	{}, // reserved
	{ // MPEG-2
		{},
		{0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160, 0},
		{0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160, 0},
		{0, 32, 48, 56, 64, 80, 96, 112, 128, 144, 160, 176, 192, 224, 256, 0},
	},
	{ // MPEG-1
		{},
		{0, 32, 40, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 0},
		{0, 32, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 384, 0},
		{0, 32, 64, 96, 128, 160, 192, 224, 256, 288, 320, 352, 384, 416, 448, 0},
	},
}

// mpegSamplerate is indexed [version][samplerate_index]; Hz.
var mpegSamplerate = [4][4]int{
	{11025, 12000, 8000, 0}, // MPEG-2.5
	{0, 0, 0, 0},            // reserved
	{22050, 24000, 16000, 0},
	{44100, 48000, 32000, 0},
}

// ParseMPEG validates the four bytes at b as an MPEG-1/2 audio frame header.
func ParseMPEG(b []byte) (FrameHeader, bool) {
	var h FrameHeader
	if len(b) < 4 || b[0] != 0xFF || b[1]&0xE0 != 0xE0 {
		return h, false
	}
	head := uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
	version := byte(head>>19) & 0x03
	layer := byte(head>>17) & 0x03
	if version == 1 || layer == 0 {
		return h, false
	}
	bitrateIndex := byte(head>>12) & 0x0F
	samplerateIndex := byte(head>>10) & 0x03
	h.Version = version
	h.Layer = layer
	h.Padding = int(head>>9) & 0x01
	h.ChannelMode = byte(head>>6) & 0x03
	h.BitrateKbps = mpegBitrate[version][layer][bitrateIndex]
	h.Samplerate = mpegSamplerate[version][samplerateIndex]
	if h.BitrateKbps == 0 || h.Samplerate == 0 {
		return h, false
	}
	if h.ChannelMode == modeMono {
		h.Channels = 1
	} else {
		h.Channels = 2
	}
	switch {
	case layer == 3: // layer I
		h.Samples = 384
	case layer == 2: // layer II
		h.Samples = 1152
	case version == 3: // layer III, MPEG-1
		h.Samples = 1152
	default: // layer III, MPEG-2/2.5
		h.Samples = 576
	}
	h.FrameSize = h.Samples*h.BitrateKbps*1000/h.Samplerate/8 + h.Padding
	copy(h.Sync[:], b[:4])
	return h, true
}
