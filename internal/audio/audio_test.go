package audio

import "testing"

// MPEG-1 layer II, 192 kbit/s, 48 kHz, stereo, no padding.
var mpeg1L2Header = []byte{0xFF, 0xFD, 0xA4, 0x00}

func TestParseMPEGLayer2(t *testing.T) {
	h, ok := ParseMPEG(mpeg1L2Header)
	if !ok {
		t.Fatal("valid header rejected")
	}
	if h.BitrateKbps != 192 {
		t.Errorf("bitrate = %d", h.BitrateKbps)
	}
	if h.Samplerate != 48000 {
		t.Errorf("samplerate = %d", h.Samplerate)
	}
	if h.Channels != 2 {
		t.Errorf("channels = %d", h.Channels)
	}
	if h.Samples != 1152 {
		t.Errorf("samples = %d", h.Samples)
	}
	if h.FrameSize != 576 {
		t.Errorf("framesize = %d", h.FrameSize)
	}
	if h.Sync != [4]byte{0xFF, 0xFD, 0xA4, 0x00} {
		t.Errorf("sync = % x", h.Sync)
	}
}

func TestParseMPEGRejects(t *testing.T) {
	cases := map[string][]byte{
		"no sync":             {0x00, 0xFD, 0xA4, 0x00},
		"broken sync":         {0xFF, 0x1D, 0xA4, 0x00},
		"reserved version":    {0xFF, 0xEB, 0xA4, 0x00},
		"reserved layer":      {0xFF, 0xF9, 0xA4, 0x00},
		"free format bitrate": {0xFF, 0xFD, 0x04, 0x00},
		"bad samplerate":      {0xFF, 0xFD, 0xAC, 0x00},
	}
	for name, b := range cases {
		if _, ok := ParseMPEG(b); ok {
			t.Errorf("%s: accepted % x", name, b)
		}
	}
}

func TestParseADTS(t *testing.T) {
	// MPEG-4 AAC-LC, 48 kHz, 2 channels, frame length 256.
	b := []byte{0xFF, 0xF1, 0x4C, 0x80, 0x20, 0x00, 0xFC}
	h, ok := ParseADTS(b)
	if !ok {
		t.Fatal("valid ADTS header rejected")
	}
	if h.Samplerate != 48000 {
		t.Errorf("samplerate = %d", h.Samplerate)
	}
	if h.Channels != 2 {
		t.Errorf("channels = %d", h.Channels)
	}
	if h.FrameSize != 256 {
		t.Errorf("framesize = %d", h.FrameSize)
	}
}

func TestParseADTSRejects(t *testing.T) {
	if _, ok := ParseADTS([]byte{0xFF, 0xF7, 0x4C, 0x80, 0x20, 0x00}); ok {
		t.Error("nonzero layer accepted")
	}
	if _, ok := ParseADTS([]byte{0xFF, 0xF1, 0x7C, 0x80, 0x20, 0x00}); ok {
		t.Error("reserved samplerate index accepted")
	}
}

func TestParseAC3(t *testing.T) {
	// 48 kHz, bitrate code 16 → 128 kbit/s, bsid 8, acmod 2 (L/R).
	b := []byte{0x0B, 0x77, 0x00, 0x00, 0x10, 0x40, 0x40}
	h, ok := ParseAC3(b)
	if !ok {
		t.Fatal("valid AC-3 header rejected")
	}
	if h.Samplerate != 48000 {
		t.Errorf("samplerate = %d", h.Samplerate)
	}
	if h.BitrateKbps != 128 {
		t.Errorf("bitrate = %d", h.BitrateKbps)
	}
	if h.Channels != 2 {
		t.Errorf("channels = %d", h.Channels)
	}
}

func TestParseAC3Rejects(t *testing.T) {
	if _, ok := ParseAC3([]byte{0x0B, 0x76, 0x00, 0x00, 0x10, 0x40, 0x40}); ok {
		t.Error("broken syncword accepted")
	}
	if _, ok := ParseAC3([]byte{0x0B, 0x77, 0x00, 0x00, 0xE6, 0x40, 0x40}); ok {
		t.Error("reserved bitrate code accepted")
	}
}

func TestLATMMagic(t *testing.T) {
	m1, m2, sr, br := LATMMagic(0x29)
	if m1 != 0x56 || m2 != 0xE1 || sr == 0 || br == 0 {
		t.Errorf("LATMMagic(0x29) = %#x %#x %d %d", m1, m2, sr, br)
	}
	_, m2, _, _ = LATMMagic(0x33)
	if m2 != 0xE2 {
		t.Errorf("high level magic2 = %#x", m2)
	}
}

func TestParseLATM(t *testing.T) {
	if _, ok := ParseLATM([]byte{0x56, 0xE0, 0x00, 0x00}, 0xE1, 48000, 64); !ok {
		t.Error("masked match rejected")
	}
	if _, ok := ParseLATM([]byte{0x57, 0xE0, 0x00, 0x00}, 0xE1, 48000, 64); ok {
		t.Error("wrong first byte accepted")
	}
}

func TestMIME(t *testing.T) {
	cases := map[StreamType]string{
		StreamMPEG:    "audio/mpeg",
		StreamAAC:     "audio/aac",
		StreamAACLATM: "audio/aacp",
		StreamAC3:     "audio/ac3",
	}
	for st, want := range cases {
		if got := st.MIME(); got != want {
			t.Errorf("%v.MIME() = %q, want %q", st, got, want)
		}
	}
}
