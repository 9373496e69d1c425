package mpegts

import (
	"bytes"
	"testing"
)

// buildPacket returns a 188-byte packet with the given header fields and
// payload (0xFF padded).
func buildPacket(pid uint16, cc byte, pusi bool, payload []byte) []byte {
	pkt := make([]byte, PacketSize)
	for i := range pkt {
		pkt[i] = 0xFF
	}
	pkt[0] = SyncByte
	pkt[1] = byte(pid >> 8 & 0x1F)
	if pusi {
		pkt[1] |= 0x40
	}
	pkt[2] = byte(pid)
	pkt[3] = 0x10 | cc&0x0F
	copy(pkt[4:], payload)
	return pkt
}

func TestPacketAccessors(t *testing.T) {
	pkt := Packet(buildPacket(0x1ABC&0x1FFF, 7, true, []byte{1, 2, 3}))
	if !pkt.SyncValid() {
		t.Fatal("sync byte not recognised")
	}
	if got := pkt.PID(); got != 0x1ABC&0x1FFF {
		t.Errorf("PID = %#x", got)
	}
	if !pkt.PayloadUnitStart() {
		t.Error("payload_unit_start not set")
	}
	if pkt.TransportError() {
		t.Error("transport error set")
	}
	if pkt.ScramblingControl() != 0 {
		t.Error("scrambling set")
	}
	if got := pkt.ContinuityCounter(); got != 7 {
		t.Errorf("continuity counter = %d", got)
	}
	payload, ok := pkt.Payload()
	if !ok || len(payload) != PacketSize-HeaderSize {
		t.Fatalf("payload = %d bytes, ok=%v", len(payload), ok)
	}
	if !bytes.Equal(payload[:3], []byte{1, 2, 3}) {
		t.Errorf("payload = % x", payload[:3])
	}
}

func TestPacketAdaptationField(t *testing.T) {
	pkt := buildPacket(100, 0, false, nil)
	pkt[3] = 0x30 // adaptation + payload
	pkt[4] = 10   // adaptation field length
	p := Packet(pkt)
	payload, ok := p.Payload()
	if !ok {
		t.Fatal("payload not found after adaptation field")
	}
	if want := PacketSize - HeaderSize - 11; len(payload) != want {
		t.Errorf("payload length = %d, want %d", len(payload), want)
	}

	pkt[3] = 0x20 // adaptation only
	if _, ok := Packet(pkt).Payload(); ok {
		t.Error("adaptation-only packet reported a payload")
	}

	pkt[3] = 0x30
	pkt[4] = 183 // adaptation swallows the whole packet
	if _, ok := Packet(pkt).Payload(); ok {
		t.Error("oversized adaptation field reported a payload")
	}
}
