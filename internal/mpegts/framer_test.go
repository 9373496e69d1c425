package mpegts

import (
	"bytes"
	"errors"
	"testing"

	"pgregory.net/rapid"
)

func collector(out *[][]byte) func(Packet) error {
	return func(p Packet) error {
		pkt := make([]byte, PacketSize)
		copy(pkt, p)
		*out = append(*out, pkt)
		return nil
	}
}

func numberedPackets(n int) []byte {
	var stream []byte
	for i := 0; i < n; i++ {
		stream = append(stream, buildPacket(uint16(100+i), byte(i), false, []byte{byte(i)})...)
	}
	return stream
}

func TestFramerChunkBoundaries(t *testing.T) {
	stream := numberedPackets(10)
	var got [][]byte
	f := NewFramer(collector(&got))
	for i := 0; i < len(stream); i += 7 {
		end := i + 7
		if end > len(stream) {
			end = len(stream)
		}
		if _, err := f.Write(stream[i:end]); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if len(got) != 10 {
		t.Fatalf("emitted %d packets, want 10", len(got))
	}
	for i, pkt := range got {
		if !bytes.Equal(pkt, stream[i*PacketSize:(i+1)*PacketSize]) {
			t.Fatalf("packet %d corrupted", i)
		}
	}
}

func TestFramerSkipsLeadingGarbage(t *testing.T) {
	garbage := bytes.Repeat([]byte{0xAA}, 23)
	stream := append(garbage, numberedPackets(3)...)
	var got [][]byte
	f := NewFramer(collector(&got))
	if _, err := f.Write(stream); err != nil {
		t.Fatalf("write: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("emitted %d packets, want 3", len(got))
	}
	if f.Skipped() != uint64(len(garbage)) {
		t.Errorf("skipped %d bytes, want %d", f.Skipped(), len(garbage))
	}
}

func TestFramerResyncMidStream(t *testing.T) {
	stream := numberedPackets(1)
	stream = append(stream, 0xAA, 0xAA, 0xAA, 0xAA, 0xAA)
	stream = append(stream, numberedPackets(2)...)
	var got [][]byte
	f := NewFramer(collector(&got))
	if _, err := f.Write(stream); err != nil {
		t.Fatalf("write: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("emitted %d packets, want 3", len(got))
	}
	if f.Skipped() != 5 {
		t.Errorf("skipped %d bytes, want 5", f.Skipped())
	}
}

func TestFramerGivesUpAfterBudget(t *testing.T) {
	f := NewFramer(func(Packet) error { return nil })
	junk := bytes.Repeat([]byte{0xAA}, PacketSize)
	var err error
	for i := 0; i < 10 && err == nil; i++ {
		_, err = f.Write(junk)
	}
	if !errors.Is(err, ErrSyncLost) {
		t.Fatalf("err = %v, want ErrSyncLost", err)
	}
}

func TestFramerValidPacketResetsLossBudget(t *testing.T) {
	var got [][]byte
	f := NewFramer(collector(&got))
	pkt := buildPacket(50, 0, false, nil)
	for i := 0; i < 20; i++ {
		if _, err := f.Write(append([]byte{0xAA, 0xAA}, pkt...)); err != nil {
			t.Fatalf("round %d: %v", i, err)
		}
	}
	if len(got) != 20 {
		t.Fatalf("emitted %d packets, want 20", len(got))
	}
}

// Any chunking of a clean packet stream must reproduce it exactly.
func TestFramerChunkingProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 30).Draw(t, "packets")
		stream := numberedPackets(n)
		var got [][]byte
		f := NewFramer(collector(&got))
		for off := 0; off < len(stream); {
			size := rapid.IntRange(1, 400).Draw(t, "chunk")
			if off+size > len(stream) {
				size = len(stream) - off
			}
			if _, err := f.Write(stream[off : off+size]); err != nil {
				t.Fatalf("write: %v", err)
			}
			off += size
		}
		if len(got) != n {
			t.Fatalf("emitted %d packets, want %d", len(got), n)
		}
		for i, pkt := range got {
			if !bytes.Equal(pkt, stream[i*PacketSize:(i+1)*PacketSize]) {
				t.Fatalf("packet %d corrupted", i)
			}
		}
	})
}
