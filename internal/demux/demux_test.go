package demux

import (
	"testing"

	"github.com/tsradio/ts2cast/internal/mpegts"
)

func buildPacket(pid uint16, cc byte, pusi bool) mpegts.Packet {
	pkt := make([]byte, mpegts.PacketSize)
	pkt[0] = 0x47
	pkt[1] = byte(pid >> 8 & 0x1F)
	if pusi {
		pkt[1] |= 0x40
	}
	pkt[2] = byte(pid)
	pkt[3] = 0x10 | cc&0x0F
	return pkt
}

func TestDispatchRoutesByPID(t *testing.T) {
	d := New()
	var hits []uint16
	for _, pid := range []uint16{0, 17} {
		pid := pid
		d.Add(KindPAT, pid, func(payload []byte, pusi bool) error {
			hits = append(hits, pid)
			if len(payload) != 184 {
				t.Errorf("payload length = %d", len(payload))
			}
			return nil
		})
	}
	d.Dispatch(buildPacket(17, 0, false))
	d.Dispatch(buildPacket(999, 0, false)) // unknown PID, ignored
	d.Dispatch(buildPacket(0, 0, false))
	if len(hits) != 2 || hits[0] != 17 || hits[1] != 0 {
		t.Fatalf("hits = %v", hits)
	}
}

func TestContinuityBreakReported(t *testing.T) {
	d := New()
	var broken []uint16
	d.OnSoftError = func(ch *Channel, reason string) {
		if ch != nil {
			broken = append(broken, ch.PID)
		}
	}
	d.Add(KindPayload, 100, func([]byte, bool) error { return nil })

	d.Dispatch(buildPacket(100, 3, false))
	d.Dispatch(buildPacket(100, 4, false))
	if len(broken) != 0 {
		t.Fatalf("false continuity error: %v", broken)
	}
	d.Dispatch(buildPacket(100, 7, false)) // jump
	if len(broken) != 1 || broken[0] != 100 {
		t.Fatalf("broken = %v", broken)
	}
	// After the jump the new counter is the baseline again.
	d.Dispatch(buildPacket(100, 8, false))
	if len(broken) != 1 {
		t.Fatalf("baseline not reset: %v", broken)
	}
}

func TestFirstPacketNeverWarns(t *testing.T) {
	d := New()
	warned := false
	d.OnSoftError = func(*Channel, string) { warned = true }
	d.Add(KindPayload, 100, func([]byte, bool) error { return nil })
	d.Dispatch(buildPacket(100, 9, false))
	if warned {
		t.Fatal("first packet triggered a continuity warning")
	}
}

func TestScrambledAndErroredDropped(t *testing.T) {
	d := New()
	calls := 0
	var softErrors []string
	d.OnSoftError = func(_ *Channel, reason string) { softErrors = append(softErrors, reason) }
	d.Add(KindPayload, 100, func([]byte, bool) error { calls++; return nil })

	pkt := buildPacket(100, 0, false)
	pkt[3] |= 0xC0 // scrambled
	d.Dispatch(pkt)

	pkt = buildPacket(100, 0, false)
	pkt[1] |= 0x80 // transport error
	d.Dispatch(pkt)

	if calls != 0 {
		t.Fatal("handler saw a dropped packet")
	}
	if len(softErrors) != 1 || softErrors[0] != "transport error" {
		t.Fatalf("soft errors = %v", softErrors)
	}
}

func TestAdaptationOnlyDropped(t *testing.T) {
	d := New()
	calls := 0
	d.Add(KindPayload, 100, func([]byte, bool) error { calls++; return nil })
	pkt := buildPacket(100, 0, false)
	pkt[3] = 0x20 // adaptation only
	d.Dispatch(pkt)
	if calls != 0 {
		t.Fatal("adaptation-only packet dispatched")
	}
}

func TestChannelLimit(t *testing.T) {
	d := New()
	for i := 0; i < MaxChannels; i++ {
		if err := d.Add(KindPayload, uint16(i), func([]byte, bool) error { return nil }); err != nil {
			t.Fatalf("Add %d: %v", i, err)
		}
	}
	if err := d.Add(KindPayload, 5000, func([]byte, bool) error { return nil }); err == nil {
		t.Fatal("channel limit not enforced")
	}
	if err := d.Add(KindPayload, 3, func([]byte, bool) error { return nil }); err == nil {
		t.Fatal("duplicate PID accepted")
	}
}
