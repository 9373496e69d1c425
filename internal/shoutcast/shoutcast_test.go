package shoutcast

import (
	"bytes"
	"strings"
	"testing"
)

// drain reads the interleaved stream back apart: audio bytes and the
// metadata block texts in order.
func drain(t *testing.T, out []byte) (audio []byte, metas []string) {
	t.Helper()
	pos := 0
	since := 0
	for pos < len(out) {
		if since == MetaInterval {
			n := int(out[pos])
			pos++
			if pos+n*16 > len(out) {
				t.Fatalf("truncated metadata block at %d", pos)
			}
			metas = append(metas, strings.TrimRight(string(out[pos:pos+n*16]), "\x00"))
			pos += n * 16
			since = 0
			continue
		}
		audio = append(audio, out[pos])
		pos++
		since++
	}
	return audio, metas
}

func chunked(n, size int) [][]byte {
	var chunks [][]byte
	v := byte(0)
	for i := 0; i < n; i++ {
		c := make([]byte, size)
		for j := range c {
			c[j] = v
			v++
		}
		chunks = append(chunks, c)
	}
	return chunks
}

func TestSpliceEvery8192Bytes(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, true)
	w.SetTitle("Morning Show - with Alice")

	var want []byte
	for _, c := range chunked(18, 1000) { // 18000 bytes, two splices
		want = append(want, c...)
		if err := w.WriteChunk(c); err != nil {
			t.Fatalf("WriteChunk: %v", err)
		}
	}
	audio, metas := drain(t, buf.Bytes())
	if !bytes.Equal(audio, want) {
		t.Fatal("audio bytes corrupted by interleaving")
	}
	if len(metas) != 2 {
		t.Fatalf("metas = %d, want 2", len(metas))
	}
	if metas[0] != "StreamTitle='Morning Show - with Alice';" {
		t.Errorf("meta[0] = %q", metas[0])
	}
	if metas[1] != "" {
		t.Errorf("unchanged title re-sent: %q", metas[1])
	}
}

func TestMetaLengthIsCeil(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, true)
	w.SetTitle("abc") // "StreamTitle='abc';" = 18 bytes → 2 blocks
	block := w.metaBlock()
	if block[0] != 2 || len(block) != 1+32 {
		t.Fatalf("block = %d × 16 (%d bytes)", block[0], len(block))
	}
	if !bytes.HasPrefix(block[1:], []byte("StreamTitle='abc';")) {
		t.Fatalf("block text = %q", block[1:])
	}
	for _, b := range block[1+18:] {
		if b != 0 {
			t.Fatal("padding is not NUL")
		}
	}
}

func TestMetaUnchangedIsZeroByte(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, true)
	w.SetTitle("same")
	if b := w.metaBlock(); b[0] == 0 {
		t.Fatal("first title must be sent")
	}
	if b := w.metaBlock(); len(b) != 1 || b[0] != 0 {
		t.Fatalf("unchanged title block = % x", b)
	}
	w.SetTitle("different")
	if b := w.metaBlock(); b[0] == 0 {
		t.Fatal("changed title not sent")
	}
}

func TestTitleTruncated(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, true)
	w.SetTitle(strings.Repeat("x", 3000))
	block := w.metaBlock()
	if len(block) > 1+255*16 {
		t.Fatalf("metadata block too large: %d", len(block))
	}
}

func TestNoShoutcastPassthrough(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, false)
	w.SetTitle("ignored")
	var want []byte
	for _, c := range chunked(10, 1000) {
		want = append(want, c...)
		if err := w.WriteChunk(c); err != nil {
			t.Fatalf("WriteChunk: %v", err)
		}
	}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Fatal("passthrough output differs")
	}
	if w.TotalWritten() != int64(len(want)) {
		t.Errorf("TotalWritten = %d", w.TotalWritten())
	}
}

func TestHeaderBlock(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, true)
	err := w.EmitHeader(HeaderInfo{
		MIME:        "audio/mpeg",
		BitrateKbps: 192,
		Samplerate:  48000,
		Station:     "TestRadio",
	})
	if err != nil {
		t.Fatalf("EmitHeader: %v", err)
	}
	want := "Content-Type: audio/mpeg\nConnection: close\nicy-br: 192000\nicy-sr: 48000\nicy-name: TestRadio\nicy-metaint: 8192\n\n"
	if buf.String() != want {
		t.Errorf("header = %q", buf.String())
	}
}

func TestHeaderBlockNoMetadata(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, false)
	if err := w.EmitHeader(HeaderInfo{MIME: "audio/aac"}); err != nil {
		t.Fatalf("EmitHeader: %v", err)
	}
	want := "Content-Type: audio/aac\nConnection: close\n\n"
	if buf.String() != want {
		t.Errorf("header = %q", buf.String())
	}
}
