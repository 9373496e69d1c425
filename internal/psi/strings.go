package psi

import "strings"

// DVB SI text handling. Service names and event texts are announced with an
// optional leading character-table selector (EN 300 468 annex A); everything
// this tuner meets in practice is Latin-1 or close enough, so the selector is
// skipped rather than honoured and the bytes are upconverted to UTF-8. The
// full selector logic is deliberately not implemented.

// DecodeText converts a DVB SI string to UTF-8. A first byte below 0x20
// selects a character table and is skipped (three bytes for the 0x10
// multi-byte form). The 0x8A control code (line break) becomes a space;
// remaining 0x80..0x9F control codes are dropped.
func DecodeText(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	if b[0] == 0x10 {
		if len(b) >= 3 {
			b = b[3:]
		} else {
			b = nil
		}
	} else if b[0] < 0x20 {
		b = b[1:]
	}
	var sb strings.Builder
	sb.Grow(len(b))
	for _, c := range b {
		switch {
		case c == 0x8A:
			sb.WriteByte(' ')
		case c >= 0x80 && c <= 0x9F:
			// DVB control characters
		default:
			sb.WriteRune(rune(c)) // Latin-1 → UTF-8
		}
	}
	return sb.String()
}

// Latin1ToUTF8 upconverts a Latin-1 byte string to UTF-8 without any DVB
// selector or control handling.
func Latin1ToUTF8(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b))
	for _, c := range b {
		sb.WriteRune(rune(c))
	}
	return sb.String()
}
