package psi

import (
	"encoding/binary"
	"strings"
)

// DVB service descriptor tag (EN 300 468 §6.2.33).
const descriptorService = 0x48

// Service types accepted as "radio" by this tuner. 0x01 covers one known
// broken transponder announcing an SD-TV type on a pure radio service.
var radioServiceTypes = map[byte]bool{
	0x01: true,
	0x02: true,
	0x07: true,
	0x0A: true,
}

// SDTService is one entry of the service description loop.
type SDTService struct {
	ServiceID     uint16
	RunningStatus byte
	Type          byte
	Provider      string
	Name          string
}

// SDT is a parsed service description table section (actual TS).
type SDT struct {
	TransportStreamID uint16
	OriginalNetworkID uint16
	Services          []SDTService
}

// ParseSDT decodes a CRC-valid SDT section.
func ParseSDT(sec []byte) (*SDT, error) {
	const hdrLen = 11
	if len(sec) < hdrLen+4 || sec[0] != TableIDSDT {
		return nil, errShortSection
	}
	total := sectionTotal(sec)
	if total > len(sec) {
		return nil, errShortSection
	}
	sdt := &SDT{
		TransportStreamID: binary.BigEndian.Uint16(sec[3:5]),
		OriginalNetworkID: binary.BigEndian.Uint16(sec[8:10]),
	}
	end := total - 4
	pos := hdrLen
	for pos+5 <= end {
		svc := SDTService{
			ServiceID:     binary.BigEndian.Uint16(sec[pos : pos+2]),
			RunningStatus: sec[pos+3] >> 5,
		}
		descLoopLen := int(sec[pos+3]&0x0F)<<8 | int(sec[pos+4])
		pos += 5
		descEnd := pos + descLoopLen
		if descEnd > end {
			descEnd = end
		}
		for pos+2 <= descEnd {
			tag, dlen := sec[pos], int(sec[pos+1])
			pos += 2
			if pos+dlen > descEnd {
				break
			}
			if tag == descriptorService && dlen >= 3 {
				parseServiceDescriptor(sec[pos:pos+dlen], &svc)
			}
			pos += dlen
		}
		pos = descEnd
		sdt.Services = append(sdt.Services, svc)
	}
	return sdt, nil
}

// RadioService reports whether the entry is a usable radio service.
func (s *SDTService) RadioService() bool {
	return radioServiceTypes[s.Type] && s.Name != ""
}

// Running reports the DVB running_status values accepted for selection:
// 4 ("running") and 1 (seen on broadcasters that never flip the flag).
func (s *SDTService) Running() bool {
	return s.RunningStatus == 4 || s.RunningStatus == 1
}

// parseServiceDescriptor decodes tag 0x48: service_type, then a
// length-prefixed provider name and a length-prefixed service name.
func parseServiceDescriptor(d []byte, svc *SDTService) {
	if len(d) < 3 {
		return
	}
	svc.Type = d[0]
	provLen := int(d[1])
	if 2+provLen+1 > len(d) {
		return
	}
	svc.Provider = strings.TrimSpace(DecodeText(d[2 : 2+provLen]))
	nameOff := 2 + provLen
	nameLen := int(d[nameOff])
	nameOff++
	if nameOff+nameLen > len(d) {
		return
	}
	svc.Name = strings.TrimSpace(DecodeText(d[nameOff : nameOff+nameLen]))
}
