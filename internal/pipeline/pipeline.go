// Package pipeline wires the transport stream framer, the PID
// demultiplexer, the table handlers, the audio extractor and the Shoutcast
// writer into one push-driven session. The whole pipeline runs on the
// caller's goroutine: bytes go in through Write, audio and metadata come out
// through the writer, and the only state is the programme record owned here.
package pipeline

import (
	"io"

	"github.com/tsradio/ts2cast/internal/audio"
	"github.com/tsradio/ts2cast/internal/demux"
	"github.com/tsradio/ts2cast/internal/logging"
	"github.com/tsradio/ts2cast/internal/metrics"
	"github.com/tsradio/ts2cast/internal/mpegts"
	"github.com/tsradio/ts2cast/internal/paramcache"
	"github.com/tsradio/ts2cast/internal/pes"
	"github.com/tsradio/ts2cast/internal/psi"
	"github.com/tsradio/ts2cast/internal/rds"
	"github.com/tsradio/ts2cast/internal/shoutcast"
)

// Options selects the session behaviour.
type Options struct {
	Programme string // cache key; empty disables cache use
	Shoutcast bool   // interleave StreamTitle metadata
	WantAC3   bool   // prefer the AC-3 elementary stream
	PreferRDS bool   // scan audio padding for RDS radiotext

	// EmitHeader controls the icy response header: fetch and serve mode
	// hold audio back until the header could be announced; filter mode
	// streams immediately and never writes a header block.
	EmitHeader bool

	Cache *paramcache.Cache // may be nil
}

// Pipeline is one streaming session.
type Pipeline struct {
	opts Options

	writer *shoutcast.Writer
	framer *mpegts.Framer
	demux  *demux.Demux
	rds    *rds.Decoder
	ext    *pes.Extractor

	aggs map[uint16]*psi.Aggregator

	// Programme state (spec: process-wide singleton; here per session).
	tsid          uint16
	haveTSID      bool
	serviceID     uint16
	streamType    audio.StreamType
	latmMagic2    byte
	latmSR        int
	latmBR        int
	bitrateKbps   int
	samplerate    int
	station       string
	title         string
	foundRDS      bool
	outputPayload bool
	payloadAdded  bool
	cacheWritten  bool

	bytesRead int64
}

// New builds a session writing to out.
func New(opts Options, out io.Writer) *Pipeline {
	p := &Pipeline{
		opts:   opts,
		writer: shoutcast.NewWriter(out, opts.Shoutcast),
		demux:  demux.New(),
		aggs:   make(map[uint16]*psi.Aggregator),
	}
	p.rds = rds.NewDecoder(p.onRadiotext)
	p.framer = mpegts.NewFramer(p.handlePacket)
	p.demux.OnSoftError = p.onSoftError
	if !opts.EmitHeader {
		p.outputPayload = true
	}

	logging.Printf("Subscribing to MPEG-TS PID 0, 17, 18 (PAT, SDT, EIT)")
	p.subscribeTable(demux.KindPAT, psi.PIDPAT, p.handlePATSection)
	p.subscribeTable(demux.KindSDT, psi.PIDSDT, p.handleSDTSection)
	p.subscribeTable(demux.KindEIT, psi.PIDEIT, p.handleEITSection)
	return p
}

// Writer exposes the Shoutcast writer (serve mode replaces its HeaderFunc).
func (p *Pipeline) Writer() *shoutcast.Writer { return p.writer }

// SetParams pre-populates the programme state from the parameter cache so
// the header can be announced as soon as the audio framing locks.
func (p *Pipeline) SetParams(pc paramcache.Params) {
	if pc.BitrateKbps > 0 {
		p.bitrateKbps = pc.BitrateKbps
	}
	if pc.Samplerate > 0 {
		p.samplerate = pc.Samplerate
	}
	if pc.Station != "" {
		p.station = pc.Station
	}
	logging.Printf("Found cached parameters for programme %s", pc.Programme)
}

// BytesRead returns the transport stream bytes consumed so far.
func (p *Pipeline) BytesRead() int64 { return p.bytesRead }

// BytesWritten returns the audio and metadata bytes emitted so far.
func (p *Pipeline) BytesWritten() int64 { return p.writer.TotalWritten() }

// LogSummary writes the shutdown accounting line.
func (p *Pipeline) LogSummary(cause string) {
	const mb = 1024 * 1024
	logging.Printf("%s after reading %.2f MB and writing %.2f MB.",
		cause, float64(p.bytesRead)/mb, float64(p.BytesWritten())/mb)
}

// Write pushes a chunk of the raw transport stream. A non-nil error means
// the session must stop (hard error or downstream gone).
func (p *Pipeline) Write(b []byte) (int, error) {
	p.bytesRead += int64(len(b))
	metrics.BytesRead.Add(float64(len(b)))
	n, err := p.framer.Write(b)
	if err != nil {
		return n, err
	}
	p.maybeEmitHeader()
	return n, nil
}

func (p *Pipeline) handlePacket(pkt mpegts.Packet) error {
	return p.demux.Dispatch(pkt)
}

// subscribeTable registers a table PID with its own section aggregator.
func (p *Pipeline) subscribeTable(kind demux.Kind, pid uint16, handle func([]byte)) {
	agg := psi.NewAggregator(kind.String())
	p.aggs[pid] = agg
	p.demux.Add(kind, pid, func(payload []byte, pusi bool) error {
		for _, sec := range agg.Feed(payload, pusi) {
			handle(sec)
		}
		return nil
	})
}

// onSoftError resets the state a transport or continuity error poisons:
// the audio framing and the section aggregator of the affected PID.
func (p *Pipeline) onSoftError(ch *demux.Channel, reason string) {
	if ch == nil {
		if p.ext != nil {
			p.ext.ResetSync()
		}
		return
	}
	if ch.Kind == demux.KindPayload && p.ext != nil {
		p.ext.ResetSync()
	}
	if agg, ok := p.aggs[ch.PID]; ok {
		agg.Reset()
	}
}

// ── PAT ──────────────────────────────────────────────────────────────────────

func (p *Pipeline) handlePATSection(sec []byte) {
	pat, err := psi.ParsePAT(sec)
	if err != nil {
		return
	}
	if p.haveTSID && pat.TransportStreamID == p.tsid {
		return
	}
	p.tsid = pat.TransportStreamID
	p.haveTSID = true
	for _, prog := range pat.Programs {
		if prog.PID <= psi.PIDSDT {
			continue // NIT and reserved space
		}
		if p.demux.Has(prog.PID) {
			continue
		}
		pid := prog.PID
		agg := psi.NewAggregator(demux.KindPMT.String())
		err := p.demux.Add(demux.KindPMT, pid, func(payload []byte, pusi bool) error {
			for _, s := range agg.Feed(payload, pusi) {
				p.handlePMTSection(s)
			}
			return nil
		})
		if err != nil {
			logging.Printf("PAT: cannot subscribe PMT PID %d: %v", pid, err)
			continue
		}
		p.aggs[pid] = agg
	}
}

// ── PMT ──────────────────────────────────────────────────────────────────────

func (p *Pipeline) handlePMTSection(sec []byte) {
	if p.payloadAdded {
		return
	}
	pmt, err := psi.ParsePMT(sec)
	if err != nil {
		return
	}
	stream, streamType, ok := p.selectStream(pmt)
	if !ok {
		return
	}
	p.serviceID = pmt.ProgramNumber
	p.streamType = streamType
	if stream.MaxBitrateKbps > 0 {
		p.bitrateKbps = stream.MaxBitrateKbps
	}
	if streamType == audio.StreamAACLATM {
		_, magic2, sr, br := audio.LATMMagic(stream.AACProfile)
		p.latmMagic2 = magic2
		p.latmSR = sr
		if p.bitrateKbps == 0 {
			p.bitrateKbps = br
		}
		p.latmBR = p.bitrateKbps
	}
	lang := stream.Language
	if lang == "" {
		lang = "unknown"
	}
	logging.Printf("PMT: selected %s audio PID %d for service %d (language %s)",
		streamType, stream.PID, p.serviceID, lang)

	p.ext = pes.NewExtractor(pes.Config{
		Type:           streamType,
		LATMMagic2:     p.latmMagic2,
		LATMSamplerate: p.latmSR,
		LATMBitrate:    p.latmBR,
		OnSync:         p.onAudioSync,
		OnChunk:        p.onAudioChunk,
		OutputEnabled:  func() bool { return p.outputPayload },
	})
	if err := p.demux.Add(demux.KindPayload, stream.PID, p.ext.Feed); err != nil {
		logging.Printf("PMT: cannot subscribe audio PID %d: %v", stream.PID, err)
		p.ext = nil
		return
	}
	p.payloadAdded = true
}

// selectStream picks the first elementary stream matching the AC-3
// preference.
func (p *Pipeline) selectStream(pmt *psi.PMT) (psi.PMTStream, audio.StreamType, bool) {
	for _, s := range pmt.Streams {
		if p.opts.WantAC3 {
			if s.Type == psi.StreamTypePrivate && s.HasAC3 {
				return s, audio.StreamAC3, true
			}
			continue
		}
		switch s.Type {
		case psi.StreamTypeMPEG1Audio, psi.StreamTypeMPEG2Audio:
			return s, audio.StreamMPEG, true
		case psi.StreamTypeAACADTS:
			return s, audio.StreamAAC, true
		case psi.StreamTypeAACLATM:
			return s, audio.StreamAACLATM, true
		}
	}
	return psi.PMTStream{}, 0, false
}

// ── SDT ──────────────────────────────────────────────────────────────────────

func (p *Pipeline) handleSDTSection(sec []byte) {
	sdt, err := psi.ParseSDT(sec)
	if err != nil {
		return
	}
	for i := range sdt.Services {
		svc := &sdt.Services[i]
		if !svc.Running() || svc.Type == 0xFF {
			continue
		}
		if !svc.RadioService() {
			if svc.Name != "" {
				logging.Printf("SDT: Warning: stream (also) contains unknown service type 0x%02x", svc.Type)
			}
			continue
		}
		if p.serviceID != 0 && svc.ServiceID != p.serviceID {
			continue
		}
		if p.station != svc.Name {
			p.station = svc.Name
			logging.Printf("SDT: Stream is station %s from network %s.", svc.Name, svc.Provider)
		}
		return
	}
}

// ── EIT ──────────────────────────────────────────────────────────────────────

func (p *Pipeline) handleEITSection(sec []byte) {
	eit, err := psi.ParseEIT(sec)
	if err != nil || eit.TableID != psi.TableIDEITNow {
		return
	}
	if p.serviceID != 0 && eit.ServiceID != p.serviceID {
		return
	}
	if p.foundRDS {
		return // radiotext owns the title now
	}
	for i := range eit.Events {
		ev := &eit.Events[i]
		if ev.RunningStatus != psi.RunningStatusActive || ev.Name == "" {
			continue
		}
		title := ev.Title()
		if title != p.title {
			p.title = title
			p.writer.SetTitle(title)
			logging.Printf("EIT: Current transmission `%s'", title)
		}
		return
	}
}

// ── audio ────────────────────────────────────────────────────────────────────

func (p *Pipeline) onAudioSync(h audio.FrameHeader) {
	switch p.streamType {
	case audio.StreamAAC, audio.StreamAACLATM:
		// The ADTS header carries no bitrate; keep the PMT value when
		// announced, otherwise the parser's nominal guess.
		if p.bitrateKbps == 0 {
			p.bitrateKbps = h.BitrateKbps
		}
	default:
		if h.BitrateKbps > 0 {
			p.bitrateKbps = h.BitrateKbps
		}
	}
	if h.Samplerate > 0 {
		p.samplerate = h.Samplerate
	}
	p.rds.SetSyncPattern(h.Sync[0], h.Sync[1])
	p.maybeEmitHeader()
}

func (p *Pipeline) onAudioChunk(chunk []byte) error {
	if p.opts.PreferRDS {
		p.rds.Scan(chunk)
	}
	return p.writer.WriteChunk(chunk)
}

func (p *Pipeline) onRadiotext(title string) {
	if !p.foundRDS {
		p.foundRDS = true
		logging.Printf("RDS: RDS data found, using RDS instead of EIT.")
	}
	p.title = title
	p.writer.SetTitle(title)
}

// ── header ───────────────────────────────────────────────────────────────────

// maybeEmitHeader announces the stream once station name, bitrate and
// samplerate are known and the audio framing is locked.
func (p *Pipeline) maybeEmitHeader() {
	if p.outputPayload || !p.opts.EmitHeader {
		return
	}
	if p.station == "" || p.bitrateKbps == 0 || p.samplerate == 0 {
		return
	}
	if p.ext == nil || !p.ext.Synced() {
		return
	}
	err := p.writer.EmitHeader(shoutcast.HeaderInfo{
		MIME:        p.streamType.MIME(),
		BitrateKbps: p.bitrateKbps,
		Samplerate:  p.samplerate,
		Station:     p.station,
	})
	if err != nil {
		return
	}
	p.outputPayload = true
	p.storeParams()
}

func (p *Pipeline) storeParams() {
	if p.opts.Cache == nil || p.opts.Programme == "" || p.cacheWritten {
		return
	}
	err := p.opts.Cache.Store(paramcache.Params{
		Programme:   p.opts.Programme,
		WantAC3:     p.opts.WantAC3,
		BitrateKbps: p.bitrateKbps,
		Samplerate:  p.samplerate,
		Station:     p.station,
		StreamType:  p.streamType.String(),
	})
	if err != nil {
		logging.Printf("Warning: cannot cache stream parameters: %v", err)
		return
	}
	p.cacheWritten = true
}
