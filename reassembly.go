/* pspxlinkbridge - USB-to-XLink Kai bridge for the PSP ad-hoc WiFi plugin
 *
 * Protocol Decoder & Reassembler: demultiplexes HostFS/Async/Bulk
 * magic frames and rebuilds stitched WiFi frames from consecutive
 * 512-byte USB packets. Pure and single-threaded -- called only from
 * the Bus Pump, per spec.md section 4.2.
 */

package main

// EgressSink receives fully reassembled WiFi frames. Send must be
// non-blocking; the caller (XLink Kai client) is expected to enqueue.
type EgressSink interface {
	Send(frame []byte)
}

// Reassembler holds all receive-side protocol state: the stitching
// buffer, the stitching flag, and the receive-side dedup memo. It is
// exclusive to the Bus Pump thread, matching spec.md's "Reassembly
// buffer and stitching flag: exclusive to Bus Pump" rule.
type Reassembler struct {
	engine *EngineState
	sink   EgressSink
	log    *Logger

	buf       [MaxWifiFrame]byte
	filled    int
	target    int
	stitching bool

	lastFrame []byte // receive-side dedup memo
}

// NewReassembler creates a Reassembler delivering complete frames to
// sink and recording protocol anomalies to log.
func NewReassembler(engine *EngineState, sink EgressSink, log *Logger) *Reassembler {
	return &Reassembler{engine: engine, sink: sink, log: log}
}

// IsStitching reports whether an oversized inbound WiFi frame is
// currently being accumulated. The Bus Pump consults this to decide
// whether it is safe to issue a write this turn.
func (r *Reassembler) IsStitching() bool {
	return r.stitching
}

// Feed processes one received USB packet. It is the sole entry point
// invoked by the Bus Pump after a successful bulk-read.
func (r *Reassembler) Feed(pkt []byte) {
	if len(pkt) < SizeHostFsCommand {
		r.debugf("short packet (%d bytes), dropped", len(pkt))
		return
	}

	hdr := decodeHostFsCommand(pkt)
	switch hdr.Magic {
	case MagicHostFS:
		r.handleHostFS(hdr)
	case MagicAsync:
		r.handleAsync(pkt)
	case MagicBulk:
		r.debugf("BULK frame ignored")
	default:
		r.debugf("magic not recognized: %#x", hdr.Magic)
	}
}

func (r *Reassembler) handleHostFS(hdr HostFsCommand) {
	if hdr.Command == HelloCommand {
		r.engine.clearHelloPending()
		return
	}

	r.log.Begin().Error('!', "HostFS: handshake refused, command=%#x", hdr.Command).Commit()
	r.engine.setFatal()
}

func (r *Reassembler) handleAsync(pkt []byte) {
	cmd := decodeAsyncCommand(pkt)
	if cmd.Channel != UserChannel {
		r.debugf("async channel %d ignored", cmd.Channel)
		return
	}

	if r.stitching {
		if len(pkt) > SizeAsyncCommand+SizeAsyncSubHeader {
			sub := decodeAsyncSubHeader(pkt[SizeAsyncCommand:])
			if sub.Magic == MagicDebugPrint {
				// Resync: a fresh sub-header arrived before the
				// previous stitch finished. Emit what we have and
				// reprocess this packet as a new frame.
				r.emitPartial()
				r.handleAsyncNotStitching(pkt)
				return
			}
		}
		r.appendContinuation(pkt)
		return
	}

	r.handleAsyncNotStitching(pkt)
}

func (r *Reassembler) handleAsyncNotStitching(pkt []byte) {
	if len(pkt) <= SizeAsyncCommand+SizeAsyncSubHeader {
		r.debugf("async packet too short for sub-header (%d bytes), dropped", len(pkt))
		return
	}

	sub := decodeAsyncSubHeader(pkt[SizeAsyncCommand:])

	switch {
	case sub.isRecvPacket():
		r.beginFrame(sub, pkt[SizeAsyncCommand+SizeAsyncSubHeader:])
	case sub.isRecvDebug():
		r.log.Begin().Debug('#', "device debug: %s", string(pkt[SizeAsyncCommand+SizeAsyncSubHeader:])).Commit()
	default:
		r.debugf("unexpected sub-header: %s", sub)
	}
}

func (r *Reassembler) beginFrame(sub AsyncSubHeader, payload []byte) {
	target := int(sub.Size)
	if target < 0 || target > MaxWifiFrame {
		r.log.Begin().Error('!', "reassembly: claimed size %d exceeds buffer, dropped", target).Commit()
		r.resetStitch()
		return
	}

	r.target = target
	r.filled = copy(r.buf[:], payload)

	if r.target > StitchingLimit {
		r.stitching = true
		return
	}

	r.completeFrame()
}

func (r *Reassembler) appendContinuation(pkt []byte) {
	if len(pkt) <= SizeAsyncCommand {
		r.debugf("continuation packet too short (%d bytes), dropped", len(pkt))
		return
	}

	payload := pkt[SizeAsyncCommand:]
	room := len(r.buf) - r.filled
	n := len(payload)
	if n > room {
		// Overflow: never write past the fixed buffer.
		r.log.Begin().Error('!', "reassembly overflow (filled=%d, incoming=%d), dropped", r.filled, n).Commit()
		r.resetStitch()
		return
	}

	copy(r.buf[r.filled:r.filled+n], payload)
	r.filled += n

	if r.filled >= r.target {
		r.completeFrame()
	}
}

// emitPartial delivers whatever has accumulated so far (used by the
// resync path) and resets stitching state, target included.
func (r *Reassembler) emitPartial() {
	if r.filled > 0 {
		r.emit(r.buf[:r.filled])
	}
	r.resetStitch()
}

func (r *Reassembler) completeFrame() {
	r.emit(r.buf[:r.filled])
	r.resetStitch()
}

// Reset clears all reassembly state, including the dedup memo. Called
// by the Bus Pump on every full device-reset cycle.
func (r *Reassembler) Reset() {
	r.resetStitch()
	r.lastFrame = nil
}

func (r *Reassembler) resetStitch() {
	r.filled = 0
	r.target = 0
	r.stitching = false
}

func (r *Reassembler) emit(frame []byte) {
	if r.lastFrame != nil && bytesEqual(r.lastFrame, frame) {
		return
	}

	cp := make([]byte, len(frame))
	copy(cp, frame)
	r.lastFrame = cp

	r.sink.Send(cp)
}

func (r *Reassembler) debugf(format string, args ...interface{}) {
	r.log.Begin().Debug('#', format, args...).Commit()
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
