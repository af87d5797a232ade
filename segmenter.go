/* pspxlinkbridge - USB-to-XLink Kai bridge for the PSP ad-hoc WiFi plugin
 *
 * Send Segmenter: splits WiFi frames arriving from XLink Kai into
 * Async-framed, <=512-byte USB packets for the Bus Pump, per
 * spec.md section 4.3.
 */

package main

// Segmenter owns the WiFi-in queue (fed by Push, the ingress side
// from XLink Kai) and the USB-out queue (drained by the Bus Pump). It
// runs on its own goroutine and is exclusive owner of the send-side
// dedup memo.
type Segmenter struct {
	in  *Queue
	out *Queue
	log *Logger

	lastFrame []byte

	stop chan struct{}
	done chan struct{}
}

// NewSegmenter creates a Segmenter reading from in and publishing
// fragments to out.
func NewSegmenter(in, out *Queue, log *Logger) *Segmenter {
	return &Segmenter{
		in:   in,
		out:  out,
		log:  log,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// Push enqueues a WiFi frame for segmentation. Non-blocking,
// drop-on-full -- this is the ingress side called by the XLink Kai
// client.
func (s *Segmenter) Push(frame []byte) bool {
	if !s.in.Push(frame) {
		s.log.Begin().Error('!', "WiFi-in queue full, frame dropped").Commit()
		return false
	}
	if s.in.AboveWarnThreshold() {
		s.log.Begin().Error('!', "WiFi-in queue depth %d/%d", s.in.Depth(), s.in.Capacity()).Commit()
	}
	return true
}

// Start runs the Segmenter loop on its own goroutine.
func (s *Segmenter) Start() {
	go s.run()
}

// RequestStop asks the Segmenter loop to exit and waits for it to do so.
func (s *Segmenter) RequestStop() {
	close(s.stop)
	<-s.done
}

func (s *Segmenter) run() {
	defer close(s.done)

	for {
		frame, ok := s.in.Pop(s.stop)
		if !ok {
			return
		}
		s.segment(frame)
	}
}

// segment implements the segmentation algorithm of spec.md section
// 4.3: dedup, then fragment into one first-packet (24-byte header)
// and zero or more continuation packets (8-byte header).
func (s *Segmenter) segment(frame []byte) {
	if s.lastFrame != nil && bytesEqual(s.lastFrame, frame) {
		return
	}

	cp := make([]byte, len(frame))
	copy(cp, frame)
	s.lastFrame = cp

	l := len(frame)
	offset := 0

	// First fragment.
	firstLen := l
	if firstLen > FirstFragCap {
		firstLen = FirstFragCap
	}
	more := l > firstLen
	if !s.publish(s.buildFirst(frame[:firstLen], l, more)) {
		return // Queue full: the rest of the frame is discarded too.
	}
	offset = firstLen

	for offset < l {
		n := l - offset
		if n > ContFragCap {
			n = ContFragCap
		}
		more = offset+n < l
		if !s.publish(s.buildContinuation(frame[offset:offset+n], more)) {
			return
		}
		offset += n
	}
}

func (s *Segmenter) buildFirst(payload []byte, totalLen int, more bool) []byte {
	pkt := make([]byte, SizeAsyncCommand+SizeAsyncSubHeader+len(payload))

	cmd := AsyncCommand{Magic: MagicAsync, Channel: UserChannel}
	cmd.encode(pkt)

	sub := AsyncSubHeader{
		Magic: MagicDebugPrint,
		Mode:  SubHeaderModeSend,
		Ref:   SubHeaderRefSend,
		Size:  int32(totalLen),
	}
	sub.encode(pkt[SizeAsyncCommand:])

	copy(pkt[SizeAsyncCommand+SizeAsyncSubHeader:], payload)
	return packetWithMore(pkt, more)
}

func (s *Segmenter) buildContinuation(payload []byte, more bool) []byte {
	pkt := make([]byte, SizeAsyncCommand+len(payload))

	cmd := AsyncCommand{Magic: MagicAsync, Channel: UserChannel}
	cmd.encode(pkt)

	copy(pkt[SizeAsyncCommand:], payload)
	return packetWithMore(pkt, more)
}

// packetWithMore appends a single trailing byte carrying the "more"
// flag. The Bus Pump strips it before writing to the device; keeping
// it alongside the packet bytes (rather than a parallel struct) keeps
// the queue a plain byte-slice channel.
func packetWithMore(pkt []byte, more bool) []byte {
	out := make([]byte, len(pkt)+1)
	copy(out, pkt)
	if more {
		out[len(pkt)] = 1
	}
	return out
}

func (s *Segmenter) publish(pkt []byte) bool {
	if !s.out.Push(pkt) {
		s.log.Begin().Error('!', "USB-out queue full, dropping rest of frame").Commit()
		return false
	}
	if s.out.AboveWarnThreshold() {
		s.log.Begin().Error('!', "USB-out queue depth %d/%d", s.out.Depth(), s.out.Capacity()).Commit()
	}
	return true
}

// SplitPacketMore strips and returns the trailing more-flag byte
// appended by packetWithMore, along with the underlying wire packet.
func SplitPacketMore(pkt []byte) (wire []byte, more bool) {
	n := len(pkt) - 1
	return pkt[:n], pkt[n] != 0
}
