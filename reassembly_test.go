/* pspxlinkbridge - USB-to-XLink Kai bridge for the PSP ad-hoc WiFi plugin
 *
 * Tests for reassembly.go
 */

package main

import (
	"bytes"
	"testing"
)

// testSink is an EgressSink that records every frame delivered to it.
type testSink struct {
	frames [][]byte
}

func (s *testSink) Send(frame []byte) {
	s.frames = append(s.frames, frame)
}

func newTestReassembler() (*Reassembler, *testSink) {
	sink := &testSink{}
	engine := NewEngineState(DefaultMaxFatalRetries, DefaultMaxReadWriteRetries)
	return NewReassembler(engine, sink, Log), sink
}

// buildRecvPacket builds a single USB packet carrying a ModePacket
// sub-header (the receive-side framing of spec.md section 6) with the
// given claimed total size and payload.
func buildRecvPacket(totalSize int, payload []byte) []byte {
	pkt := make([]byte, SizeAsyncCommand+SizeAsyncSubHeader+len(payload))

	cmd := AsyncCommand{Magic: MagicAsync, Channel: UserChannel}
	cmd.encode(pkt)

	sub := AsyncSubHeader{
		Magic: MagicDebugPrint,
		Mode:  SubHeaderModeRecvPacket,
		Ref:   SubHeaderRefRecvPacket,
		Size:  int32(totalSize),
	}
	sub.encode(pkt[SizeAsyncCommand:])

	copy(pkt[SizeAsyncCommand+SizeAsyncSubHeader:], payload)
	return pkt
}

// buildContPacket builds a continuation packet (no sub-header).
func buildContPacket(payload []byte) []byte {
	pkt := make([]byte, SizeAsyncCommand+len(payload))
	cmd := AsyncCommand{Magic: MagicAsync, Channel: UserChannel}
	cmd.encode(pkt)
	copy(pkt[SizeAsyncCommand:], payload)
	return pkt
}

// Scenario 1: a frame small enough to arrive in one USB packet is
// reassembled and delivered whole, without ever entering stitching.
func TestReassemblerSinglePacketFrame(t *testing.T) {
	r, sink := newTestReassembler()

	payload := bytes.Repeat([]byte{0xAB}, 100)
	pkt := buildRecvPacket(len(payload), payload)

	r.Feed(pkt)

	if r.IsStitching() {
		t.Fatal("single-packet frame should never set the stitching flag")
	}
	if len(sink.frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(sink.frames))
	}
	if !bytes.Equal(sink.frames[0], payload) {
		t.Fatalf("frame mismatch: got %x, want %x", sink.frames[0], payload)
	}
}

// Scenario 2: a frame larger than FirstFragCap is stitched across a
// first packet and one or more continuations.
func TestReassemblerStitchedFrame(t *testing.T) {
	r, sink := newTestReassembler()

	full := bytes.Repeat([]byte{0xCD}, FirstFragCap+50)
	first := buildRecvPacket(len(full), full[:FirstFragCap])

	r.Feed(first)
	if !r.IsStitching() {
		t.Fatal("oversized frame should set the stitching flag after the first packet")
	}
	if len(sink.frames) != 0 {
		t.Fatal("no frame should be emitted before the continuation arrives")
	}

	cont := buildContPacket(full[FirstFragCap:])
	r.Feed(cont)

	if r.IsStitching() {
		t.Fatal("stitching flag should clear once the frame completes")
	}
	if len(sink.frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(sink.frames))
	}
	if !bytes.Equal(sink.frames[0], full) {
		t.Fatal("reassembled frame does not match the original")
	}
}

// Scenario 3: a claimed size larger than the fixed buffer is dropped
// without ever writing past MaxWifiFrame.
func TestReassemblerOverflowSafety(t *testing.T) {
	r, sink := newTestReassembler()

	pkt := buildRecvPacket(MaxWifiFrame+1, bytes.Repeat([]byte{1}, 10))
	r.Feed(pkt)

	if r.IsStitching() {
		t.Fatal("an over-claimed size must not enter stitching")
	}
	if len(sink.frames) != 0 {
		t.Fatal("an over-claimed size must not be delivered to the sink")
	}
}

// Scenario 4: a fresh sub-header arriving mid-stitch forces a resync:
// whatever was accumulated is flushed, and the new packet starts a
// fresh frame.
func TestReassemblerResync(t *testing.T) {
	r, sink := newTestReassembler()

	stale := bytes.Repeat([]byte{0xEE}, FirstFragCap+10)
	r.Feed(buildRecvPacket(len(stale), stale[:FirstFragCap]))
	if !r.IsStitching() {
		t.Fatal("expected to be mid-stitch before the resync packet")
	}

	fresh := bytes.Repeat([]byte{0x11}, 20)
	r.Feed(buildRecvPacket(len(fresh), fresh))

	if r.IsStitching() {
		t.Fatal("a complete single-packet frame after resync should not leave stitching set")
	}
	if len(sink.frames) != 2 {
		t.Fatalf("got %d frames, want 2 (flushed partial + fresh frame)", len(sink.frames))
	}
	if !bytes.Equal(sink.frames[0], stale[:FirstFragCap]) {
		t.Fatal("first emitted frame should be the flushed partial stitch")
	}
	if !bytes.Equal(sink.frames[1], fresh) {
		t.Fatal("second emitted frame should be the fresh frame")
	}
}

// Scenario 5: two consecutive identical frames are deduplicated; a
// third, different frame is delivered.
func TestReassemblerDedup(t *testing.T) {
	r, sink := newTestReassembler()

	payload := bytes.Repeat([]byte{0x42}, 50)
	r.Feed(buildRecvPacket(len(payload), payload))
	r.Feed(buildRecvPacket(len(payload), payload))

	if len(sink.frames) != 1 {
		t.Fatalf("identical consecutive frames should dedup to 1, got %d", len(sink.frames))
	}

	other := bytes.Repeat([]byte{0x43}, 50)
	r.Feed(buildRecvPacket(len(other), other))

	if len(sink.frames) != 2 {
		t.Fatalf("a distinct frame after a dedup'd run should still be delivered, got %d", len(sink.frames))
	}
}

// Scenario 6: the HostFS HELLO reply clears helloPending; any other
// HostFS command is treated as a handshake refusal and raises fatal.
func TestReassemblerHostFsHandshake(t *testing.T) {
	r, _ := newTestReassembler()

	hello := HostFsCommand{Magic: MagicHostFS, Command: HelloCommand}.encode()
	r.Feed(hello)
	if r.engine.IsHelloPending() {
		t.Fatal("HELLO reply should clear helloPending")
	}

	r2, _ := newTestReassembler()
	refused := HostFsCommand{Magic: MagicHostFS, Command: 0xDEAD}.encode()
	r2.Feed(refused)
	if !r2.engine.IsFatal() {
		t.Fatal("an unrecognized HostFS command should raise fatal")
	}
}

// Reset clears both the stitching buffer and the dedup memo.
func TestReassemblerReset(t *testing.T) {
	r, sink := newTestReassembler()

	payload := bytes.Repeat([]byte{0x7}, 30)
	r.Feed(buildRecvPacket(len(payload), payload))
	r.Reset()

	r.Feed(buildRecvPacket(len(payload), payload))
	if len(sink.frames) != 2 {
		t.Fatal("after Reset, a repeated frame should not be deduplicated against pre-reset state")
	}
}
