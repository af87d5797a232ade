/* pspxlinkbridge - USB-to-XLink Kai bridge for the PSP ad-hoc WiFi plugin
 *
 * Tests for segmenter.go
 */

package main

import (
	"bytes"
	"testing"
)

func drainQueue(t *testing.T, q *Queue) [][]byte {
	t.Helper()
	var out [][]byte
	for {
		pkt, ok := q.TryPop()
		if !ok {
			return out
		}
		out = append(out, pkt)
	}
}

// A frame that fits in a single USB packet produces exactly one
// fragment, carrying the 24-byte first-fragment header and no "more"
// flag.
func TestSegmenterSingleFragment(t *testing.T) {
	in := NewQueue(4)
	out := NewQueue(4)
	s := NewSegmenter(in, out, Log)

	frame := bytes.Repeat([]byte{0x5}, 100)
	s.segment(frame)

	pkts := drainQueue(t, out)
	if len(pkts) != 1 {
		t.Fatalf("got %d fragments, want 1", len(pkts))
	}

	wire, more := SplitPacketMore(pkts[0])
	if more {
		t.Fatal("a single-fragment frame must not set the more flag")
	}
	if len(wire) != SizeAsyncCommand+SizeAsyncSubHeader+len(frame) {
		t.Fatalf("fragment length = %d, want %d", len(wire), SizeAsyncCommand+SizeAsyncSubHeader+len(frame))
	}

	payload := wire[SizeAsyncCommand+SizeAsyncSubHeader:]
	if !bytes.Equal(payload, frame) {
		t.Fatal("fragment payload does not match the original frame")
	}
}

// A frame larger than FirstFragCap is split into a first fragment and
// one or more continuations, the last of which clears "more".
func TestSegmenterMultiFragment(t *testing.T) {
	in := NewQueue(8)
	out := NewQueue(8)
	s := NewSegmenter(in, out, Log)

	frame := bytes.Repeat([]byte{0x9}, FirstFragCap+ContFragCap+10)
	s.segment(frame)

	pkts := drainQueue(t, out)
	if len(pkts) != 3 {
		t.Fatalf("got %d fragments, want 3", len(pkts))
	}

	var reassembled []byte
	for i, pkt := range pkts {
		wire, more := SplitPacketMore(pkt)
		last := i == len(pkts)-1
		if more == last {
			t.Fatalf("fragment %d: more=%v, want more=%v", i, more, !last)
		}

		if i == 0 {
			reassembled = append(reassembled, wire[SizeAsyncCommand+SizeAsyncSubHeader:]...)
		} else {
			reassembled = append(reassembled, wire[SizeAsyncCommand:]...)
		}
	}

	if !bytes.Equal(reassembled, frame) {
		t.Fatal("concatenated fragment payloads do not match the original frame")
	}
}

// Two identical consecutive frames are deduplicated; a distinct frame
// after them is still segmented.
func TestSegmenterDedup(t *testing.T) {
	in := NewQueue(8)
	out := NewQueue(8)
	s := NewSegmenter(in, out, Log)

	frame := bytes.Repeat([]byte{0x3}, 40)
	s.segment(frame)
	s.segment(frame)

	if len(drainQueue(t, out)) != 1 {
		t.Fatal("identical consecutive frames should produce fragments only once")
	}

	s.segment(bytes.Repeat([]byte{0x4}, 40))
	if len(drainQueue(t, out)) != 1 {
		t.Fatal("a distinct frame should still be segmented")
	}
}

// Push accepts a frame while the ingress queue has room and rejects
// one once it is full.
func TestSegmenterPush(t *testing.T) {
	in := NewQueue(1)
	out := NewQueue(1)
	s := NewSegmenter(in, out, Log)

	if !s.Push([]byte("hello")) {
		t.Fatal("Push should succeed on an empty queue")
	}
	if s.Push([]byte("world")) {
		t.Fatal("Push should fail once the ingress queue is full")
	}
}
