/* pspxlinkbridge - USB-to-XLink Kai bridge for the PSP ad-hoc WiFi plugin
 *
 * Tests for queue.go
 */

package main

import "testing"

func TestQueuePushPop(t *testing.T) {
	q := NewQueue(2)

	if !q.Push([]byte("a")) {
		t.Fatal("Push should succeed on empty queue")
	}
	if !q.Push([]byte("b")) {
		t.Fatal("Push should succeed while under capacity")
	}
	if q.Push([]byte("c")) {
		t.Fatal("Push should fail once capacity is reached")
	}

	if q.Depth() != 2 {
		t.Fatalf("Depth() = %d, want 2", q.Depth())
	}

	item, ok := q.TryPop()
	if !ok || string(item) != "a" {
		t.Fatalf("TryPop() = %q, %v, want \"a\", true", item, ok)
	}

	if q.Depth() != 1 {
		t.Fatalf("Depth() = %d, want 1", q.Depth())
	}
}

func TestQueueTryPopEmpty(t *testing.T) {
	q := NewQueue(1)
	if _, ok := q.TryPop(); ok {
		t.Fatal("TryPop() on empty queue should report ok=false")
	}
}

func TestQueuePopStop(t *testing.T) {
	q := NewQueue(1)
	stop := make(chan struct{})
	close(stop)

	if _, ok := q.Pop(stop); ok {
		t.Fatal("Pop() should report ok=false once stop is closed")
	}
}

func TestQueueClear(t *testing.T) {
	q := NewQueue(4)
	q.Push([]byte("a"))
	q.Push([]byte("b"))
	q.Clear()

	if q.Depth() != 0 {
		t.Fatalf("Depth() after Clear() = %d, want 0", q.Depth())
	}
	if _, ok := q.TryPop(); ok {
		t.Fatal("TryPop() after Clear() should find nothing")
	}
}

func TestQueueAboveWarnThreshold(t *testing.T) {
	q := NewQueue(4)
	if q.AboveWarnThreshold() {
		t.Fatal("empty queue should not be above warn threshold")
	}

	q.Push([]byte("a"))
	q.Push([]byte("b"))
	if !q.AboveWarnThreshold() {
		t.Fatal("queue at 50% depth should be above warn threshold")
	}
}
