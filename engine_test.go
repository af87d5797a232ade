/* pspxlinkbridge - USB-to-XLink Kai bridge for the PSP ad-hoc WiFi plugin
 *
 * Tests for engine.go
 */

package main

import "testing"

func TestEngineStateHelloPending(t *testing.T) {
	e := NewEngineState(10, 10)
	if !e.IsHelloPending() {
		t.Fatal("a fresh EngineState should start with helloPending set")
	}
	e.clearHelloPending()
	if e.IsHelloPending() {
		t.Fatal("clearHelloPending should clear the flag")
	}
	e.setHelloPending()
	if !e.IsHelloPending() {
		t.Fatal("setHelloPending should raise the flag")
	}
}

func TestEngineStateFatalTransitions(t *testing.T) {
	e := NewEngineState(10, 10)
	if e.IsFatal() {
		t.Fatal("a fresh EngineState should not be fatal")
	}

	e.setFatal()
	if !e.IsFatal() || e.Status() != EngineError {
		t.Fatal("setFatal should raise the fatal flag and set EngineError status")
	}

	e.clearFatal()
	if e.IsFatal() || e.Status() != EngineRunning {
		t.Fatal("clearFatal should lower the fatal flag and set EngineRunning status")
	}
}

func TestEngineStateRWRetries(t *testing.T) {
	e := NewEngineState(10, 3)

	for i := 0; i < 3; i++ {
		if e.noteRWFailure() {
			t.Fatalf("noteRWFailure should not trip before exceeding the cap (i=%d)", i)
		}
	}
	if !e.noteRWFailure() {
		t.Fatal("noteRWFailure should trip once the cap is exceeded")
	}

	e.noteRWSuccess()
	if e.RWRetries() != 0 {
		t.Fatal("noteRWSuccess should reset the consecutive-failure counter")
	}
}

func TestEngineStateFatalRetries(t *testing.T) {
	e := NewEngineState(2, 10)

	if e.noteFatalRetry() {
		t.Fatal("noteFatalRetry should not be terminal on the first call")
	}
	if !e.noteFatalRetry() {
		t.Fatal("noteFatalRetry should be terminal once it reaches the cap")
	}
	if e.FatalRetries() != 2 {
		t.Fatalf("FatalRetries() = %d, want 2", e.FatalRetries())
	}
}
