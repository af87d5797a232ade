/* pspxlinkbridge - USB-to-XLink Kai bridge for the PSP ad-hoc WiFi plugin
 *
 * Shared retry counters and error flags, mutated by the Bus Pump
 * thread and read by the status supervisor. Per spec.md section 5:
 * "Retry counters and error flags: mutated by Bus Pump only; read by
 * supervisor. If observed from other threads, atomic reads suffice."
 */

package main

import "sync/atomic"

// EngineStatus is the externally-visible run state of the bridge.
type EngineStatus int32

const (
	EngineIdle EngineStatus = iota
	EngineRunning
	EngineError
)

func (s EngineStatus) String() string {
	switch s {
	case EngineIdle:
		return "idle"
	case EngineRunning:
		return "running"
	case EngineError:
		return "error"
	default:
		return "unknown"
	}
}

// EngineState holds the counters and flags shared between the Bus
// Pump and anything reporting bridge status (ctrlsock, CLI "status"
// mode). All fields are accessed atomically; only the Bus Pump
// thread ever writes rwRetries/fatalRetries/fatalError/helloPending.
type EngineState struct {
	status       int32 // EngineStatus
	rwRetries    int64
	fatalRetries int64
	fatalError   int32 // 0/1
	helloPending int32 // 0/1

	maxFatalRetries     int64
	maxReadWriteRetries int64
}

// NewEngineState creates a fresh EngineState with the given retry
// caps, hello pending (handshake not yet performed).
func NewEngineState(maxFatalRetries, maxReadWriteRetries int) *EngineState {
	return &EngineState{
		status:              int32(EngineIdle),
		helloPending:        1,
		maxFatalRetries:     int64(maxFatalRetries),
		maxReadWriteRetries: int64(maxReadWriteRetries),
	}
}

func (e *EngineState) Status() EngineStatus {
	return EngineStatus(atomic.LoadInt32(&e.status))
}

func (e *EngineState) setStatus(s EngineStatus) {
	atomic.StoreInt32(&e.status, int32(s))
}

func (e *EngineState) IsHelloPending() bool {
	return atomic.LoadInt32(&e.helloPending) != 0
}

func (e *EngineState) clearHelloPending() {
	atomic.StoreInt32(&e.helloPending, 0)
}

func (e *EngineState) setHelloPending() {
	atomic.StoreInt32(&e.helloPending, 1)
}

// IsFatal reports whether a fatal error is currently flagged.
func (e *EngineState) IsFatal() bool {
	return atomic.LoadInt32(&e.fatalError) != 0
}

// setFatal raises the fatal error flag. Called from the Reassembler
// (handshake refusal) as well as the Bus Pump (bus errors).
func (e *EngineState) setFatal() {
	atomic.StoreInt32(&e.fatalError, 1)
	e.setStatus(EngineError)
}

// clearFatal lowers the fatal error flag after a successful reset.
func (e *EngineState) clearFatal() {
	atomic.StoreInt32(&e.fatalError, 0)
	e.setStatus(EngineRunning)
}

// RWRetries returns the current consecutive read/write failure count.
func (e *EngineState) RWRetries() int {
	return int(atomic.LoadInt64(&e.rwRetries))
}

// FatalRetries returns the current device-reset cycle count.
func (e *EngineState) FatalRetries() int {
	return int(atomic.LoadInt64(&e.fatalRetries))
}

// noteRWSuccess resets the consecutive-failure counter.
func (e *EngineState) noteRWSuccess() {
	atomic.StoreInt64(&e.rwRetries, 0)
}

// noteRWFailure increments the consecutive-failure counter and
// returns true if it has now exceeded the configured cap.
func (e *EngineState) noteRWFailure() bool {
	n := atomic.AddInt64(&e.rwRetries, 1)
	return n > e.maxReadWriteRetries
}

// noteFatalRetry increments the device-reset cycle count and
// returns true if it has now reached the configured cap (terminal).
func (e *EngineState) noteFatalRetry() bool {
	n := atomic.AddInt64(&e.fatalRetries, 1)
	return n >= e.maxFatalRetries
}
