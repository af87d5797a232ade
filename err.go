/* pspxlinkbridge - USB-to-XLink Kai bridge for the PSP ad-hoc WiFi plugin
 *
 * Common errors
 */

package main

import "errors"

// Error values for pspxlinkbridge
var (
	ErrLockIsBusy      = errors.New("lock is busy")
	ErrShutdown        = errors.New("shutdown requested")
	ErrDeviceNotFound  = errors.New("no matching USB device found")
	ErrClaimFailed     = errors.New("failed to claim USB interface")
	ErrHandshakeRefused = errors.New("device refused HostFS handshake")
	ErrFatalExhausted  = errors.New("fatal retry count exhausted")
	ErrNotRunning      = errors.New("bridge is not running")
	ErrNoDaemon        = errors.New("pspxlinkbridge daemon not running")
	ErrQueueFull       = errors.New("queue is full")
	ErrAccess          = errors.New("access denied")
)
