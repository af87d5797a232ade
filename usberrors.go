/* pspxlinkbridge - USB-to-XLink Kai bridge for the PSP ad-hoc WiFi plugin
 *
 * Classification of bulk transfer errors into the taxonomy of
 * spec.md section 7: transient (timeout/busy, not counted),
 * disconnect (device gone, fatal immediately), and everything else
 * (recoverable, counted against rw_retries).
 */

package main

import (
	"context"
	"errors"

	"github.com/google/gousb"
)

// isTransientUsbError reports a timeout or device-busy condition,
// which the Bus Pump sleeps through without counting as a failure.
func isTransientUsbError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	return errors.Is(err, gousb.ErrorTimeout) || errors.Is(err, gousb.ErrorBusy)
}

// isDisconnectUsbError reports that the device itself has gone away,
// which immediately raises fatal_error rather than counting toward
// rw_retries.
func isDisconnectUsbError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, gousb.ErrorNoDevice) || errors.Is(err, gousb.ErrorNotFound)
}
