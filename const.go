/* pspxlinkbridge - USB-to-XLink Kai bridge for the PSP ad-hoc WiFi plugin
 *
 * Wire-protocol constants and default tunables
 */

package main

import "time"

// Version is the bridge's release version, reported by the "status"
// CLI mode and the control socket.
const Version = "1.0"

// USB device identity. The bridge targets exactly one kind of
// device: a PSP running the WiFi tunneling homebrew plugin, which
// enumerates as a PSPLINK-compatible USB device.
const (
	UsbVendorID  = 0x054C
	UsbProductID = 0x01C9

	UsbConfig = 1
	UsbIfNum  = 0

	// Endpoints, per spec.md section 6.
	EndpointBulkIn    = 0x81 // Data from the console
	EndpointHandshake = 0x02 // Handshake (hello) writes
	EndpointBulkOut   = 0x03 // Data to the console
)

// Magic tags, at offset 0 of every received USB packet (little-endian).
const (
	MagicHostFS     uint32 = 0x782F0812
	MagicAsync      uint32 = 0x782F0813
	MagicBulk       uint32 = 0x782F0814
	MagicDebugPrint uint32 = 0x909ACCEF
)

// HelloCommand is the only HostFS command the bridge recognizes.
const HelloCommand uint32 = (0x8FFC << 16) | 190

// UserChannel is the Async channel carrying WiFi-plugin traffic.
const UserChannel uint32 = 4

// Async sub-header (mode, ref) pairs.
//
// The send-side pair (3, 0) and the receive-side pair (2, 77) are
// deliberately different: each is the pair used on the wire in that
// direction, so the asymmetry is kept rather than "fixed".
const (
	SubHeaderModeRecvPacket int32 = 2
	SubHeaderRefRecvPacket  int32 = 77

	SubHeaderModeRecvDebug int32 = 1
	SubHeaderRefRecvDebug  int32 = 66

	SubHeaderModeSend int32 = 3
	SubHeaderRefSend  int32 = 0
)

// Wire struct sizes, per spec.md section 6.
const (
	SizeHostFsCommand  = 12
	SizeAsyncCommand   = 8
	SizeAsyncSubHeader = 16
)

// USB packet / WiFi frame size bounds.
const (
	UsbPacketSize = 512
	MaxWifiFrame  = 2304 // Max 802.11 MTU

	FirstFragCap = UsbPacketSize - (SizeAsyncCommand + SizeAsyncSubHeader) // 488
	ContFragCap  = UsbPacketSize - SizeAsyncCommand                        // 504

	// StitchingLimit: a ModePacket payload larger than this, in a
	// single USB packet, means the WiFi frame must be stitched
	// across multiple USB packets.
	StitchingLimit = FirstFragCap
)

// Default tunables, overridable from the configuration file.
const (
	DefaultMaxBufferedMessages = 1000
	DefaultMaxFatalRetries     = 5000
	DefaultMaxReadWriteRetries = 5000
	DefaultReadTimeoutMS       = 2
	DefaultWriteTimeoutMS      = 2

	// HelloWriteTimeout bounds the one-shot 4-byte magic write.
	HelloWriteTimeout = 1000 * time.Millisecond

	// HelloReplyTimeout bounds the 12-byte HostFS+HELLO echo.
	HelloReplyTimeout = 10000 * time.Millisecond

	// FatalResetSleep is slept once per full device-reset cycle.
	FatalResetSleep = 100 * time.Millisecond

	// QueueWarnThreshold is the fraction of queue capacity at which a
	// depth warning is logged.
	QueueWarnThreshold = 0.5

	// XLinkDefaultAddress and XLinkDefaultPort are XLink Kai's
	// well-known local engine address, matching
	// SettingsModel_Constants::cDefaultXLinkIp/cDefaultXLinkPort in
	// the original implementation.
	XLinkDefaultAddress = "127.0.0.1"
	XLinkDefaultPort    = 34523

	// XLinkKeepaliveInterval is how often the bridge pings the XLink
	// Kai engine to keep the UDP "connection" alive.
	XLinkKeepaliveInterval = 10 * time.Second
)
