/* pspxlinkbridge - USB-to-XLink Kai bridge for the PSP ad-hoc WiFi plugin
 *
 * Wire structs for the HostFS/Async framing, per spec.md section 6.
 *
 * Structs are packed, little-endian, no padding. We never cast a
 * buffer pointer to a struct type (the source this was derived from
 * did); instead each struct parses its own byte layout explicitly,
 * so the wire format is correct regardless of host endianness.
 */

package main

import (
	"encoding/binary"
	"fmt"
)

// HostFsCommand is the 12-byte HostFS command header.
type HostFsCommand struct {
	Magic    uint32
	Command  uint32
	ExtraLen uint32
}

// decodeHostFsCommand parses a HostFsCommand from the front of buf.
// buf must be at least SizeHostFsCommand bytes long.
func decodeHostFsCommand(buf []byte) HostFsCommand {
	return HostFsCommand{
		Magic:    binary.LittleEndian.Uint32(buf[0:4]),
		Command:  binary.LittleEndian.Uint32(buf[4:8]),
		ExtraLen: binary.LittleEndian.Uint32(buf[8:12]),
	}
}

// encode serializes a HostFsCommand into a freshly allocated buffer.
func (cmd HostFsCommand) encode() []byte {
	buf := make([]byte, SizeHostFsCommand)
	binary.LittleEndian.PutUint32(buf[0:4], cmd.Magic)
	binary.LittleEndian.PutUint32(buf[4:8], cmd.Command)
	binary.LittleEndian.PutUint32(buf[8:12], cmd.ExtraLen)
	return buf
}

// AsyncCommand is the 8-byte Async channel header.
type AsyncCommand struct {
	Magic   uint32
	Channel uint32
}

func decodeAsyncCommand(buf []byte) AsyncCommand {
	return AsyncCommand{
		Magic:   binary.LittleEndian.Uint32(buf[0:4]),
		Channel: binary.LittleEndian.Uint32(buf[4:8]),
	}
}

func (cmd AsyncCommand) encode(dst []byte) {
	binary.LittleEndian.PutUint32(dst[0:4], cmd.Magic)
	binary.LittleEndian.PutUint32(dst[4:8], cmd.Channel)
}

// AsyncSubHeader is the 16-byte sub-header carried by the first USB
// packet of a stitched (or single-packet) WiFi frame.
type AsyncSubHeader struct {
	Magic uint32
	Mode  int32
	Size  int32
	Ref   int32
}

func decodeAsyncSubHeader(buf []byte) AsyncSubHeader {
	return AsyncSubHeader{
		Magic: binary.LittleEndian.Uint32(buf[0:4]),
		Mode:  int32(binary.LittleEndian.Uint32(buf[4:8])),
		Size:  int32(binary.LittleEndian.Uint32(buf[8:12])),
		Ref:   int32(binary.LittleEndian.Uint32(buf[12:16])),
	}
}

func (h AsyncSubHeader) encode(dst []byte) {
	binary.LittleEndian.PutUint32(dst[0:4], h.Magic)
	binary.LittleEndian.PutUint32(dst[4:8], uint32(h.Mode))
	binary.LittleEndian.PutUint32(dst[8:12], uint32(h.Size))
	binary.LittleEndian.PutUint32(dst[12:16], uint32(h.Ref))
}

// isRecvPacket reports whether the sub-header marks the start of a
// network packet on the receive side: (DEBUGPRINT, mode=2, ref=77).
func (h AsyncSubHeader) isRecvPacket() bool {
	return h.Magic == MagicDebugPrint &&
		h.Mode == SubHeaderModeRecvPacket && h.Ref == SubHeaderRefRecvPacket
}

// isRecvDebug reports whether the sub-header marks a debug-text
// payload on the receive side: (DEBUGPRINT, mode=1, ref=66).
func (h AsyncSubHeader) isRecvDebug() bool {
	return h.Magic == MagicDebugPrint &&
		h.Mode == SubHeaderModeRecvDebug && h.Ref == SubHeaderRefRecvDebug
}

// String renders a compact hex/decimal diagnostic form.
func (h AsyncSubHeader) String() string {
	return fmt.Sprintf("magic=%#x mode=%d size=%d ref=%d", h.Magic, h.Mode, h.Size, h.Ref)
}
