/* pspxlinkbridge - USB-to-XLink Kai bridge for the PSP ad-hoc WiFi plugin
 *
 * Tests for types.go
 */

package main

import "testing"

func TestHostFsCommandRoundTrip(t *testing.T) {
	cmd := HostFsCommand{Magic: MagicHostFS, Command: HelloCommand, ExtraLen: 7}
	buf := cmd.encode()

	if len(buf) != SizeHostFsCommand {
		t.Fatalf("encoded length = %d, want %d", len(buf), SizeHostFsCommand)
	}

	got := decodeHostFsCommand(buf)
	if got != cmd {
		t.Fatalf("decodeHostFsCommand(encode(cmd)) = %+v, want %+v", got, cmd)
	}
}

func TestAsyncCommandRoundTrip(t *testing.T) {
	cmd := AsyncCommand{Magic: MagicAsync, Channel: UserChannel}
	buf := make([]byte, SizeAsyncCommand)
	cmd.encode(buf)

	got := decodeAsyncCommand(buf)
	if got != cmd {
		t.Fatalf("decodeAsyncCommand(encode(cmd)) = %+v, want %+v", got, cmd)
	}
}

func TestAsyncSubHeaderRoundTrip(t *testing.T) {
	sub := AsyncSubHeader{
		Magic: MagicDebugPrint,
		Mode:  SubHeaderModeRecvPacket,
		Size:  1234,
		Ref:   SubHeaderRefRecvPacket,
	}
	buf := make([]byte, SizeAsyncSubHeader)
	sub.encode(buf)

	got := decodeAsyncSubHeader(buf)
	if got != sub {
		t.Fatalf("decodeAsyncSubHeader(encode(sub)) = %+v, want %+v", got, sub)
	}

	if !got.isRecvPacket() {
		t.Fatal("round-tripped sub-header should still classify as isRecvPacket")
	}
}

func TestAsyncSubHeaderClassification(t *testing.T) {
	pkt := AsyncSubHeader{Magic: MagicDebugPrint, Mode: SubHeaderModeRecvPacket, Ref: SubHeaderRefRecvPacket}
	if !pkt.isRecvPacket() || pkt.isRecvDebug() {
		t.Fatal("a ModePacket sub-header should classify as isRecvPacket only")
	}

	dbg := AsyncSubHeader{Magic: MagicDebugPrint, Mode: SubHeaderModeRecvDebug, Ref: SubHeaderRefRecvDebug}
	if !dbg.isRecvDebug() || dbg.isRecvPacket() {
		t.Fatal("a ModeDebug sub-header should classify as isRecvDebug only")
	}
}
