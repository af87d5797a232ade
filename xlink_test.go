/* pspxlinkbridge - USB-to-XLink Kai bridge for the PSP ad-hoc WiFi plugin
 *
 * Tests for xlink.go
 */

package main

import (
	"bytes"
	"testing"
)

// xlinkFrame/parseXlinkFrame round-trip an arbitrary payload.
func TestXlinkFrameRoundTrip(t *testing.T) {
	payload := []byte{0x01, 0x02, 0x03, 0xFF, 0x00, 0xAB}

	wire := xlinkFrame("e", payload)
	kind, got, ok := parseXlinkFrame(wire)

	if !ok {
		t.Fatal("parseXlinkFrame failed to parse a frame built by xlinkFrame")
	}
	if kind != "e" {
		t.Fatalf("kind = %q, want \"e\"", kind)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload = %x, want %x", got, payload)
	}
}

func TestXlinkFrameEmptyPayload(t *testing.T) {
	wire := xlinkFrame("c", nil)
	kind, got, ok := parseXlinkFrame(wire)

	if !ok || kind != "c" || len(got) != 0 {
		t.Fatalf("got kind=%q payload=%x ok=%v, want kind=\"c\" payload=[] ok=true", kind, got, ok)
	}
}

func TestParseXlinkFrameMalformed(t *testing.T) {
	cases := [][]byte{
		nil,
		[]byte("e"),
		[]byte("e5nosemicolon"),
		[]byte("e999;short"),
	}

	for _, c := range cases {
		if _, _, ok := parseXlinkFrame(c); ok {
			t.Fatalf("parseXlinkFrame(%q) should fail", c)
		}
	}
}

func TestXlinkFrameCommand(t *testing.T) {
	wire := xlinkFrame("c", []byte("connect;pspxlinkbridge"))
	kind, payload, ok := parseXlinkFrame(wire)
	if !ok || kind != "c" || string(payload) != "connect;pspxlinkbridge" {
		t.Fatalf("got kind=%q payload=%q ok=%v", kind, payload, ok)
	}
}
