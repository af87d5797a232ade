/* pspxlinkbridge - USB-to-XLink Kai bridge for the PSP ad-hoc WiFi plugin
 *
 * XLink Kai UDP client: the egress sink the Reassembler delivers
 * complete WiFi frames to, and the ingress source that feeds the
 * Segmenter. External to the core per spec.md section 1, but wired
 * here the way main.cpp wires XLinkKaiConnection and USBReader to
 * each other.
 *
 * XLinkKaiConnection.h/.cpp were not present in the filtered original
 * source, so the wire protocol below (e<length>;<payload> framing,
 * periodic keepalive) is reconstructed from XLink Kai's own published
 * engine protocol rather than transcribed from source.
 */

package main

import (
	"fmt"
	"net"
	"sync"
	"time"
)

// XLinkClient maintains a UDP "connection" to the local XLink Kai
// engine. It implements EgressSink (frames arriving from the PSP are
// forwarded to XLink Kai) and drives Segmenter.Push for frames XLink
// Kai sends back.
type XLinkClient struct {
	addr         string
	port         int
	autoDiscover bool
	log          *Logger

	conn *net.UDPConn
	seg  *Segmenter

	stop chan struct{}
	done chan struct{}

	mu     sync.Mutex
	lastTX time.Time
}

// NewXLinkClient creates a client targeting addr:port (XLink Kai's
// local engine, default 127.0.0.1:34523). When autoDiscover is set,
// Open falls back to the default loopback address if addr cannot be
// resolved; no LAN broadcast is made.
func NewXLinkClient(addr string, port int, autoDiscover bool, log *Logger) *XLinkClient {
	return &XLinkClient{
		addr:         addr,
		port:         port,
		autoDiscover: autoDiscover,
		log:          log,
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
}

// SetSegmenter wires the Segmenter that received XLink Kai datagrams
// are pushed into. Mirrors main.cpp's SetIncomingConnection wiring,
// expressed here as plain field assignment instead of a shared_ptr
// cycle -- see DESIGN.md for the back-reference discussion.
func (x *XLinkClient) SetSegmenter(seg *Segmenter) {
	x.seg = seg
}

// Open dials the UDP socket and sends the initial connect command.
// XLink Kai's engine is always local (it and pspxlinkbridge run on the
// same box, talking loopback UDP), so autoDiscover only changes
// whether a missing/wrong address is treated as fatal: set, it logs
// and falls back to the default loopback address instead of failing
// Open outright. Broadcast-based engine discovery across the LAN is
// out of scope -- there is never more than one engine to find.
func (x *XLinkClient) Open() error {
	addr := x.addr
	raddr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", addr, x.port))
	if err != nil && x.autoDiscover {
		x.log.Begin().Info('#', "xlink: %q unresolvable, falling back to %s", addr, XLinkDefaultAddress).Commit()
		addr = XLinkDefaultAddress
		raddr, err = net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", addr, x.port))
	}
	if err != nil {
		return err
	}

	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return err
	}
	x.conn = conn

	return x.sendCommand("connect", "pspxlinkbridge")
}

// Close releases the UDP socket.
func (x *XLinkClient) Close() {
	if x.conn != nil {
		x.conn.Close()
		x.conn = nil
	}
}

// Start launches the receive loop and the keepalive ticker.
func (x *XLinkClient) Start() {
	go x.receiveLoop()
	go x.keepaliveLoop()
}

// RequestStop signals both loops to stop and waits for the receive
// loop to exit. The keepalive loop exits on its own at its next
// select; RequestStop does not wait for it.
func (x *XLinkClient) RequestStop() {
	close(x.stop)
	<-x.done
}

// Send implements EgressSink. Called by the Reassembler with a
// complete WiFi frame; framed as an XLink Kai "e" (ethernet) datagram
// and written to the UDP socket. Non-blocking: a single UDP write
// never stalls long enough to matter at this frame rate.
func (x *XLinkClient) Send(frame []byte) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.conn == nil {
		return
	}

	msg := xlinkFrame("e", frame)
	if _, err := x.conn.Write(msg); err != nil {
		x.log.Begin().Error('!', "xlink: write failed: %s", err).Commit()
		return
	}
	x.lastTX = time.Now()
	x.log.Begin().HexDump(LogTraceXLink, frame).Commit()
}

// receiveLoop reads datagrams from XLink Kai and forwards ethernet
// payloads to the Segmenter.
func (x *XLinkClient) receiveLoop() {
	defer close(x.done)

	buf := make([]byte, MaxWifiFrame+64)
	for {
		select {
		case <-x.stop:
			return
		default:
		}

		x.conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
		n, err := x.conn.Read(buf)
		if err != nil {
			continue // Timeout or transient read error; loop checks stop next turn.
		}

		kind, payload, ok := parseXlinkFrame(buf[:n])
		if !ok {
			continue
		}

		switch kind {
		case "e":
			if x.seg != nil {
				x.seg.Push(payload)
			}
		default:
			x.log.Begin().Debug('#', "xlink: ignoring %q frame", kind).Commit()
		}
	}
}

// keepaliveLoop pings the engine periodically so the UDP mapping
// (and XLink Kai's notion of a connected client) stays alive.
func (x *XLinkClient) keepaliveLoop() {
	ticker := time.NewTicker(XLinkKeepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-x.stop:
			return
		case <-ticker.C:
			x.sendCommand("keepalive", "")
		}
	}
}

func (x *XLinkClient) sendCommand(cmd, arg string) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.conn == nil {
		return ErrNotRunning
	}

	payload := cmd
	if arg != "" {
		payload = cmd + ";" + arg
	}

	_, err := x.conn.Write(xlinkFrame("c", []byte(payload)))
	return err
}

// xlinkFrame wraps payload in XLink Kai's "e<length>;<payload>"
// framing: a one-character kind tag, decimal length, semicolon,
// then the raw bytes.
func xlinkFrame(kind string, payload []byte) []byte {
	header := fmt.Sprintf("%s%d;", kind, len(payload))
	out := make([]byte, len(header)+len(payload))
	n := copy(out, header)
	copy(out[n:], payload)
	return out
}

// parseXlinkFrame reverses xlinkFrame, returning the kind tag and the
// raw payload bytes.
func parseXlinkFrame(buf []byte) (kind string, payload []byte, ok bool) {
	if len(buf) < 2 {
		return "", nil, false
	}

	kind = string(buf[:1])
	rest := buf[1:]
	ok = parseXlinkFrameBody(rest, &payload)
	return kind, payload, ok
}

func parseXlinkFrameBody(rest []byte, payload *[]byte) bool {
	semi := -1
	for i, b := range rest {
		if b == ';' {
			semi = i
			break
		}
	}
	if semi < 0 {
		return false
	}

	var length int
	for _, b := range rest[:semi] {
		if b < '0' || b > '9' {
			return false
		}
		length = length*10 + int(b-'0')
	}

	body := rest[semi+1:]
	if len(body) < length {
		return false
	}

	*payload = body[:length]
	return true
}
