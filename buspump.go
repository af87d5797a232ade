/* pspxlinkbridge - USB-to-XLink Kai bridge for the PSP ad-hoc WiFi plugin
 *
 * Bus Pump: owns the USB device handle for its entire lifetime,
 * interleaves one bulk-read / one bulk-write per loop turn, and runs
 * the reset/retry supervisor. Per spec.md section 4.1.
 */

package main

import (
	"time"
)

// BusPump is the single thread allowed to touch the device handle.
type BusPump struct {
	engine *EngineState
	conf   *Configuration
	decoder *Reassembler
	outQ    *Queue
	log     *Logger

	addr       UsbAddr
	knownAddrs UsbAddrList // last enumeration seen by resetCycle, for replug detection
	dev        *Device

	// mid-stitch outbound state: true while the last packet we wrote
	// had more=true, meaning a read must not be issued until the
	// frame finishes going out.
	sendMidStitch bool

	stop chan struct{}
	done chan struct{}
}

// NewBusPump creates a BusPump bound to addr, decoding inbound frames
// with decoder and draining outbound packets from outQ.
func NewBusPump(addr UsbAddr, conf *Configuration, engine *EngineState, decoder *Reassembler, outQ *Queue, log *Logger) *BusPump {
	return &BusPump{
		engine:  engine,
		conf:    conf,
		decoder: decoder,
		outQ:    outQ,
		log:     log,
		addr:    addr,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start runs the Bus Pump loop on its own goroutine.
func (p *BusPump) Start() {
	go p.run()
}

// RequestStop asks the loop to exit and waits for it to finish,
// closing the device along the way.
func (p *BusPump) RequestStop() {
	close(p.stop)
	<-p.done
}

func (p *BusPump) run() {
	defer close(p.done)

	p.engine.setStatus(EngineRunning)

	for {
		select {
		case <-p.stop:
			p.closeDevice()
			return
		default:
		}

		if p.dev == nil && !p.engine.IsFatal() {
			p.engine.setFatal() // route first-time open through the reset cycle
		}

		if p.engine.IsFatal() {
			if !p.resetCycle() {
				p.closeDevice()
				return
			}
			continue
		}

		if p.engine.IsHelloPending() {
			if !p.doHelloHandshake() {
				continue
			}
		}

		// Per spec.md section 4.1: a read is skipped while a stitched
		// outbound frame is still being written (prevents interleaving
		// unrelated inbound traffic between halves of a send), and a
		// write is skipped while a stitched inbound frame is still
		// being assembled. "Still being written" means a packet is
		// actually in flight -- if the Segmenter dropped the
		// remainder on overflow (spec.md section 4.3), outQ goes
		// empty and sendMidStitch must not block reads forever.
		if !p.sendMidStitch || p.outQ.Depth() == 0 {
			p.doRead()
		}

		if !p.decoder.IsStitching() {
			p.doWrite()
		}
	}
}

// openDevice claims the USB interface only; the handshake is driven
// separately from the main loop once helloPending is observed.
func (p *BusPump) openDevice() bool {
	dev, err := OpenDevice(p.addr)
	if err != nil {
		p.log.Begin().Error('!', "open device: %s", err).Commit()
		return false
	}
	p.dev = dev
	p.engine.setHelloPending()
	return true
}

// doHelloHandshake performs the three-leg handshake of spec.md
// section 4.1: write the 4-byte HostFS magic, wait for the device's
// HostFS+HELLO reply (delivered to us as an ordinary read, decoded by
// the Reassembler which clears helloPending), then echo the 12-byte
// HostFS+HELLO command back.
func (p *BusPump) doHelloHandshake() bool {
	magic := make([]byte, 4)
	encodeUint32LE(magic, MagicHostFS)

	n, err := p.dev.WriteHandshake(magic, HelloWriteTimeout)
	if err != nil || n != len(magic) {
		p.log.Begin().Error('!', "hello: magic write failed: %v", err).Commit()
		p.engine.setFatal()
		return false
	}

	buf := make([]byte, UsbPacketSize)
	deadline := time.Now().Add(HelloReplyTimeout)
	for time.Now().Before(deadline) {
		n, err := p.dev.Read(buf, time.Duration(p.conf.ReadTimeoutMS)*time.Millisecond)
		if err == nil && n > 0 {
			p.decoder.Feed(buf[:n])
			if !p.engine.IsHelloPending() {
				reply := HostFsCommand{Magic: MagicHostFS, Command: HelloCommand, ExtraLen: 0}.encode()
				wn, werr := p.dev.WriteHandshake(reply, HelloReplyTimeout)
				if werr != nil || wn != len(reply) {
					p.log.Begin().Error('!', "hello: reply write failed: %v", werr).Commit()
					p.engine.setFatal()
					return false
				}
				return true
			}
		}
	}

	p.log.Begin().Error('!', "hello: timed out waiting for device reply").Commit()
	p.engine.setFatal()
	return false
}

func (p *BusPump) doRead() {
	buf := make([]byte, UsbPacketSize)
	n, err := p.dev.Read(buf, time.Duration(p.conf.ReadTimeoutMS)*time.Millisecond)

	switch {
	case err == nil && n > 0:
		p.decoder.Feed(buf[:n])
		p.engine.noteRWSuccess()
	case isTransientUsbError(err):
		time.Sleep(time.Duration(p.conf.ReadTimeoutMS) * time.Millisecond)
	case isDisconnectUsbError(err):
		p.engine.setFatal()
	case err != nil:
		time.Sleep(time.Duration(p.conf.ReadTimeoutMS) * time.Millisecond)
		if p.engine.noteRWFailure() {
			p.engine.setFatal()
		}
	}
}

func (p *BusPump) doWrite() {
	pkt, ok := p.outQ.TryPop()
	if !ok {
		return
	}

	wire, more := SplitPacketMore(pkt)
	p.sendMidStitch = more

	_, err := p.dev.Write(wire, time.Duration(p.conf.WriteTimeoutMS)*time.Millisecond)
	switch {
	case err == nil:
		p.engine.noteRWSuccess()
	case isTransientUsbError(err):
		time.Sleep(time.Duration(p.conf.WriteTimeoutMS) * time.Millisecond)
	case isDisconnectUsbError(err):
		p.engine.setFatal()
	default:
		time.Sleep(time.Duration(p.conf.WriteTimeoutMS) * time.Millisecond)
		if p.engine.noteRWFailure() {
			p.engine.setFatal()
		}
	}
}

// resetCycle performs a full device reset: close, re-enumerate, clear
// queues and reassembly state, bump fatalRetries. Returns false if the
// retry cap has been reached (terminal).
func (p *BusPump) resetCycle() bool {
	p.closeDevice()
	p.outQ.Clear()
	p.decoder.Reset()
	p.sendMidStitch = false

	if p.engine.noteFatalRetry() {
		p.log.Begin().Error('!', "fatal retry count exhausted, giving up").Commit()
		return false
	}

	time.Sleep(FatalResetSleep)

	found, _ := FindAllPSPs()
	if len(found) == 0 {
		return true // stay in the reset loop, try again next turn
	}

	added, removed := p.knownAddrs.Diff(found)
	if len(added) > 0 || len(removed) > 0 {
		p.log.Begin().Debug('#', "usb: device list changed, added=%v removed=%v", added, removed).Commit()
	}
	p.knownAddrs = found

	// Prefer a newly appeared address: the PSP was unplugged and
	// replugged, possibly at a different bus address. Otherwise keep
	// using the previous address if it's still present, falling back
	// to the first match.
	addr := found[0]
	switch {
	case len(added) > 0:
		addr = added[0]
	case found.Find(p.addr) >= 0:
		addr = p.addr
	}
	p.addr = addr

	if p.openDevice() {
		p.engine.clearFatal()
	}
	return true
}

func (p *BusPump) closeDevice() {
	if p.dev != nil {
		p.dev.Close()
		p.dev = nil
	}
}

func encodeUint32LE(dst []byte, v uint32) {
	dst[0] = byte(v)
	dst[1] = byte(v >> 8)
	dst[2] = byte(v >> 16)
	dst[3] = byte(v >> 24)
}
