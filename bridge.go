/* pspxlinkbridge - USB-to-XLink Kai bridge for the PSP ad-hoc WiFi plugin
 *
 * Bridge ties the Reassembler, Segmenter, Bus Pump and XLink Kai
 * client into the lifecycle API of spec.md section 6: Open/Close/
 * SetEgressSink/Push/Start.
 *
 * Source holds the XLink sink and the bridge in a shared_ptr cycle
 * (each holds the other). Here the Segmenter holds no reference back
 * to the XLinkClient at all -- XLinkClient.SetSegmenter is the only
 * pointer, a plain one-directional field, so there is no cycle to
 * break in the first place.
 */

package main

type Bridge struct {
	conf   *Configuration
	log    *Logger
	engine *EngineState

	addr   UsbAddr
	wifiIn *Queue
	usbOut *Queue

	decoder   *Reassembler
	segmenter *Segmenter
	pump      *BusPump
	sink      EgressSink
}

// NewBridge constructs a Bridge from configuration. The device is not
// opened yet; call Open() before Start().
func NewBridge(conf *Configuration, log *Logger) *Bridge {
	engine := NewEngineState(conf.MaxFatalRetries, conf.MaxReadWriteRetries)

	return &Bridge{
		conf:   conf,
		log:    log,
		engine: engine,
		wifiIn: NewQueue(conf.MaxBufferedMessages),
		usbOut: NewQueue(conf.MaxBufferedMessages),
	}
}

// SetEgressSink wires the sink (normally an *XLinkClient) that
// reassembled WiFi frames are delivered to.
func (b *Bridge) SetEgressSink(sink EgressSink) {
	b.sink = sink
}

// Open enumerates the PSP on the USB bus and records its address.
// Returns false when no matching device is found. Open does not claim
// the interface: the Bus Pump claims it after Start(), and a claim
// failure there goes through the pump's reset cycle instead of being
// reported by Open.
func (b *Bridge) Open() bool {
	addr, err := FindPSP()
	if err != nil {
		b.log.Begin().Error('!', "open: %s", err).Commit()
		return false
	}
	b.addr = addr
	return true
}

// Close tears down the bridge's running components, if started.
func (b *Bridge) Close() {
	if b.pump != nil {
		b.pump.RequestStop()
		b.pump = nil
	}
	if b.segmenter != nil {
		b.segmenter.RequestStop()
		b.segmenter = nil
	}
}

// Push enqueues a WiFi frame received from XLink Kai, to be segmented
// and sent to the PSP. Drop-on-full; never blocks.
func (b *Bridge) Push(frame []byte) bool {
	if b.segmenter == nil {
		return false
	}
	return b.segmenter.Push(frame)
}

// Start requires the device to be open (Open() returned true) and the
// egress sink to be set. It wires the Reassembler, Segmenter and Bus
// Pump together and launches their goroutines.
func (b *Bridge) Start() bool {
	if b.sink == nil {
		b.log.Begin().Error('!', "start: no egress sink set").Commit()
		return false
	}

	b.decoder = NewReassembler(b.engine, b.sink, b.log)
	b.segmenter = NewSegmenter(b.wifiIn, b.usbOut, b.log)
	b.pump = NewBusPump(b.addr, b.conf, b.engine, b.decoder, b.usbOut, b.log)

	b.segmenter.Start()
	b.pump.Start()

	return true
}

// Segmenter returns the send-side Segmenter, valid after Start(). The
// XLink Kai client pushes incoming ethernet frames into it directly.
func (b *Bridge) Segmenter() *Segmenter {
	return b.segmenter
}

// Status returns a snapshot of the bridge's current run state, for
// the control socket and the CLI "status" mode.
func (b *Bridge) Status() BridgeStatus {
	return BridgeStatus{
		Status:       b.engine.Status(),
		Addr:         b.addr,
		RWRetries:    b.engine.RWRetries(),
		FatalRetries: b.engine.FatalRetries(),
		WifiInDepth:  b.wifiIn.Depth(),
		WifiInCap:    b.wifiIn.Capacity(),
		UsbOutDepth:  b.usbOut.Depth(),
		UsbOutCap:    b.usbOut.Capacity(),
	}
}
