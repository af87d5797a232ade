/* pspxlinkbridge - USB-to-XLink Kai bridge for the PSP ad-hoc WiFi plugin
 *
 * PSP USB device handle: enumeration, claim, and timed bulk I/O.
 *
 * The teacher reaches libusb through raw cgo bindings (libusb.go,
 * usbio_libusb.go, hotplug.go). Its own usbaddr.go, inconsistently,
 * already imports gousb directly -- a dependency the teacher's go.mod
 * declares but the rest of the teacher never actually uses. We follow
 * that thread instead of the cgo one: gousb wraps the same libusb but
 * gives us Go-shaped Config/Interface/Endpoint handles and io.Reader/
 * io.Writer semantics, so none of libusb.go's C struct walking survives
 * here.
 */

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/gousb"
)

// usbCtx is the process-wide libusb context. gousb multiplexes all
// device I/O through one context; there is no reason to keep more
// than one alive for a single bridged PSP.
var usbCtx = gousb.NewContext()

// Device is an open handle to the PSP's USB interface, claimed and
// ready for HostFS/Async bulk transfers.
type Device struct {
	addr   UsbAddr
	dev    *gousb.Device
	cfg    *gousb.Config
	iface  *gousb.Interface
	in     *gousb.InEndpoint
	out    *gousb.OutEndpoint
	handshake *gousb.OutEndpoint
}

// FindPSP enumerates attached USB devices looking for the PSP's
// vendor/product ID, returning the address of the first match.
func FindPSP() (UsbAddr, error) {
	list, err := FindAllPSPs()
	if len(list) == 0 {
		if err != nil {
			return UsbAddr{}, err
		}
		return UsbAddr{}, ErrDeviceNotFound
	}
	return list[0], nil
}

// FindAllPSPs enumerates every attached device carrying the PSP's
// vendor/product ID, returning their bus addresses. Used by the reset
// cycle to diff against the previously known address list and notice
// a replug, as opposed to FindPSP's single-address shortcut.
func FindAllPSPs() (UsbAddrList, error) {
	var list UsbAddrList
	devs, err := usbCtx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return desc.Vendor == gousb.ID(Conf.UsbVendorID) && desc.Product == gousb.ID(Conf.UsbProductID)
	})

	for _, d := range devs {
		list.Add(UsbAddr{Bus: d.Desc.Bus, Address: d.Desc.Address})
		d.Close()
	}

	if len(devs) == 0 && err != nil {
		return list, fmt.Errorf("%w: %s", ErrDeviceNotFound, err)
	}

	return list, nil
}

// OpenDevice opens, configures and claims the PSP's HostFS bulk
// interface at the given address.
func OpenDevice(addr UsbAddr) (*Device, error) {
	gdev, err := addr.Open()
	if err != nil {
		return nil, err
	}

	gdev.SetAutoDetach(true)

	cfg, err := gdev.Config(UsbConfig)
	if err != nil {
		gdev.Close()
		return nil, fmt.Errorf("%w: %s", ErrClaimFailed, err)
	}

	iface, err := cfg.Interface(UsbIfNum, 0)
	if err != nil {
		cfg.Close()
		gdev.Close()
		return nil, fmt.Errorf("%w: %s", ErrClaimFailed, err)
	}

	in, err := iface.InEndpoint(EndpointBulkIn & 0x0f)
	if err != nil {
		iface.Close()
		cfg.Close()
		gdev.Close()
		return nil, fmt.Errorf("%w: in endpoint: %s", ErrClaimFailed, err)
	}

	out, err := iface.OutEndpoint(EndpointBulkOut)
	if err != nil {
		iface.Close()
		cfg.Close()
		gdev.Close()
		return nil, fmt.Errorf("%w: out endpoint: %s", ErrClaimFailed, err)
	}

	hs, err := iface.OutEndpoint(EndpointHandshake)
	if err != nil {
		iface.Close()
		cfg.Close()
		gdev.Close()
		return nil, fmt.Errorf("%w: handshake endpoint: %s", ErrClaimFailed, err)
	}

	return &Device{
		addr:      addr,
		dev:       gdev,
		cfg:       cfg,
		iface:     iface,
		in:        in,
		out:       out,
		handshake: hs,
	}, nil
}

// Addr returns the bus/address this handle was opened at.
func (d *Device) Addr() UsbAddr {
	return d.addr
}

// Close releases the interface, configuration and device handle, in
// that order.
func (d *Device) Close() {
	if d.iface != nil {
		d.iface.Close()
	}
	if d.cfg != nil {
		d.cfg.Close()
	}
	if d.dev != nil {
		d.dev.Close()
	}
}

// timedTransfer runs xfer in a goroutine and returns its result,
// or a timeout error if it doesn't finish within timeout. gousb's
// endpoint Read/Write calls block on the underlying libusb transfer
// without taking a context, so a deadline has to be layered on top.
// The goroutine is abandoned (not canceled) on timeout; libusb will
// complete or fail the transfer on its own and the result is dropped.
func timedTransfer(timeout time.Duration, xfer func() (int, error)) (int, error) {
	type result struct {
		n   int
		err error
	}

	ch := make(chan result, 1)
	go func() {
		n, err := xfer()
		ch <- result{n, err}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	select {
	case r := <-ch:
		return r.n, r.err
	case <-ctx.Done():
		return 0, context.DeadlineExceeded
	}
}

// Read performs a single bulk-in transfer into buf, bounded by timeout.
func (d *Device) Read(buf []byte, timeout time.Duration) (int, error) {
	return timedTransfer(timeout, func() (int, error) {
		return d.in.Read(buf)
	})
}

// Write performs a single bulk-out transfer of buf, bounded by timeout.
func (d *Device) Write(buf []byte, timeout time.Duration) (int, error) {
	return timedTransfer(timeout, func() (int, error) {
		return d.out.Write(buf)
	})
}

// WriteHandshake writes to the dedicated handshake (HostFS magic)
// endpoint used during the hello sequence.
func (d *Device) WriteHandshake(buf []byte, timeout time.Duration) (int, error) {
	return timedTransfer(timeout, func() (int, error) {
		return d.handshake.Write(buf)
	})
}
