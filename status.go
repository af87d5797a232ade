/* pspxlinkbridge - USB-to-XLink Kai bridge for the PSP ad-hoc WiFi plugin
 *
 * Bridge status support
 */

package main

import (
	"bytes"
	"fmt"
	"io/ioutil"
	"net"
	"net/http"
)

// BridgeStatus is a snapshot of the running bridge's state, reported
// over the control socket to the "status" CLI mode.
type BridgeStatus struct {
	Status       EngineStatus
	Addr         UsbAddr
	RWRetries    int
	FatalRetries int
	WifiInDepth  int
	WifiInCap    int
	UsbOutDepth  int
	UsbOutCap    int
}

// StatusRetrieve connects to the running pspxlinkbridge daemon,
// retrieves its status and returns it as printable text.
func StatusRetrieve() ([]byte, error) {
	t := &http.Transport{
		Dial: func(network, addr string) (net.Conn, error) {
			return CtrlsockDial()
		},
	}

	c := &http.Client{Transport: t}

	rsp, err := c.Get("http://localhost/status")
	if err != nil {
		return nil, err
	}
	defer rsp.Body.Close()

	return ioutil.ReadAll(rsp.Body)
}

// StatusFormat formats a BridgeStatus as text, the way the control
// socket's /status endpoint and the CLI "status" mode both render it.
func StatusFormat(st BridgeStatus) []byte {
	buf := &bytes.Buffer{}

	fmt.Fprintf(buf, "pspxlinkbridge %s: %s\n", Version, st.Status)
	fmt.Fprintf(buf, "device: %s\n", st.Addr)
	fmt.Fprintf(buf, "rw_retries: %d\n", st.RWRetries)
	fmt.Fprintf(buf, "fatal_retries: %d\n", st.FatalRetries)
	fmt.Fprintf(buf, "wifi-in queue: %d/%d\n", st.WifiInDepth, st.WifiInCap)
	fmt.Fprintf(buf, "usb-out queue: %d/%d\n", st.UsbOutDepth, st.UsbOutCap)

	return buf.Bytes()
}
