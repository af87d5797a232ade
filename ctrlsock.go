/* pspxlinkbridge - USB-to-XLink Kai bridge for the PSP ad-hoc WiFi plugin
 *
 * Control socket handler
 *
 * pspxlinkbridge runs a tiny HTTP server on a top of the unix domain
 * control socket. Currently it is only used to obtain bridge status
 * from the running daemon.
 */

package main

import (
	"log"
	"net"
	"net/http"
	"os"
	"syscall"
)

var (
	// CtrlsockAddr contains control socket address in
	// a form of the net.UnixAddr structure
	CtrlsockAddr = &net.UnixAddr{Name: PathControlSocket, Net: "unix"}

	// ctrlsockStatusFunc is set by CtrlsockStart and queried by every
	// /status request. It reads straight from the live Bridge so the
	// control socket never holds a stale snapshot.
	ctrlsockStatusFunc func() BridgeStatus

	// ctrlsockServer is a HTTP server that runs on a top of
	// the control socket
	ctrlsockServer = http.Server{
		Handler:  http.HandlerFunc(ctrlsockHandler),
		ErrorLog: log.New(Log.LineWriter(LogError, '!'), "", 0),
	}
)

// ctrlsockHandler handles HTTP requests that come over the
// control socket
func ctrlsockHandler(w http.ResponseWriter, r *http.Request) {
	Log.Debug(' ', "ctrlsock: %s %s", r.Method, r.URL)

	defer func() {
		if v := recover(); v != nil {
			Log.Begin().Error('!', "ctrlsock: panic: %v", v).Commit()
		}
	}()

	if r.Method != "GET" {
		http.Error(w, r.Method+": method not supported",
			http.StatusMethodNotAllowed)
		return
	}

	if r.URL.Path != "/status" {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	httpNoCache(w)
	w.WriteHeader(http.StatusOK)

	var st BridgeStatus
	if ctrlsockStatusFunc != nil {
		st = ctrlsockStatusFunc()
	}
	w.Write(StatusFormat(st))
}

// httpNoCache sets response headers that disable caching
func httpNoCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
}

// CtrlsockStart starts the control socket server, querying status
// from getStatus on every request.
func CtrlsockStart(getStatus func() BridgeStatus) error {
	Log.Debug(' ', "ctrlsock: listening at %q", PathControlSocket)

	ctrlsockStatusFunc = getStatus

	os.Remove(PathControlSocket)

	listener, err := net.ListenUnix("unix", CtrlsockAddr)
	if err != nil {
		return err
	}

	// Make socket accessible to everybody. Error is ignored, it's
	// not a reason to abort the bridge.
	os.Chmod(PathControlSocket, 0777)

	go func() {
		ctrlsockServer.Serve(listener)
	}()

	return nil
}

// CtrlsockStop stops the control socket server
func CtrlsockStop() {
	Log.Debug(' ', "ctrlsock: shutdown")
	ctrlsockServer.Close()
}

// CtrlsockDial connects to the control socket of the running
// pspxlinkbridge daemon
func CtrlsockDial() (net.Conn, error) {
	conn, err := net.DialUnix("unix", nil, CtrlsockAddr)

	if err == nil {
		return conn, err
	}

	if neterr, ok := err.(*net.OpError); ok {
		if syserr, ok := neterr.Err.(*os.SyscallError); ok {
			switch syserr.Err {
			case syscall.ECONNREFUSED, syscall.ENOENT:
				err = ErrNoDaemon

			case syscall.EACCES, syscall.EPERM:
				err = ErrAccess
			}
		}
	}

	return conn, err
}
