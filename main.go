/* pspxlinkbridge - USB-to-XLink Kai bridge for the PSP ad-hoc WiFi plugin
 *
 * The main function
 */

package main

import (
	"bytes"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"
)

const usageText = `Usage:
    %s mode [options]

Modes are:
    run         - run forever, bridging the PSP to XLink Kai
    debug       - logs duplicated on console, -bg option is
                  ignored
    check       - check configuration and exit
    status      - print pspxlinkbridge status and exit

Options are
    -bg         - run in background (ignored in debug mode)
`

// RunMode represents the program run mode
type RunMode int

// Run modes:
//
//	RunDefault - same as RunDebug, until overridden by an argument
//	RunRun     - run forever, bridging the PSP to XLink Kai
//	RunDebug   - logs duplicated on console, -bg option is ignored
//	RunCheck   - check configuration and exit
//	RunStatus  - print pspxlinkbridge status and exit
const (
	RunDefault RunMode = iota
	RunRun
	RunDebug
	RunCheck
	RunStatus
)

// String returns RunMode name
func (m RunMode) String() string {
	switch m {
	case RunDefault:
		return "default"
	case RunRun:
		return "run"
	case RunDebug:
		return "debug"
	case RunCheck:
		return "check"
	case RunStatus:
		return "status"
	}

	return fmt.Sprintf("unknown (%d)", int(m))
}

// RunParameters represents the program run parameters
type RunParameters struct {
	Mode       RunMode // Run mode
	Background bool    // Run in background
}

// usage prints detailed usage and exits
func usage() {
	fmt.Printf(usageText, os.Args[0])
	os.Exit(0)
}

// usageError prints usage error and exits
func usageError(format string, args ...interface{}) {
	if format != "" {
		fmt.Printf(format+"\n", args...)
	}

	fmt.Printf("Try %s -h for more information\n", os.Args[0])
	os.Exit(1)
}

// parseArgv parses program parameters. In a case of usage error,
// it prints a error message and exits
func parseArgv() (params RunParameters) {
	// Catch panics to log
	defer func() {
		v := recover()
		if v != nil {
			InitLog.Panic(v)
		}
	}()

	// Default mode is debug mode, same as ipp-usb
	params.Mode = RunDebug

	modes := 0
	for _, arg := range os.Args[1:] {
		switch arg {
		case "-h", "-help", "--help":
			usage()
		case "run":
			params.Mode = RunRun
			modes++
		case "debug":
			params.Mode = RunDebug
			modes++
		case "check":
			params.Mode = RunCheck
			modes++
		case "status":
			params.Mode = RunStatus
			modes++
		case "-bg":
			params.Background = true
		default:
			usageError("Invalid argument %s", arg)
		}
	}

	if modes > 1 {
		usageError("Conflicting run modes")
	}

	if params.Mode == RunDebug {
		params.Background = false
	}

	return
}

// printStatus prints status of the running pspxlinkbridge daemon, if any
func printStatus() {
	text, err := StatusRetrieve()

	if err != nil {
		InitLog.Info(0, "%s", err)
		return
	}

	text = bytes.Trim(text, "\n")
	lines := bytes.Split(text, []byte("\n"))

	for len(lines) > 0 && len(lines[len(lines)-1]) == 0 {
		lines = lines[0 : len(lines)-1]
	}

	for _, line := range lines {
		InitLog.Info(0, "%s", line)
	}
}

// The main function
func main() {
	var err error

	// Parse arguments
	params := parseArgv()

	// Load configuration file
	err = ConfLoad()
	InitLog.Check(err)

	// Setup logging
	if params.Mode != RunDebug &&
		params.Mode != RunCheck &&
		params.Mode != RunStatus {
		Console.ToNowhere()
	} else if Conf.ColorConsole {
		Console.ToColorConsole()
	}

	Log.ToRunFile()
	Log.SetLevels(Conf.LogFile)
	Console.SetLevels(Conf.LogConsole)
	Log.Cc(LogAll, Console)

	// In RunCheck mode, look for the PSP on the USB bus
	if params.Mode == RunCheck {
		InitLog.Info(0, "Configuration files: OK")

		addr, err := FindPSP()
		if err != nil {
			InitLog.Info(0, "No PSP found: %s", err)
		} else {
			InitLog.Info(0, "PSP found at %s", addr)
		}
	}

	// In RunStatus mode, print status and we are done
	if params.Mode == RunStatus {
		printStatus()
		os.Exit(0)
	}

	// If mode is "check", we are done
	if params.Mode == RunCheck {
		os.Exit(0)
	}

	// If background run is requested, it's time to fork
	if params.Background {
		err = Daemon()
		InitLog.Check(err)
		os.Exit(0)
	}

	// Prevent multiple copies of pspxlinkbridge from running at the
	// same time
	os.MkdirAll(PathLockDir, 0755)
	lock, err := os.OpenFile(PathLockFile,
		os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	InitLog.Check(err)
	defer lock.Close()

	err = FileLock(lock, true, false)
	if err == ErrLockIsBusy {
		InitLog.Exit(0, "pspxlinkbridge already running")
	}
	InitLog.Check(err)
	defer FileUnlock(lock)

	Log.Info(' ', "===============================")
	Log.Info(' ', "pspxlinkbridge started in %q mode, pid=%d",
		params.Mode, os.Getpid())
	defer Log.Info(' ', "pspxlinkbridge finished")

	// Close stdin/stdout/stderr, unless running in debug mode
	if params.Mode != RunDebug {
		err = CloseStdInOutErr()
		InitLog.Check(err)
	}

	runBridge()
}

// runBridge wires the Bridge and the XLink Kai client together and
// runs until SIGINT or SIGTERM is received. It does not return on its
// own when the Bus Pump gives up after exhausting its fatal retries.
func runBridge() {
	bridge := NewBridge(&Conf, Log)

	if !bridge.Open() {
		Log.Exit(0, "no PSP found on the USB bus")
	}

	xlink := NewXLinkClient(Conf.XLinkAddress, Conf.XLinkPort, Conf.XLinkAutoDiscover, Log)
	if err := xlink.Open(); err != nil {
		Log.Exit(0, "xlink: %s", err)
	}
	defer xlink.Close()

	bridge.SetEgressSink(xlink)

	if !bridge.Start() {
		Log.Exit(0, "bridge failed to start")
	}

	xlink.SetSegmenter(bridge.Segmenter())
	xlink.Start()

	if err := CtrlsockStart(bridge.Status); err != nil {
		Log.Exit(0, "ctrlsock: %s", err)
	}
	defer CtrlsockStop()

	waitForShutdown()

	// Bridge.Close() and XLinkClient.RequestStop() each block on a
	// RequestStop/done handshake with their own goroutines. Tearing
	// them down concurrently, rather than one after another, keeps
	// shutdown latency to the slower of the two instead of their sum.
	var g errgroup.Group
	g.Go(func() error {
		bridge.Close()
		return nil
	})
	g.Go(func() error {
		xlink.RequestStop()
		return nil
	})
	g.Wait()
}

// waitForShutdown blocks until SIGINT or SIGTERM arrives.
func waitForShutdown() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	Log.Info(' ', "shutdown requested")
}
