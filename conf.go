/* pspxlinkbridge - USB-to-XLink Kai bridge for the PSP ad-hoc WiFi plugin
 *
 * Program configuration
 */

package main

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ConfFileName is the name of the pspxlinkbridge configuration file.
const ConfFileName = "pspxlinkbridge.conf"

// Configuration represents a program configuration, matching the
// [usb]/[xlink]/[queues]/[retries]/[timeouts]/[logging] sections
// documented in SPEC_FULL.md. Defaults mirror SettingsModel_Constants
// from the original implementation.
type Configuration struct {
	UsbVendorID  int // PSP USB vendor ID
	UsbProductID int // PSP USB product ID

	XLinkAddress      string // XLink Kai engine address
	XLinkPort         int    // XLink Kai engine UDP port
	XLinkAutoDiscover bool   // Fall back to the loopback default if XLinkAddress is unresolvable

	MaxBufferedMessages int // Capacity of each bounded queue
	MaxFatalRetries     int // Cap on device reset cycles
	MaxReadWriteRetries int // Cap on consecutive R/W failures

	ReadTimeoutMS  int // Per bulk-read timeout
	WriteTimeoutMS int // Per bulk-write timeout

	LogFile      LogLevel // Log-file LogLevel mask
	LogConsole   LogLevel // Console LogLevel mask
	ColorConsole bool     // Enable ANSI colors on console

	LogMaxFileSize    int64 // Maximum log file size
	LogMaxBackupFiles uint  // Count of files preserved during rotation
}

// Conf contains a global instance of program configuration.
var Conf = Configuration{
	UsbVendorID:  UsbVendorID,
	UsbProductID: UsbProductID,

	XLinkAddress:      XLinkDefaultAddress,
	XLinkPort:         XLinkDefaultPort,
	XLinkAutoDiscover: false,

	MaxBufferedMessages: DefaultMaxBufferedMessages,
	MaxFatalRetries:     DefaultMaxFatalRetries,
	MaxReadWriteRetries: DefaultMaxReadWriteRetries,

	ReadTimeoutMS:  DefaultReadTimeoutMS,
	WriteTimeoutMS: DefaultWriteTimeoutMS,

	LogFile:           LogDebug | LogInfo | LogError,
	LogConsole:        LogInfo | LogError,
	ColorConsole:      true,
	LogMaxFileSize:    LogMaxFileSize,
	LogMaxBackupFiles: LogMaxBackupFiles,
}

// ConfLoad loads the program configuration from /etc/pspxlinkbridge
// and from beside the executable, later files overriding earlier ones.
func ConfLoad() error {
	exepath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("conf: %s", err)
	}
	exepath = filepath.Dir(exepath)

	files := []string{
		filepath.Join(PathConfDir, ConfFileName),
		filepath.Join(exepath, ConfFileName),
	}

	for _, file := range files {
		if err := confLoadInternal(file); err != nil {
			return fmt.Errorf("conf: %s", err)
		}
	}

	return nil
}

// confBadValue creates a "bad value" error.
func confBadValue(rec *IniRecord, format string, args ...interface{}) error {
	return fmt.Errorf(rec.Key+": "+format, args...)
}

// confLoadInternal loads the program configuration from a single file.
func confLoadInternal(path string) error {
	ini, err := OpenIniFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			err = nil
		}
		return err
	}
	defer ini.Close()

	for err == nil {
		var rec *IniRecord
		rec, err = ini.Next()
		if err != nil {
			break
		}

		switch rec.Section {
		case "usb":
			switch rec.Key {
			case "vendor-id":
				err = confLoadHexKey(&Conf.UsbVendorID, rec)
			case "product-id":
				err = confLoadHexKey(&Conf.UsbProductID, rec)
			}
		case "xlink":
			switch rec.Key {
			case "address":
				Conf.XLinkAddress = rec.Value
			case "port":
				err = confLoadIPPortKey(&Conf.XLinkPort, rec)
			case "auto-discover":
				err = confLoadBinaryKey(&Conf.XLinkAutoDiscover, rec, "false", "true")
			}
		case "queues":
			switch rec.Key {
			case "max-buffered-messages":
				err = confLoadUintRangeKey(&Conf.MaxBufferedMessages, rec, 1, 1<<20)
			}
		case "retries":
			switch rec.Key {
			case "max-fatal-retries":
				err = confLoadUintRangeKey(&Conf.MaxFatalRetries, rec, 0, 1<<30)
			case "max-read-write-retries":
				err = confLoadUintRangeKey(&Conf.MaxReadWriteRetries, rec, 0, 1<<30)
			}
		case "timeouts":
			switch rec.Key {
			case "read-timeout-ms":
				err = confLoadUintRangeKey(&Conf.ReadTimeoutMS, rec, 0, 60000)
			case "write-timeout-ms":
				err = confLoadUintRangeKey(&Conf.WriteTimeoutMS, rec, 0, 60000)
			}
		case "logging":
			switch rec.Key {
			case "file-log":
				err = confLoadLogLevelKey(&Conf.LogFile, rec)
			case "console-log":
				err = confLoadLogLevelKey(&Conf.LogConsole, rec)
			case "console-color":
				err = confLoadBinaryKey(&Conf.ColorConsole, rec, "disable", "enable")
			case "max-file-size":
				err = confLoadSizeKey(&Conf.LogMaxFileSize, rec)
			case "max-backup-files":
				err = confLoadUintKey(&Conf.LogMaxBackupFiles, rec)
			}
		}
	}

	if err != nil && err != io.EOF {
		return err
	}

	if Conf.XLinkPort < 1 || Conf.XLinkPort > 65535 {
		return errors.New("xlink port must be in range 1...65535")
	}

	return nil
}

func confLoadIPPortKey(out *int, rec *IniRecord) error {
	port, err := strconv.Atoi(rec.Value)
	if err == nil && (port < 1 || port > 65535) {
		err = confBadValue(rec, "must be in range 1...65535")
	}
	if err != nil {
		return err
	}
	*out = port
	return nil
}

// confLoadHexKey loads a USB vendor/product ID, accepting either a
// "0x"-prefixed hex value (as USB IDs are conventionally written) or a
// plain decimal number.
func confLoadHexKey(out *int, rec *IniRecord) error {
	num, err := strconv.ParseUint(rec.Value, 0, 16)
	if err != nil {
		return confBadValue(rec, "%q: invalid USB id", rec.Value)
	}
	*out = int(num)
	return nil
}

func confLoadBinaryKey(out *bool, rec *IniRecord, vFalse, vTrue string) error {
	switch rec.Value {
	case vFalse:
		*out = false
		return nil
	case vTrue:
		*out = true
		return nil
	default:
		return confBadValue(rec, "must be %s or %s", vFalse, vTrue)
	}
}

// confLoadLogLevelKey parses a comma-separated list of log level
// names. The trace levels are domain-specific: trace-usb (raw USB
// packet dumps), trace-xlink (raw XLink Kai datagram dumps).
func confLoadLogLevelKey(out *LogLevel, rec *IniRecord) error {
	var mask LogLevel
	for _, s := range strings.Split(rec.Value, ",") {
		s = strings.TrimSpace(s)
		switch s {
		case "":
		case "error":
			mask |= LogError
		case "info":
			mask |= LogInfo | LogError
		case "debug":
			mask |= LogDebug | LogInfo | LogError
		case "trace-usb":
			mask |= LogTraceUSB | LogDebug | LogInfo | LogError
		case "trace-xlink":
			mask |= LogTraceXLink | LogDebug | LogInfo | LogError
		case "all", "trace-all":
			mask |= LogAll
		default:
			return confBadValue(rec, "invalid log level %q", s)
		}
	}

	*out = mask
	return nil
}

func confLoadSizeKey(out *int64, rec *IniRecord) error {
	units := uint64(1)

	if l := len(rec.Value); l > 0 {
		switch rec.Value[l-1] {
		case 'k', 'K':
			units = 1024
		case 'm', 'M':
			units = 1024 * 1024
		}

		if units != 1 {
			rec.Value = rec.Value[:l-1]
		}
	}

	sz, err := strconv.ParseUint(rec.Value, 10, 64)
	if err != nil {
		return confBadValue(rec, "%q: invalid size", rec.Value)
	}

	if sz > uint64(math.MaxInt64/units) {
		return confBadValue(rec, "size too large")
	}

	*out = int64(sz * units)
	return nil
}

func confLoadUintKey(out *uint, rec *IniRecord) error {
	num, err := strconv.ParseUint(rec.Value, 10, 0)
	if err != nil {
		return confBadValue(rec, "%q: invalid number", rec.Value)
	}
	*out = uint(num)
	return nil
}

// confLoadUintRangeKey loads a plain int-valued key bounded to [min, max].
func confLoadUintRangeKey(out *int, rec *IniRecord, min, max int) error {
	num, err := strconv.Atoi(rec.Value)
	if err != nil {
		return confBadValue(rec, "%q: invalid number", rec.Value)
	}
	if num < min || num > max {
		return confBadValue(rec, "must be in range %d...%d", min, max)
	}
	*out = num
	return nil
}
