/* pspxlinkbridge - USB-to-XLink Kai bridge for the PSP ad-hoc WiFi plugin
 *
 * Common paths
 */

package main

import "os"

// PathExecutableFile is the path to the running binary, used by Daemon
// to re-exec itself into the background.
var PathExecutableFile string

func init() {
	exe, err := os.Executable()
	if err != nil {
		exe = os.Args[0]
	}
	PathExecutableFile = exe
}

const (
	// PathConfDir is the path to the configuration directory
	PathConfDir = "/etc/pspxlinkbridge"

	// PathProgState is the path to the program state directory
	PathProgState = "/var/lib/pspxlinkbridge"

	// PathLockDir is the path to the directory that contains lock files
	PathLockDir = PathProgState + "/lock"

	// PathLockFile is the path to the single-instance lock file
	PathLockFile = PathLockDir + "/pspxlinkbridge.lock"

	// PathLogDir is the path to the directory where the log file is written
	PathLogDir = PathProgState + "/log"

	// PathControlSocket is the path to the unix control socket, used
	// by the "status" run mode to query the running daemon
	PathControlSocket = PathProgState + "/control"
)
