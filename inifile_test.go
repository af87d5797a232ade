/* pspxlinkbridge - USB-to-XLink Kai bridge for the PSP ad-hoc WiFi plugin
 *
 * Tests for .INI reader
 */

package main

import (
	"io"
	"testing"
)

// Don't forget to update testData when pspxlinkbridge.conf changes
var testData = []struct{ section, key, value string }{
	{"usb", "vendor-id", "0x054c"},
	{"usb", "product-id", "0x01c9"},
	{"xlink", "address", "127.0.0.1"},
	{"xlink", "port", "34523"},
	{"xlink", "auto-discover", "true"},
	{"queues", "max-buffered-messages", "1000"},
	{"retries", "max-fatal-retries", "5000"},
	{"retries", "max-read-write-retries", "5000"},
	{"timeouts", "read-timeout-ms", "2"},
	{"timeouts", "write-timeout-ms", "2"},
	{"logging", "file-log", "all"},
	{"logging", "console-log", "debug"},
	{"logging", "max-file-size", "256K"},
	{"logging", "max-backup-files", "5"},
	{"logging", "console-color", "enable"},
}

// Test .INI reader
func TestIniReader(t *testing.T) {
	ini, err := OpenIniFile("testdata/pspxlinkbridge.conf")
	if err != nil {
		t.Fatalf("%s", err)
	}

	defer ini.Close()

	var rec *IniRecord
	current := 0
	for err == nil {
		rec, err = ini.Next()
		if err != nil {
			break
		}

		if current >= len(testData) {
			t.Errorf("unexpected record: [%s] %s = %s", rec.Section, rec.Key, rec.Value)
		} else if rec.Section != testData[current].section ||
			rec.Key != testData[current].key ||
			rec.Value != testData[current].value {
			t.Errorf("data mismatch:")
			t.Errorf("  expected: [%s] %s = %s", testData[current].section, testData[current].key, testData[current].value)
			t.Errorf("  present:  [%s] %s = %s", rec.Section, rec.Key, rec.Value)
		} else {
			current++
		}
	}

	if err != io.EOF {
		t.Fatalf("%s", err)
	}
}
