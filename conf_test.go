/* pspxlinkbridge - USB-to-XLink Kai bridge for the PSP ad-hoc WiFi plugin
 *
 * Tests for conf.go
 */

package main

import "testing"

// Loading testdata/pspxlinkbridge.conf should reproduce the values
// inifile_test.go's testData table documents for that fixture.
func TestConfLoadInternal(t *testing.T) {
	saved := Conf
	defer func() { Conf = saved }()

	Conf = Configuration{}

	if err := confLoadInternal("testdata/pspxlinkbridge.conf"); err != nil {
		t.Fatalf("confLoadInternal: %s", err)
	}

	if Conf.UsbVendorID != 0x054c {
		t.Errorf("UsbVendorID = %#x, want 0x054c", Conf.UsbVendorID)
	}
	if Conf.UsbProductID != 0x01c9 {
		t.Errorf("UsbProductID = %#x, want 0x01c9", Conf.UsbProductID)
	}
	if Conf.XLinkAddress != "127.0.0.1" {
		t.Errorf("XLinkAddress = %q, want %q", Conf.XLinkAddress, "127.0.0.1")
	}
	if Conf.XLinkPort != 34523 {
		t.Errorf("XLinkPort = %d, want 34523", Conf.XLinkPort)
	}
	if !Conf.XLinkAutoDiscover {
		t.Error("XLinkAutoDiscover = false, want true")
	}
	if Conf.MaxBufferedMessages != 1000 {
		t.Errorf("MaxBufferedMessages = %d, want 1000", Conf.MaxBufferedMessages)
	}
	if Conf.MaxFatalRetries != 5000 {
		t.Errorf("MaxFatalRetries = %d, want 5000", Conf.MaxFatalRetries)
	}
	if Conf.MaxReadWriteRetries != 5000 {
		t.Errorf("MaxReadWriteRetries = %d, want 5000", Conf.MaxReadWriteRetries)
	}
	if Conf.ReadTimeoutMS != 2 {
		t.Errorf("ReadTimeoutMS = %d, want 2", Conf.ReadTimeoutMS)
	}
	if Conf.LogFile != LogAll {
		t.Errorf("LogFile = %v, want LogAll", Conf.LogFile)
	}
	if Conf.LogConsole != (LogDebug | LogInfo | LogError) {
		t.Errorf("LogConsole = %v, want LogDebug|LogInfo|LogError", Conf.LogConsole)
	}
	if !Conf.ColorConsole {
		t.Error("ColorConsole = false, want true")
	}
	if Conf.LogMaxFileSize != 256*1024 {
		t.Errorf("LogMaxFileSize = %d, want %d", Conf.LogMaxFileSize, 256*1024)
	}
	if Conf.LogMaxBackupFiles != 5 {
		t.Errorf("LogMaxBackupFiles = %d, want 5", Conf.LogMaxBackupFiles)
	}
}

func TestConfLoadInternalMissingFile(t *testing.T) {
	saved := Conf
	defer func() { Conf = saved }()

	if err := confLoadInternal("testdata/does-not-exist.conf"); err != nil {
		t.Fatalf("a missing config file should be silently ignored, got %s", err)
	}
}

func TestConfLoadHexKey(t *testing.T) {
	var id int
	if err := confLoadHexKey(&id, &IniRecord{Key: "vendor-id", Value: "0x054c"}); err != nil || id != 0x054c {
		t.Fatalf("confLoadHexKey(0x054c) = %#x, %v", id, err)
	}
	if err := confLoadHexKey(&id, &IniRecord{Key: "vendor-id", Value: "1356"}); err != nil || id != 1356 {
		t.Fatalf("confLoadHexKey(1356) = %d, %v", id, err)
	}
	if err := confLoadHexKey(&id, &IniRecord{Key: "vendor-id", Value: "not-a-number"}); err == nil {
		t.Fatal("confLoadHexKey should reject a non-numeric value")
	}
}

func TestConfLoadIPPortKeyRange(t *testing.T) {
	var port int
	bad := &IniRecord{Key: "port", Value: "99999"}
	if err := confLoadIPPortKey(&port, bad); err == nil {
		t.Fatal("a port above 65535 should be rejected")
	}

	good := &IniRecord{Key: "port", Value: "34523"}
	if err := confLoadIPPortKey(&port, good); err != nil || port != 34523 {
		t.Fatalf("confLoadIPPortKey(34523) = %d, %v", port, err)
	}
}
