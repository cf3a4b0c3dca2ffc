package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/soypat/easyweb/tcpstack"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "easyweb.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, "local_ip: 10.0.0.5\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LocalIP != [4]byte{10, 0, 0, 5} {
		t.Errorf("LocalIP = %v, want 10.0.0.5", cfg.LocalIP)
	}
	if cfg.SubnetMask != [4]byte{255, 255, 255, 0} {
		t.Errorf("SubnetMask default = %v, want 255.255.255.0", cfg.SubnetMask)
	}
	if cfg.Gateway != [4]byte{192, 168, 1, 1} {
		t.Errorf("Gateway default = %v, want 192.168.1.1", cfg.Gateway)
	}
	if cfg.LocalPort != 80 {
		t.Errorf("LocalPort default = %d, want 80", cfg.LocalPort)
	}
	if cfg.MaxTCPRxData != 536 || cfg.MaxTCPTxData != 536 {
		t.Errorf("MaxTCPRxData/TxData defaults = %d/%d, want 536/536", cfg.MaxTCPRxData, cfg.MaxTCPTxData)
	}
	if cfg.MaxRetries != 5 {
		t.Errorf("MaxRetries default = %d, want 5", cfg.MaxRetries)
	}
	if cfg.DefaultTTL != 64 {
		t.Errorf("DefaultTTL default = %d, want 64", cfg.DefaultTTL)
	}
	wantMAC := [6]byte{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}
	if cfg.LocalMAC != wantMAC {
		t.Errorf("LocalMAC default = %x, want %x", cfg.LocalMAC, wantMAC)
	}
}

func TestLoadOverridesAllFields(t *testing.T) {
	path := writeConfig(t, `
local_mac: "02:aa:bb:cc:dd:ee"
local_ip: 172.16.0.2
subnet_mask: 255.255.0.0
gateway: 172.16.0.1
local_port: 8080
max_tcp_rx_data: 1024
max_tcp_tx_data: 1024
max_eth_tx_data: 1400
retry_timeout_ticks: 20
fin_timeout_ticks: 80
max_retries: 3
default_ttl: 32
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	wantMAC := [6]byte{0x02, 0xaa, 0xbb, 0xcc, 0xdd, 0xee}
	if cfg.LocalMAC != wantMAC {
		t.Errorf("LocalMAC = %x, want %x", cfg.LocalMAC, wantMAC)
	}
	if cfg.LocalIP != [4]byte{172, 16, 0, 2} {
		t.Errorf("LocalIP = %v, want 172.16.0.2", cfg.LocalIP)
	}
	if cfg.SubnetMask != [4]byte{255, 255, 0, 0} {
		t.Errorf("SubnetMask = %v, want 255.255.0.0", cfg.SubnetMask)
	}
	if cfg.Gateway != [4]byte{172, 16, 0, 1} {
		t.Errorf("Gateway = %v, want 172.16.0.1", cfg.Gateway)
	}
	if cfg.LocalPort != 8080 {
		t.Errorf("LocalPort = %d, want 8080", cfg.LocalPort)
	}
	if cfg.MaxTCPRxData != 1024 || cfg.MaxTCPTxData != 1024 {
		t.Errorf("MaxTCPRxData/TxData = %d/%d, want 1024/1024", cfg.MaxTCPRxData, cfg.MaxTCPTxData)
	}
	if cfg.MaxEthTxData != 1400 {
		t.Errorf("MaxEthTxData = %d, want 1400", cfg.MaxEthTxData)
	}
	if cfg.RetryTimeout != 20 {
		t.Errorf("RetryTimeout = %d, want 20", cfg.RetryTimeout)
	}
	if cfg.FinTimeout != 80 {
		t.Errorf("FinTimeout = %d, want 80", cfg.FinTimeout)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", cfg.MaxRetries)
	}
	if cfg.DefaultTTL != 32 {
		t.Errorf("DefaultTTL = %d, want 32", cfg.DefaultTTL)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml")); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}

func TestLoadBadMAC(t *testing.T) {
	path := writeConfig(t, "local_mac: \"not-a-mac\"\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for a malformed local_mac")
	}
}

func TestLoadShortMAC(t *testing.T) {
	// A string net.ParseMAC accepts that nonetheless isn't 6 bytes
	// (net.ParseMAC also accepts 8-byte EUI-64 addresses).
	path := writeConfig(t, "local_mac: \"02:00:00:00:00:00:00:01\"\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for a non-6-byte MAC")
	}
}

func TestLoadBadLocalIP(t *testing.T) {
	path := writeConfig(t, "local_ip: not-an-ip\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for a malformed local_ip")
	}
}

func TestLoadIPv6Rejected(t *testing.T) {
	path := writeConfig(t, "local_ip: \"::1\"\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for an IPv6 local_ip")
	}
}

func TestLoadBadSubnetMask(t *testing.T) {
	path := writeConfig(t, "subnet_mask: garbage\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for a malformed subnet_mask")
	}
}

func TestLoadBadGateway(t *testing.T) {
	path := writeConfig(t, "gateway: garbage\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for a malformed gateway")
	}
}

func TestLoadStructDiff(t *testing.T) {
	path := writeConfig(t, `
local_mac: "02:aa:bb:cc:dd:ee"
local_ip: 172.16.0.2
subnet_mask: 255.255.0.0
gateway: 172.16.0.1
local_port: 8080
max_tcp_rx_data: 1024
max_tcp_tx_data: 1024
max_eth_tx_data: 1400
retry_timeout_ticks: 20
fin_timeout_ticks: 80
max_retries: 3
default_ttl: 32
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	want := tcpstack.Config{
		LocalMAC:     [6]byte{0x02, 0xaa, 0xbb, 0xcc, 0xdd, 0xee},
		LocalIP:      [4]byte{172, 16, 0, 2},
		SubnetMask:   [4]byte{255, 255, 0, 0},
		Gateway:      [4]byte{172, 16, 0, 1},
		LocalPort:    8080,
		MaxTCPRxData: 1024,
		MaxTCPTxData: 1024,
		MaxEthTxData: 1400,
		RetryTimeout: 20,
		FinTimeout:   80,
		MaxRetries:   3,
		DefaultTTL:   32,
	}
	// Logger/Metrics are left nil by Load and compared as such here.
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeConfig(t, "local_ip: 10.0.0.5\n")
	t.Setenv("EASYWEB_LOCAL_PORT", "9090")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LocalPort != 9090 {
		t.Errorf("LocalPort with env override = %d, want 9090", cfg.LocalPort)
	}
}
