// Package config loads the easyWEB host-side simulator's Config from a
// YAML file or the environment via Viper (spec.md §4.M). The embedded
// Engine itself never imports this package: it takes a plain
// tcpstack.Config value built at compile time, matching the reference
// firmware's fixed configuration model.
package config

import (
	"fmt"
	"net"
	"net/netip"
	"strings"

	"github.com/spf13/viper"

	"github.com/soypat/easyweb/tcpstack"
)

// Load reads path (YAML) overlaid with EASYWEB_-prefixed environment
// variables into a tcpstack.Config. Logger and Metrics are left nil;
// the caller wires those in separately (§4.M).
func Load(path string) (tcpstack.Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("EASYWEB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return tcpstack.Config{}, fmt.Errorf("config: %w", err)
	}
	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("local_mac", "02:00:00:00:00:01")
	v.SetDefault("local_ip", "192.168.1.2")
	v.SetDefault("subnet_mask", "255.255.255.0")
	v.SetDefault("gateway", "192.168.1.1")
	v.SetDefault("local_port", 80)
	v.SetDefault("max_tcp_rx_data", 536)
	v.SetDefault("max_tcp_tx_data", 536)
	v.SetDefault("max_eth_tx_data", 600)
	v.SetDefault("retry_timeout_ticks", 10)
	v.SetDefault("fin_timeout_ticks", 40)
	v.SetDefault("max_retries", 5)
	v.SetDefault("default_ttl", 64)
}

func fromViper(v *viper.Viper) (tcpstack.Config, error) {
	mac, err := net.ParseMAC(v.GetString("local_mac"))
	if err != nil || len(mac) != 6 {
		return tcpstack.Config{}, fmt.Errorf("config: bad local_mac %q", v.GetString("local_mac"))
	}
	localIP, err := parseIPv4(v.GetString("local_ip"))
	if err != nil {
		return tcpstack.Config{}, fmt.Errorf("config: bad local_ip: %w", err)
	}
	mask, err := parseIPv4(v.GetString("subnet_mask"))
	if err != nil {
		return tcpstack.Config{}, fmt.Errorf("config: bad subnet_mask: %w", err)
	}
	gw, err := parseIPv4(v.GetString("gateway"))
	if err != nil {
		return tcpstack.Config{}, fmt.Errorf("config: bad gateway: %w", err)
	}

	cfg := tcpstack.Config{
		LocalIP:      localIP,
		SubnetMask:   mask,
		Gateway:      gw,
		LocalPort:    uint16(v.GetUint32("local_port")),
		MaxTCPRxData: uint16(v.GetUint32("max_tcp_rx_data")),
		MaxTCPTxData: uint16(v.GetUint32("max_tcp_tx_data")),
		MaxEthTxData: uint16(v.GetUint32("max_eth_tx_data")),
		RetryTimeout: v.GetUint32("retry_timeout_ticks"),
		FinTimeout:   v.GetUint32("fin_timeout_ticks"),
		MaxRetries:   uint8(v.GetUint32("max_retries")),
		DefaultTTL:   uint8(v.GetUint32("default_ttl")),
	}
	copy(cfg.LocalMAC[:], mac)
	return cfg, nil
}

func parseIPv4(s string) ([4]byte, error) {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return [4]byte{}, err
	}
	addr = addr.Unmap()
	if !addr.Is4() {
		return [4]byte{}, fmt.Errorf("%q is not an IPv4 address", s)
	}
	return addr.As4(), nil
}
