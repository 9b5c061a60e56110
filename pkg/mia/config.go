// Package mia assembles the adapter: configuration, logging, the router
// with its five endpoints, the management socket and the HTTP API.
package mia

import (
	"fmt"
	"net"
	"strings"

	"github.com/spf13/viper"
)

// InvalidIP is the sentinel address that disables sending to a peer. A
// destination port of 0 does the same.
const InvalidIP = "0.0.0.0"

// Config is the static configuration of the adapter process. Dynamic
// settings (delays, drop policies, checksum) start from these values and
// move through the management surfaces afterwards.
type Config struct {
	TPNListenAddress  string `mapstructure:"tpn_listen_address"`
	VMWListenAddress  string `mapstructure:"vmw_listen_address"`
	KBAListenAddress  string `mapstructure:"kba_listen_address"`
	MDListenAddress   string `mapstructure:"mission_data_listen_address"`
	SokfListenAddress string `mapstructure:"sokf_listen_address"`

	CPVMWDestAddress string `mapstructure:"cp_vmw_dest_address"`
	DPVMWDestAddress string `mapstructure:"dp_vmw_dest_address"`
	KBADestAddress   string `mapstructure:"kba_dest_address"`
	MDDestAddress    string `mapstructure:"mission_data_dest_address"`
	TPNDestAddress   string `mapstructure:"tpn_dest_address"`

	HPLNodeID      uint8   `mapstructure:"hpl_node_id"`
	MDNodeID       uint8   `mapstructure:"md_node_id"`
	TPNNodeID      uint8   `mapstructure:"tpn_node_id"`
	BypassTPNNodes []uint8 `mapstructure:"bypass_tpn_nodes"`

	ItmDelay         uint32 `mapstructure:"itm_delay"`
	UDPChecksum      bool   `mapstructure:"udp_checksum"`
	MPLSQOSForITE    uint8  `mapstructure:"mpls_qos_for_ite_data"`
	DropSeed         int64  `mapstructure:"drop_seed"`
	APIListenAddress string `mapstructure:"api_listen_address"`
	MgmtPassword     string `mapstructure:"mgmt_password"`
	ConfigFile       string `mapstructure:"config_file"`
}

func DefaultConfig() *Config {
	return &Config{
		TPNListenAddress:  ":6001",
		VMWListenAddress:  ":6002",
		KBAListenAddress:  ":6003",
		MDListenAddress:   ":6004",
		SokfListenAddress: ":6005",
		CPVMWDestAddress:  InvalidIP + ":0",
		DPVMWDestAddress:  InvalidIP + ":0",
		KBADestAddress:    InvalidIP + ":0",
		MDDestAddress:     InvalidIP + ":0",
		TPNDestAddress:    InvalidIP + ":0",
		HPLNodeID:         0x7F,
		MPLSQOSForITE:     2,
		DropSeed:          1,
		APIListenAddress:  ":7781",
		ConfigFile:        "mia.yaml",
	}
}

// LoadConfig loads configuration from file and environment, file values
// overriding defaults and MIA_* environment variables overriding both.
func LoadConfig(configFile string) (*Config, error) {
	cfg := DefaultConfig()
	if configFile != "" {
		cfg.ConfigFile = configFile
	}

	viper.SetConfigName(strings.TrimSuffix(cfg.ConfigFile, ".yaml"))
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("/etc/mia/")
	viper.AddConfigPath("$HOME/.mia")
	viper.SetEnvPrefix("MIA")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ResolveDest turns a configured destination into a UDP address. The
// sentinel address or a zero port yields nil, which disables sends to
// that peer.
func ResolveDest(addr string) (*net.UDPAddr, error) {
	if addr == "" {
		return nil, nil
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("destination %q: %w", addr, err)
	}
	if host == InvalidIP || host == "" || port == "0" {
		return nil, nil
	}
	udp, err := net.ResolveUDPAddr("udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("destination %q: %w", addr, err)
	}
	return udp, nil
}

// BypassSet converts the configured bypass node list to a lookup set.
func (c *Config) BypassSet() map[uint8]bool {
	set := make(map[uint8]bool, len(c.BypassTPNNodes))
	for _, n := range c.BypassTPNNodes {
		set[n] = true
	}
	return set
}
