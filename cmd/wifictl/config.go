package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/openclock/espwifi/esp"
)

// KnownNetwork is one entry of the known-networks list. Order matters: when
// several known networks are in range, the earlier entry wins.
type KnownNetwork struct {
	SSID     string `mapstructure:"ssid"`
	Password string `mapstructure:"password"`
}

// NTPConfig selects the time servers and timezone used by synctime.
type NTPConfig struct {
	Servers        []string `mapstructure:"servers"`
	TimezoneOffset int      `mapstructure:"timezone_offset"`
}

// FileConfig is the on-disk configuration.
type FileConfig struct {
	Networks []KnownNetwork `mapstructure:"networks"`
	NTP      NTPConfig      `mapstructure:"ntp"`
}

// loadFileConfig reads the config file. An explicit path must exist; with
// no path the default locations are searched and an absent file simply
// yields the defaults.
func loadFileConfig(path string) (*FileConfig, error) {
	v := viper.New()
	v.SetDefault("ntp.servers", esp.DefaultNTPServers)
	v.SetDefault("ntp.timezone_offset", 0)
	v.SetEnvPrefix("WIFICTL")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("wifictl")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path == "" && errors.As(err, &notFound) {
			return &FileConfig{NTP: NTPConfig{Servers: esp.DefaultNTPServers}}, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg FileConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", v.ConfigFileUsed(), err)
	}
	return &cfg, nil
}

// lookup finds a known network by name, case-insensitively, since SSIDs
// in the config may not match the casing the scan reports.
func (c *FileConfig) lookup(ssid string) (KnownNetwork, bool) {
	for _, n := range c.Networks {
		if strings.EqualFold(n.SSID, ssid) {
			return n, true
		}
	}
	return KnownNetwork{}, false
}
