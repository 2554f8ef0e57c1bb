// Package config loads this subsystem's tunables from a YAML file:
// frame pool size (or the fraction-of-host-memory sizing in mem.host),
// swap device path and capacity, and the metrics listener address. It
// follows the same viper load-then-unmarshal shape used elsewhere in
// the example corpus for small service configs.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

/// Config is the demo binary's full tunable set.
type Config struct {
	Frames struct {
		/// Pages is an explicit frame pool size in pages. Zero means
		/// "use HostFraction instead".
		Pages int `mapstructure:"pages"`
		/// HostFraction sizes the pool as a fraction of the host's
		/// available memory when Pages is zero.
		HostFraction float64 `mapstructure:"host_fraction"`
	} `mapstructure:"frames"`

	Swap struct {
		/// Path is the backing file for the swap device. Empty means
		/// use an in-memory disk (tests, or a throwaway demo run).
		Path  string `mapstructure:"path"`
		Slots int    `mapstructure:"slots"`
		/// MaxInflight bounds concurrent swap I/Os.
		MaxInflight int64 `mapstructure:"max_inflight"`
	} `mapstructure:"swap"`

	Metrics struct {
		/// ListenAddr is where the Prometheus handler is served, e.g.
		/// ":9575". Empty disables the metrics server.
		ListenAddr string `mapstructure:"listen_addr"`
	} `mapstructure:"metrics"`
}

/// Default returns the configuration the demo binary runs with when no
/// file is supplied.
func Default() *Config {
	c := &Config{}
	c.Frames.Pages = 256
	c.Frames.HostFraction = 0.05
	c.Swap.Slots = 1024
	c.Swap.MaxInflight = 4
	c.Metrics.ListenAddr = ""
	return c
}

/// Load reads path (YAML) and unmarshals it over Default(), so an
/// incomplete file still yields usable values for whatever it omits.
func Load(path string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}
