// Package config is used to load the configuration file
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

const (
	UUIDToolOtool = "otool"
	UUIDToolMachO = "macho"
)

type symbolicate struct {
	DSYM          []string `mapstructure:"dsym"`
	DeviceSupport []string `mapstructure:"device-support"`
	Xcrun         string   `mapstructure:"xcrun"`
	UUIDTool      string   `mapstructure:"uuid-tool"`
	CacheSize     int      `mapstructure:"cache-size"`
	Output        string   `mapstructure:"output"`
	Diff          bool     `mapstructure:"diff"`
}

// Config is the configuration struct
type Config struct {
	Symbolicate symbolicate `mapstructure:"symbolicate"`
}

// SetDefaults registers the default values of every key
func SetDefaults(v *viper.Viper) {
	v.SetDefault("symbolicate.xcrun", "/usr/bin/xcrun")
	v.SetDefault("symbolicate.uuid-tool", UUIDToolOtool)
	v.SetDefault("symbolicate.cache-size", 512)
}

func (c *Config) verify() error {
	switch c.Symbolicate.UUIDTool {
	case UUIDToolOtool, UUIDToolMachO:
	case "":
		c.Symbolicate.UUIDTool = UUIDToolOtool
	default:
		return fmt.Errorf("config: invalid uuid-tool %q (must be %q or %q)", c.Symbolicate.UUIDTool, UUIDToolOtool, UUIDToolMachO)
	}
	if c.Symbolicate.CacheSize <= 0 {
		return fmt.Errorf("config: cache-size must be positive, got %d", c.Symbolicate.CacheSize)
	}
	if c.Symbolicate.Xcrun == "" {
		c.Symbolicate.Xcrun = "/usr/bin/xcrun"
	}
	return nil
}

// LoadConfig loads the configuration from the global viper instance
func LoadConfig() (*Config, error) {
	return Load(viper.GetViper())
}

// Load loads the configuration from v
func Load(v *viper.Viper) (*Config, error) {
	var c *Config

	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal: %v", err)
	}
	if c == nil {
		c = &Config{}
	}

	if err := c.verify(); err != nil {
		return nil, fmt.Errorf("config: failed to verify: %v", err)
	}

	return c, nil
}
