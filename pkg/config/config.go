// Package config loads stack configuration from a YAML file through
// viper. A zero-value file is valid; every field has a default.
package config

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/Acteus/vib-OS-sub000/pkg/common"
)

// InterfaceConfig describes one interface to bring up at start.
type InterfaceConfig struct {
	Name    string `mapstructure:"name"`
	MAC     string `mapstructure:"mac"`
	IP      string `mapstructure:"ip"`
	Netmask string `mapstructure:"netmask"`
	Gateway string `mapstructure:"gateway"`
}

// Config is the full stack configuration.
type Config struct {
	LogLevel   string            `mapstructure:"log_level"`
	LogFormat  string            `mapstructure:"log_format"`
	Interfaces []InterfaceConfig `mapstructure:"interfaces"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
}

// Load reads the configuration file at path. An empty path returns the
// defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that every interface definition parses. Addresses are
// validated here so a typo fails at load time, not at first transmit.
func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: bad log_level %q: %w", c.LogLevel, err)
	}
	for _, ifc := range c.Interfaces {
		if ifc.Name == "" {
			return fmt.Errorf("config: interface with empty name")
		}
		if _, err := common.ParseMAC(ifc.MAC); err != nil {
			return fmt.Errorf("config: interface %s: %w", ifc.Name, err)
		}
		for _, addr := range []string{ifc.IP, ifc.Netmask, ifc.Gateway} {
			if addr == "" {
				continue
			}
			if _, err := common.ParseIPv4(addr); err != nil {
				return fmt.Errorf("config: interface %s: %w", ifc.Name, err)
			}
		}
	}
	return nil
}

// ConfigureLogger applies the log level and format to log.
func (c *Config) ConfigureLogger(log *logrus.Logger) error {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return fmt.Errorf("config: bad log_level %q: %w", c.LogLevel, err)
	}
	log.SetLevel(level)
	if c.LogFormat == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
	return nil
}
