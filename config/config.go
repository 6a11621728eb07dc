// Package config loads and validates relay configuration, grounded on
// the teacher's engine/config.go: viper for layered loading with
// registered defaults, yaml.v2 for round-tripping the resolved config
// back to disk.
package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
)

// Config mirrors spec.md §6's recognized options.
type Config struct {
	Host   string   `yaml:"Host"`
	Port   int      `yaml:"Port"`
	Server string   `yaml:"Server"`
	Domain string   `yaml:"Domain"`
	Hashes []string `yaml:"Hashes"`

	LimitServerConnections int `yaml:"LimitServerConnections"`
	LimitClientConnections int `yaml:"LimitClientConnections"`
	LimitMessageRate       int `yaml:"LimitMessageRate"`

	Init  bool `yaml:"Init"`
	Relay bool `yaml:"Relay"`
	Dev   bool `yaml:"Dev"`
}

// Load reads configuration from path (if it exists) layered over the
// defaults below, the same shape as engine.InitConf's
// viper.SetDefault/viper.ReadInConfig/viper.Unmarshal sequence.
func Load(path string) (*Config, error) {
	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")

	viper.SetDefault("Port", 10509)
	viper.SetDefault("Server", "0.0.0.0")
	viper.SetDefault("LimitServerConnections", 0)
	viper.SetDefault("LimitClientConnections", 0)
	viper.SetDefault("LimitMessageRate", 0)
	viper.SetDefault("Init", true)
	viper.SetDefault("Relay", false)
	viper.SetDefault("Dev", false)

	if _, err := os.Stat(path); err == nil {
		if err := viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	c := &Config{}
	if err := viper.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks spec.md §6's required fields, grounded on
// engine/config.go's Validate/NormlizeConfigDir pattern of rejecting a
// config before it reaches the engine.
func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("config: host is required")
	}
	if len(c.Hashes) == 0 {
		return fmt.Errorf("config: hashes must be non-empty")
	}
	return nil
}

// WriteYAML persists c to path, mirroring engine.Config.WriteYaml.
func (c *Config) WriteYAML(path string) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	return os.WriteFile(path, b, 0644)
}
