package oci

import (
	"os"
	"path/filepath"
)

type Config struct {
	// Path to the SDK configuration file, defaults to ~/.oci/config
	ConfigFile string
	// Profile of the configuration file, defaults to DEFAULT
	Profile string
}

const DefaultProfile = "DEFAULT"

func (c Config) WithDefaults() Config {
	if c.ConfigFile == "" {
		if home, err := os.UserHomeDir(); err == nil {
			c.ConfigFile = filepath.Join(home, ".oci", "config")
		}
	}
	if c.Profile == "" {
		c.Profile = DefaultProfile
	}
	return c
}
