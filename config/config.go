/*
	Research
	Copyright (c) 2024 The Research Authors

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU Affero General Public License as published
	by the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU Affero General Public License for more details.

	You should have received a copy of the GNU Affero General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

// Package config loads the program configuration from three layers:
// struct defaults, then an optional YAML config file, then
// RESEARCH_* environment variables, each overriding the last.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "RESEARCH_CONFIG"

// envPrefix prefixes all recognized environment variables, e.g.
// RESEARCH_DB, RESEARCH_POCKET_CONSUMER_KEY.
const envPrefix = "RESEARCH_"

// Config is the program configuration.
type Config struct {
	// DB is the path of the library database file.
	DB string `koanf:"db"`

	// Timezone renders listing and site timestamps; IANA name,
	// empty means UTC.
	Timezone string `koanf:"timezone"`

	Pocket PocketConfig `koanf:"pocket"`
}

// PocketConfig carries Pocket credentials supplied outside the
// database. Values stored in the library's secrets table win over
// these; these serve first-time auth and one-off runs.
type PocketConfig struct {
	ConsumerKey string `koanf:"consumer_key"`
	AccessToken string `koanf:"access_token"`
}

// Location resolves the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func defaultConfig() *Config {
	return &Config{
		DB: "./research.sqlite",
	}
}

// Load builds the configuration from defaults, an optional config
// file, and the environment.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	// RESEARCH_POCKET_CONSUMER_KEY -> pocket.consumer_key
	envProvider := env.Provider(envPrefix, ".", func(key string) string {
		key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
		switch {
		case strings.HasPrefix(key, "pocket_"):
			return "pocket." + strings.TrimPrefix(key, "pocket_")
		default:
			return key
		}
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling configuration: %w", err)
	}
	return cfg, nil
}

// findConfigFile returns the first config file that exists, if any.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	paths := []string{"research.yaml", "research.yml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(home, ".config", "research", "config.yaml"),
			filepath.Join(home, ".config", "research", "config.yml"))
	}
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
