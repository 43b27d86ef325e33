// Package config resolves connection settings. Later layers win:
// defaults, the YAML file, .env plus the process environment, and finally
// command-line flags (applied by the caller).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultAPIURL = "https://wki-wip-api.onrender.com/api"
	DefaultDBURI  = "mongodb://localhost:27017"
	DefaultDBName = "wki-wip"
)

// Environment variables read after the YAML file.
const (
	EnvAPIURL = "WIP_API_URL"
	EnvDBURI  = "MONGODB_URI"
	EnvDBName = "DB_NAME"
)

type Collections struct {
	Active   string `yaml:"active"`
	Archived string `yaml:"archived"`
	// Legacy is the pre-migration archive collection.
	Legacy string `yaml:"legacy"`
}

type Timeouts struct {
	Write time.Duration `yaml:"write"`
	Read  time.Duration `yaml:"read"`
	Bulk  time.Duration `yaml:"bulk"`
	// Delay is the pause between consecutive writes.
	Delay time.Duration `yaml:"delay"`
}

type Config struct {
	APIURL      string      `yaml:"api_url"`
	DBURI       string      `yaml:"db_uri"`
	DBName      string      `yaml:"db_name"`
	Collections Collections `yaml:"collections"`
	Timeouts    Timeouts    `yaml:"timeouts"`
}

func Default() *Config {
	return &Config{
		APIURL: DefaultAPIURL,
		DBURI:  DefaultDBURI,
		DBName: DefaultDBName,
		Collections: Collections{
			Active:   "orders",
			Archived: "archivedorders",
			Legacy:   "archives",
		},
		Timeouts: Timeouts{
			Write: 10 * time.Second,
			Read:  30 * time.Second,
			Bulk:  120 * time.Second,
			Delay: 100 * time.Millisecond,
		},
	}
}

// DefaultPath is $XDG_CONFIG_HOME/wip/config.yaml.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, "wip", "config.yaml")
}

// Load builds the configuration from defaults, the YAML file at path and
// the environment. A missing file is an error only when required is set,
// which the caller does for an explicit --config.
func Load(path string, required bool) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist) && !required:
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// LoadDotEnv loads a .env file into the process environment without
// overriding variables that are already set. A missing file is ignored.
func LoadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("failed to load %s: %w", path, err)
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvAPIURL); v != "" {
		c.APIURL = v
	}
	if v := os.Getenv(EnvDBURI); v != "" {
		c.DBURI = v
	}
	if v := os.Getenv(EnvDBName); v != "" {
		c.DBName = v
	}
}
