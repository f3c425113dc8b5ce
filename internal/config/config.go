// Package config loads the fairjack server configuration from HCL.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/lox/fairjack/internal/game"
	"github.com/lox/fairjack/internal/identity"
	"github.com/lox/fairjack/internal/store"
)

// Config represents the complete server configuration
type Config struct {
	Server   ServerSettings  `hcl:"server,block"`
	Chain    ChainSettings   `hcl:"chain,block"`
	Store    StoreSettings   `hcl:"store,block"`
	Accounts []AccountConfig `hcl:"account,block"`
}

// ServerSettings contains the HTTP listener settings
type ServerSettings struct {
	Address  string `hcl:"address,optional"`
	Port     int    `hcl:"port,optional"`
	LogLevel string `hcl:"log_level,optional"`
}

// ChainSettings controls block production
type ChainSettings struct {
	BlockIntervalMS int `hcl:"block_interval_ms,optional"`
	MaxBlockTxs     int `hcl:"max_block_txs,optional"`
}

// StoreSettings selects where game records live
type StoreSettings struct {
	Driver string `hcl:"driver,optional"`
	Path   string `hcl:"path,optional"`
}

// AccountConfig funds an identity at startup. The identity is either given
// directly or derived from a seed.
type AccountConfig struct {
	Name     string `hcl:"name,label"`
	Identity string `hcl:"identity,optional"`
	Seed     string `hcl:"seed,optional"`
	Balance  uint64 `hcl:"balance"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads configuration from an HCL file. A missing file yields the
// defaults.
func Load(filename string) (*Config, error) {
	if _, err := os.Stat(filename); errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var config Config
	diags = gohcl.DecodeBody(file.Body, nil, &config)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	config.applyDefaults()
	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = "localhost"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Chain.BlockIntervalMS == 0 {
		c.Chain.BlockIntervalMS = 200
	}
	if c.Chain.MaxBlockTxs == 0 {
		c.Chain.MaxBlockTxs = 256
	}
	if c.Store.Driver == "" {
		c.Store.Driver = store.DriverMemory
	}
	if c.Store.Driver == store.DriverSQLite && c.Store.Path == "" {
		c.Store.Path = "fairjack.db"
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if _, err := log.ParseLevel(c.Server.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q", c.Server.LogLevel)
	}
	if c.Chain.BlockIntervalMS < 1 {
		return fmt.Errorf("block interval must be positive")
	}
	if c.Chain.MaxBlockTxs < 1 {
		return fmt.Errorf("max block txs must be positive")
	}

	switch c.Store.Driver {
	case store.DriverMemory:
	case store.DriverSQLite:
		if c.Store.Path == "" {
			return fmt.Errorf("sqlite store needs a path")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}

	seen := make(map[game.Identity]string)
	for _, a := range c.Accounts {
		id, err := a.ResolveIdentity()
		if err != nil {
			return fmt.Errorf("account %s: %w", a.Name, err)
		}
		if other, ok := seen[id]; ok {
			return fmt.Errorf("account %s: same identity as %s", a.Name, other)
		}
		seen[id] = a.Name
	}
	return nil
}

// Address returns the listen address
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}

// BlockInterval returns the block interval as a duration.
func (c *Config) BlockInterval() time.Duration {
	return time.Duration(c.Chain.BlockIntervalMS) * time.Millisecond
}

// ResolveIdentity returns the account's identity.
func (a AccountConfig) ResolveIdentity() (game.Identity, error) {
	switch {
	case a.Identity != "" && a.Seed != "":
		return "", fmt.Errorf("set identity or seed, not both")
	case a.Identity != "":
		id := game.Identity(a.Identity)
		if err := identity.Validate(id); err != nil {
			return "", err
		}
		return id, nil
	case a.Seed != "":
		return identity.FromSeed([]byte(a.Seed)).Identity(), nil
	default:
		return "", fmt.Errorf("needs an identity or a seed")
	}
}
