package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

var ErrInvalid = errors.New("invalid config")

// Default returns the configuration used when no file or flag overrides a
// value. Origin has no default and must be supplied.
func Default() *SystemCfg {
	return &SystemCfg{
		ListenHost: "127.0.0.1",
		Port:       8080,
		Client: ClientCfg{
			Timeout:             Duration{30 * time.Second},
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
			IdleConnTimeout:     Duration{10 * time.Second},
		},
		Cache: CacheCfg{
			Store:       StoreMemory,
			Shards:      32,
			CacheErrors: true,
		},
		Log: LogCfg{
			Console: true,
		},
	}
}

// LoadConfig reads the TOML file at path on top of the defaults. An empty
// path returns the defaults.
func LoadConfig(path string) (*SystemCfg, error) {
	config := Default()
	if path == "" {
		return config, nil
	}

	md, err := toml.DecodeFile(path, config)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%w: unknown keys in %s: %v", ErrInvalid, path, undecoded)
	}
	return config, nil
}

// ListenAddr is the address the proxy binds to.
func (c *SystemCfg) ListenAddr() string {
	return net.JoinHostPort(c.ListenHost, strconv.Itoa(c.Port))
}

// Validate checks the values that would make the proxy useless or unsafe to
// start.
func (c *SystemCfg) Validate() error {
	if c.Origin == "" {
		return fmt.Errorf("%w: origin is required", ErrInvalid)
	}
	u, err := url.Parse(c.Origin)
	if err != nil {
		return fmt.Errorf("%w: origin: %v", ErrInvalid, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: origin %q must be an absolute http(s) URL", ErrInvalid, c.Origin)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalid, c.Port)
	}
	if c.MaxConns < 0 {
		return fmt.Errorf("%w: maxConns must be >= 0", ErrInvalid)
	}
	if c.Cache.Store != StoreMemory && c.Cache.Store != StoreSQLite {
		return fmt.Errorf("%w: cache store %q", ErrInvalid, c.Cache.Store)
	}
	if c.Cache.Shards <= 0 {
		return fmt.Errorf("%w: cache shards must be > 0", ErrInvalid)
	}
	return nil
}
