package config

import "time"

// Duration wraps time.Duration so it can be written as "10s" in TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

type ClientCfg struct {
	Timeout             Duration `toml:"timeout"`
	MaxIdleConns        int      `toml:"maxIdleConn"`
	MaxIdleConnsPerHost int      `toml:"maxIdleConnPerHost"`
	IdleConnTimeout     Duration `toml:"idleConnTimeout"`
}

type CacheCfg struct {
	// Store is "memory" or "sqlite"
	Store  string `toml:"store"`
	Shards int    `toml:"shards"`
	// DSN of the sqlite store, empty for a private in-memory database
	DSN string `toml:"dsn"`
	// CacheErrors controls whether non-2xx origin bodies are stored
	CacheErrors bool `toml:"cacheErrors"`
}

type LogCfg struct {
	Level   string `toml:"level"`
	Console bool   `toml:"console"`
}

type SystemCfg struct {
	ListenHost  string    `toml:"listenHost"`
	Port        int       `toml:"port"`
	Origin      string    `toml:"origin"`
	MaxConns    int       `toml:"maxConns"`
	ReadTimeout Duration  `toml:"readTimeout"`
	AdminAddr   string    `toml:"adminAddr"`
	Client      ClientCfg `toml:"client"`
	Cache       CacheCfg  `toml:"cache"`
	Log         LogCfg    `toml:"log"`
}
