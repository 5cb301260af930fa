package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Upstream modes.
const (
	ModeDirect  = "direct"
	ModeSession = "session"
)

type Server struct {
	Port               string `json:"port" yaml:"port"`
	UpstreamTimeoutSec int    `json:"upstream_timeout_sec" yaml:"upstream_timeout_sec"`
	// Cache-Control on successful responses.
	CacheMaxAgeSec          int `json:"cache_max_age_sec" yaml:"cache_max_age_sec"`
	StaleWhileRevalidateSec int `json:"stale_while_revalidate_sec" yaml:"stale_while_revalidate_sec"`
}

type Upstream struct {
	Mode      string  `json:"mode" yaml:"mode"`
	Normalize bool    `json:"normalize" yaml:"normalize"`
	Root      string  `json:"root" yaml:"root"`
	MaxRPS    float64 `json:"max_rps" yaml:"max_rps"`
	Burst     int     `json:"burst" yaml:"burst"`
}

type CBOE struct {
	URL string `json:"url" yaml:"url"`
}

type Yahoo struct {
	OptionsURL string `json:"options_url" yaml:"options_url"`
}

type Session struct {
	LandingURL string `json:"landing_url" yaml:"landing_url"`
	CrumbURL   string `json:"crumb_url" yaml:"crumb_url"`
	TTLSec     int    `json:"ttl_sec" yaml:"ttl_sec"`
}

type Cache struct {
	TTLSec        int    `json:"ttl_sec" yaml:"ttl_sec"`
	MaxItems      int    `json:"max_items" yaml:"max_items"`
	RedisAddr     string `json:"redis_addr" yaml:"redis_addr"`
	RedisPassword string `json:"redis_password" yaml:"redis_password"`
	RedisDB       int    `json:"redis_db" yaml:"redis_db"`
}

type Log struct {
	Level      string `json:"level" yaml:"level"`
	Format     string `json:"format" yaml:"format"`
	Output     string `json:"output" yaml:"output"`
	MaxAgeDays int    `json:"max_age_days" yaml:"max_age_days"`
}

type Config struct {
	Server   Server   `json:"server" yaml:"server"`
	Upstream Upstream `json:"upstream" yaml:"upstream"`
	CBOE     CBOE     `json:"cboe" yaml:"cboe"`
	Yahoo    Yahoo    `json:"yahoo" yaml:"yahoo"`
	Session  Session  `json:"session" yaml:"session"`
	Cache    Cache    `json:"cache" yaml:"cache"`
	Log      Log      `json:"log" yaml:"log"`
}

func Default() Config {
	return Config{
		Server: Server{
			Port:                    "8080",
			UpstreamTimeoutSec:      10,
			CacheMaxAgeSec:          300,
			StaleWhileRevalidateSec: 600,
		},
		Upstream: Upstream{
			Mode:   ModeDirect,
			Root:   "SPX",
			MaxRPS: 5,
			Burst:  5,
		},
		CBOE: CBOE{URL: "https://cdn.cboe.com/api/global/delayed_quotes/options/_SPX.json"},
		Yahoo: Yahoo{
			OptionsURL: "https://query2.finance.yahoo.com/v7/finance/options/%5ESPX",
		},
		Session: Session{
			LandingURL: "https://finance.yahoo.com/quote/%5ESPX/options",
			CrumbURL:   "https://query2.finance.yahoo.com/v1/test/getcrumb",
			TTLSec:     300,
		},
		Cache: Cache{MaxItems: 64},
		Log:   Log{Level: "info", Format: "json", Output: "stdout"},
	}
}

// Load reads a JSON or YAML config (by extension) from path. If path is empty,
// config.json then config.yaml in the working directory are tried; a missing
// file yields defaults. Environment variables override afterwards.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		for _, candidate := range []string{"config.json", "config.yaml", "config.yml"} {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := decode(path, b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func decode(path string, b []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(b, cfg)
	default:
		return json.Unmarshal(b, cfg)
	}
}

// Validate rejects settings the server cannot start with.
func (c Config) Validate() error {
	switch c.Upstream.Mode {
	case ModeDirect, ModeSession:
	default:
		return fmt.Errorf("config: unknown upstream mode %q (want %q or %q)", c.Upstream.Mode, ModeDirect, ModeSession)
	}
	if c.Server.Port == "" {
		return errors.New("config: server.port is empty")
	}
	if c.Upstream.Mode == ModeDirect && c.CBOE.URL == "" {
		return errors.New("config: cboe.url is required in direct mode")
	}
	if c.Upstream.Mode == ModeSession {
		if c.Yahoo.OptionsURL == "" || c.Session.LandingURL == "" || c.Session.CrumbURL == "" {
			return errors.New("config: yahoo.options_url, session.landing_url and session.crumb_url are required in session mode")
		}
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	envInt("UPSTREAM_TIMEOUT_SEC", &cfg.Server.UpstreamTimeoutSec, 1)
	envInt("CACHE_MAX_AGE_SEC", &cfg.Server.CacheMaxAgeSec, 0)
	envInt("STALE_WHILE_REVALIDATE_SEC", &cfg.Server.StaleWhileRevalidateSec, 0)

	if v := os.Getenv("UPSTREAM_MODE"); v != "" {
		cfg.Upstream.Mode = strings.ToLower(strings.TrimSpace(v))
	}
	envBool("UPSTREAM_NORMALIZE", &cfg.Upstream.Normalize)
	if v := os.Getenv("UPSTREAM_ROOT"); v != "" {
		cfg.Upstream.Root = strings.ToUpper(v)
	}
	if v := os.Getenv("UPSTREAM_MAX_RPS"); v != "" {
		if x, err := strconv.ParseFloat(v, 64); err == nil && x >= 0 {
			cfg.Upstream.MaxRPS = x
		}
	}
	envInt("UPSTREAM_BURST", &cfg.Upstream.Burst, 1)

	if v := os.Getenv("CBOE_URL"); v != "" {
		cfg.CBOE.URL = v
	}
	if v := os.Getenv("YAHOO_OPTIONS_URL"); v != "" {
		cfg.Yahoo.OptionsURL = v
	}
	if v := os.Getenv("YAHOO_LANDING_URL"); v != "" {
		cfg.Session.LandingURL = v
	}
	if v := os.Getenv("YAHOO_CRUMB_URL"); v != "" {
		cfg.Session.CrumbURL = v
	}
	envInt("SESSION_TTL_SEC", &cfg.Session.TTLSec, 1)

	envInt("CACHE_TTL_SEC", &cfg.Cache.TTLSec, 0)
	envInt("CACHE_MAX_ITEMS", &cfg.Cache.MaxItems, 1)
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Cache.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Cache.RedisPassword = v
	}
	envInt("REDIS_DB", &cfg.Cache.RedisDB, 0)

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("LOG_OUTPUT"); v != "" {
		cfg.Log.Output = v
	}
	envInt("LOG_MAX_AGE_DAYS", &cfg.Log.MaxAgeDays, 0)
}

// envInt sets *dst from the named variable when it parses and is >= min.
func envInt(name string, dst *int, min int) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	if x, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && x >= min {
		*dst = x
	}
}

func envBool(name string, dst *bool) {
	switch strings.ToLower(os.Getenv(name)) {
	case "1", "true", "yes", "y":
		*dst = true
	case "0", "false", "no", "n":
		*dst = false
	}
}

// LoadEnvFiles exports KEY=VALUE pairs from the given dotenv files into the
// process environment without overriding variables that are already set.
// Missing files are skipped.
func LoadEnvFiles(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}
