package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
)

// Config holds the runtime settings for ubike.
type Config struct {
	APIBaseURL       string
	RequestTimeout   time.Duration
	PrefsPath        string
	PrefsBackend     string
	LogPath          string
	LogLevel         string
	RosterTTL        time.Duration // zero keeps the roster for the process lifetime
	BatchConcurrency int
	NearbyRadiusM    float64
	NearbyLimit      int
	Home             *HomeLocation
	ListenAddr       string
}

// HomeLocation is the configured default location for nearby searches.
type HomeLocation struct {
	Lat float64
	Lng float64
}

// Supported preference backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

const (
	defaultConfigPath       = "~/.config/ubike/config.toml"
	defaultAPIBaseURL       = "https://apis.youbike.com.tw/"
	defaultRequestTimeout   = 10 * time.Second
	defaultLogPath          = "~/.local/state/ubike/ubike.log"
	defaultLogLevel         = "info"
	defaultBatchConcurrency = 4
	defaultNearbyRadiusM    = 1000
	defaultNearbyLimit      = 20
	defaultListenAddr       = "127.0.0.1:7488"
	defaultSQLiteFile       = "~/.config/ubike/prefs.db"
)

// Environment overrides. Process environment wins over a .env file.
const (
	EnvAPIBaseURL   = "UBIKE_API_BASE_URL"
	EnvPrefsBackend = "UBIKE_PREFS_BACKEND"
	EnvLogLevel     = "UBIKE_LOG_LEVEL"
	EnvListenAddr   = "UBIKE_LISTEN_ADDR"
)

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		APIBaseURL:       defaultAPIBaseURL,
		RequestTimeout:   defaultRequestTimeout,
		PrefsBackend:     BackendFile,
		LogPath:          mustExpand(defaultLogPath),
		LogLevel:         defaultLogLevel,
		BatchConcurrency: defaultBatchConcurrency,
		NearbyRadiusM:    defaultNearbyRadiusM,
		NearbyLimit:      defaultNearbyLimit,
		ListenAddr:       defaultListenAddr,
	}
}

// Load locates and parses the ubike config, falling back to defaults when missing.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()

	file, err := os.Open(resolved)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// defaults
	case err != nil:
		return Config{}, fmt.Errorf("open config: %w", err)
	default:
		defer file.Close()
		if err := cfg.decode(file); err != nil {
			return Config{}, err
		}
	}

	env, err := readDotEnv(filepath.Join(filepath.Dir(resolved), ".env"))
	if err != nil {
		return Config{}, err
	}
	cfg.applyEnv(env)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) decode(r io.Reader) error {
	bytes, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	var raw struct {
		APIBaseURL       string   `toml:"api_base_url"`
		RequestTimeout   int      `toml:"request_timeout"`
		PrefsPath        string   `toml:"prefs_path"`
		PrefsBackend     string   `toml:"prefs_backend"`
		LogPath          string   `toml:"log_path"`
		LogLevel         string   `toml:"log_level"`
		RosterTTL        int      `toml:"roster_ttl"`
		BatchConcurrency int      `toml:"batch_concurrency"`
		NearbyRadiusM    float64  `toml:"nearby_radius_m"`
		NearbyLimit      int      `toml:"nearby_limit"`
		HomeLat          *float64 `toml:"home_lat"`
		HomeLng          *float64 `toml:"home_lng"`
		ListenAddr       string   `toml:"listen_addr"`
	}
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	if v := strings.TrimSpace(raw.APIBaseURL); v != "" {
		c.APIBaseURL = v
	}
	if raw.RequestTimeout > 0 {
		c.RequestTimeout = time.Duration(raw.RequestTimeout) * time.Second
	}
	if v := strings.TrimSpace(raw.PrefsPath); v != "" {
		c.PrefsPath = mustExpand(v)
	}
	if v := strings.TrimSpace(raw.PrefsBackend); v != "" {
		c.PrefsBackend = strings.ToLower(v)
	}
	if v := strings.TrimSpace(raw.LogPath); v != "" {
		c.LogPath = mustExpand(v)
	}
	if v := strings.TrimSpace(raw.LogLevel); v != "" {
		c.LogLevel = strings.ToLower(v)
	}
	if raw.RosterTTL > 0 {
		c.RosterTTL = time.Duration(raw.RosterTTL) * time.Second
	}
	if raw.BatchConcurrency > 0 {
		c.BatchConcurrency = raw.BatchConcurrency
	}
	if raw.NearbyRadiusM > 0 {
		c.NearbyRadiusM = raw.NearbyRadiusM
	}
	if raw.NearbyLimit > 0 {
		c.NearbyLimit = raw.NearbyLimit
	}
	if raw.HomeLat != nil && raw.HomeLng != nil {
		c.Home = &HomeLocation{Lat: *raw.HomeLat, Lng: *raw.HomeLng}
	}
	if v := strings.TrimSpace(raw.ListenAddr); v != "" {
		c.ListenAddr = v
	}
	return nil
}

// readDotEnv loads key/value pairs from path. A missing file yields nothing.
func readDotEnv(path string) (map[string]string, error) {
	values, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return values, nil
}

func (c *Config) applyEnv(dotenv map[string]string) {
	lookup := func(key string) string {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
		return strings.TrimSpace(dotenv[key])
	}
	if v := lookup(EnvAPIBaseURL); v != "" {
		c.APIBaseURL = v
	}
	if v := lookup(EnvPrefsBackend); v != "" {
		c.PrefsBackend = strings.ToLower(v)
	}
	if v := lookup(EnvLogLevel); v != "" {
		c.LogLevel = strings.ToLower(v)
	}
	if v := lookup(EnvListenAddr); v != "" {
		c.ListenAddr = v
	}
}

// Validate reports settings that cannot work.
func (c Config) Validate() error {
	switch c.PrefsBackend {
	case BackendFile, BackendSQLite:
	default:
		return fmt.Errorf("prefs_backend %q: want %q or %q", c.PrefsBackend, BackendFile, BackendSQLite)
	}
	if c.Home != nil {
		if c.Home.Lat < -90 || c.Home.Lat > 90 || c.Home.Lng < -180 || c.Home.Lng > 180 {
			return fmt.Errorf("home location %v,%v out of range", c.Home.Lat, c.Home.Lng)
		}
	}
	return nil
}

// ResolvedPrefsPath returns the preference location for the selected backend.
// An empty result for the file backend means the backend's own default.
func (c Config) ResolvedPrefsPath() string {
	if c.PrefsPath != "" {
		return c.PrefsPath
	}
	if c.PrefsBackend == BackendSQLite {
		return mustExpand(defaultSQLiteFile)
	}
	return ""
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
