// Package config loads process configuration from the environment (with an
// optional .env file) plus a YAML relay-seed file. Grounded on the teacher
// pack's two config idioms: mroxso-wotrlay's loadConfig/getEnv* functions
// (env vars + godotenv + log.Fatal on invalid required values) and
// feelancer21-clip's YAML-with-validator config struct.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds every knob the gateway reads at startup. Fields map 1:1 to
// environment variables except RelaySeeds, which comes from a YAML file.
type Config struct {
	ListenAddr    string        // LISTEN_ADDR
	BaseURL       string        // NOTECRUMBS_BASE_URL
	DataDir       string        // DATA_DIR, badger store path
	LogLevel      string        // LOG_LEVEL
	FetchTimeout  time.Duration // TIMEOUT_MS
	RefreshPeriod time.Duration // REFRESH_PERIOD_MS; not passed to the refresh domains, which use fixed 5-minute intervals (internal/assemble)
	RedisURL      string        // REDIS_URL, empty disables the redis render cache
	GzipEnabled   bool          // GZIP_ENABLED
	RelaySeedFile string        // RELAY_SEED_FILE

	RelaySeeds []RelaySeed
}

// RelaySeed is one entry of the YAML relay seed list.
type RelaySeed struct {
	URL   string `yaml:"url" validate:"required,url"`
	Read  bool   `yaml:"read"`
	Write bool   `yaml:"write"`
}

type relaySeedFile struct {
	Relays []RelaySeed `yaml:"relays" validate:"dive"`
}

// Load reads .env (best effort), then environment variables with defaults,
// then the relay seed YAML file. It never returns a partially-valid Config:
// on any hard error it returns a zero Config and the error.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("config: could not load .env", "error", err)
	}

	cfg := Config{
		ListenAddr:    getEnvString("LISTEN_ADDR", ":8080"),
		BaseURL:       getEnvString("NOTECRUMBS_BASE_URL", "http://localhost:8080"),
		DataDir:       getEnvString("DATA_DIR", "./data"),
		LogLevel:      getEnvString("LOG_LEVEL", "info"),
		FetchTimeout:  time.Duration(getEnvInt("TIMEOUT_MS", 2000)) * time.Millisecond,
		RefreshPeriod: time.Duration(getEnvInt("REFRESH_PERIOD_MS", 300000)) * time.Millisecond,
		RedisURL:      os.Getenv("REDIS_URL"),
		GzipEnabled:   getEnvBool("GZIP_ENABLED", true),
		RelaySeedFile: getEnvString("RELAY_SEED_FILE", "config/relays.yaml"),
	}

	seeds, err := loadRelaySeeds(cfg.RelaySeedFile)
	if err != nil {
		return Config{}, fmt.Errorf("config: loading relay seeds: %w", err)
	}
	cfg.RelaySeeds = seeds

	return cfg, nil
}

func loadRelaySeeds(path string) ([]RelaySeed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Warn("config: no relay seed file, falling back to built-in defaults", "path", path)
			return defaultRelaySeeds(), nil
		}
		return nil, err
	}

	var doc relaySeedFile
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("unmarshaling %s: %w", path, err)
	}

	v := validator.New()
	if err := v.Struct(doc); err != nil {
		return nil, fmt.Errorf("invalid relay seed file %s: %w", path, err)
	}
	if len(doc.Relays) == 0 {
		return defaultRelaySeeds(), nil
	}
	return doc.Relays, nil
}

func defaultRelaySeeds() []RelaySeed {
	return []RelaySeed{
		{URL: "wss://relay.damus.io", Read: true, Write: false},
		{URL: "wss://relay.nostr.band", Read: true, Write: false},
		{URL: "wss://nos.lol", Read: true, Write: false},
	}
}

func getEnvString(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
		slog.Warn("config: invalid integer value, using default", "key", key, "value", v, "default", defaultValue)
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultValue
	}
	switch strings.ToLower(v) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	default:
		slog.Warn("config: invalid boolean value, using default", "key", key, "value", v, "default", defaultValue)
		return defaultValue
	}
}
