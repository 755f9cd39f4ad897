package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/i474232898/weather-monitor/internal/weather"
)

type AppConfig struct {
	// FetchInterval controls how often a collection round runs.
	FetchInterval time.Duration
	// FetchTimeout bounds a single provider fetch.
	FetchTimeout time.Duration

	CacheTTL  time.Duration
	CacheSize int

	// Outbound page fetching.
	HTTPTimeout      time.Duration
	ExtractRateLimit float64
	ExtractRateBurst int

	ProvidersFile string
	Providers     []weather.ProviderDescriptor

	LogLevel  string
	LogFormat string

	// DatabaseDSN enables the history sink when set.
	DatabaseDSN string

	Port string
}

// providersFile is the on-disk layout of the provider list.
type providersFile struct {
	Providers []weather.ProviderDescriptor `yaml:"providers"`
}

// Load reads configuration from the environment (and an optional .env
// file) with sensible defaults, then loads the provider list.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	cfg := &AppConfig{
		CacheSize:        v.GetInt("CACHE_SIZE"),
		ExtractRateLimit: v.GetFloat64("EXTRACT_RATE_LIMIT"),
		ExtractRateBurst: v.GetInt("EXTRACT_RATE_BURST"),
		ProvidersFile:    v.GetString("PROVIDERS_FILE"),
		LogLevel:         v.GetString("LOG_LEVEL"),
		LogFormat:        v.GetString("LOG_FORMAT"),
		DatabaseDSN:      v.GetString("DATABASE_DSN"),
		Port:             v.GetString("PORT"),
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"FETCH_INTERVAL", &cfg.FetchInterval},
		{"FETCH_TIMEOUT", &cfg.FetchTimeout},
		{"CACHE_TTL", &cfg.CacheTTL},
		{"HTTP_TIMEOUT", &cfg.HTTPTimeout},
	}
	for _, d := range durations {
		parsed, err := time.ParseDuration(v.GetString(d.key))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", d.key, err)
		}
		if parsed <= 0 {
			return nil, fmt.Errorf("invalid %s: must be positive", d.key)
		}
		*d.dst = parsed
	}

	providers, err := LoadProviders(cfg.ProvidersFile)
	if err != nil {
		return nil, err
	}
	cfg.Providers = providers

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("FETCH_INTERVAL", "2m")
	v.SetDefault("FETCH_TIMEOUT", "5s")
	v.SetDefault("CACHE_TTL", "5m")
	v.SetDefault("CACHE_SIZE", 64)

	v.SetDefault("HTTP_TIMEOUT", "10s")
	v.SetDefault("EXTRACT_RATE_LIMIT", 5.0)
	v.SetDefault("EXTRACT_RATE_BURST", 10)

	v.SetDefault("PROVIDERS_FILE", "providers.yaml")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("DATABASE_DSN", "")
	v.SetDefault("PORT", "8080")
}

// LoadProviders reads the provider list from a YAML file. Environment
// variables in the file are expanded. A missing file yields the built-in
// providers.
func LoadProviders(path string) ([]weather.ProviderDescriptor, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Printf("INFO: providers file %s not found; using built-in providers", path)
		return DefaultProviders(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read providers file: %w", err)
	}

	var file providersFile
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &file); err != nil {
		return nil, fmt.Errorf("failed to unmarshal providers file: %w", err)
	}
	if len(file.Providers) == 0 {
		return nil, fmt.Errorf("providers file %s lists no providers", path)
	}
	return file.Providers, nil
}

// DefaultProviders returns the three pages the monitor watches out of the box.
func DefaultProviders() []weather.ProviderDescriptor {
	const instruction = "Extract the current temperature, feels-like temperature, humidity, " +
		"wind speed, pressure, visibility, condition description and a 7-day forecast. " +
		"Return them as one JSON object."

	return []weather.ProviderDescriptor{
		{
			Name:        "Yandex.Weather",
			Locator:     "https://yandex.ru/pogoda/ru/zabaykalsky-kray/gorkhon",
			Instruction: instruction,
			Priority:    1,
			Enabled:     true,
		},
		{
			Name:        "Gismeteo",
			Locator:     "https://www.gismeteo.ru/weather-gorkhon-28895/",
			Instruction: instruction,
			Priority:    2,
			Enabled:     true,
		},
		{
			Name:        "Weather.com",
			Locator:     "https://weather.com/weather/today/l/51.56,108.79",
			Instruction: instruction,
			Priority:    3,
			Enabled:     true,
		},
	}
}
