package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// ServerConfig captures all tunable parameters for the HTTP API process.
// Defaults come first, then the optional TOML file named by CONFIG_FILE,
// then environment variables, so the binary can run locally with no setup.
type ServerConfig struct {
	HTTPAddr        string        `toml:"http_addr"`
	ReadTimeout     time.Duration `toml:"read_timeout"`
	WriteTimeout    time.Duration `toml:"write_timeout"`
	IdleTimeout     time.Duration `toml:"idle_timeout"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout"`

	RedisAddr      string `toml:"redis_addr"`
	RedisPassword  string `toml:"redis_password"`
	RedisGeoKey    string `toml:"redis_geo_key"`
	RedisKeyPrefix string `toml:"redis_key_prefix"`

	KafkaBrokers []string `toml:"kafka_brokers"`
	KafkaTopic   string   `toml:"kafka_topic"`

	PGDSN string `toml:"pg_dsn"`

	GeocoderURL          string  `toml:"geocoder_url"`
	GeocoderUserAgent    string  `toml:"geocoder_user_agent"`
	GeocoderRate         float64 `toml:"geocoder_rate"`
	GeocoderCountryCodes string  `toml:"geocoder_country_codes"`

	TileURL         string `toml:"tile_url"`
	TileAttribution string `toml:"tile_attribution"`

	DefaultUserID string `toml:"default_user_id"`
	EventTimezone string `toml:"event_timezone"`

	LogLevel      string `toml:"log_level"`
	RunMigrations bool   `toml:"migrate"`
}

func defaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPAddr:          ":8080",
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		ShutdownTimeout:   15 * time.Second,
		RedisGeoKey:       "skate_spots_geo",
		RedisKeyPrefix:    "skate",
		KafkaTopic:        "spot-events",
		GeocoderURL:       "https://nominatim.openstreetmap.org/search",
		GeocoderUserAgent: "skate-spots/1.0",
		GeocoderRate:      1,
		TileURL:           "https://{a-c}.basemaps.cartocdn.com/rastertiles/voyager/{z}/{x}/{y}.png",
		TileAttribution:   "© OpenStreetMap contributors",
		DefaultUserID:     "user-1",
		EventTimezone:     "UTC",
		LogLevel:          "info",
	}
}

func LoadServerConfig() (ServerConfig, error) {
	cfg := defaultServerConfig()
	var errs []error

	if err := decodeFile(os.Getenv("CONFIG_FILE"), &cfg); err != nil {
		errs = append(errs, err)
	}

	setStringFromEnv(&cfg.HTTPAddr, "HTTP_ADDR")
	setDurationFromEnv(&cfg.ReadTimeout, "HTTP_READ_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.WriteTimeout, "HTTP_WRITE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.IdleTimeout, "HTTP_IDLE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.ShutdownTimeout, "HTTP_SHUTDOWN_TIMEOUT", &errs)

	setStringFromEnv(&cfg.RedisAddr, "REDIS_ADDR")
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	setStringFromEnv(&cfg.RedisGeoKey, "REDIS_GEO_KEY")
	setStringFromEnv(&cfg.RedisKeyPrefix, "REDIS_KEY_PREFIX")

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.KafkaTopic, "KAFKA_TOPIC")

	setStringFromEnv(&cfg.PGDSN, "PG_DSN")

	setStringFromEnv(&cfg.GeocoderURL, "GEOCODER_URL")
	setStringFromEnv(&cfg.GeocoderUserAgent, "GEOCODER_USER_AGENT")
	setFloatFromEnv(&cfg.GeocoderRate, "GEOCODER_RATE", &errs)
	setStringFromEnv(&cfg.GeocoderCountryCodes, "GEOCODER_COUNTRY_CODES")

	setStringFromEnv(&cfg.TileURL, "TILE_URL")
	setStringFromEnv(&cfg.TileAttribution, "TILE_ATTRIBUTION")
	setStringFromEnv(&cfg.DefaultUserID, "DEFAULT_USER_ID")
	setStringFromEnv(&cfg.EventTimezone, "EVENT_TIMEZONE")

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	if v := os.Getenv("MIGRATE"); v != "" {
		cfg.RunMigrations = strings.EqualFold(v, "true")
	}

	if cfg.GeocoderRate <= 0 {
		errs = append(errs, fmt.Errorf("GEOCODER_RATE must be > 0"))
	}
	if cfg.DefaultUserID == "" {
		errs = append(errs, fmt.Errorf("DEFAULT_USER_ID must not be empty"))
	}
	if _, err := time.LoadLocation(cfg.EventTimezone); err != nil {
		errs = append(errs, fmt.Errorf("EVENT_TIMEZONE: %w", err))
	}

	return cfg, errors.Join(errs...)
}

// SeedConfig configures the one-shot seed binary.
type SeedConfig struct {
	PGDSN    string `toml:"pg_dsn"`
	LogLevel string `toml:"log_level"`
}

func LoadSeedConfig() (SeedConfig, error) {
	cfg := SeedConfig{LogLevel: "info"}
	var errs []error
	if err := decodeFile(os.Getenv("CONFIG_FILE"), &cfg); err != nil {
		errs = append(errs, err)
	}
	setStringFromEnv(&cfg.PGDSN, "PG_DSN")
	setStringFromEnv(&cfg.LogLevel, "LOG_LEVEL")
	if cfg.PGDSN == "" {
		errs = append(errs, fmt.Errorf("PG_DSN is required"))
	}
	return cfg, errors.Join(errs...)
}

// IndexerConfig configures the kafka to redis GEO indexer.
type IndexerConfig struct {
	KafkaBrokers  []string `toml:"kafka_brokers"`
	KafkaTopic    string   `toml:"kafka_topic"`
	KafkaGroup    string   `toml:"kafka_group"`
	RedisAddr     string   `toml:"redis_addr"`
	RedisPassword string   `toml:"redis_password"`
	RedisGeoKey   string   `toml:"redis_geo_key"`
	MetricsAddr   string   `toml:"metrics_addr"`
	LogLevel      string   `toml:"log_level"`
}

func LoadIndexerConfig() (IndexerConfig, error) {
	cfg := IndexerConfig{
		KafkaBrokers: []string{"localhost:9092"},
		KafkaTopic:   "spot-events",
		KafkaGroup:   "spot-indexer",
		RedisAddr:    "localhost:6379",
		RedisGeoKey:  "skate_spots_geo",
		MetricsAddr:  ":2112",
		LogLevel:     "info",
	}
	var errs []error
	if err := decodeFile(os.Getenv("CONFIG_FILE"), &cfg); err != nil {
		errs = append(errs, err)
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.KafkaTopic, "KAFKA_TOPIC")
	setStringFromEnv(&cfg.KafkaGroup, "KAFKA_GROUP")
	setStringFromEnv(&cfg.RedisAddr, "REDIS_ADDR")
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	setStringFromEnv(&cfg.RedisGeoKey, "REDIS_GEO_KEY")
	setStringFromEnv(&cfg.MetricsAddr, "METRICS_ADDR")
	setStringFromEnv(&cfg.LogLevel, "LOG_LEVEL")
	if len(cfg.KafkaBrokers) == 0 {
		errs = append(errs, fmt.Errorf("KAFKA_BROKERS must not be empty"))
	}
	return cfg, errors.Join(errs...)
}

// decodeFile overlays the TOML file at path onto cfg. An empty path is not
// an error.
func decodeFile(path string, cfg any) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()
	if _, err = toml.NewDecoder(file).Decode(cfg); err != nil {
		return fmt.Errorf("failed to decode config file: %w", err)
	}
	return nil
}

func setDurationFromEnv(target *time.Duration, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = d
	}
}

func setFloatFromEnv(target *float64, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = f
	}
}

func setStringFromEnv(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}

func splitAndTrim(v string) []string {
	raw := strings.Split(v, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}
