package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const maxAttemptsLimit = 20

type Config struct {
	ExplorerBaseURL string
	ExplorerAPIKey  string
	HTTPAddr        string
	ExportPath      string
	NativeSymbol    string
	PageSize        int
	MaxAttempts     int
	RetryBaseDelay  time.Duration
	PageDelay       time.Duration
	RequestTimeout  time.Duration
	RunTimeout      time.Duration
	RedisAddr       string
	RunLockTTL      time.Duration
	KafkaBrokers    []string
	KafkaTopic      string
	OtelEndpoint    string
	Log             LogConfig
}

type LogConfig struct {
	Level      string
	Format     string
	File       string
	MaxSizeMB  int
	MaxBackups int
}

type EnvSource interface {
	Lookup(key string) (string, bool)
}

type EnvMap map[string]string

func (e EnvMap) Lookup(key string) (string, bool) {
	value, ok := e[key]
	return value, ok
}

func FromEnviron() EnvSource {
	env := make(EnvMap)
	for _, entry := range os.Environ() {
		key, value, ok := strings.Cut(entry, "=")
		if !ok || key == "" {
			continue
		}
		env[key] = value
	}
	return env
}

// Layered looks keys up in order and returns the first non-blank hit.
type Layered []EnvSource

func (l Layered) Lookup(key string) (string, bool) {
	for _, source := range l {
		if source == nil {
			continue
		}
		if value, ok := source.Lookup(key); ok && strings.TrimSpace(value) != "" {
			return value, true
		}
	}
	return "", false
}

func Load(source EnvSource) (Config, error) {
	if source == nil {
		return Config{}, errors.New("env source is required")
	}

	apiKey, _ := source.Lookup("ETHERSCAN_API_KEY")
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return Config{}, errors.New("ETHERSCAN_API_KEY is required")
	}

	pageSize, err := parseIntEnv(source, "PAGE_SIZE", 10000, 1)
	if err != nil {
		return Config{}, err
	}
	maxAttempts, err := parseIntEnv(source, "MAX_ATTEMPTS", 5, 1)
	if err != nil {
		return Config{}, err
	}
	if maxAttempts > maxAttemptsLimit {
		return Config{}, fmt.Errorf("invalid MAX_ATTEMPTS: must be at most %d", maxAttemptsLimit)
	}
	retryBaseDelay, err := parseDurationEnv(source, "RETRY_BASE_DELAY", time.Second)
	if err != nil {
		return Config{}, err
	}
	pageDelay, err := parseDurationEnv(source, "PAGE_DELAY", 200*time.Millisecond)
	if err != nil {
		return Config{}, err
	}
	requestTimeout, err := parseDurationEnv(source, "REQUEST_TIMEOUT", 30*time.Second)
	if err != nil {
		return Config{}, err
	}
	runTimeout, err := parseDurationEnv(source, "RUN_TIMEOUT", 0)
	if err != nil {
		return Config{}, err
	}
	runLockTTL, err := parseDurationEnv(source, "RUN_LOCK_TTL", 30*time.Minute)
	if err != nil {
		return Config{}, err
	}
	logMaxSize, err := parseIntEnv(source, "LOG_MAX_SIZE_MB", 100, 0)
	if err != nil {
		return Config{}, err
	}
	logMaxBackups, err := parseIntEnv(source, "LOG_MAX_BACKUPS", 3, 0)
	if err != nil {
		return Config{}, err
	}

	otelEndpoint, _ := source.Lookup("OTEL_EXPORTER_OTLP_ENDPOINT")
	redisAddr, _ := source.Lookup("REDIS_ADDR")
	logLevel, _ := source.Lookup("LOG_LEVEL")
	logFormat, _ := source.Lookup("LOG_FORMAT")
	logFile, _ := source.Lookup("LOG_FILE")

	return Config{
		ExplorerBaseURL: stringEnv(source, "ETHERSCAN_BASE_URL", "https://api.etherscan.io/api"),
		ExplorerAPIKey:  apiKey,
		HTTPAddr:        stringEnv(source, "HTTP_ADDR", ":8080"),
		ExportPath:      stringEnv(source, "EXPORT_PATH", "transactions.csv"),
		NativeSymbol:    stringEnv(source, "NATIVE_SYMBOL", "ETH"),
		PageSize:        pageSize,
		MaxAttempts:     maxAttempts,
		RetryBaseDelay:  retryBaseDelay,
		PageDelay:       pageDelay,
		RequestTimeout:  requestTimeout,
		RunTimeout:      runTimeout,
		RedisAddr:       strings.TrimSpace(redisAddr),
		RunLockTTL:      runLockTTL,
		KafkaBrokers:    parseList(source, "KAFKA_BROKERS"),
		KafkaTopic:      stringEnv(source, "KAFKA_TOPIC", "txexport-runs"),
		OtelEndpoint:    strings.TrimSpace(otelEndpoint),
		Log: LogConfig{
			Level:      logLevel,
			Format:     logFormat,
			File:       strings.TrimSpace(logFile),
			MaxSizeMB:  logMaxSize,
			MaxBackups: logMaxBackups,
		},
	}, nil
}

func stringEnv(source EnvSource, key, defaultValue string) string {
	raw, ok := source.Lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return defaultValue
	}
	return strings.TrimSpace(raw)
}

func parseIntEnv(source EnvSource, key string, defaultValue, minValue int) (int, error) {
	raw, ok := source.Lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if value < minValue {
		return 0, fmt.Errorf("invalid %s: must be at least %d", key, minValue)
	}
	return value, nil
}

func parseDurationEnv(source EnvSource, key string, defaultValue time.Duration) (time.Duration, error) {
	raw, ok := source.Lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return defaultValue, nil
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if value < 0 {
		return 0, fmt.Errorf("invalid %s: must not be negative", key)
	}
	return value, nil
}

func parseList(source EnvSource, key string) []string {
	raw, ok := source.Lookup(key)
	if !ok {
		return nil
	}
	var values []string
	for _, item := range strings.Split(raw, ",") {
		if value := strings.TrimSpace(item); value != "" {
			values = append(values, value)
		}
	}
	return values
}
