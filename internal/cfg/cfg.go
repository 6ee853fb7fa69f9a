package cfg

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"mlstudio/internal/common"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Settings struct {
	HTTPPort     int
	MetricsPort  int
	DataPath     string
	LogLevel     string
	Seed         int64
	EpochDelay   time.Duration
	PredictDelay time.Duration
	SampleRows   int
}

type ConfigFile struct {
	Server struct {
		HTTPPort    int    `yaml:"httpPort"`
		MetricsPort int    `yaml:"metricsPort"`
		LogLevel    string `yaml:"logLevel"`
	} `yaml:"server"`

	Engine struct {
		Seed         *int64 `yaml:"seed"`
		EpochDelay   string `yaml:"epochDelay"`
		PredictDelay string `yaml:"predictDelay"`
		SampleRows   *int   `yaml:"sampleRows"`
	} `yaml:"engine"`

	Storage struct {
		DataPath string `yaml:"dataPath"`
	} `yaml:"storage"`
}

func Load() (Settings, error) {
	// A missing .env is the normal case outside local development
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Settings{}, fmt.Errorf("failed to load .env: %w", err)
	}

	if configPath := os.Getenv(common.EnvConfigFile); configPath != "" {
		return loadFromYAML(configPath)
	}

	return loadFromEnv()
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	epochDelay, err := time.ParseDuration(config.Engine.EpochDelay)
	if err != nil {
		epochDelay = common.DefaultEpochDelay
	}

	predictDelay, err := time.ParseDuration(config.Engine.PredictDelay)
	if err != nil {
		predictDelay = common.DefaultPredictDelay
	}

	seed := int64(common.DefaultEngineSeed)
	if config.Engine.Seed != nil {
		seed = *config.Engine.Seed
	}

	sampleRows := common.DefaultSampleRows
	if config.Engine.SampleRows != nil {
		sampleRows = *config.Engine.SampleRows
	}

	settings := Settings{
		HTTPPort:     getIntFromEnvOrConfig(common.EnvHTTPPort, config.Server.HTTPPort, common.DefaultHTTPPort),
		MetricsPort:  getIntFromEnvOrConfig(common.EnvMetricsPort, config.Server.MetricsPort, common.DefaultMetricsPort),
		DataPath:     getEnvOrDefault(common.EnvDataPath, config.Storage.DataPath),
		LogLevel:     getEnvOrDefault(common.EnvLogLevel, stringOrDefault(config.Server.LogLevel, common.DefaultLogLevel)),
		Seed:         getInt64OrDefault(common.EnvEngineSeed, seed),
		EpochDelay:   getDurationOrDefault(common.EnvEpochDelay, epochDelay),
		PredictDelay: getDurationOrDefault(common.EnvPredictDelay, predictDelay),
		SampleRows:   getIntOrDefault(common.EnvSampleRows, sampleRows),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func loadFromEnv() (Settings, error) {
	settings := Settings{
		HTTPPort:     getIntOrDefault(common.EnvHTTPPort, common.DefaultHTTPPort),
		MetricsPort:  getIntOrDefault(common.EnvMetricsPort, common.DefaultMetricsPort),
		DataPath:     os.Getenv(common.EnvDataPath), // optional
		LogLevel:     getEnvOrDefault(common.EnvLogLevel, common.DefaultLogLevel),
		Seed:         getInt64OrDefault(common.EnvEngineSeed, common.DefaultEngineSeed),
		EpochDelay:   getDurationOrDefault(common.EnvEpochDelay, common.DefaultEpochDelay),
		PredictDelay: getDurationOrDefault(common.EnvPredictDelay, common.DefaultPredictDelay),
		SampleRows:   getIntOrDefault(common.EnvSampleRows, common.DefaultSampleRows),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func stringOrDefault(v, defaultValue string) string {
	if v != "" {
		return v
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getInt64OrDefault(key string, defaultValue int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getIntFromEnvOrConfig(key string, configValue, defaultValue int) int {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.Atoi(env); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}

// validateSettings checks ranges for every setting
func validateSettings(settings *Settings) error {
	if settings.HTTPPort < common.MinPort || settings.HTTPPort > common.MaxPort {
		return fmt.Errorf("HTTP port must be between %d and %d, got %d", common.MinPort, common.MaxPort, settings.HTTPPort)
	}
	if settings.MetricsPort < common.MinPort || settings.MetricsPort > common.MaxPort {
		return fmt.Errorf("metrics port must be between %d and %d, got %d", common.MinPort, common.MaxPort, settings.MetricsPort)
	}
	if settings.HTTPPort == settings.MetricsPort {
		return fmt.Errorf("HTTP port and metrics port must differ, both are %d", settings.HTTPPort)
	}

	if settings.EpochDelay < 0 || settings.EpochDelay > common.MaxSimulateDelay {
		return fmt.Errorf("epoch delay must be between 0 and %v, got %v", common.MaxSimulateDelay, settings.EpochDelay)
	}
	if settings.PredictDelay < 0 || settings.PredictDelay > common.MaxSimulateDelay {
		return fmt.Errorf("predict delay must be between 0 and %v, got %v", common.MaxSimulateDelay, settings.PredictDelay)
	}

	if settings.SampleRows < 0 || settings.SampleRows > common.MaxSampleRows {
		return fmt.Errorf("sample rows must be between 0 and %d, got %d", common.MaxSampleRows, settings.SampleRows)
	}

	switch settings.LogLevel {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", settings.LogLevel)
	}

	return nil
}
