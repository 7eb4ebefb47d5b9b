package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/timewave/sql-runner/internal/logger"
)

type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Operation OperationConfig `mapstructure:"operation"`
	LogLevel  string          `mapstructure:"log_level"`
	logger    *logger.Logger
}

type DatabaseConfig struct {
	PostgresConnectionString string
}

type OperationConfig struct {
	// ChunkSize caps rows per generated statement; 0 selects the builder
	// default of 1000.
	ChunkSize int `mapstructure:"chunk_size"`

	// ContinueOnFail emits errors as output records instead of failing the
	// invocation.
	ContinueOnFail bool `mapstructure:"continue_on_fail"`
}

func New(logger *logger.Logger) *Config {
	return &Config{
		logger: logger,
	}
}

func (c *Config) loadEnvFile(env string) error {
	envFile := fmt.Sprintf(".env.%s", env)
	c.logger.Info("Loading env file from %s", envFile)
	if err := godotenv.Load(envFile); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

func Load(c *Config) (*Config, error) {

	env := os.Getenv("ENV")
	if env == "" {
		env = "dev" // Default to dev environment
	}
	c.logger.Info("Loading config for env: %s", env)

	// Load environment variables from .env.{env} file
	if err := c.loadEnvFile(env); err != nil {
		return nil, err
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	// Get the directory of the current file
	_, currentFile, _, _ := runtime.Caller(0)
	configDir := filepath.Dir(currentFile)

	c.logger.Info("Loading runner config from: %s", configDir)
	viper.AddConfigPath(configDir)

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	c.logger.Info("Loaded config file from: %s", viper.ConfigFileUsed())

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Set credentials from environment variables
	config.Database.PostgresConnectionString = os.Getenv("RUNNER_POSTGRES_CONNECTION_STRING")

	return &config, nil
}
