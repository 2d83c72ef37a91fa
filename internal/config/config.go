package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/caarlos0/env/v10"
)

type Config struct {
	Environment string `env:"ENV" envDefault:"development"`
	HTTP        struct {
		Port            int           `env:"HTTP_PORT" envDefault:"8080"`
		ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
		WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
		IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
		ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	}
	Logging struct {
		Level  string `env:"LOG_LEVEL"`
		Format string `env:"LOG_FORMAT" envDefault:"json"`
		Output string `env:"LOG_OUTPUT" envDefault:"stderr"`
	}
	Benchmark struct {
		ResultRoot       string `env:"COCO_RESULT_ROOT" envDefault:"exdata"`
		Suite            string `env:"COCO_SUITE" envDefault:"toy"`
		SuiteInstance    string `env:"COCO_SUITE_INSTANCE"`
		SuiteOptions     string `env:"COCO_SUITE_OPTIONS"`
		Observer         string `env:"COCO_OBSERVER" envDefault:"bbob"`
		ObserverOptions  string `env:"COCO_OBSERVER_OPTIONS"`
		BudgetMultiplier int    `env:"COCO_BUDGET_MULTIPLIER" envDefault:"100"`
		Solver           string `env:"COCO_SOLVER" envDefault:"random"`
		Seed             int64  `env:"COCO_SEED" envDefault:"1"`
	}
	Server struct {
		SessionLimit int `env:"SESSION_LIMIT" envDefault:"64"`
	}
}

func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if cfg.Logging.Level == "" {
		if cfg.Environment == "development" {
			cfg.Logging.Level = "debug"
		} else {
			cfg.Logging.Level = "info"
		}
	}

	if cfg.Benchmark.BudgetMultiplier < 1 {
		return nil, fmt.Errorf("COCO_BUDGET_MULTIPLIER must be >= 1, got %d", cfg.Benchmark.BudgetMultiplier)
	}
	if cfg.Server.SessionLimit < 1 {
		return nil, fmt.Errorf("SESSION_LIMIT must be >= 1, got %d", cfg.Server.SessionLimit)
	}

	return cfg, nil
}

// GetEnv returns the value of the environment variable or the default value
func GetEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// GetEnvAsInt returns the value of the environment variable as int or the default value
func GetEnvAsInt(key string, defaultValue int) int {
	valueStr := GetEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// GetEnvAsBool returns the value of the environment variable as bool or the default value
func GetEnvAsBool(key string, defaultValue bool) bool {
	valueStr := GetEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}
