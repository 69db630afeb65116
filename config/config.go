package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config 运行配置, 所有环境变量只在这里读取
type Config struct {
	DataDir      string
	WarehouseDir string
	DuckDBPath   string
	SQLitePath   string
	InboxDir     string

	Workers int

	// 采集端限速, 每秒请求数, <= 0 不限速
	SourceRate    float64
	SourceTimeout time.Duration

	LogLevel  string
	LogFormat string

	CronSpec string
}

// Load 读取 .env (若存在) 与环境变量
// envFile 非空时只加载该文件
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	} else {
		loadEnvFile()
	}

	dataDir := getEnv("QUANTLAB_DATA_DIR", "data")
	cfg := &Config{
		DataDir:      dataDir,
		WarehouseDir: getEnv("WAREHOUSE_DIR", filepath.Join(dataDir, "warehouse")),
		DuckDBPath:   getEnv("DUCKDB_PATH", filepath.Join(dataDir, "warehouse.duckdb")),
		SQLitePath:   getEnv("SQLITE_PATH", filepath.Join(dataDir, "metadata.db")),
		InboxDir:     getEnv("INBOX_DIR", filepath.Join(dataDir, "inbox")),

		Workers: getEnvAsInt("WORKERS", 4),

		SourceRate:    getEnvAsFloat("SOURCE_RATE", 0),
		SourceTimeout: getEnvAsDuration("SOURCE_TIMEOUT", "30s"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),

		CronSpec: getEnv("CRON_SPEC", "0 30 17 * * 1-5"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.WarehouseDir) == "" {
		return fmt.Errorf("WAREHOUSE_DIR is required")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("WORKERS must be positive, got %d", c.Workers)
	}
	if c.LogFormat != "console" && c.LogFormat != "json" {
		return fmt.Errorf("LOG_FORMAT must be one of: console, json")
	}
	return nil
}

func loadEnvFile() {
	paths := []string{".env"}
	if exe, err := os.Executable(); err == nil {
		paths = append(paths, filepath.Join(filepath.Dir(exe), ".env"))
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}
	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}
	return duration
}
