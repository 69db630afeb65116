package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/jing2uo/quantlab/config"
	"github.com/jing2uo/quantlab/logger"
	"github.com/jing2uo/quantlab/utils"
	"github.com/jing2uo/quantlab/warehouse"
	"github.com/rs/zerolog"
)

// Options 全局命令行参数, 非空时覆盖环境变量
type Options struct {
	EnvFile   string
	Warehouse string
	Inbox     string
	Workers   int
}

func loadConfig(opts *Options) (*config.Config, error) {
	cfg, err := config.Load(opts.EnvFile)
	if err != nil {
		return nil, err
	}
	if opts.Warehouse != "" {
		cfg.WarehouseDir = opts.Warehouse
	}
	if opts.Inbox != "" {
		if err := utils.CheckDirectory(opts.Inbox); err != nil {
			return nil, fmt.Errorf("invalid inbox: %w", err)
		}
		cfg.InboxDir = opts.Inbox
	}
	if opts.Workers > 0 {
		cfg.Workers = opts.Workers
	}
	return cfg, nil
}

func openWarehouse(opts *Options) (*warehouse.Warehouse, *config.Config, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, nil, err
	}
	log := newLogger(cfg)

	wh, err := warehouse.Open(cfg, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open warehouse: %w", err)
	}
	return wh, cfg, nil
}

func newLogger(cfg *config.Config) zerolog.Logger {
	return logger.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
}

func closeWarehouse(wh *warehouse.Warehouse) {
	if err := wh.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "⚠️ 关闭数据库失败: %v\n", err)
	}
}

func GetToday() time.Time {
	now := time.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}

// parseDate 接受 YYYY-MM-DD 或 YYYYMMDD, 空串返回 nil
func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{"2006-01-02", "20060102"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
}
