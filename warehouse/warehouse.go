package warehouse

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/jing2uo/quantlab/calc"
	"github.com/jing2uo/quantlab/collector"
	"github.com/jing2uo/quantlab/config"
	"github.com/jing2uo/quantlab/database"
	"github.com/jing2uo/quantlab/ingest"
	"github.com/jing2uo/quantlab/model"
	"github.com/jing2uo/quantlab/store"
	"github.com/jing2uo/quantlab/utils"
	"github.com/jing2uo/quantlab/views"
	"github.com/rs/zerolog"
)

// Warehouse 一次进程内共享的上下文: 分区存储、查询引擎、元数据库与数据源
// 由 Open 创建, 调用方负责 Close
type Warehouse struct {
	Store   *store.PartitionStore
	Engine  database.QueryEngine
	Meta    database.MetaRepository
	Source  collector.Source
	Workers int
	Log     zerolog.Logger
}

// Open 创建目录并连接数据库
func Open(cfg *config.Config, log zerolog.Logger) (*Warehouse, error) {
	if err := utils.CheckOutputDir(cfg.WarehouseDir); err != nil {
		return nil, err
	}
	for _, p := range []string{cfg.DuckDBPath, cfg.SQLitePath} {
		if p == "" {
			continue
		}
		if err := utils.CheckOutputDir(filepath.Dir(p)); err != nil {
			return nil, err
		}
	}

	engine, err := database.NewQueryEngine(model.DBConfig{Type: model.DBTypeDuckDB, DSN: cfg.DuckDBPath}, log)
	if err != nil {
		return nil, err
	}
	if err := engine.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to duckdb: %w", err)
	}

	meta, err := database.NewMetaRepository(model.DBConfig{Type: model.DBTypeSQLite, DSN: cfg.SQLitePath})
	if err != nil {
		engine.Close()
		return nil, err
	}
	if err := meta.Connect(); err != nil {
		engine.Close()
		return nil, fmt.Errorf("failed to connect to sqlite: %w", err)
	}
	if err := meta.InitSchema(); err != nil {
		engine.Close()
		meta.Close()
		return nil, fmt.Errorf("failed to init metadata schema: %w", err)
	}

	return &Warehouse{
		Store:   store.NewPartitionStore(cfg.WarehouseDir),
		Engine:  engine,
		Meta:    meta,
		Source:  collector.NewLimited(collector.NewCSVInbox(cfg.InboxDir), cfg.SourceRate, cfg.SourceTimeout),
		Workers: cfg.Workers,
		Log:     log,
	}, nil
}

// Close 关闭所有句柄, 返回合并后的错误
func (w *Warehouse) Close() error {
	var errs []error
	if w.Engine != nil {
		if err := w.Engine.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close duckdb: %w", err))
		}
	}
	if w.Meta != nil {
		if err := w.Meta.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close sqlite: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (w *Warehouse) Syncer() *ingest.Syncer {
	return ingest.NewSyncer(w.Store, w.Source, w.Workers, w.Log)
}

func (w *Warehouse) TTMRunner() *calc.Runner {
	return calc.NewRunner(w.Store, w.Engine, w.Workers, w.Log)
}

// Directory 数据源的股票列表能力
func (w *Warehouse) Directory() (collector.StockDirectory, error) {
	dir, ok := collector.AsDirectory(w.Source)
	if !ok {
		return nil, fmt.Errorf("source does not provide a stock list")
	}
	return dir, nil
}

// RefreshViews 针对当前仓库重新注册全部视图
func (w *Warehouse) RefreshViews(ctx context.Context) (*views.MaterializeReport, error) {
	return w.Engine.RefreshViews(ctx, w.Store)
}

// ExportViews 导出视图 DDL 与依赖图
func (w *Warehouse) ExportViews(dir string) ([]string, error) {
	return w.Engine.ExportViews(w.Store, dir)
}
