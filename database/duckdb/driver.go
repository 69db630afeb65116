package duckdb

import (
	"context"
	"fmt"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/jing2uo/quantlab/model"
	"github.com/jing2uo/quantlab/views"
	"github.com/jmoiron/sqlx"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
)

type DuckDBDriver struct {
	dsn    string
	db     *sqlx.DB
	graph  *views.Graph
	latest *cache.Cache
	log    zerolog.Logger
}

// NewDriver dsn 为空时使用内存库
func NewDriver(cfg model.DBConfig, log zerolog.Logger) *DuckDBDriver {
	log = log.With().Str("engine", "duckdb").Logger()
	return &DuckDBDriver{
		dsn:    cfg.DSN,
		graph:  views.NewGraph(log, nil),
		latest: cache.New(5*time.Minute, 10*time.Minute),
		log:    log,
	}
}

func (d *DuckDBDriver) Connect() error {
	db, err := sqlx.Open("duckdb", d.dsn)
	if err != nil {
		return err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		db.Close()
		return fmt.Errorf("duckdb ping failed: %w", err)
	}

	d.db = db
	return nil
}

func (d *DuckDBDriver) Close() error {
	if d.db == nil {
		return nil
	}
	err := d.db.Close()
	d.db = nil
	return err
}

// DB 暴露底层句柄, 供即席查询使用
func (d *DuckDBDriver) DB() *sqlx.DB {
	return d.db
}

func (d *DuckDBDriver) Graph() *views.Graph {
	return d.graph
}

// RefreshViews 针对当前仓库根目录重新注册全部视图
func (d *DuckDBDriver) RefreshViews(ctx context.Context, cat views.Catalog) (*views.MaterializeReport, error) {
	if d.db == nil {
		return nil, fmt.Errorf("duckdb is not connected")
	}
	d.graph.Discover()
	report, err := d.graph.Materialize(ctx, d.db, cat)
	if err != nil {
		return nil, fmt.Errorf("failed to materialize views: %w", err)
	}
	return report, nil
}
