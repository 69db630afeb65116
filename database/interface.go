package database

import (
	"context"
	"time"

	"github.com/jing2uo/quantlab/model"
	"github.com/jing2uo/quantlab/views"
)

// QueryEngine 分析查询引擎, 进程内唯一
type QueryEngine interface {
	Connect() error
	Close() error

	RefreshViews(ctx context.Context, cat views.Catalog) (*views.MaterializeReport, error)
	ExportViews(g views.Globber, dir string) ([]string, error)
	QueryValuation(ctx context.Context, symbol string, from, to *time.Time) ([]model.ValuationRecord, error)
	LatestPeriods(ctx context.Context, cat views.Catalog, category string) (map[string]string, error)
	InvalidateLatest(category string)
}

// MetaRepository 股票元数据 (stocks 表)
type MetaRepository interface {
	Connect() error
	Close() error
	InitSchema() error

	ReplaceStocks(ctx context.Context, stocks []model.Stock) (int, error)
	ListStocks(ctx context.Context, limit int) ([]model.Stock, error)
	PendingMetadata(ctx context.Context, limit int) ([]model.Stock, error)
	UpdateMetadata(ctx context.Context, meta model.StockMeta) (bool, error)
}
