package sqlite

import (
	"context"
	"fmt"

	"github.com/jing2uo/quantlab/model"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const createStocksTable = `
CREATE TABLE IF NOT EXISTS stocks (
	symbol     TEXT PRIMARY KEY,
	code       TEXT NOT NULL,
	name       TEXT NOT NULL,
	area       TEXT,
	industry   TEXT,
	list_date  TEXT,
	is_active  INTEGER DEFAULT 1,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
)`

// SQLiteDriver 股票元数据库
type SQLiteDriver struct {
	dsn string
	db  *sqlx.DB
}

func NewDriver(cfg model.DBConfig) *SQLiteDriver {
	return &SQLiteDriver{dsn: cfg.DSN}
}

func (d *SQLiteDriver) Connect() error {
	db, err := sqlx.Open("sqlite", d.dsn)
	if err != nil {
		return fmt.Errorf("failed to open sqlite: %w", err)
	}
	// 单写者
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return fmt.Errorf("sqlite ping failed: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	d.db = db
	return nil
}

func (d *SQLiteDriver) Close() error {
	if d.db == nil {
		return nil
	}
	err := d.db.Close()
	d.db = nil
	return err
}

func (d *SQLiteDriver) InitSchema() error {
	if _, err := d.db.Exec(createStocksTable); err != nil {
		return fmt.Errorf("failed to create table stocks: %w", err)
	}
	return nil
}

// ReplaceStocks 全量替换股票列表
func (d *SQLiteDriver) ReplaceStocks(ctx context.Context, stocks []model.Stock) (int, error) {
	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM stocks"); err != nil {
		return 0, fmt.Errorf("failed to clear stocks: %w", err)
	}

	const insert = `
		INSERT INTO stocks (symbol, code, name, area, industry, list_date, is_active, updated_at)
		VALUES (:symbol, :code, :name, :area, :industry, :list_date, :is_active, CURRENT_TIMESTAMP)`

	n := 0
	for _, s := range stocks {
		if _, err := tx.NamedExecContext(ctx, insert, s); err != nil {
			return 0, fmt.Errorf("failed to insert stock %s: %w", s.Symbol, err)
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit stocks: %w", err)
	}
	return n, nil
}

// ListStocks limit <= 0 表示全部
func (d *SQLiteDriver) ListStocks(ctx context.Context, limit int) ([]model.Stock, error) {
	query := "SELECT * FROM stocks WHERE is_active = 1 ORDER BY symbol"
	var args []interface{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	var stocks []model.Stock
	if err := d.db.SelectContext(ctx, &stocks, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query stocks: %w", err)
	}
	return stocks, nil
}

// PendingMetadata 缺少地区或上市日期的股票
func (d *SQLiteDriver) PendingMetadata(ctx context.Context, limit int) ([]model.Stock, error) {
	query := "SELECT * FROM stocks WHERE area IS NULL OR list_date IS NULL OR industry IS NULL ORDER BY symbol"
	var args []interface{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	var stocks []model.Stock
	if err := d.db.SelectContext(ctx, &stocks, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query pending metadata: %w", err)
	}
	return stocks, nil
}

// UpdateMetadata 按 code 补全元数据, 空字段保留原值; 返回是否命中
func (d *SQLiteDriver) UpdateMetadata(ctx context.Context, meta model.StockMeta) (bool, error) {
	res, err := d.db.ExecContext(ctx, `
		UPDATE stocks SET
			area       = COALESCE(NULLIF(?, ''), area),
			industry   = COALESCE(NULLIF(?, ''), industry),
			list_date  = COALESCE(NULLIF(?, ''), list_date),
			updated_at = CURRENT_TIMESTAMP
		WHERE code = ?`,
		meta.Area, meta.Industry, meta.ListDate, meta.Code,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update metadata of %s: %w", meta.Code, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
