package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jing2uo/quantlab/model"
	"github.com/jing2uo/quantlab/views"
	"github.com/patrickmn/go-cache"
)

const valuationColumns = `date, symbol, raw_close, close_hfq, total_shares, market_cap,
	pe_ttm, pe_deduct_ttm, pb, ps_ttm, pcf_ttm`

// QueryValuation 查询单只股票的每日估值, from/to 为闭区间, nil 表示不限
func (d *DuckDBDriver) QueryValuation(ctx context.Context, symbol string, from, to *time.Time) ([]model.ValuationRecord, error) {
	conditions := []string{"symbol = ?"}
	args := []interface{}{symbol}

	if from != nil {
		conditions = append(conditions, "date >= ?")
		args = append(args, *from)
	}
	if to != nil {
		conditions = append(conditions, "date <= ?")
		args = append(args, *to)
	}

	query := fmt.Sprintf(
		`SELECT %s FROM %s WHERE %s ORDER BY date ASC`,
		valuationColumns,
		model.ViewValuation,
		strings.Join(conditions, " AND "),
	)

	var results []model.ValuationRecord
	if err := d.db.SelectContext(ctx, &results, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query valuation of %s: %w", symbol, err)
	}
	return results, nil
}

type latestRow struct {
	Symbol string         `db:"symbol"`
	Latest sql.NullString `db:"latest"`
}

// LatestPeriods 返回类别中每只股票最新的主键值 (报告期或日期)
// 结果按类别缓存, 写入该类别后应调用 InvalidateLatest
func (d *DuckDBDriver) LatestPeriods(ctx context.Context, cat views.Catalog, category string) (map[string]string, error) {
	if cached, ok := d.latest.Get(category); ok {
		return copyIndex(cached.(map[string]string)), nil
	}

	meta, ok := model.LookupTable(category)
	if !ok {
		return nil, fmt.Errorf("unknown category %s", category)
	}

	index := make(map[string]string)
	if cat.HasPartitions(category) {
		query := fmt.Sprintf(
			`SELECT symbol, max(%s) AS latest FROM %s GROUP BY symbol`,
			meta.Key,
			views.ScanSQL(cat.PathGlob(category)),
		)

		var rows []latestRow
		if err := d.db.SelectContext(ctx, &rows, query); err != nil {
			return nil, fmt.Errorf("failed to query latest %s of %s: %w", meta.Key, category, err)
		}
		for _, r := range rows {
			if r.Latest.Valid {
				index[r.Symbol] = r.Latest.String
			}
		}
	}

	d.latest.Set(category, index, cache.DefaultExpiration)
	return copyIndex(index), nil
}

func (d *DuckDBDriver) InvalidateLatest(category string) {
	d.latest.Delete(category)
}

func copyIndex(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
