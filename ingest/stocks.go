package ingest

import (
	"context"
	"fmt"

	"github.com/jing2uo/quantlab/collector"
	"github.com/jing2uo/quantlab/database"
	"github.com/jing2uo/quantlab/model"
	"github.com/rs/zerolog"
)

// SyncStockList 用数据源的股票列表整体替换 stocks 表
// 列表为空时不动已有数据
func SyncStockList(ctx context.Context, dir collector.StockDirectory, repo database.MetaRepository, log zerolog.Logger) (int, error) {
	stocks, err := dir.StockList(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch stock list: %w", err)
	}
	if len(stocks) == 0 {
		log.Warn().Msg("stock list is empty, keeping existing table")
		return 0, nil
	}

	n, err := repo.ReplaceStocks(ctx, stocks)
	if err != nil {
		return 0, err
	}
	log.Info().Int("stocks", n).Msg("stock list replaced")
	return n, nil
}

// MetaReport 元数据补全结果
type MetaReport struct {
	Pending  int
	Updated  int
	NotFound int
	Errors   []error
}

// SyncMetadata 为缺少地区/行业/上市日期的股票补全信息
func SyncMetadata(ctx context.Context, dir collector.StockDirectory, repo database.MetaRepository, limit int, log zerolog.Logger) (*MetaReport, error) {
	pending, err := repo.PendingMetadata(ctx, limit)
	if err != nil {
		return nil, err
	}
	report := &MetaReport{Pending: len(pending)}
	if len(pending) == 0 {
		return report, nil
	}

	metas, err := dir.StockMeta(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch stock metadata: %w", err)
	}
	byCode := make(map[string]model.StockMeta, len(metas))
	for _, m := range metas {
		byCode[m.Code] = m
	}

	for _, st := range pending {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		m, ok := byCode[st.Code]
		if !ok {
			report.NotFound++
			continue
		}
		hit, err := repo.UpdateMetadata(ctx, m)
		if err != nil {
			report.Errors = append(report.Errors, err)
			continue
		}
		if hit {
			report.Updated++
		}
	}

	log.Info().
		Int("pending", report.Pending).
		Int("updated", report.Updated).
		Int("not_found", report.NotFound).
		Msg("stock metadata synced")
	return report, nil
}
