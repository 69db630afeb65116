package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/jing2uo/quantlab/collector"
	"github.com/jing2uo/quantlab/model"
	"github.com/jing2uo/quantlab/store"
	"github.com/jing2uo/quantlab/utils"
	"github.com/rs/zerolog"
)

type SyncOptions struct {
	Symbols []string
	Force   bool
	Limit   int
}

// Report 一个类别一次同步的统计
type Report struct {
	Category  string
	Total     int
	Written   int
	Unchanged int
	Empty     int
	Rows      int
	Widened   map[string][]string
	Errors    []error
	Duration  time.Duration
}

func (r *Report) Succeeded() int {
	return r.Total - len(r.Errors)
}

// Syncer 从数据源拉取批次并写入分区, 按股票并行
type Syncer struct {
	store   *store.PartitionStore
	src     collector.Source
	workers int
	log     zerolog.Logger
}

func NewSyncer(s *store.PartitionStore, src collector.Source, workers int, log zerolog.Logger) *Syncer {
	return &Syncer{
		store:   s,
		src:     src,
		workers: workers,
		log:     log.With().Str("component", "sync").Logger(),
	}
}

type syncStatus int

const (
	syncWritten syncStatus = iota
	syncUnchanged
	syncEmpty
)

type syncOutcome struct {
	status syncStatus
	result *store.UpsertResult
	symbol string
}

// SyncCategory 同步一个类别
// 非强制模式下, 数据源版本时间不晚于本地分区的股票直接跳过
// 单只股票失败只记录在 Report.Errors 中
func (s *Syncer) SyncCategory(ctx context.Context, meta *model.TableMeta, opts SyncOptions) (*Report, error) {
	symbols := opts.Symbols
	if len(symbols) == 0 {
		var err error
		symbols, err = s.src.Symbols(ctx, meta.Category)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s symbols: %w", meta.Category, err)
		}
	}
	symbols = uniqueSymbols(symbols)
	if opts.Limit > 0 && len(symbols) > opts.Limit {
		symbols = symbols[:opts.Limit]
	}

	table := store.NewTable(s.store, meta, s.log)
	versioned, _ := collector.AsVersioned(s.src)

	report := &Report{Category: meta.Category, Total: len(symbols), Widened: map[string][]string{}}
	pipeline := utils.NewPipeline[string, syncOutcome](utils.WithConcurrency(s.workers))

	result, err := pipeline.Run(ctx, symbols,
		func(ctx context.Context, symbol string) ([]syncOutcome, error) {
			if !opts.Force && versioned != nil && s.fresh(ctx, versioned, meta.Category, symbol) {
				return []syncOutcome{{status: syncUnchanged, symbol: symbol}}, nil
			}

			batch, err := s.src.Fetch(ctx, meta.Category, symbol)
			if err != nil {
				return nil, err
			}
			res, err := table.Upsert(symbol, prepare(meta, batch))
			if err != nil {
				return nil, err
			}
			if res.Skipped {
				return []syncOutcome{{status: syncEmpty, symbol: symbol}}, nil
			}
			return []syncOutcome{{status: syncWritten, result: res, symbol: symbol}}, nil
		},
		func(outs []syncOutcome) error {
			for _, o := range outs {
				switch o.status {
				case syncWritten:
					report.Written++
					report.Rows += o.result.Inserted + o.result.Replaced
					if len(o.result.Added) > 0 {
						report.Widened[o.symbol] = o.result.Added
					}
				case syncUnchanged:
					report.Unchanged++
				case syncEmpty:
					report.Empty++
				}
			}
			return nil
		},
	)

	report.Errors = result.Errors
	report.Duration = result.Duration
	for _, e := range report.Errors {
		s.log.Debug().Err(e).Str("category", meta.Category).Msg("symbol sync failed")
	}
	if result.HasErrors() {
		s.log.Warn().Str("category", meta.Category).Msg(result.ErrorSummary())
	}
	if err != nil {
		return report, err
	}

	s.log.Info().
		Str("category", meta.Category).
		Str("succeeded", result.Progress()).
		Int("written", report.Written).
		Int("unchanged", report.Unchanged).
		Int("rows", report.Rows).
		Msg("category synced")
	return report, nil
}

// fresh 本地分区比数据源新
func (s *Syncer) fresh(ctx context.Context, v collector.Versioned, category, symbol string) bool {
	local, ok := s.store.ModTime(category, symbol)
	if !ok {
		return false
	}
	remote, err := v.Modified(ctx, category, symbol)
	if err != nil {
		return false
	}
	return !remote.After(local)
}

// uniqueSymbols 去重并保持顺序, 保证每个分区只有一个写入者
func uniqueSymbols(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
