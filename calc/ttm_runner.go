package calc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jing2uo/quantlab/model"
	"github.com/jing2uo/quantlab/utils"
	"github.com/jing2uo/quantlab/views"
	"github.com/rs/zerolog"
)

// ErrIncompleteHistory 最近的连续报告期不全, 跳过而非带缺口计算
var ErrIncompleteHistory = errors.New("incomplete report history")

// SymbolStore 计算所需的分区存储能力
type SymbolStore interface {
	PartitionStore
	views.Catalog
	Symbols(category string) ([]string, error)
}

// PeriodIndex 已有 TTM 的最新报告期索引
type PeriodIndex interface {
	LatestPeriods(ctx context.Context, cat views.Catalog, category string) (map[string]string, error)
	InvalidateLatest(category string)
}

type ttmStatus int

const (
	statusComputed ttmStatus = iota
	statusUpToDate
	statusIncomplete
	statusEmpty
)

type ttmOutcome struct {
	status ttmStatus
	rows   int
}

type RunOptions struct {
	Symbols []string
	Force   bool
}

// RunReport 一次批量计算的统计
type RunReport struct {
	Total      int
	Computed   int
	UpToDate   int
	Incomplete int
	Empty      int
	Rows       int
	Errors     []error
	Duration   time.Duration
}

// Succeeded 未出错的股票数
func (r *RunReport) Succeeded() int {
	return r.Total - len(r.Errors)
}

type Runner struct {
	calc    *Calculator
	store   SymbolStore
	index   PeriodIndex
	workers int
	log     zerolog.Logger
}

func NewRunner(store SymbolStore, index PeriodIndex, workers int, log zerolog.Logger) *Runner {
	return &Runner{
		calc:    NewCalculator(store, log),
		store:   store,
		index:   index,
		workers: workers,
		log:     log.With().Str("component", "ttm").Logger(),
	}
}

// Symbols 所有 TTM 来源类别中出现过的股票
func (r *Runner) Symbols() ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, m := range model.TTMMetrics {
		syms, err := r.store.Symbols(m.Source.Category)
		if err != nil {
			return nil, err
		}
		for _, s := range syms {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	return out, nil
}

// Run 批量计算 TTM
// 非强制模式下: 最近 5 个连续报告期不全的跳过, 已覆盖最新报告期的跳过
func (r *Runner) Run(ctx context.Context, opts RunOptions) (*RunReport, error) {
	symbols := opts.Symbols
	if len(symbols) == 0 {
		var err error
		if symbols, err = r.Symbols(); err != nil {
			return nil, fmt.Errorf("failed to list symbols: %w", err)
		}
	}

	existing := map[string]string{}
	if !opts.Force {
		var err error
		existing, err = r.index.LatestPeriods(ctx, r.store, model.TableTTM.Category)
		if err != nil {
			return nil, fmt.Errorf("failed to load existing ttm periods: %w", err)
		}
	}

	report := &RunReport{Total: len(symbols)}
	pipeline := utils.NewPipeline[string, ttmOutcome](utils.WithConcurrency(r.workers))

	result, err := pipeline.Run(ctx, symbols,
		func(_ context.Context, symbol string) ([]ttmOutcome, error) {
			out, err := r.runSymbol(symbol, existing[symbol], opts.Force)
			if err != nil {
				return nil, err
			}
			return []ttmOutcome{out}, nil
		},
		func(outs []ttmOutcome) error {
			for _, o := range outs {
				switch o.status {
				case statusComputed:
					report.Computed++
					report.Rows += o.rows
				case statusUpToDate:
					report.UpToDate++
				case statusIncomplete:
					report.Incomplete++
				case statusEmpty:
					report.Empty++
				}
			}
			return nil
		},
	)
	r.index.InvalidateLatest(model.TableTTM.Category)

	report.Errors = result.Errors
	report.Duration = result.Duration
	if result.HasErrors() {
		r.log.Warn().Msg(result.ErrorSummary())
	}
	if err != nil {
		return report, err
	}

	r.log.Info().
		Str("succeeded", result.Progress()).
		Int("computed", report.Computed).
		Int("up_to_date", report.UpToDate).
		Int("incomplete", report.Incomplete).
		Int("failed", len(report.Errors)).
		Msg("ttm run finished")
	return report, nil
}

func (r *Runner) runSymbol(symbol, storedLatest string, force bool) (ttmOutcome, error) {
	if !force {
		periods, err := r.calc.SourcePeriods(symbol)
		if err != nil {
			return ttmOutcome{}, err
		}
		if len(periods) == 0 {
			return ttmOutcome{status: statusEmpty}, nil
		}
		latest := periods[len(periods)-1]

		if err := checkHistory(periods, latest); err != nil {
			r.log.Debug().Str("symbol", symbol).Str("latest", latest.String()).Err(err).Msg("ttm skipped")
			return ttmOutcome{status: statusIncomplete}, nil
		}
		if storedLatest != "" && storedLatest >= latest.String() {
			return ttmOutcome{status: statusUpToDate}, nil
		}
	}

	n, err := r.calc.CalculateForSymbol(symbol)
	if err != nil {
		return ttmOutcome{}, err
	}
	if n == 0 {
		return ttmOutcome{status: statusEmpty}, nil
	}
	return ttmOutcome{status: statusComputed, rows: n}, nil
}

// checkHistory 以 latest 结尾的 TTMHistoryDepth 个报告期必须全部存在
func checkHistory(periods []model.ReportPeriod, latest model.ReportPeriod) error {
	have := make(map[model.ReportPeriod]bool, len(periods))
	for _, p := range periods {
		have[p] = true
	}
	for _, p := range model.ConsecutivePeriods(latest, model.TTMHistoryDepth) {
		if !have[p] {
			return fmt.Errorf("%w: missing %s", ErrIncompleteHistory, p)
		}
	}
	return nil
}
