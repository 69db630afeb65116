package calc

import (
	"fmt"
	"sort"

	"github.com/jing2uo/quantlab/model"
	"github.com/rs/zerolog"
)

type PartitionReader interface {
	Read(category, symbol string) (*model.Frame, error)
}

type PartitionWriter interface {
	Write(category, symbol string, f *model.Frame) error
}

type PartitionStore interface {
	PartitionReader
	PartitionWriter
}

// disclosure 某一报告期的一个指标值及其公告日
type disclosure struct {
	value  *float64
	annDay string
}

// metricSeries report_date -> 最新一次披露
type metricSeries map[model.ReportPeriod]disclosure

// Calculator 计算滚动十二个月 (TTM) 指标
// TTM = 本期累计 + (上年年报 - 上年同期累计)
type Calculator struct {
	store   PartitionStore
	metrics []model.TTMMetric
	log     zerolog.Logger
}

func NewCalculator(store PartitionStore, log zerolog.Logger) *Calculator {
	return &Calculator{
		store:   store,
		metrics: model.TTMMetrics,
		log:     log.With().Str("component", "ttm").Logger(),
	}
}

// loadSeries 读取各指标来源, 同一报告期只保留最晚公告的一条
func (c *Calculator) loadSeries(symbol string) (map[string]metricSeries, error) {
	frames := make(map[string]*model.Frame)
	series := make(map[string]metricSeries, len(c.metrics))

	for _, m := range c.metrics {
		f, ok := frames[m.Source.Category]
		if !ok {
			var err error
			f, err = c.store.Read(m.Source.Category, symbol)
			if err != nil {
				return nil, fmt.Errorf("failed to load %s of %s: %w", m.Source.Category, symbol, err)
			}
			frames[m.Source.Category] = f
		}

		if f.Empty() || !f.HasColumn(m.SourceColumn) {
			c.log.Debug().Str("symbol", symbol).Str("category", m.Source.Category).
				Str("column", m.SourceColumn).Msg("metric source missing, skipped")
			continue
		}

		s := make(metricSeries)
		for _, row := range f.Rows {
			p, err := model.ParsePeriod(model.Str(row[model.ColReportDate]))
			if err != nil {
				continue
			}
			d := disclosure{
				value:  model.FloatPtr(row[m.SourceColumn]),
				annDay: model.NormalizeDate(model.Str(row[model.ColAnnDate])),
			}
			if prev, seen := s[p]; seen && d.annDay < prev.annDay {
				continue
			}
			s[p] = d
		}
		series[m.Name] = s
	}
	return series, nil
}

// SourcePeriods 所有指标来源中出现过的标准报告期, 升序
func (c *Calculator) SourcePeriods(symbol string) ([]model.ReportPeriod, error) {
	series, err := c.loadSeries(symbol)
	if err != nil {
		return nil, err
	}
	return unionPeriods(series), nil
}

func unionPeriods(series map[string]metricSeries) []model.ReportPeriod {
	seen := make(map[model.ReportPeriod]bool)
	for _, s := range series {
		for p := range s {
			seen[p] = true
		}
	}
	periods := make([]model.ReportPeriod, 0, len(seen))
	for p := range seen {
		periods = append(periods, p)
	}
	sort.Slice(periods, func(i, j int) bool { return periods[i].Before(periods[j]) })
	return periods
}

// Compute 计算一只股票全部报告期的 TTM, 不写入
// 所有指标均为空的报告期被丢弃
func (c *Calculator) Compute(symbol string) (*model.Frame, error) {
	series, err := c.loadSeries(symbol)
	if err != nil {
		return nil, err
	}

	out := model.NewFrame(model.TableTTM.Columns...)
	if len(series) == 0 {
		c.log.Warn().Str("symbol", symbol).Msg("no financial data for ttm")
		return out, nil
	}

	for _, p := range unionPeriods(series) {
		row := model.Row{model.ColReportDate: p.String()}

		pub := ""
		for _, s := range series {
			if d, ok := s[p]; ok && d.annDay > pub {
				pub = d.annDay
			}
		}
		if pub != "" {
			row[model.ColPubDate] = pub
		}

		computed := false
		for _, m := range c.metrics {
			s, ok := series[m.Name]
			if !ok {
				continue
			}
			if v := ttmValue(s, p); v != nil {
				row[m.Output()] = *v
				computed = true
			}
		}
		if computed {
			out.Append(row)
		}
	}
	return out, nil
}

// ttmValue 任一输入为空则结果为空
func ttmValue(s metricSeries, p model.ReportPeriod) *float64 {
	cur := s[p].value
	lye := s[p.PriorYearEnd()].value
	lys := s[p.SameLastYear()].value
	if cur == nil || lye == nil || lys == nil {
		return nil
	}
	v := *cur + (*lye - *lys)
	return &v
}

// CalculateForSymbol 计算并整体替换该股票的 TTM 分区, 返回写入行数
func (c *Calculator) CalculateForSymbol(symbol string) (int, error) {
	f, err := c.Compute(symbol)
	if err != nil {
		return 0, err
	}
	if f.Empty() {
		return 0, nil
	}
	if err := c.store.Write(model.TableTTM.Category, symbol, f); err != nil {
		return 0, fmt.Errorf("failed to save ttm of %s: %w", symbol, err)
	}
	c.log.Debug().Str("symbol", symbol).Int("rows", f.Len()).Msg("ttm saved")
	return f.Len(), nil
}
