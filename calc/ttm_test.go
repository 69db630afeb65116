package calc

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/jing2uo/quantlab/model"
	"github.com/jing2uo/quantlab/store"
	"github.com/jing2uo/quantlab/views"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type disclosureRow struct {
	period string
	ann    string
	value  any
}

func statement(column string, rows ...disclosureRow) *model.Frame {
	f := model.NewFrame(
		model.Column{Name: model.ColReportDate, Type: model.TypeString},
		model.Column{Name: model.ColAnnDate, Type: model.TypeString},
		model.Column{Name: column, Type: model.TypeFloat64},
	)
	for _, r := range rows {
		row := model.Row{model.ColReportDate: r.period, model.ColAnnDate: r.ann}
		if r.value != nil {
			row[column] = r.value
		}
		f.Append(row)
	}
	return f
}

func writeIncome(t *testing.T, s *store.PartitionStore, symbol string, rows ...disclosureRow) {
	t.Helper()
	require.NoError(t, s.Write(model.TableIncome.Category, symbol, statement("net_profit_parent", rows...)))
}

func TestComputeEndToEnd(t *testing.T) {
	s := store.NewPartitionStore(t.TempDir())
	writeIncome(t, s, "600519",
		disclosureRow{"20230331", "20230420", 10.0},
		disclosureRow{"20231231", "20240320", 50.0},
		disclosureRow{"20240331", "20240425", 12.0},
	)

	c := NewCalculator(s, zerolog.Nop())
	n, err := c.CalculateForSymbol("600519")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := s.Read(model.TableTTM.Category, "600519")
	require.NoError(t, err)
	require.Equal(t, 1, got.Len())

	row := got.Rows[0]
	assert.Equal(t, "20240331", row["report_date"])
	assert.Equal(t, "20240425", row["pub_date"])
	assert.Equal(t, 52.0, row["net_profit_ttm"])
	assert.Nil(t, row["revenue_ttm"])
	assert.Nil(t, row["ocf_ttm"])
}

func TestComputeYearEndEqualsCumulative(t *testing.T) {
	s := store.NewPartitionStore(t.TempDir())
	writeIncome(t, s, "000001",
		disclosureRow{"20221231", "20230320", 40.0},
		disclosureRow{"20231231", "20240320", 50.0},
	)

	f, err := NewCalculator(s, zerolog.Nop()).Compute("000001")
	require.NoError(t, err)
	require.Equal(t, 1, f.Len())
	assert.Equal(t, "20231231", f.Rows[0]["report_date"])
	assert.Equal(t, 50.0, f.Rows[0]["net_profit_ttm"])
}

func TestComputeNullWhenPriorYearMissing(t *testing.T) {
	s := store.NewPartitionStore(t.TempDir())
	writeIncome(t, s, "000001",
		disclosureRow{"20221231", "20230320", 40.0},
		disclosureRow{"20230630", "20230820", 30.0},
		disclosureRow{"20231231", "20240320", nil},
	)

	f, err := NewCalculator(s, zerolog.Nop()).Compute("000001")
	require.NoError(t, err)
	// 2023Q2 lacks 2022Q2, 2023Q4 has a null current value: nothing computable
	assert.True(t, f.Empty())

	n, err := NewCalculator(s, zerolog.Nop()).CalculateForSymbol("000001")
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.False(t, s.Exists(model.TableTTM.Category, "000001"))
}

func TestComputeUsesLatestDisclosureAndMaxPubDate(t *testing.T) {
	s := store.NewPartitionStore(t.TempDir())
	writeIncome(t, s, "000001",
		disclosureRow{"20221231", "20230320", 40.0},
		// restated later; listed first to make sure announcement order decides
		disclosureRow{"20231231", "20240601", 55.0},
		disclosureRow{"20231231", "20240320", 50.0},
	)
	require.NoError(t, s.Write(model.TableCashflow.Category, "000001", statement("net_operating_cash_flow",
		disclosureRow{"20221231", "20230320", 8.0},
		disclosureRow{"20231231", "20240710", 9.0},
	)))

	f, err := NewCalculator(s, zerolog.Nop()).Compute("000001")
	require.NoError(t, err)
	require.Equal(t, 1, f.Len())
	row := f.Rows[0]
	assert.Equal(t, 55.0, row["net_profit_ttm"])
	assert.Equal(t, 9.0, row["ocf_ttm"])
	assert.Equal(t, "20240710", row["pub_date"])
}

func TestComputeNoSources(t *testing.T) {
	s := store.NewPartitionStore(t.TempDir())
	f, err := NewCalculator(s, zerolog.Nop()).Compute("000001")
	require.NoError(t, err)
	assert.True(t, f.Empty())
}

type fakeIndex struct {
	latest      map[string]string
	invalidated int
}

func (f *fakeIndex) LatestPeriods(context.Context, views.Catalog, string) (map[string]string, error) {
	return f.latest, nil
}

func (f *fakeIndex) InvalidateLatest(string) { f.invalidated++ }

func fullHistory() []disclosureRow {
	return []disclosureRow{
		{"20230331", "20230420", 10.0},
		{"20230630", "20230820", 20.0},
		{"20230930", "20231020", 30.0},
		{"20231231", "20240320", 50.0},
		{"20240331", "20240425", 12.0},
	}
}

func TestRunnerCompletenessGate(t *testing.T) {
	s := store.NewPartitionStore(t.TempDir())
	writeIncome(t, s, "600519", fullHistory()...)
	writeIncome(t, s, "000001",
		disclosureRow{"20230331", "20230420", 10.0},
		disclosureRow{"20231231", "20240320", 50.0},
		disclosureRow{"20240331", "20240425", 12.0},
	)

	idx := &fakeIndex{latest: map[string]string{}}
	r := NewRunner(s, idx, 2, zerolog.Nop())

	report, err := r.Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Total)
	assert.Equal(t, 1, report.Computed)
	assert.Equal(t, 1, report.Incomplete)
	assert.Equal(t, 2, report.Succeeded())
	assert.Equal(t, 1, idx.invalidated)

	assert.True(t, s.Exists(model.TableTTM.Category, "600519"))
	assert.False(t, s.Exists(model.TableTTM.Category, "000001"))

	// forced runs ignore the gate
	report, err = r.Run(context.Background(), RunOptions{Symbols: []string{"000001"}, Force: true})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Computed)
	assert.True(t, s.Exists(model.TableTTM.Category, "000001"))
}

func TestRunnerSkipsUpToDate(t *testing.T) {
	s := store.NewPartitionStore(t.TempDir())
	writeIncome(t, s, "600519", fullHistory()...)

	idx := &fakeIndex{latest: map[string]string{"600519": "20240331"}}
	report, err := NewRunner(s, idx, 1, zerolog.Nop()).Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.UpToDate)
	assert.Zero(t, report.Computed)
	assert.False(t, s.Exists(model.TableTTM.Category, "600519"))
}

type brokenStore struct {
	*store.PartitionStore
}

func (b brokenStore) Read(category, symbol string) (*model.Frame, error) {
	if symbol == "bad" {
		return nil, errors.New("disk error")
	}
	return b.PartitionStore.Read(category, symbol)
}

func TestRunnerIsolatesFailures(t *testing.T) {
	s := store.NewPartitionStore(t.TempDir())
	writeIncome(t, s, "600519", fullHistory()...)

	r := NewRunner(brokenStore{s}, &fakeIndex{}, 2, zerolog.Nop())
	report, err := r.Run(context.Background(), RunOptions{Symbols: []string{"bad", "600519"}})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Computed)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0].Error(), "bad")
}

func TestCheckHistory(t *testing.T) {
	var periods []model.ReportPeriod
	for _, r := range fullHistory() {
		periods = append(periods, model.MustPeriod(r.period))
	}
	sort.Slice(periods, func(i, j int) bool { return periods[i].Before(periods[j]) })

	assert.NoError(t, checkHistory(periods, model.MustPeriod("20240331")))
	err := checkHistory(periods[1:], model.MustPeriod("20240331"))
	assert.ErrorIs(t, err, ErrIncompleteHistory)
}
