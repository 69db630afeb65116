package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jing2uo/quantlab/collector"
	"github.com/jing2uo/quantlab/database/sqlite"
	"github.com/jing2uo/quantlab/model"
	"github.com/jing2uo/quantlab/store"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeInbox(t *testing.T, root, category, symbol, content string) string {
	t.Helper()
	path := filepath.Join(root, category, symbol+".csv")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestSyncCategoryWritesAndSkipsFresh(t *testing.T) {
	inbox := t.TempDir()
	s := store.NewPartitionStore(t.TempDir())
	cat := model.TableIncome.Category

	path := writeInbox(t, inbox, cat, "600519", "report_date,ann_date,net_profit_parent\n2023-12-31,2024-03-20,50\n")
	writeInbox(t, inbox, cat, "000001", "report_date,ann_date,total_revenue\n20231231,20240320,\"1,000\"\n")

	syncer := NewSyncer(s, collector.NewCSVInbox(inbox), 2, zerolog.Nop())
	ctx := context.Background()

	report, err := syncer.SyncCategory(ctx, model.TableIncome, SyncOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Total)
	assert.Equal(t, 2, report.Written)
	assert.Equal(t, 2, report.Rows)
	assert.Empty(t, report.Errors)

	got, err := s.Read(cat, "000001")
	require.NoError(t, err)
	assert.Equal(t, "20231231", got.Rows[0]["report_date"])
	assert.Equal(t, 1000.0, got.Rows[0]["total_revenue"])

	// nothing changed at the source
	report, err = syncer.SyncCategory(ctx, model.TableIncome, SyncOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Unchanged)
	assert.Zero(t, report.Written)

	// newer source file is picked up
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, future, future))
	report, err = syncer.SyncCategory(ctx, model.TableIncome, SyncOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Written)
	assert.Equal(t, 1, report.Unchanged)

	// forced runs always refetch
	report, err = syncer.SyncCategory(ctx, model.TableIncome, SyncOptions{Force: true, Symbols: []string{"000001", "000001"}})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Total)
	assert.Equal(t, 1, report.Written)
}

func TestSyncCategoryIsolatesFailures(t *testing.T) {
	inbox := t.TempDir()
	s := store.NewPartitionStore(t.TempDir())
	cat := model.TableIndicator.Category

	writeInbox(t, inbox, cat, "600519", "report_date,ann_date,roe\n20231231,20240320,0.3\n")
	writeInbox(t, inbox, cat, "000002", "ann_date,roe\n20240320,0.1\n")

	syncer := NewSyncer(s, collector.NewCSVInbox(inbox), 2, zerolog.Nop())
	report, err := syncer.SyncCategory(context.Background(), model.TableIndicator,
		SyncOptions{Symbols: []string{"600519", "000002", "404404"}})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Written)
	assert.Equal(t, 1, report.Empty)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, 2, report.Succeeded())

	var te *collector.TransientSourceError
	assert.True(t, errors.As(report.Errors[0], &te))
}

func TestSyncCategoryLimit(t *testing.T) {
	inbox := t.TempDir()
	s := store.NewPartitionStore(t.TempDir())
	for _, sym := range []string{"000001", "000002", "000003"} {
		writeInbox(t, inbox, model.TableShareCapital.Category, sym, "change_date,total_shares_10k\n20240115,2\n")
	}

	report, err := NewSyncer(s, collector.NewCSVInbox(inbox), 1, zerolog.Nop()).
		SyncCategory(context.Background(), model.TableShareCapital, SyncOptions{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Total)

	got, err := s.Read(model.TableShareCapital.Category, "000001")
	require.NoError(t, err)
	require.Equal(t, 1, got.Len())
	assert.Equal(t, "2024-01-15", got.Rows[0]["change_date"])
	assert.Equal(t, 20000.0, got.Rows[0]["total_shares"])
	assert.False(t, s.Exists(model.TableShareCapital.Category, "000003"))
}

func TestNormalizeKline(t *testing.T) {
	f := model.NewFrame(
		model.Column{Name: "date", Type: model.TypeString},
		model.Column{Name: "close", Type: model.TypeFloat64},
		model.Column{Name: "close_hfq", Type: model.TypeFloat64},
	)
	f.Append(
		model.Row{"date": "2024-01-03", "close": 10.0},
		model.Row{"date": "2024-01-02", "close": 10.0, "close_hfq": 25.0},
		model.Row{"date": "2024-01-01", "close": 10.0},
		model.Row{"date": "2024-01-04", "close": 0.0, "close_hfq": 30.0},
		model.Row{"date": "2024-01-05", "close": 11.0, "close_hfq": 33.0},
	)

	out := normalizeKline(f)
	assert.False(t, out.HasColumn("close_hfq"))
	require.True(t, out.HasColumn("adj_factor"))

	var factors []any
	for _, r := range out.Rows {
		factors = append(factors, r["adj_factor"])
	}
	assert.Equal(t, []any{1.0, 2.5, 2.5, 2.5, 3.0}, factors)
	assert.Equal(t, "2024-01-01", out.Rows[0]["date"])

	// input untouched
	assert.Equal(t, 25.0, f.Rows[1]["close_hfq"])
}

func TestNormalizeKlineKeepsGivenFactor(t *testing.T) {
	f := model.NewFrame(model.Column{Name: "date"}, model.Column{Name: "adj_factor", Type: model.TypeFloat64})
	f.Append(model.Row{"date": "2024-01-02", "adj_factor": 4.0}, model.Row{"date": "2024-01-03"})

	out := normalizeKline(f)
	assert.Equal(t, 4.0, out.Rows[0]["adj_factor"])
	assert.Equal(t, 4.0, out.Rows[1]["adj_factor"])
}

func TestNormalizeShares(t *testing.T) {
	f := model.NewFrame(model.Column{Name: "change_date"}, model.Column{Name: "total_shares_10k"})
	f.Append(model.Row{"change_date": "20240115", "total_shares_10k": "1.5"}, model.Row{"change_date": "20240201"})

	out := normalizeShares(f)
	assert.Equal(t, []string{"change_date", "total_shares"}, out.Names())
	assert.Equal(t, 15000.0, out.Rows[0]["total_shares"])
	assert.NotContains(t, out.Rows[1], "total_shares")
}

func TestSyncStockListAndMetadata(t *testing.T) {
	inbox := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(inbox, collector.StockListFile),
		[]byte("code,name\n600519,贵州茅台\n000001,平安银行\n300750,宁德时代\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(inbox, collector.StockMetaFile),
		[]byte("code,area,industry,list_date\n600519,贵州,白酒,2001-08-27\n000001,广东,银行,19910403\n"), 0644))

	repo := sqlite.NewDriver(model.DBConfig{Type: model.DBTypeSQLite, DSN: filepath.Join(t.TempDir(), "meta.db")})
	require.NoError(t, repo.Connect())
	require.NoError(t, repo.InitSchema())
	t.Cleanup(func() { repo.Close() })

	ctx := context.Background()
	src := collector.NewCSVInbox(inbox)

	n, err := SyncStockList(ctx, src, repo, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	report, err := SyncMetadata(ctx, src, repo, 0, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 3, report.Pending)
	assert.Equal(t, 2, report.Updated)
	assert.Equal(t, 1, report.NotFound)

	pending, err := repo.PendingMetadata(ctx, 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "300750", pending[0].Code)

	stocks, err := repo.ListStocks(ctx, 0)
	require.NoError(t, err)
	for _, st := range stocks {
		if st.Code == "000001" {
			require.NotNil(t, st.ListDate)
			assert.Equal(t, "1991-04-03", *st.ListDate)
		}
	}
}

func TestSyncStockListEmptyKeepsTable(t *testing.T) {
	inbox := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(inbox, collector.StockListFile), []byte("code,name\n"), 0644))

	repo := sqlite.NewDriver(model.DBConfig{Type: model.DBTypeSQLite, DSN: filepath.Join(t.TempDir(), "meta.db")})
	require.NoError(t, repo.Connect())
	require.NoError(t, repo.InitSchema())
	t.Cleanup(func() { repo.Close() })

	ctx := context.Background()
	_, err := repo.ReplaceStocks(ctx, []model.Stock{{Symbol: "sh600519", Code: "600519", Name: "贵州茅台", IsActive: true}})
	require.NoError(t, err)

	n, err := SyncStockList(ctx, collector.NewCSVInbox(inbox), repo, zerolog.Nop())
	require.NoError(t, err)
	assert.Zero(t, n)

	stocks, err := repo.ListStocks(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, stocks, 1)
}
