package warehouse

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jing2uo/quantlab/calc"
	"github.com/jing2uo/quantlab/config"
	"github.com/jing2uo/quantlab/ingest"
	"github.com/jing2uo/quantlab/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	dir := t.TempDir()
	return &config.Config{
		DataDir:      dir,
		WarehouseDir: filepath.Join(dir, "warehouse"),
		DuckDBPath:   filepath.Join(dir, "db", "warehouse.duckdb"),
		SQLitePath:   filepath.Join(dir, "db", "metadata.db"),
		InboxDir:     filepath.Join(dir, "inbox"),
		Workers:      2,
		LogLevel:     "info",
		LogFormat:    "json",
	}
}

func inboxFile(t *testing.T, cfg *config.Config, category, symbol, content string) {
	t.Helper()
	path := filepath.Join(cfg.InboxDir, filepath.FromSlash(category), symbol+".csv")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestOpenCreatesLayoutAndCloses(t *testing.T) {
	cfg := testConfig(t)
	wh, err := Open(cfg, zerolog.Nop())
	require.NoError(t, err)

	assert.DirExists(t, cfg.WarehouseDir)
	assert.DirExists(t, filepath.Dir(cfg.DuckDBPath))
	assert.Equal(t, cfg.WarehouseDir, wh.Store.Root())

	_, err = wh.Directory()
	assert.NoError(t, err)

	require.NoError(t, wh.Close())
}

func TestEndToEndValuation(t *testing.T) {
	cfg := testConfig(t)
	const sym = "600519"

	inboxFile(t, cfg, model.TableIncome.Category, sym, `report_date,ann_date,net_profit_parent,total_revenue
20230331,20230420,10,100
20230630,20230820,20,200
20230930,20231020,30,300
20231231,20240320,50,500
20240331,20240425,12,130
`)
	inboxFile(t, cfg, model.TableBalance.Category, sym, `report_date,ann_date,equity_parent
20231231,20240320,4000000
20240331,20240425,5000000
`)
	inboxFile(t, cfg, model.TableShareCapital.Category, sym, "change_date,total_shares_10k\n2024-01-15,100\n")
	inboxFile(t, cfg, model.TableKline.Category, sym, `date,open,high,low,close,volume,amount,close_hfq
2024-01-10,9,10,9,10,100,1000,20
2024-03-25,10,10,10,10,100,1000,20
2024-05-06,10,11,10,11,100,1100,22
`)

	wh, err := Open(cfg, zerolog.Nop())
	require.NoError(t, err)
	defer wh.Close()

	ctx := context.Background()
	syncer := wh.Syncer()
	for _, meta := range []*model.TableMeta{model.TableIncome, model.TableBalance, model.TableShareCapital, model.TableKline} {
		report, err := syncer.SyncCategory(ctx, meta, ingest.SyncOptions{})
		require.NoError(t, err)
		require.Empty(t, report.Errors, meta.Category)
	}

	ttm, err := wh.TTMRunner().Run(ctx, calc.RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, ttm.Computed)

	refreshed, err := wh.RefreshViews(ctx)
	require.NoError(t, err)
	require.True(t, refreshed.Available(model.ViewValuation), "skipped: %v failed: %v", refreshed.Skipped, refreshed.Failed)

	records, err := wh.Engine.QueryValuation(ctx, sym, nil, nil)
	require.NoError(t, err)
	require.Len(t, records, 3)

	// before any share capital record
	assert.Nil(t, records[0].MarketCap)

	// shares known, no TTM published yet, equity from the 2023 annual report
	require.NotNil(t, records[1].MarketCap)
	assert.InDelta(t, 1e7, *records[1].MarketCap, 1e-6)
	assert.Nil(t, records[1].PeTTM)
	require.NotNil(t, records[1].Pb)
	assert.InDelta(t, 2.5, *records[1].Pb, 1e-9)

	latest := records[2]
	assert.Equal(t, 11.0, latest.RawClose)
	require.NotNil(t, latest.MarketCap)
	assert.InDelta(t, 1.1e7, *latest.MarketCap, 1e-6)
	require.NotNil(t, latest.PeTTM)
	assert.InDelta(t, 1.1e7/52.0, *latest.PeTTM, 1e-6)
	require.NotNil(t, latest.Pb)
	assert.InDelta(t, 2.2, *latest.Pb, 1e-9)
	require.NotNil(t, latest.PsTTM)
	assert.InDelta(t, 1.1e7/530.0, *latest.PsTTM, 1e-6)
	assert.Nil(t, latest.PcfTTM)

	from := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	records, err = wh.Engine.QueryValuation(ctx, sym, &from, nil)
	require.NoError(t, err)
	assert.Len(t, records, 1)

	files, err := wh.ExportViews(filepath.Join(cfg.DataDir, "export"))
	require.NoError(t, err)
	assert.Len(t, files, 2)
}
