package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jing2uo/quantlab/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDriver(t *testing.T) *SQLiteDriver {
	t.Helper()
	d := NewDriver(model.DBConfig{Type: model.DBTypeSQLite, DSN: filepath.Join(t.TempDir(), "metadata.db")})
	require.NoError(t, d.Connect())
	require.NoError(t, d.InitSchema())
	t.Cleanup(func() { d.Close() })
	return d
}

func strPtr(s string) *string { return &s }

func TestReplaceAndListStocks(t *testing.T) {
	d := newTestDriver(t)
	ctx := context.Background()

	n, err := d.ReplaceStocks(ctx, []model.Stock{
		{Symbol: "sh600519", Code: "600519", Name: "贵州茅台", IsActive: true},
		{Symbol: "sz000001", Code: "000001", Name: "平安银行", IsActive: true, Area: strPtr("广东")},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	stocks, err := d.ListStocks(ctx, 0)
	require.NoError(t, err)
	require.Len(t, stocks, 2)
	assert.Equal(t, "sh600519", stocks[0].Symbol)
	assert.Equal(t, "000001", stocks[1].Code)
	require.NotNil(t, stocks[1].Area)
	assert.Equal(t, "广东", *stocks[1].Area)
	assert.True(t, stocks[0].IsActive)
	assert.NotNil(t, stocks[0].UpdatedAt)

	limited, err := d.ListStocks(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	// a second sync replaces the whole list
	_, err = d.ReplaceStocks(ctx, []model.Stock{{Symbol: "bj430047", Code: "430047", Name: "诺思兰德", IsActive: true}})
	require.NoError(t, err)
	stocks, err = d.ListStocks(ctx, 0)
	require.NoError(t, err)
	require.Len(t, stocks, 1)
	assert.Equal(t, "bj430047", stocks[0].Symbol)
}

func TestUpdateMetadataKeepsExistingValues(t *testing.T) {
	d := newTestDriver(t)
	ctx := context.Background()

	_, err := d.ReplaceStocks(ctx, []model.Stock{
		{Symbol: "sh600519", Code: "600519", Name: "贵州茅台", IsActive: true, Area: strPtr("贵州")},
	})
	require.NoError(t, err)

	pending, err := d.PendingMetadata(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	hit, err := d.UpdateMetadata(ctx, model.StockMeta{Code: "600519", Industry: "白酒", ListDate: "20010827"})
	require.NoError(t, err)
	assert.True(t, hit)

	stocks, err := d.ListStocks(ctx, 0)
	require.NoError(t, err)
	require.Len(t, stocks, 1)
	assert.Equal(t, "贵州", *stocks[0].Area)
	assert.Equal(t, "白酒", *stocks[0].Industry)
	assert.Equal(t, "20010827", *stocks[0].ListDate)

	pending, err = d.PendingMetadata(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, pending)

	hit, err = d.UpdateMetadata(ctx, model.StockMeta{Code: "999999", Area: "x"})
	require.NoError(t, err)
	assert.False(t, hit)
}
