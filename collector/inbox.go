package collector

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jing2uo/quantlab/model"
	"github.com/jing2uo/quantlab/utils"
)

const (
	StockListFile = "stock_list.csv"
	StockMetaFile = "stock_meta.csv"
)

// CSVInbox 本地落地目录: <root>/<category>/<symbol>.csv
// 外部采集程序把结果写到这里, 同步任务从这里读
type CSVInbox struct {
	root string
}

func NewCSVInbox(root string) *CSVInbox {
	return &CSVInbox{root: root}
}

func (b *CSVInbox) Root() string { return b.root }

func (b *CSVInbox) path(category, symbol string) string {
	return filepath.Join(b.root, category, symbol+".csv")
}

func (b *CSVInbox) Symbols(ctx context.Context, category string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(b.root, category))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, &TransientSourceError{Category: category, Err: err}
	}

	var out []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != ".csv" {
			continue
		}
		out = append(out, strings.TrimSuffix(name, ".csv"))
	}
	sort.Strings(out)
	return out, nil
}

func (b *CSVInbox) Fetch(ctx context.Context, category, symbol string) (*model.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := utils.ReadCSVFile(b.path(category, symbol))
	if err != nil {
		return nil, &TransientSourceError{Category: category, Symbol: symbol, Err: err}
	}
	return f, nil
}

func (b *CSVInbox) Modified(ctx context.Context, category, symbol string) (time.Time, error) {
	info, err := os.Stat(b.path(category, symbol))
	if err != nil {
		return time.Time{}, &TransientSourceError{Category: category, Symbol: symbol, Err: err}
	}
	return info.ModTime(), nil
}

// StockList 读取 stock_list.csv (code,name)
// 无法识别交易所的代码被丢弃
func (b *CSVInbox) StockList(ctx context.Context) ([]model.Stock, error) {
	f, err := utils.ReadCSVFile(filepath.Join(b.root, StockListFile))
	if err != nil {
		return nil, &TransientSourceError{Category: "stock_list", Err: err}
	}
	if !f.HasColumn("code") {
		return nil, &TransientSourceError{Category: "stock_list", Err: fmt.Errorf("missing column code")}
	}

	seen := make(map[string]bool, f.Len())
	stocks := make([]model.Stock, 0, f.Len())
	for _, row := range f.Rows {
		code := utils.StripExchange(model.Str(row["code"]))
		symbol, ok := utils.GenerateSymbol(code)
		if !ok || seen[code] {
			continue
		}
		seen[code] = true
		stocks = append(stocks, model.Stock{
			Symbol:   symbol,
			Code:     code,
			Name:     model.Str(row["name"]),
			IsActive: true,
		})
	}
	return stocks, nil
}

// StockMeta 读取 stock_meta.csv (code,area,industry,list_date)
func (b *CSVInbox) StockMeta(ctx context.Context) ([]model.StockMeta, error) {
	path := filepath.Join(b.root, StockMetaFile)
	if !utils.FileExists(path) {
		return nil, nil
	}
	f, err := utils.ReadCSVFile(path)
	if err != nil {
		return nil, &TransientSourceError{Category: "stock_meta", Err: err}
	}

	out := make([]model.StockMeta, 0, f.Len())
	for _, row := range f.Rows {
		code := utils.StripExchange(model.Str(row["code"]))
		if code == "" {
			continue
		}
		out = append(out, model.StockMeta{
			Code:     code,
			Area:     model.Str(row["area"]),
			Industry: model.Str(row["industry"]),
			ListDate: model.NormalizeISODate(model.Str(row["list_date"])),
		})
	}
	return out, nil
}
