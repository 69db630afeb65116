package ingest

import (
	"sort"

	"github.com/jing2uo/quantlab/model"
)

const (
	colCloseHfq       = "close_hfq"
	colTotalShares10k = "total_shares_10k"
)

// prepare 按类别做入库前的整理, 其余类别原样返回
func prepare(meta *model.TableMeta, f *model.Frame) *model.Frame {
	switch meta.Category {
	case model.TableKline.Category:
		return normalizeKline(f)
	case model.TableShareCapital.Category:
		return normalizeShares(f)
	}
	return f
}

// normalizeKline 由后复权收盘价推出复权因子 adj_factor = close_hfq / close
// 算不出来的行沿用前一行的因子, 开头没有可用因子时为 1.0
// 已有有效 adj_factor 的行保持不变
func normalizeKline(f *model.Frame) *model.Frame {
	if f.Empty() || !f.HasColumn(model.ColDate) {
		return f
	}

	rows := make([]model.Row, len(f.Rows))
	for i, r := range f.Rows {
		cp := make(model.Row, len(r)+1)
		for k, v := range r {
			cp[k] = v
		}
		rows[i] = cp
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return model.NormalizeDate(model.Str(rows[i][model.ColDate])) < model.NormalizeDate(model.Str(rows[j][model.ColDate]))
	})

	factor := 1.0
	for _, r := range rows {
		if v, ok := model.Float(r[model.ColAdjFactor]); ok && v > 0 {
			factor = v
		} else if hfq, ok := model.Float(r[colCloseHfq]); ok {
			if c, ok := model.Float(r[model.ColClose]); ok && c != 0 {
				factor = hfq / c
			}
		}
		r[model.ColAdjFactor] = factor
		delete(r, colCloseHfq)
	}

	out := model.NewFrame()
	for _, c := range f.Columns {
		if c.Name != colCloseHfq {
			out.AddColumn(c)
		}
	}
	out.AddColumn(model.Column{Name: model.ColAdjFactor, Type: model.TypeFloat64})
	out.Append(rows...)
	return out
}

// normalizeShares 股本单位为万股时换算为股
func normalizeShares(f *model.Frame) *model.Frame {
	if f.Empty() || !f.HasColumn(colTotalShares10k) || f.HasColumn(model.ColTotalShares) {
		return f
	}

	out := model.NewFrame()
	for _, c := range f.Columns {
		if c.Name != colTotalShares10k {
			out.AddColumn(c)
		}
	}
	out.AddColumn(model.Column{Name: model.ColTotalShares, Type: model.TypeFloat64})

	for _, r := range f.Rows {
		cp := make(model.Row, len(r))
		for k, v := range r {
			if k != colTotalShares10k {
				cp[k] = v
			}
		}
		if v, ok := model.Float(r[colTotalShares10k]); ok {
			cp[model.ColTotalShares] = v * 10000
		}
		out.Append(cp)
	}
	return out
}
