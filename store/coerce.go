package store

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/jing2uo/quantlab/model"
)

var nullTokens = map[string]bool{
	"":     true,
	"-":    true,
	"--":   true,
	"nan":  true,
	"none": true,
	"null": true,
}

// finite 过滤 NaN 与 ±Inf
func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// parseNumber 解析数值, 容忍千分位与空白, 无法解析或非有限值时返回 false
func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if nullTokens[strings.ToLower(s)] {
		return 0, false
	}
	s = strings.ReplaceAll(s, ",", "")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || !finite(f) {
		return 0, false
	}
	return f, true
}

// coerceValue 将单元格转换为列类型, 无法转换则为 nil
func coerceValue(v any, t model.DataType) any {
	if v == nil {
		return nil
	}
	switch t {
	case model.TypeString:
		s := model.Str(v)
		if s == "" {
			return nil
		}
		return s
	case model.TypeFloat64:
		switch x := v.(type) {
		case float64:
			if finite(x) {
				return x
			}
		case float32:
			if finite(float64(x)) {
				return float64(x)
			}
		case int64:
			return float64(x)
		case int:
			return float64(x)
		case string:
			if f, ok := parseNumber(x); ok {
				return f
			}
		}
		return nil
	case model.TypeInt64:
		switch x := v.(type) {
		case int64:
			return x
		case int:
			return int64(x)
		case float64:
			if finite(x) {
				return int64(x)
			}
		case string:
			if f, ok := parseNumber(x); ok {
				return int64(f)
			}
		}
		return nil
	}
	return nil
}

// enforcedColumns 返回批次在该类别下应有的列定义 (不含 symbol)
func enforcedColumns(meta *model.TableMeta, batch *model.Frame) []model.Column {
	if !meta.Evolving() {
		return append([]model.Column(nil), meta.Columns...)
	}
	var cols []model.Column
	for _, c := range batch.Columns {
		if !meta.Owns(c.Name) {
			continue
		}
		cols = append(cols, model.Column{Name: c.Name, Type: model.ColumnType(c.Name)})
	}
	return cols
}

// validDate 校验 YYYYMMDD 是否为真实日期
func validDate(d string) bool {
	if len(d) != 8 {
		return false
	}
	_, err := time.Parse("20060102", d)
	return err == nil
}

// normalizeKey 报告期统一为 YYYYMMDD, 交易日期统一为 YYYY-MM-DD
// 无法识别为合法日期时返回 false
func normalizeKey(meta *model.TableMeta, v any) (string, bool) {
	d := model.NormalizeDate(model.Str(v))
	if !validDate(d) {
		return "", false
	}
	if meta.Key == model.ColReportDate {
		return d, true
	}
	return d[:4] + "-" + d[4:6] + "-" + d[6:], true
}

// coerceFrame 按类别的类型约定转换整批数据, 主键不是合法日期的行被丢弃
// 返回转换后的数据与丢弃的行数
func coerceFrame(meta *model.TableMeta, batch *model.Frame) (*model.Frame, int) {
	cols := enforcedColumns(meta, batch)
	out := model.NewFrame(cols...)
	dropped := 0
	for _, r := range batch.Rows {
		row := make(model.Row, len(cols))
		for _, c := range cols {
			v := coerceValue(r[c.Name], c.Type)
			if v == nil {
				continue
			}
			switch c.Name {
			case meta.Key:
				key, ok := normalizeKey(meta, v)
				if !ok {
					continue
				}
				v = key
			case model.ColAnnDate, model.ColPubDate:
				d := model.NormalizeDate(model.Str(v))
				if !validDate(d) {
					continue
				}
				v = d
			}
			row[c.Name] = v
		}
		if _, ok := row[meta.Key]; !ok {
			dropped++
			continue
		}
		out.Append(row)
	}
	return out, dropped
}
