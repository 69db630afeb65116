package model

import (
	"fmt"
	"strconv"
)

// Row 一行数据, 值为 string / float64 / int64, 缺失或 nil 表示空值
type Row map[string]any

// Frame 按列描述的一批行数据, 在采集器、存储与计算之间传递
type Frame struct {
	Columns []Column
	Rows    []Row
}

func NewFrame(cols ...Column) *Frame {
	return &Frame{Columns: append([]Column(nil), cols...)}
}

func (f *Frame) Len() int {
	if f == nil {
		return 0
	}
	return len(f.Rows)
}

func (f *Frame) Empty() bool {
	return f.Len() == 0
}

func (f *Frame) Column(name string) (Column, bool) {
	if f == nil {
		return Column{}, false
	}
	for _, c := range f.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

func (f *Frame) HasColumn(name string) bool {
	_, ok := f.Column(name)
	return ok
}

// AddColumn 追加列定义, 已存在时忽略
func (f *Frame) AddColumn(c Column) {
	if f.HasColumn(c.Name) {
		return
	}
	f.Columns = append(f.Columns, c)
}

func (f *Frame) Append(rows ...Row) {
	f.Rows = append(f.Rows, rows...)
}

func (f *Frame) Names() []string {
	names := make([]string, len(f.Columns))
	for i, c := range f.Columns {
		names[i] = c.Name
	}
	return names
}

// Float 将单元格转为 float64, 第二个返回值为 false 表示空值或无法解析
func Float(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int64:
		return float64(x), true
	case int:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// Str 将单元格转为字符串, 空值返回 ""
func Str(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(x, 10)
	default:
		return fmt.Sprint(x)
	}
}

// FloatPtr 空值返回 nil
func FloatPtr(v any) *float64 {
	f, ok := Float(v)
	if !ok {
		return nil
	}
	return &f
}
