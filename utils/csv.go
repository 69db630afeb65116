package utils

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/jing2uo/quantlab/model"
)

// CSVWriter 按 col 标签把结构体写成 CSV
type CSVWriter[T any] struct {
	out           io.Writer
	closer        io.Closer
	writer        *csv.Writer
	headerWritten bool
	columns       []columnInfo
}

type columnInfo struct {
	Index      int
	HeaderName string
	IsTime     bool
	IsPtrTime  bool
	IsPtrFloat bool
	IsDateType bool // type:"date" 输出 yyyy-mm-dd
}

// NewCSVWriter 创建文件并写入
func NewCSVWriter[T any](filename string) (*CSVWriter[T], error) {
	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	cw, err := NewCSVStream[T](f)
	if err != nil {
		f.Close()
		return nil, err
	}
	cw.closer = f
	return cw, nil
}

// NewCSVStream 写入任意 io.Writer, 比如 stdout
func NewCSVStream[T any](w io.Writer) (*CSVWriter[T], error) {
	cols, err := analyzeStructTags[T]()
	if err != nil {
		return nil, err
	}
	return &CSVWriter[T]{
		out:     w,
		writer:  csv.NewWriter(w),
		columns: cols,
	}, nil
}

func analyzeStructTags[T any]() ([]columnInfo, error) {
	var t T
	typ := reflect.TypeOf(t)
	if typ == nil {
		return nil, fmt.Errorf("generic type T must be a struct")
	}
	if typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return nil, fmt.Errorf("generic type T must be a struct")
	}

	var cols []columnInfo
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)

		colTag := field.Tag.Get("col")
		if colTag == "-" {
			continue
		}
		if colTag == "" {
			colTag = field.Name
		}

		cols = append(cols, columnInfo{
			Index:      i,
			HeaderName: colTag,
			IsTime:     field.Type == reflect.TypeOf(time.Time{}),
			IsPtrTime:  field.Type == reflect.TypeOf((*time.Time)(nil)),
			IsPtrFloat: field.Type == reflect.TypeOf((*float64)(nil)),
			IsDateType: field.Tag.Get("type") == "date",
		})
	}
	return cols, nil
}

// Header 表头, 与写出顺序一致
func (cw *CSVWriter[T]) Header() []string {
	headers := make([]string, len(cw.columns))
	for i, col := range cw.columns {
		headers[i] = col.HeaderName
	}
	return headers
}

func (cw *CSVWriter[T]) Write(data []T) error {
	if !cw.headerWritten {
		if err := cw.writer.Write(cw.Header()); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
		cw.headerWritten = true
	}

	record := make([]string, len(cw.columns))
	for _, item := range data {
		val := reflect.ValueOf(item)
		if val.Kind() == reflect.Ptr {
			val = val.Elem()
		}

		for i, col := range cw.columns {
			record[i] = formatField(val.Field(col.Index), col)
		}

		if err := cw.writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}
	return nil
}

func formatField(fieldVal reflect.Value, col columnInfo) string {
	switch {
	case col.IsTime || col.IsPtrTime:
		var t time.Time
		if col.IsTime {
			t = fieldVal.Interface().(time.Time)
		} else if !fieldVal.IsNil() {
			t = *fieldVal.Interface().(*time.Time)
		}
		if t.IsZero() {
			return ""
		}
		if col.IsDateType {
			return t.Format("2006-01-02")
		}
		return t.Format(time.RFC3339)

	case col.IsPtrFloat:
		if fieldVal.IsNil() {
			return ""
		}
		return strconv.FormatFloat(fieldVal.Elem().Float(), 'f', -1, 64)

	case fieldVal.Kind() == reflect.Float64:
		return strconv.FormatFloat(fieldVal.Float(), 'f', -1, 64)
	}
	return fmt.Sprint(fieldVal.Interface())
}

func (cw *CSVWriter[T]) Close() error {
	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		if cw.closer != nil {
			cw.closer.Close()
		}
		return fmt.Errorf("failed to flush: %w", err)
	}
	if cw.closer != nil {
		return cw.closer.Close()
	}
	return nil
}

// ReadCSVFrame 读取带表头的 CSV, 所有单元格为原始字符串, 空串为空值
// 类型转换交给存储层按列规则处理
func ReadCSVFrame(r io.Reader) (*model.Frame, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return model.NewFrame(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	frame := model.NewFrame()
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		header[i] = h
		frame.AddColumn(model.Column{Name: h, Type: model.TypeString})
	}

	for line := 2; ; line++ {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv line %d: %w", line, err)
		}
		row := make(model.Row, len(header))
		for i, v := range rec {
			if i >= len(header) {
				break
			}
			if v = strings.TrimSpace(v); v != "" {
				row[header[i]] = v
			}
		}
		frame.Append(row)
	}
	return frame, nil
}

// ReadCSVFile 同 ReadCSVFrame, 从文件读取
func ReadCSVFile(path string) (*model.Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadCSVFrame(f)
}
