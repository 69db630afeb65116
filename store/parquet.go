package store

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jing2uo/quantlab/model"
	"github.com/parquet-go/parquet-go"
)

const readBatchSize = 256

// buildSchema 由列定义生成扁平的可空 parquet schema
// parquet.Group 按字段名排序, 叶子序号即排序后的位置
func buildSchema(cols []model.Column) (*parquet.Schema, error) {
	group := parquet.Group{}
	for _, c := range cols {
		var node parquet.Node
		switch c.Type {
		case model.TypeString:
			node = parquet.String()
		case model.TypeFloat64:
			node = parquet.Leaf(parquet.DoubleType)
		case model.TypeInt64:
			node = parquet.Int(64)
		default:
			return nil, fmt.Errorf("unsupported column type %v for %s", c.Type, c.Name)
		}
		group[c.Name] = parquet.Optional(node)
	}
	return parquet.NewSchema("record", group), nil
}

// writeParquet 将行写入 path (snappy 压缩), 调用方负责原子替换
func writeParquet(path string, cols []model.Column, rows []model.Row) (err error) {
	schema, err := buildSchema(cols)
	if err != nil {
		return err
	}

	types := make(map[string]model.DataType, len(cols))
	for _, c := range cols {
		types[c.Name] = c.Type
	}
	fields := schema.Fields()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close file: %w", cerr)
		}
	}()

	w := parquet.NewWriter(f, schema,
		parquet.Compression(&parquet.Snappy),
		parquet.PageBufferSize(64*1024),
	)

	buf := make([]parquet.Row, 0, readBatchSize)
	flush := func() error {
		if len(buf) == 0 {
			return nil
		}
		if _, err := w.WriteRows(buf); err != nil {
			return fmt.Errorf("failed to write rows: %w", err)
		}
		buf = buf[:0]
		return nil
	}

	for _, r := range rows {
		row := make(parquet.Row, len(fields))
		for i, field := range fields {
			v := coerceValue(r[field.Name()], types[field.Name()])
			if v == nil {
				row[i] = parquet.NullValue().Level(0, 0, i)
				continue
			}
			row[i] = parquet.ValueOf(v).Level(0, 1, i)
		}
		buf = append(buf, row)
		if len(buf) == cap(buf) {
			if err := flush(); err != nil {
				w.Close()
				return err
			}
		}
	}
	if err := flush(); err != nil {
		w.Close()
		return err
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}
	return f.Sync()
}

func columnType(kind parquet.Kind) model.DataType {
	switch kind {
	case parquet.Double, parquet.Float:
		return model.TypeFloat64
	case parquet.Int32, parquet.Int64:
		return model.TypeInt64
	default:
		return model.TypeString
	}
}

// readParquet 读取整个文件, 列顺序与文件 schema 一致
func readParquet(path string) (*model.Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := parquet.NewReader(f)
	defer r.Close()

	fields := r.Schema().Fields()
	frame := model.NewFrame()
	for _, field := range fields {
		frame.AddColumn(model.Column{Name: field.Name(), Type: columnType(field.Type().Kind())})
	}

	buf := make([]parquet.Row, readBatchSize)
	for {
		n, err := r.ReadRows(buf)
		for _, row := range buf[:n] {
			out := make(model.Row, len(fields))
			for _, v := range row {
				idx := v.Column()
				if idx < 0 || idx >= len(fields) || v.IsNull() {
					continue
				}
				out[fields[idx].Name()] = fromValue(v)
			}
			frame.Append(out)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read rows from %s: %w", path, err)
		}
		if n == 0 {
			break
		}
	}
	return frame, nil
}

func fromValue(v parquet.Value) any {
	switch v.Kind() {
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return string(v.ByteArray())
	case parquet.Double:
		return v.Double()
	case parquet.Float:
		return float64(v.Float())
	case parquet.Int64:
		return v.Int64()
	case parquet.Int32:
		return int64(v.Int32())
	case parquet.Boolean:
		if v.Boolean() {
			return "true"
		}
		return "false"
	default:
		return nil
	}
}
