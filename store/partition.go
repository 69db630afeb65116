package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jing2uo/quantlab/model"
)

const (
	partitionFile = "data.parquet"
	tempPrefix    = ".tmp_"
	symbolDirKey  = "symbol="
)

// NotFoundError 分区文件不存在
type NotFoundError struct {
	Category string
	Symbol   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("partition %s/%s%s not found", e.Category, symbolDirKey, e.Symbol)
}

// PartitionStore 管理 <root>/<category>/symbol=<symbol>/data.parquet 形式的分区文件
// 同一分区同一时间只允许一个写入者
type PartitionStore struct {
	root string
}

func NewPartitionStore(root string) *PartitionStore {
	return &PartitionStore{root: root}
}

func (s *PartitionStore) Root() string {
	return s.root
}

func (s *PartitionStore) Dir(category, symbol string) string {
	return filepath.Join(s.root, filepath.FromSlash(category), symbolDirKey+symbol)
}

func (s *PartitionStore) Path(category, symbol string) string {
	return filepath.Join(s.Dir(category, symbol), partitionFile)
}

// PathGlob 某类别下所有分区的通配路径, 供 DuckDB read_parquet 使用
// 只匹配 data.parquet, 临时文件不会被扫描到
func (s *PartitionStore) PathGlob(category string) string {
	return filepath.ToSlash(filepath.Join(s.root, filepath.FromSlash(category), "*", partitionFile))
}

// Write 原子地替换一个分区: 先写临时文件再 rename
func (s *PartitionStore) Write(category, symbol string, f *model.Frame) error {
	if f.Empty() {
		return nil
	}
	if symbol == "" {
		return fmt.Errorf("write %s: empty symbol", category)
	}

	cols := s.ownedColumns(category, f)
	if len(cols) == 0 {
		return fmt.Errorf("write %s/%s: no storable columns", category, symbol)
	}

	dir := s.Dir(category, symbol)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create partition dir %s: %w", dir, err)
	}

	target := filepath.Join(dir, partitionFile)
	temp := filepath.Join(dir, tempPrefix+symbol+".parquet")

	if err := writeParquet(temp, cols, f.Rows); err != nil {
		os.Remove(temp)
		return fmt.Errorf("failed to write partition %s/%s: %w", category, symbol, err)
	}
	if err := os.Rename(temp, target); err != nil {
		os.Remove(temp)
		return fmt.Errorf("failed to replace partition %s/%s: %w", category, symbol, err)
	}
	return nil
}

// ownedColumns 固定结构的类别投影到登记的列, 其余类别保留除 symbol 外的所有列
func (s *PartitionStore) ownedColumns(category string, f *model.Frame) []model.Column {
	meta, ok := model.LookupTable(category)
	if ok && !meta.Evolving() {
		return append([]model.Column(nil), meta.Columns...)
	}
	var cols []model.Column
	for _, c := range f.Columns {
		if c.Name == model.ColSymbol {
			continue
		}
		cols = append(cols, c)
	}
	return cols
}

// Read 读取分区, 不存在时返回空 Frame
func (s *PartitionStore) Read(category, symbol string) (*model.Frame, error) {
	f, err := readParquet(s.Path(category, symbol))
	if errors.Is(err, os.ErrNotExist) {
		return model.NewFrame(), nil
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

// ReadRequired 与 Read 相同, 但分区不存在时返回 *NotFoundError
func (s *PartitionStore) ReadRequired(category, symbol string) (*model.Frame, error) {
	if !s.Exists(category, symbol) {
		return nil, &NotFoundError{Category: category, Symbol: symbol}
	}
	return s.Read(category, symbol)
}

func (s *PartitionStore) Exists(category, symbol string) bool {
	info, err := os.Stat(s.Path(category, symbol))
	return err == nil && info.Mode().IsRegular()
}

// ModTime 分区最后写入时间
func (s *PartitionStore) ModTime(category, symbol string) (time.Time, bool) {
	info, err := os.Stat(s.Path(category, symbol))
	if err != nil {
		return time.Time{}, false
	}
	return info.ModTime(), true
}

// HasPartitions 类别下是否至少有一个已提交的分区
func (s *PartitionStore) HasPartitions(category string) bool {
	matches, err := filepath.Glob(filepath.FromSlash(s.PathGlob(category)))
	return err == nil && len(matches) > 0
}

// Symbols 列出类别下已有分区的代码, 按字典序
func (s *PartitionStore) Symbols(category string) ([]string, error) {
	matches, err := filepath.Glob(filepath.FromSlash(s.PathGlob(category)))
	if err != nil {
		return nil, fmt.Errorf("failed to list partitions of %s: %w", category, err)
	}
	symbols := make([]string, 0, len(matches))
	for _, m := range matches {
		dir := filepath.Base(filepath.Dir(m))
		if sym, ok := strings.CutPrefix(dir, symbolDirKey); ok && sym != "" {
			symbols = append(symbols, sym)
		}
	}
	sort.Strings(symbols)
	return symbols, nil
}
