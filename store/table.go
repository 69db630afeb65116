package store

import (
	"fmt"
	"sort"

	"github.com/jing2uo/quantlab/model"
	"github.com/rs/zerolog"
)

// UpsertResult 一次 Upsert 的统计
type UpsertResult struct {
	Skipped  bool
	Inserted int
	Replaced int
	Total    int
	Added    []string
}

// Table 在 PartitionStore 之上提供按主键合并、列自动扩展的写入
type Table struct {
	store *PartitionStore
	meta  *model.TableMeta
	log   zerolog.Logger
}

func NewTable(store *PartitionStore, meta *model.TableMeta, log zerolog.Logger) *Table {
	return &Table{
		store: store,
		meta:  meta,
		log:   log.With().Str("category", meta.Category).Logger(),
	}
}

func (t *Table) Meta() *model.TableMeta {
	return t.meta
}

// Upsert 将批次合并进 symbol 的分区: 同一主键先删后插, 批次内重复主键以最后一条为准
// 空批次或缺少主键列的批次直接跳过
func (t *Table) Upsert(symbol string, batch *model.Frame) (*UpsertResult, error) {
	if batch.Empty() || !batch.HasColumn(t.meta.Key) {
		t.log.Debug().Str("symbol", symbol).Msg("empty or keyless batch skipped")
		return &UpsertResult{Skipped: true}, nil
	}

	incoming, dropped := coerceFrame(t.meta, batch)
	if dropped > 0 {
		t.log.Debug().Str("symbol", symbol).Int("dropped", dropped).Msg("rows with invalid key dropped")
	}
	keys, latest := dedupByKey(t.meta.Key, incoming.Rows)
	if len(keys) == 0 {
		t.log.Debug().Str("symbol", symbol).Msg("batch has no usable keys")
		return &UpsertResult{Skipped: true}, nil
	}

	existing, err := t.store.Read(t.meta.Category, symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to read partition %s: %w", symbol, err)
	}

	merged, err := MergeSchema(existing.Columns, incoming.Columns)
	if err != nil {
		return nil, fmt.Errorf("upsert %s/%s: %w", t.meta.Category, symbol, err)
	}

	byKey := make(map[string]model.Row, existing.Len()+len(keys))
	for _, r := range existing.Rows {
		if k := model.Str(r[t.meta.Key]); k != "" {
			byKey[k] = r
		}
	}

	result := &UpsertResult{Added: addedColumns(existing.Columns, merged)}
	for _, k := range keys {
		if _, ok := byKey[k]; ok {
			result.Replaced++
		} else {
			result.Inserted++
		}
		byKey[k] = latest[k]
	}

	all := make([]string, 0, len(byKey))
	for k := range byKey {
		all = append(all, k)
	}
	sort.Strings(all)

	out := model.NewFrame(merged...)
	for _, k := range all {
		out.Append(byKey[k])
	}
	result.Total = out.Len()

	if err := t.store.Write(t.meta.Category, symbol, out); err != nil {
		return nil, err
	}

	if len(result.Added) > 0 {
		t.log.Info().Str("symbol", symbol).Strs("columns", result.Added).Msg("schema widened")
	}
	return result, nil
}

// dedupByKey 返回出现过的主键 (按首次出现顺序) 及每个主键最后一次出现的行
func dedupByKey(key string, rows []model.Row) ([]string, map[string]model.Row) {
	var keys []string
	latest := make(map[string]model.Row, len(rows))
	for _, r := range rows {
		k := model.Str(r[key])
		if k == "" {
			continue
		}
		if _, seen := latest[k]; !seen {
			keys = append(keys, k)
		}
		latest[k] = r
	}
	return keys, latest
}
