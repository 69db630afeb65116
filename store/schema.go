package store

import (
	"fmt"

	"github.com/jing2uo/quantlab/model"
)

// SchemaConflictError 同名列在已有分区与新批次中的类型不一致
type SchemaConflictError struct {
	Column   string
	Existing model.DataType
	Incoming model.DataType
}

func (e *SchemaConflictError) Error() string {
	return fmt.Sprintf("schema conflict on column %s: stored as %s, incoming %s",
		e.Column, e.Existing, e.Incoming)
}

// MergeSchema 只增不减地合并列定义: 保留已有列及其顺序, 新列追加在末尾
func MergeSchema(existing, incoming []model.Column) ([]model.Column, error) {
	merged := make([]model.Column, 0, len(existing)+len(incoming))
	index := make(map[string]model.DataType, len(existing))
	for _, c := range existing {
		if _, dup := index[c.Name]; dup {
			continue
		}
		index[c.Name] = c.Type
		merged = append(merged, c)
	}

	for _, c := range incoming {
		t, ok := index[c.Name]
		if !ok {
			index[c.Name] = c.Type
			merged = append(merged, c)
			continue
		}
		if t != c.Type {
			return nil, &SchemaConflictError{Column: c.Name, Existing: t, Incoming: c.Type}
		}
	}
	return merged, nil
}

// addedColumns 返回 merged 中 existing 没有的列名
func addedColumns(existing, merged []model.Column) []string {
	seen := make(map[string]bool, len(existing))
	for _, c := range existing {
		seen[c.Name] = true
	}
	var added []string
	for _, c := range merged {
		if !seen[c.Name] {
			added = append(added, c.Name)
		}
	}
	return added
}
