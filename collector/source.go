package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/jing2uo/quantlab/model"
)

// Source 外部数据源: 按类别列出股票并拉取一批原始行
// 返回的 Frame 可以为空, 列类型不做保证, 由存储层统一转换
type Source interface {
	Symbols(ctx context.Context, category string) ([]string, error)
	Fetch(ctx context.Context, category, symbol string) (*model.Frame, error)
}

// Versioned 能给出数据版本时间的数据源, 用于增量同步
type Versioned interface {
	Modified(ctx context.Context, category, symbol string) (time.Time, error)
}

// StockDirectory 股票列表与基础信息
type StockDirectory interface {
	StockList(ctx context.Context) ([]model.Stock, error)
	StockMeta(ctx context.Context) ([]model.StockMeta, error)
}

// TransientSourceError 单只股票拉取失败, 批量任务记录后继续
type TransientSourceError struct {
	Category string
	Symbol   string
	Err      error
}

func (e *TransientSourceError) Error() string {
	if e.Symbol == "" {
		return fmt.Sprintf("source %s: %v", e.Category, e.Err)
	}
	return fmt.Sprintf("source %s/%s: %v", e.Category, e.Symbol, e.Err)
}

func (e *TransientSourceError) Unwrap() error { return e.Err }

type wrapper interface {
	Unwrap() Source
}

// AsVersioned 沿包装链查找 Versioned 实现
func AsVersioned(src Source) (Versioned, bool) {
	for src != nil {
		if v, ok := src.(Versioned); ok {
			return v, true
		}
		w, ok := src.(wrapper)
		if !ok {
			break
		}
		src = w.Unwrap()
	}
	return nil, false
}

// AsDirectory 沿包装链查找 StockDirectory 实现
func AsDirectory(src Source) (StockDirectory, bool) {
	for src != nil {
		if d, ok := src.(StockDirectory); ok {
			return d, true
		}
		w, ok := src.(wrapper)
		if !ok {
			break
		}
		src = w.Unwrap()
	}
	return nil, false
}
