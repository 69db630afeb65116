package model

import (
	"fmt"
	"sync"
)

type DataType int

const (
	TypeString DataType = iota
	TypeFloat64
	TypeInt64
)

func (t DataType) String() string {
	switch t {
	case TypeString:
		return "VARCHAR"
	case TypeFloat64:
		return "DOUBLE"
	case TypeInt64:
		return "BIGINT"
	default:
		return fmt.Sprintf("DataType(%d)", int(t))
	}
}

type Column struct {
	Name string
	Type DataType
}

// TableMeta 描述一个分区类别 (category) 的存储约定
// Columns 为空表示列集合随数据演化 (财务报表、指标)
type TableMeta struct {
	Category   string
	Columns    []Column
	Key        string
	DateColumn string
}

// Evolving 是否为动态列的类别
func (t *TableMeta) Evolving() bool {
	return len(t.Columns) == 0
}

// Owns 判断列是否属于该类别
func (t *TableMeta) Owns(name string) bool {
	if name == ColSymbol {
		return false
	}
	if t.Evolving() {
		return true
	}
	for _, c := range t.Columns {
		if c.Name == name {
			return true
		}
	}
	return false
}

var (
	tableRegistry   []*TableMeta
	tableRegistryMu sync.Mutex
)

func registerTable(t *TableMeta) *TableMeta {
	tableRegistryMu.Lock()
	defer tableRegistryMu.Unlock()
	tableRegistry = append(tableRegistry, t)
	return t
}

// AllTables 返回当前所有已注册的类别
func AllTables() []*TableMeta {
	tableRegistryMu.Lock()
	defer tableRegistryMu.Unlock()

	result := make([]*TableMeta, len(tableRegistry))
	copy(result, tableRegistry)
	return result
}

// LookupTable 按 category 查找已注册的类别
func LookupTable(category string) (*TableMeta, bool) {
	for _, t := range AllTables() {
		if t.Category == category {
			return t, true
		}
	}
	return nil, false
}

// 通用列名
const (
	ColSymbol      = "symbol"
	ColReportDate  = "report_date"
	ColAnnDate     = "ann_date"
	ColPubDate     = "pub_date"
	ColDate        = "date"
	ColChangeDate  = "change_date"
	ColTotalShares = "total_shares"
	ColClose       = "close"
	ColAdjFactor   = "adj_factor"
)

// TextColumns 财务类数据中保持文本类型的列，其余一律视为数值
var TextColumns = map[string]bool{
	ColSymbol:     true,
	ColReportDate: true,
	ColAnnDate:    true,
	"report_name": true,
	"currency":    true,
	"report_type": true,
	"data_source": true,
	"is_audited":  true,
}

// ColumnType 返回动态列类别中某列应有的类型
func ColumnType(name string) DataType {
	if TextColumns[name] {
		return TypeString
	}
	return TypeFloat64
}

// --- 类别定义 ---

var TableBalance = registerTable(&TableMeta{
	Category:   "financial_statements/type=balance",
	Key:        ColReportDate,
	DateColumn: ColAnnDate,
})

var TableIncome = registerTable(&TableMeta{
	Category:   "financial_statements/type=income",
	Key:        ColReportDate,
	DateColumn: ColAnnDate,
})

var TableCashflow = registerTable(&TableMeta{
	Category:   "financial_statements/type=cashflow",
	Key:        ColReportDate,
	DateColumn: ColAnnDate,
})

var TableIndicator = registerTable(&TableMeta{
	Category:   "indicators",
	Key:        ColReportDate,
	DateColumn: ColAnnDate,
})

var TableTTM = registerTable(&TableMeta{
	Category: "financial/ttm",
	Columns: []Column{
		{ColReportDate, TypeString},
		{ColPubDate, TypeString},
		{"net_profit_ttm", TypeFloat64},
		{"deduct_net_profit_ttm", TypeFloat64},
		{"revenue_ttm", TypeFloat64},
		{"ocf_ttm", TypeFloat64},
	},
	Key:        ColReportDate,
	DateColumn: ColPubDate,
})

var TableKline = registerTable(&TableMeta{
	Category: "daily_kline",
	Columns: []Column{
		{ColDate, TypeString},
		{"open", TypeFloat64},
		{"high", TypeFloat64},
		{"low", TypeFloat64},
		{ColClose, TypeFloat64},
		{"volume", TypeFloat64},
		{"amount", TypeFloat64},
		{ColAdjFactor, TypeFloat64},
	},
	Key:        ColDate,
	DateColumn: ColDate,
})

var TableShareCapital = registerTable(&TableMeta{
	Category: "share_capital",
	Columns: []Column{
		{ColChangeDate, TypeString},
		{ColTotalShares, TypeFloat64},
	},
	Key:        ColChangeDate,
	DateColumn: ColChangeDate,
})
