package model

// TTMMetric 一个滚动十二个月指标及其来源
type TTMMetric struct {
	Name         string
	Source       *TableMeta
	SourceColumn string
}

// Output 结果列名, 例如 net_profit_ttm
func (m TTMMetric) Output() string {
	return m.Name + "_ttm"
}

var TTMMetrics = []TTMMetric{
	{Name: "net_profit", Source: TableIncome, SourceColumn: "net_profit_parent"},
	{Name: "deduct_net_profit", Source: TableIndicator, SourceColumn: "deduct_net_profit"},
	{Name: "revenue", Source: TableIncome, SourceColumn: "total_revenue"},
	{Name: "ocf", Source: TableCashflow, SourceColumn: "net_operating_cash_flow"},
}

// ColEquityParent 资产负债表中归母净资产, 用于市净率
const ColEquityParent = "equity_parent"

// TTMHistoryDepth 计算一期 TTM 前要求连续存在的报告期数
const TTMHistoryDepth = 5
