package views

import (
	"fmt"
	"strings"

	"github.com/jing2uo/quantlab/model"
)

// Globber 提供类别到 parquet 通配路径的映射
type Globber interface {
	PathGlob(category string) string
}

// View 一个声明式视图: 依赖的视图、读取的类别, 以及生成查询的函数
type View struct {
	Name      model.ViewID
	DependsOn []model.ViewID
	Sources   []string
	Query     func(g Globber) string
}

// CreateSQL 生成 CREATE OR REPLACE VIEW 语句
func (v View) CreateSQL(g Globber) string {
	return fmt.Sprintf("CREATE OR REPLACE VIEW %s AS\n%s", v.Name, strings.TrimSpace(v.Query(g)))
}

// QuoteLiteral 将字符串转为 SQL 字面量
func QuoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// ScanSQL 读取一个类别下所有分区, 跨分区按列名合并 schema
// symbol 强制为 VARCHAR 以保留代码前导零
func ScanSQL(glob string) string {
	return fmt.Sprintf(
		"read_parquet(%s, hive_partitioning=1, union_by_name=1, hive_types={'symbol': VARCHAR})",
		QuoteLiteral(glob),
	)
}

func rawView(name model.ViewID, meta *model.TableMeta) View {
	return View{
		Name:    name,
		Sources: []string{meta.Category},
		Query: func(g Globber) string {
			return "SELECT * FROM " + ScanSQL(g.PathGlob(meta.Category))
		},
	}
}

// Registry 返回所有内置视图
func Registry() []View {
	return []View{
		rawView(model.ViewBalanceSheet, model.TableBalance),
		rawView(model.ViewIncome, model.TableIncome),
		rawView(model.ViewCashflow, model.TableCashflow),
		rawView(model.ViewIndicator, model.TableIndicator),
		rawView(model.ViewTTM, model.TableTTM),
		rawView(model.ViewKline, model.TableKline),
		rawView(model.ViewShareCapital, model.TableShareCapital),
		{
			Name:      model.ViewDailyHFQ,
			DependsOn: []model.ViewID{model.ViewKline},
			Query:     func(Globber) string { return hfqDailySQL },
		},
		{
			Name: model.ViewValuation,
			DependsOn: []model.ViewID{
				model.ViewKline,
				model.ViewShareCapital,
				model.ViewTTM,
				model.ViewBalanceSheet,
			},
			Query: func(Globber) string { return ValuationSQL },
		},
	}
}

// 后复权日线
const hfqDailySQL = `
SELECT
	symbol,
	CAST(date AS DATE) AS date,
	ROUND(open  * COALESCE(adj_factor, 1.0), 4) AS open,
	ROUND(high  * COALESCE(adj_factor, 1.0), 4) AS high,
	ROUND(low   * COALESCE(adj_factor, 1.0), 4) AS low,
	ROUND(close * COALESCE(adj_factor, 1.0), 4) AS close,
	volume,
	amount,
	COALESCE(adj_factor, 1.0) AS adj_factor
FROM daily_kline
`

// ValuationSQL 每个交易日按 as-of 规则对齐股本、TTM 与净资产
// 只使用交易日当天或之前已披露的数据, 行情行不会因缺少财务数据而丢失
const ValuationSQL = `
WITH
base_kline AS (
	SELECT symbol, CAST(date AS DATE) AS date, close, COALESCE(adj_factor, 1.0) AS adj_factor
	FROM daily_kline
),
capital_hist AS (
	SELECT symbol, CAST(change_date AS DATE) AS change_date, total_shares
	FROM share_capital
	WHERE change_date IS NOT NULL
),
ttm_hist AS (
	SELECT
		symbol,
		try_strptime(pub_date, '%Y%m%d')::DATE AS pub_date,
		net_profit_ttm,
		deduct_net_profit_ttm,
		revenue_ttm,
		ocf_ttm
	FROM fin_ttm
	WHERE try_strptime(pub_date, '%Y%m%d') IS NOT NULL
	-- 同一天披露多期时只保留最新报告期
	QUALIFY row_number() OVER (PARTITION BY fin_ttm.symbol, fin_ttm.pub_date ORDER BY fin_ttm.report_date DESC) = 1
),
equity_hist AS (
	SELECT
		symbol,
		try_strptime(ann_date, '%Y%m%d')::DATE AS ann_date,
		equity_parent
	FROM fin_balance_sheet
	WHERE try_strptime(ann_date, '%Y%m%d') IS NOT NULL
	QUALIFY row_number() OVER (PARTITION BY fin_balance_sheet.symbol, fin_balance_sheet.ann_date ORDER BY fin_balance_sheet.report_date DESC) = 1
)
SELECT
	k.date,
	k.symbol,
	k.close AS raw_close,
	k.close * k.adj_factor AS close_hfq,
	s.total_shares,
	k.close * s.total_shares AS market_cap,
	(k.close * s.total_shares) / NULLIF(t.net_profit_ttm, 0) AS pe_ttm,
	(k.close * s.total_shares) / NULLIF(t.deduct_net_profit_ttm, 0) AS pe_deduct_ttm,
	(k.close * s.total_shares) / NULLIF(a.equity_parent, 0) AS pb,
	(k.close * s.total_shares) / NULLIF(t.revenue_ttm, 0) AS ps_ttm,
	(k.close * s.total_shares) / NULLIF(t.ocf_ttm, 0) AS pcf_ttm
FROM base_kline k
ASOF LEFT JOIN capital_hist s
	ON k.symbol = s.symbol AND k.date >= s.change_date
ASOF LEFT JOIN ttm_hist t
	ON k.symbol = t.symbol AND k.date >= t.pub_date
ASOF LEFT JOIN equity_hist a
	ON k.symbol = a.symbol AND k.date >= a.ann_date
`
