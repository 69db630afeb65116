package model

type ViewID string

// --- 视图名称 ---

const (
	ViewBalanceSheet ViewID = "fin_balance_sheet"
	ViewIncome       ViewID = "fin_income_statement"
	ViewCashflow     ViewID = "fin_cashflow_statement"
	ViewIndicator    ViewID = "fin_indicator"
	ViewTTM          ViewID = "fin_ttm"
	ViewKline        ViewID = "daily_kline"
	ViewShareCapital ViewID = "share_capital"
	ViewDailyHFQ     ViewID = "v_hfq_daily"
	ViewValuation    ViewID = "v_daily_valuation"
)
