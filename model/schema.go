package model

import "time"

// ValuationRecord 某交易日的估值快照, 查询时计算, 不落盘
type ValuationRecord struct {
	Date        time.Time `db:"date" col:"date" type:"date"`
	Symbol      string    `db:"symbol" col:"symbol"`
	RawClose    float64   `db:"raw_close" col:"raw_close"`
	CloseHfq    *float64  `db:"close_hfq" col:"close_hfq"`
	TotalShares *float64  `db:"total_shares" col:"total_shares"`
	MarketCap   *float64  `db:"market_cap" col:"market_cap"`
	PeTTM       *float64  `db:"pe_ttm" col:"pe_ttm"`
	PeDeductTTM *float64  `db:"pe_deduct_ttm" col:"pe_deduct_ttm"`
	Pb          *float64  `db:"pb" col:"pb"`
	PsTTM       *float64  `db:"ps_ttm" col:"ps_ttm"`
	PcfTTM      *float64  `db:"pcf_ttm" col:"pcf_ttm"`
}

// Stock 元数据库 stocks 表中的一行
type Stock struct {
	Symbol    string  `db:"symbol"`
	Code      string  `db:"code"`
	Name      string  `db:"name"`
	Area      *string `db:"area"`
	Industry  *string `db:"industry"`
	ListDate  *string `db:"list_date"`
	IsActive  bool    `db:"is_active"`
	UpdatedAt *string `db:"updated_at"`
}

// StockMeta 元数据补全信息, 空字段不覆盖已有值
type StockMeta struct {
	Code     string
	Area     string
	Industry string
	ListDate string
}
