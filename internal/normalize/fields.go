package normalize

// Kind is the target type a raw provider value is coerced into.
type Kind int

const (
	KindInt Kind = iota
	KindFloat
	KindString
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	}
	return "unknown"
}

// Field maps one stock_details column to the provider attribute it is read from.
type Field struct {
	Column string
	Source string
	Kind   Kind
}

// ColumnCurrentPrice is filled from currentPrice, falling back to regularMarketPrice.
// It is kept as text so the price survives transport without rounding.
const (
	ColumnCurrentPrice = "current_price"
	ColumnUpdatedAt    = "updated_at"
)

// Fields is the stock_details column table, in column order.
var Fields = []Field{
	// basic
	{"symbol", "symbol", KindString},
	{"short_name", "shortName", KindString},
	{"long_name", "longName", KindString},
	{"exchange", "exchange", KindString},
	{"currency", "currency", KindString},
	{"quote_type", "quoteType", KindString},
	{"market", "market", KindString},
	{"time_zone", "timeZoneFullName", KindString},

	// company
	{"sector", "sector", KindString},
	{"industry", "industry", KindString},
	{"full_time_employees", "fullTimeEmployees", KindInt},
	{"business_summary", "longBusinessSummary", KindString},
	{"website", "website", KindString},
	{"address1", "address1", KindString},
	{"city", "city", KindString},
	{"zip_code", "zip", KindString},
	{"country", "country", KindString},
	{"phone", "phone", KindString},

	// size
	{"market_cap", "marketCap", KindInt},
	{"enterprise_value", "enterpriseValue", KindInt},
	{"shares_outstanding", "sharesOutstanding", KindInt},
	{"float_shares", "floatShares", KindInt},
	{"shares_short", "sharesShort", KindInt},
	{"book_value", "bookValue", KindFloat},
	{"price_to_book", "priceToBook", KindFloat},

	// price; current_price is handled separately
	{"previous_close", "previousClose", KindFloat},
	{"open_price", "open", KindFloat},
	{"day_low", "dayLow", KindFloat},
	{"day_high", "dayHigh", KindFloat},
	{"fifty_two_week_low", "fiftyTwoWeekLow", KindFloat},
	{"fifty_two_week_high", "fiftyTwoWeekHigh", KindFloat},
	{"fifty_day_average", "fiftyDayAverage", KindFloat},
	{"two_hundred_day_average", "twoHundredDayAverage", KindFloat},

	// valuation
	{"pe_ratio", "trailingPE", KindFloat},
	{"forward_pe", "forwardPE", KindFloat},
	{"peg_ratio", "trailingPegRatio", KindFloat},
	{"price_to_sales", "priceToSalesTrailing12Months", KindFloat},
	{"enterprise_to_revenue", "enterpriseToRevenue", KindFloat},
	{"enterprise_to_ebitda", "enterpriseToEbitda", KindFloat},

	// profitability
	{"profit_margin", "profitMargins", KindFloat},
	{"operating_margin", "operatingMargins", KindFloat},
	{"return_on_assets", "returnOnAssets", KindFloat},
	{"return_on_equity", "returnOnEquity", KindFloat},
	{"revenue_growth", "revenueGrowth", KindFloat},
	{"earnings_growth", "earningsGrowth", KindFloat},

	// statements
	{"total_revenue", "totalRevenue", KindInt},
	{"revenue_per_share", "revenuePerShare", KindFloat},
	{"total_cash", "totalCash", KindInt},
	{"total_cash_per_share", "totalCashPerShare", KindFloat},
	{"total_debt", "totalDebt", KindInt},
	{"debt_to_equity", "debtToEquity", KindFloat},
	{"current_ratio", "currentRatio", KindFloat},
	{"quick_ratio", "quickRatio", KindFloat},

	// earnings
	{"trailing_eps", "trailingEps", KindFloat},
	{"forward_eps", "forwardEps", KindFloat},
	{"earnings_quarterly_growth", "earningsQuarterlyGrowth", KindFloat},

	// dividends
	{"dividend_rate", "dividendRate", KindFloat},
	{"dividend_yield", "dividendYield", KindFloat},
	{"payout_ratio", "payoutRatio", KindFloat},
	{"five_year_avg_dividend_yield", "fiveYearAvgDividendYield", KindFloat},

	// volume
	{"volume", "volume", KindInt},
	{"regular_market_volume", "regularMarketVolume", KindInt},
	{"average_volume", "averageVolume", KindInt},
	{"average_volume_10days", "averageVolume10days", KindInt},
	{"average_daily_volume_10day", "averageDailyVolume10Day", KindInt},

	{"beta", "beta", KindFloat},

	// analysts
	{"recommendation_mean", "recommendationMean", KindFloat},
	{"recommendation_key", "recommendationKey", KindString},
	{"number_of_analyst_opinions", "numberOfAnalystOpinions", KindInt},
	{"target_high_price", "targetHighPrice", KindFloat},
	{"target_low_price", "targetLowPrice", KindFloat},
	{"target_mean_price", "targetMeanPrice", KindFloat},
	{"target_median_price", "targetMedianPrice", KindFloat},

	// epoch seconds
	{"last_split_date", "lastSplitDate", KindInt},
	{"last_dividend_date", "lastDividendDate", KindInt},
	{"ex_dividend_date", "exDividendDate", KindInt},

	// governance
	{"governance_epoch_date", "governanceEpochDate", KindInt},
	{"compensation_risk", "compensationRisk", KindInt},
	{"shareholder_rights_risk", "shareHolderRightsRisk", KindInt},
	{"overall_risk", "overallRisk", KindInt},
	{"board_risk", "boardRisk", KindInt},
	{"audit_risk", "auditRisk", KindInt},
}
