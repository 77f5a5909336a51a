package models

const (
	TableStocks       = "stocks"
	TableStockDetails = "stock_details"
	TableIndexPrices  = "index_prices"
	TableIndexHistory = "index_price_history"
)

const (
	KeySymbol      = "symbol"
	KeyStockSymbol = "stock_symbol"
)

// WriteOrder is the order in which a cycle writes its tables.
var WriteOrder = []string{TableStocks, TableStockDetails, TableIndexPrices, TableIndexHistory}
