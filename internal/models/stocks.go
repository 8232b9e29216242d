package models

// StockQuote is one symbol's latest price and a short trend for a sparkline.
type StockQuote struct {
	Symbol      string    `json:"symbol"`
	Price       float64   `json:"price"`
	Currency    string    `json:"currency"`
	Change      string    `json:"change"`
	ChangeValue float64   `json:"changeValue"`
	Trend       []float64 `json:"trend"`
}

type StockCategory struct {
	Category string       `json:"category"`
	Stocks   []StockQuote `json:"stocks"`
}

// StocksReport groups quotes by category. Only the first category is rendered.
type StocksReport struct {
	StockData []StockCategory `json:"stockData"`
}

// DefaultStockCategory labels the user's watch list.
const DefaultStockCategory = "My Stocks"

// TrendPoints is the number of trend entries per quote.
const TrendPoints = 5

// First returns the first category, if any.
func (r StocksReport) First() (StockCategory, bool) {
	if len(r.StockData) == 0 {
		return StockCategory{}, false
	}
	return r.StockData[0], true
}

// RowCount returns the number of quotes across all categories.
func (r StocksReport) RowCount() int {
	n := 0
	for _, c := range r.StockData {
		n += len(c.Stocks)
	}
	return n
}
