package feeds

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kjstillabower/glancecast/internal/completion"
	"github.com/kjstillabower/glancecast/internal/models"
	"github.com/kjstillabower/glancecast/internal/schema"
)

// StocksUnavailableMsg is shown when the model's reply cannot be used.
const StocksUnavailableMsg = "Could not get stock data from AI."

// Stocks asks the completion model for quotes on the user's watch list.
type Stocks struct {
	model completion.Model
}

func NewStocks(model completion.Model) *Stocks {
	return &Stocks{model: model}
}

func stocksPrompt(symbols []string, location string) string {
	return fmt.Sprintf("Get the latest stock data for the following symbols: %s. "+
		"The user is in %s, so provide the prices in the local currency. "+
		"Include a trend for the last 5 hours. Categorize the output under '%s'.",
		strings.Join(symbols, ", "), location, models.DefaultStockCategory)
}

// EmptyReport is the report for an empty watch list.
func EmptyReport() models.StocksReport {
	return models.StocksReport{StockData: []models.StockCategory{
		{Category: models.DefaultStockCategory, Stocks: []models.StockQuote{}},
	}}
}

// PlaceholderReport has one zero-priced row per symbol, marking each as unavailable.
func PlaceholderReport(symbols []string) models.StocksReport {
	quotes := make([]models.StockQuote, 0, len(symbols))
	for _, s := range symbols {
		quotes = append(quotes, models.StockQuote{
			Symbol:      s,
			Price:       0,
			Currency:    "USD",
			Change:      "N/A",
			ChangeValue: 0,
			Trend:       make([]float64, models.TrendPoints),
		})
	}
	return models.StocksReport{StockData: []models.StockCategory{
		{Category: models.DefaultStockCategory, Stocks: quotes},
	}}
}

// Fetch returns quotes for symbols. An empty list never reaches the model.
// A valid reply with no rows becomes a placeholder report flagged as a fallback.
func (s *Stocks) Fetch(ctx context.Context, symbols []string, location string) (Outcome[models.StocksReport], error) {
	if len(symbols) == 0 {
		return fresh(EmptyReport()), nil
	}

	raw, err := s.model.Generate(ctx, completion.Request{
		Name:     "stocks",
		Prompt:   stocksPrompt(symbols, location),
		Contract: schema.Stocks(),
	})
	if err != nil {
		if errors.Is(err, completion.ErrEmptyOutput) {
			return Outcome[models.StocksReport]{}, &PublicError{Msg: StocksUnavailableMsg, Err: fmt.Errorf("%w: %w", ErrUpstreamMalformed, err)}
		}
		return Outcome[models.StocksReport]{}, fmt.Errorf("%w: stocks for %s: %w", ErrUpstreamUnavailable, strings.Join(symbols, ","), err)
	}

	report, err := schema.Decode[models.StocksReport](schema.Stocks(), raw)
	if err != nil {
		return Outcome[models.StocksReport]{}, &PublicError{Msg: StocksUnavailableMsg, Err: fmt.Errorf("%w: %w", ErrUpstreamMalformed, err)}
	}
	if report.RowCount() == 0 {
		return fallback(PlaceholderReport(symbols)), nil
	}
	return fresh(report), nil
}
