package models

import "time"

// Position is the aggregated holding for one company/symbol, derived from
// the transaction log by the position processor. It is never persisted; it
// is recomputed from scratch on every read.
type Position struct {
	Key         string  `json:"key"`
	CompanyName string  `json:"company"`
	Symbol      string  `json:"symbol,omitempty"`
	Shares      float64 `json:"shares"`
	// Currency of the most recently folded transaction. A display hint only;
	// individual lots may have been bought in other currencies.
	Currency string `json:"currency"`
	// Running cost basis in EUR (weighted-average accounting).
	TotalCost float64 `json:"total_cost"`
	// Running cost basis in the position's native currency.
	TotalOriginalCost float64 `json:"total_original_cost"`
}

// Quote is a live market quote for one position key, supplied by the quote
// service. Price is in Currency.
type Quote struct {
	Price         float64   `json:"price"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"change_percent"`
	Currency      string    `json:"currency"`
	Source        string    `json:"source"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// PositionValuation is the unrealized P&L of one position against a live
// quote, normalized to EUR.
type PositionValuation struct {
	Key             string  `json:"key"`
	CompanyName     string  `json:"company"`
	Symbol          string  `json:"symbol,omitempty"`
	Shares          float64 `json:"shares"`
	CostBasisEUR    float64 `json:"cost_basis_eur"`
	CurrentValueEUR float64 `json:"current_value_eur"`
	PnLEUR          float64 `json:"pnl_eur"`
	PnLPercent      float64 `json:"pnl_percent"`
	// HasQuote is false when no live quote was available; in that case
	// CurrentValueEUR equals the cost basis and PnLEUR is zero.
	HasQuote bool   `json:"has_quote"`
	Source   string `json:"quote_source,omitempty"`
}

// PortfolioSummary aggregates the live portfolio for one user.
type PortfolioSummary struct {
	TotalValueEUR   float64 `json:"total_value_eur"`
	TotalCostEUR    float64 `json:"total_cost_eur"`
	TotalPnLEUR     float64 `json:"total_pnl_eur"`
	TotalPnLPercent float64 `json:"total_pnl_percent"`
	PositionCount   int     `json:"position_count"`
	MissingQuotes   int     `json:"missing_quotes"`
	EurPerUsd       float64 `json:"eur_per_usd"`
	EurPerUsdIsLive bool    `json:"eur_per_usd_is_live"`
}
