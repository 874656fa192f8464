package models

// SaleRealization is the FIFO-attributed outcome of a single sale, used for
// historical and tax reporting. The numbers here are intentionally not
// derivable from the live Position state: the position processor keeps a
// running weighted average, while realized gains consume concrete purchase
// lots oldest-first.
type SaleRealization struct {
	SaleID      int64   `json:"sale_id"`
	CompanyName string  `json:"company"`
	Symbol      string  `json:"symbol,omitempty"`
	SaleDate    string  `json:"sale_date"`
	Shares      float64 `json:"shares"`
	Currency    string  `json:"currency"`

	// Sale proceeds net of commission.
	ProceedsNative float64 `json:"proceeds_native"`
	ProceedsEUR    float64 `json:"proceeds_eur"`

	// Cost basis consumed from purchase lots, oldest first.
	CostBasisNative float64 `json:"cost_basis_native"`
	CostBasisEUR    float64 `json:"cost_basis_eur"`

	// Shares-weighted average purchase date of the consumed lots, for
	// holding-period display. Empty when no lots could be matched.
	AvgPurchaseDate string `json:"avg_purchase_date,omitempty"`

	GainEUR float64 `json:"gain_eur"`
	// Retention is the 19% withholding applied to positive gains on the
	// report. It never feeds back into position accounting.
	RetentionEUR float64 `json:"retention_eur"`
	NetGainEUR   float64 `json:"net_gain_eur"`
}

// RealizedReport is the aggregate historical P&L over closed operations.
type RealizedReport struct {
	Sales           []SaleRealization `json:"sales"`
	TotalGainEUR    float64           `json:"total_gain_eur"`
	TotalRetention  float64           `json:"total_retention_eur"`
	TotalNetGainEUR float64           `json:"total_net_gain_eur"`
}
