package models

// Transaction types as stored in the transactions table.
const (
	TxTypePurchase = "purchase"
	TxTypeSale     = "sale"
)

// CurrencyGBp is the synthetic code for British pence. It is distinct from
// GBP (pounds): 1 GBp = 0.01 GBP. Importers are responsible for relabelling
// pence-denominated rows and dividing their exchange rate by 100 before the
// transaction is stored; nothing downstream re-adjusts.
const CurrencyGBp = "GBp"

// Transaction is a single buy or sell logged by the user. Immutable once
// stored except through the explicit edit/delete endpoints.
//
// ExchangeRate is EUR per one unit of Currency at transaction time (1 when
// Currency is EUR). Commission is entered in EUR. TotalCost is the
// EUR-normalized total cash effect, computed once at creation time as
// shares*price*exchangeRate + commission, and trusted as given afterwards.
type Transaction struct {
	ID           int64   `json:"id"`
	UserID       int64   `json:"user_id,omitempty"`
	TxType       string  `json:"type"` // "purchase" or "sale"
	CompanyName  string  `json:"company"`
	Symbol       string  `json:"symbol,omitempty"`
	Shares       float64 `json:"shares"`
	Price        float64 `json:"price"` // per share, in Currency
	Currency     string  `json:"currency"`
	ExchangeRate float64 `json:"exchange_rate"`
	Commission   float64 `json:"commission"` // EUR
	Date         string  `json:"date"`       // YYYY-MM-DD
	TotalCost    float64 `json:"total_cost"` // EUR

	// Optional alert thresholds, in Currency. Zero means unset.
	TargetPrice   float64 `json:"target_price,omitempty"`
	StopLossPrice float64 `json:"stop_loss_price,omitempty"`

	// Pass-through broker identifiers from spreadsheet imports. Not used by
	// the accounting engine.
	ExternalSymbol1 string `json:"external_symbol_1,omitempty"`
	ExternalSymbol2 string `json:"external_symbol_2,omitempty"`
	ExternalSymbol3 string `json:"external_symbol_3,omitempty"`

	ImportBatchID string `json:"import_batch_id,omitempty"`
}

// RawImportRow is a single row from an uploaded spreadsheet before
// normalization. All fields are kept as strings; the importer parses and
// validates them.
type RawImportRow struct {
	Date         string `json:"date"`
	TxType       string `json:"type"`
	CompanyName  string `json:"company"`
	Symbol       string `json:"symbol"`
	Shares       string `json:"shares"`
	Price        string `json:"price"`
	Currency     string `json:"currency"`
	ExchangeRate string `json:"exchange_rate"`
	Commission   string `json:"commission"`
}
