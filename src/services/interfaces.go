package services

import (
	"context"
	"errors"
	"io"

	"github.com/username/micartera/backend/src/models"
)

var (
	ErrParsingFailed    = errors.New("parsing failed")
	ErrInvalidInput     = errors.New("invalid transaction input")
	ErrNotFound         = errors.New("transaction not found")
	ErrNotOwner         = errors.New("transaction does not belong to user")
	ErrQuoteUnavailable = errors.New("quote unavailable")
)

// TransactionService owns persistence and validation of the transaction
// log. TotalCost is computed here exactly once, at creation time; the
// accounting engine trusts it as given afterwards.
type TransactionService interface {
	Create(tx models.Transaction) (models.Transaction, error)
	Update(userID, id int64, tx models.Transaction) (models.Transaction, error)
	Delete(userID, id int64) error
	DeleteAll(userID int64) error
	ListByUser(userID int64) ([]models.Transaction, error)
}

// SymbolMatch is one result from a ticker search.
type SymbolMatch struct {
	Symbol    string `json:"symbol"`
	Name      string `json:"name"`
	Exchange  string `json:"exchange"`
	QuoteType string `json:"quote_type"`
}

// QuoteService retrieves live quotes for position keys. Implementations
// cache aggressively; a missing entry in the returned map simply means no
// quote was available, which downstream valuation treats as break-even.
type QuoteService interface {
	GetQuotes(positions map[string]models.Position) map[string]models.Quote
	SearchSymbol(query string) ([]SymbolMatch, error)
}

// FXService supplies the live EUR/USD scalar used for USD valuations and
// the GBP/EUR rate used at import time for the pence adjustment. EurPerUsd
// never fails: when no live rate is available it returns the configured
// fallback with live=false.
type FXService interface {
	EurPerUsd() (rate float64, live bool)
	GbpToEur() (float64, error)
}

// PortfolioService runs the accounting engine over a user's stored
// transactions and merges in live quotes. Results are cached per user and
// invalidated on every write to the log.
type PortfolioService interface {
	GetPositions(userID int64) (map[string]models.Position, error)
	GetActivePositions(userID int64) (map[string]models.Position, error)
	GetValuations(userID int64) ([]models.PositionValuation, models.PortfolioSummary, error)
	GetRealizedReport(userID int64) (models.RealizedReport, error)
	GetClosedTransactions(userID int64) ([]models.Transaction, error)
	InvalidateUserCache(userID int64)
}

// ImportResult summarizes one spreadsheet upload.
type ImportResult struct {
	BatchID        string   `json:"batch_id"`
	RowsParsed     int      `json:"rows_parsed"`
	RowsImported   int      `json:"rows_imported"`
	RowsRejected   int      `json:"rows_rejected"`
	PenceAdjusted  int      `json:"pence_adjusted"`
	RejectedErrors []string `json:"rejected_errors,omitempty"`
}

// ImportService ingests broker spreadsheets. Pence-denominated UK rows
// mislabelled as GBP are relabelled to the synthetic GBp code with their
// exchange rate divided by 100 before anything is stored.
type ImportService interface {
	ProcessUpload(fileReader io.Reader, userID int64, source string) (*ImportResult, error)
}

// AlertNotification is one fired price alert.
type AlertNotification struct {
	ID          string  `json:"id"`
	UserID      int64   `json:"user_id"`
	PositionKey string  `json:"position_key"`
	CompanyName string  `json:"company"`
	Kind        string  `json:"kind"` // "target" or "stop_loss"
	Threshold   float64 `json:"threshold"`
	Price       float64 `json:"price"`
	Currency    string  `json:"currency"`
}

// AlertService evaluates target/stop-loss thresholds against live quotes.
type AlertService interface {
	CheckUserAlerts(userID int64) ([]AlertNotification, error)
	RunSweep(ctx context.Context)
}

// EmailService delivers notifications. The provider (mailgun, smtp, mock)
// is chosen from configuration.
type EmailService interface {
	SendPriceAlertEmail(toEmail, username string, alert AlertNotification) error
}
