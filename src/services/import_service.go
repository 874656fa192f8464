package services

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/username/micartera/backend/src/database"
	"github.com/username/micartera/backend/src/logger"
	"github.com/username/micartera/backend/src/models"
	"github.com/username/micartera/backend/src/parsers"
	"github.com/username/micartera/backend/src/utils"
)

type importServiceImpl struct {
	transactions *transactionServiceImpl
	fx           FXService
}

func NewImportService(transactions *transactionServiceImpl, fx FXService) ImportService {
	return &importServiceImpl{
		transactions: transactions,
		fx:           fx,
	}
}

// ProcessUpload parses a broker spreadsheet, normalizes each row to a
// transaction and stores the batch. Bad rows are counted and reported, not
// fatal: one typo should not reject a 200-row export.
func (s *importServiceImpl) ProcessUpload(fileReader io.Reader, userID int64, source string) (*ImportResult, error) {
	overallStartTime := time.Now()
	logger.L.Info("ProcessUpload START", "userID", userID, "source", source)

	parser, err := parsers.GetParser(source)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}

	rawRows, err := parser.Parse(fileReader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}

	result := &ImportResult{
		BatchID:    uuid.New().String(),
		RowsParsed: len(rawRows),
	}

	dbTx, err := database.DB.Begin()
	if err != nil {
		return nil, fmt.Errorf("error beginning database transaction: %w", err)
	}
	defer dbTx.Rollback()

	stmt, err := dbTx.Prepare(`
		INSERT INTO transactions (user_id, tx_type, company_name, symbol, shares, price, currency,
			exchange_rate, commission, date, total_cost, target_price, stop_loss_price,
			external_symbol_1, external_symbol_2, external_symbol_3, import_batch_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("error preparing insert statement: %w", err)
	}
	defer stmt.Close()

	for i, row := range rawRows {
		tx, penceAdjusted, convErr := s.rowToTransaction(row, userID, result.BatchID)
		if convErr != nil {
			result.RowsRejected++
			result.RejectedErrors = append(result.RejectedErrors, fmt.Sprintf("row %d: %v", i+1, convErr))
			continue
		}
		if penceAdjusted {
			result.PenceAdjusted++
		}

		_, err := stmt.Exec(tx.UserID, tx.TxType, tx.CompanyName, tx.Symbol, tx.Shares, tx.Price, tx.Currency,
			tx.ExchangeRate, tx.Commission, tx.Date, tx.TotalCost, tx.TargetPrice, tx.StopLossPrice,
			tx.ExternalSymbol1, tx.ExternalSymbol2, tx.ExternalSymbol3, tx.ImportBatchID)
		if err != nil {
			return nil, fmt.Errorf("error inserting imported transaction (row %d): %w", i+1, err)
		}
		result.RowsImported++
	}

	if err := dbTx.Commit(); err != nil {
		return nil, fmt.Errorf("error committing imported transactions: %w", err)
	}

	s.transactions.invalidate(userID)
	logger.L.Info("ProcessUpload END", "userID", userID, "batchID", result.BatchID,
		"imported", result.RowsImported, "rejected", result.RowsRejected,
		"penceAdjusted", result.PenceAdjusted, "duration", time.Since(overallStartTime))
	return result, nil
}

// rowToTransaction converts one parsed spreadsheet row into a validated
// transaction. The pence relabelling happens here, before validation and
// before TotalCost is computed, so the stored exchange rate is already the
// per-pence one and nothing downstream needs to know about the quirk.
func (s *importServiceImpl) rowToTransaction(row models.RawImportRow, userID int64, batchID string) (models.Transaction, bool, error) {
	shares, err := utils.ParseFlexibleFloat(row.Shares)
	if err != nil {
		return models.Transaction{}, false, fmt.Errorf("invalid shares %q", row.Shares)
	}
	price, err := utils.ParseFlexibleFloat(row.Price)
	if err != nil {
		return models.Transaction{}, false, fmt.Errorf("invalid price %q", row.Price)
	}

	commission := 0.0
	if strings.TrimSpace(row.Commission) != "" {
		commission, err = utils.ParseFlexibleFloat(row.Commission)
		if err != nil {
			return models.Transaction{}, false, fmt.Errorf("invalid commission %q", row.Commission)
		}
	}

	currency := strings.TrimSpace(row.Currency)
	isPence := currency == models.CurrencyGBp || currency == "GBX"

	exchangeRate := 0.0
	if strings.TrimSpace(row.ExchangeRate) != "" {
		exchangeRate, err = utils.ParseFlexibleFloat(row.ExchangeRate)
		if err != nil {
			return models.Transaction{}, false, fmt.Errorf("invalid exchange rate %q", row.ExchangeRate)
		}
	}

	switch {
	case currency == "EUR":
		exchangeRate = 1
	case isPence:
		// Broker exports quote UK lines in pence but carry the GBP/EUR
		// rate. Stored rate must be per pence: GBP rate divided by 100.
		gbpRate := exchangeRate
		if gbpRate == 0 {
			gbpRate, err = s.fx.GbpToEur()
			if err != nil {
				return models.Transaction{}, false, fmt.Errorf("pence row needs a GBP/EUR rate: %v", err)
			}
		}
		currency = models.CurrencyGBp
		exchangeRate = gbpRate / 100
	case exchangeRate == 0:
		return models.Transaction{}, false, fmt.Errorf("missing exchange rate for currency %q", currency)
	}

	tx := models.Transaction{
		UserID:        userID,
		TxType:        row.TxType,
		CompanyName:   strings.TrimSpace(row.CompanyName),
		Symbol:        strings.TrimSpace(row.Symbol),
		Shares:        shares,
		Price:         price,
		Currency:      currency,
		ExchangeRate:  exchangeRate,
		Commission:    commission,
		Date:          row.Date,
		ImportBatchID: batchID,
	}

	if err := ValidateTransaction(tx); err != nil {
		return models.Transaction{}, false, err
	}
	tx.TotalCost = ComputeTotalCost(tx)
	return tx, isPence, nil
}
