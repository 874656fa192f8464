package services

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/username/micartera/backend/src/database"
	"github.com/username/micartera/backend/src/logger"
	"github.com/username/micartera/backend/src/models"
	"github.com/username/micartera/backend/src/utils"
)

type transactionServiceImpl struct {
	portfolio PortfolioService // for cache invalidation on writes; may be nil in tests
}

func NewTransactionService() *transactionServiceImpl {
	return &transactionServiceImpl{}
}

// SetPortfolioService breaks the construction cycle between the transaction
// and portfolio services: the portfolio service reads through this one, and
// this one invalidates the portfolio cache on writes.
func (s *transactionServiceImpl) SetPortfolioService(p PortfolioService) {
	s.portfolio = p
}

// ValidateTransaction fails fast on malformed input. The accounting engine
// itself is permissive and would happily propagate NaN through every sum,
// so the log boundary is where garbage gets rejected.
func ValidateTransaction(tx models.Transaction) error {
	if tx.TxType != models.TxTypePurchase && tx.TxType != models.TxTypeSale {
		return fmt.Errorf("%w: type must be %q or %q", ErrInvalidInput, models.TxTypePurchase, models.TxTypeSale)
	}
	if tx.CompanyName == "" {
		return fmt.Errorf("%w: company is required", ErrInvalidInput)
	}
	if !utils.IsFinite(tx.Shares) || tx.Shares <= 0 {
		return fmt.Errorf("%w: shares must be a positive number", ErrInvalidInput)
	}
	if !utils.IsFinite(tx.Price) || tx.Price < 0 {
		return fmt.Errorf("%w: price must be a non-negative number", ErrInvalidInput)
	}
	if !utils.IsFinite(tx.ExchangeRate) || tx.ExchangeRate <= 0 {
		return fmt.Errorf("%w: exchange rate must be a positive number", ErrInvalidInput)
	}
	if !utils.IsFinite(tx.Commission) || tx.Commission < 0 {
		return fmt.Errorf("%w: commission must be a non-negative number", ErrInvalidInput)
	}
	if tx.Currency == "" {
		return fmt.Errorf("%w: currency is required", ErrInvalidInput)
	}
	if _, err := time.Parse("2006-01-02", tx.Date); err != nil {
		return fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidInput)
	}
	return nil
}

// ComputeTotalCost normalizes a transaction's total cash effect to EUR:
// shares*price*exchangeRate plus the EUR commission. EUR transactions carry
// rate 1 by definition.
func ComputeTotalCost(tx models.Transaction) float64 {
	rate := tx.ExchangeRate
	if tx.Currency == "EUR" {
		rate = 1
	}
	return tx.Shares*tx.Price*rate + tx.Commission
}

func (s *transactionServiceImpl) Create(tx models.Transaction) (models.Transaction, error) {
	if tx.Currency == "EUR" {
		tx.ExchangeRate = 1
	}
	if err := ValidateTransaction(tx); err != nil {
		return models.Transaction{}, err
	}
	tx.TotalCost = ComputeTotalCost(tx)

	res, err := database.DB.Exec(`
		INSERT INTO transactions (user_id, tx_type, company_name, symbol, shares, price, currency,
			exchange_rate, commission, date, total_cost, target_price, stop_loss_price,
			external_symbol_1, external_symbol_2, external_symbol_3, import_batch_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.UserID, tx.TxType, tx.CompanyName, tx.Symbol, tx.Shares, tx.Price, tx.Currency,
		tx.ExchangeRate, tx.Commission, tx.Date, tx.TotalCost, tx.TargetPrice, tx.StopLossPrice,
		tx.ExternalSymbol1, tx.ExternalSymbol2, tx.ExternalSymbol3, tx.ImportBatchID)
	if err != nil {
		return models.Transaction{}, fmt.Errorf("error inserting transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.Transaction{}, fmt.Errorf("error reading inserted transaction id: %w", err)
	}
	tx.ID = id

	s.invalidate(tx.UserID)
	logger.L.Info("Transaction created", "userID", tx.UserID, "id", tx.ID, "company", tx.CompanyName, "type", tx.TxType)
	return tx, nil
}

func (s *transactionServiceImpl) Update(userID, id int64, tx models.Transaction) (models.Transaction, error) {
	if tx.Currency == "EUR" {
		tx.ExchangeRate = 1
	}
	if err := ValidateTransaction(tx); err != nil {
		return models.Transaction{}, err
	}
	if err := s.checkOwnership(userID, id); err != nil {
		return models.Transaction{}, err
	}
	tx.ID = id
	tx.UserID = userID
	tx.TotalCost = ComputeTotalCost(tx)

	_, err := database.DB.Exec(`
		UPDATE transactions SET tx_type = ?, company_name = ?, symbol = ?, shares = ?, price = ?,
			currency = ?, exchange_rate = ?, commission = ?, date = ?, total_cost = ?,
			target_price = ?, stop_loss_price = ?,
			external_symbol_1 = ?, external_symbol_2 = ?, external_symbol_3 = ?
		WHERE id = ? AND user_id = ?`,
		tx.TxType, tx.CompanyName, tx.Symbol, tx.Shares, tx.Price,
		tx.Currency, tx.ExchangeRate, tx.Commission, tx.Date, tx.TotalCost,
		tx.TargetPrice, tx.StopLossPrice,
		tx.ExternalSymbol1, tx.ExternalSymbol2, tx.ExternalSymbol3,
		id, userID)
	if err != nil {
		return models.Transaction{}, fmt.Errorf("error updating transaction %d: %w", id, err)
	}

	s.invalidate(userID)
	logger.L.Info("Transaction updated", "userID", userID, "id", id)
	return tx, nil
}

func (s *transactionServiceImpl) Delete(userID, id int64) error {
	if err := s.checkOwnership(userID, id); err != nil {
		return err
	}
	if _, err := database.DB.Exec(`DELETE FROM transactions WHERE id = ? AND user_id = ?`, id, userID); err != nil {
		return fmt.Errorf("error deleting transaction %d: %w", id, err)
	}
	s.invalidate(userID)
	logger.L.Info("Transaction deleted", "userID", userID, "id", id)
	return nil
}

func (s *transactionServiceImpl) DeleteAll(userID int64) error {
	if _, err := database.DB.Exec(`DELETE FROM transactions WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("error deleting transactions for userID %d: %w", userID, err)
	}
	s.invalidate(userID)
	logger.L.Info("All transactions deleted", "userID", userID)
	return nil
}

// ListByUser returns the user's full transaction log ordered by (date, id).
// The engine re-sorts defensively, but a stable order here keeps API
// responses and ETags deterministic.
func (s *transactionServiceImpl) ListByUser(userID int64) ([]models.Transaction, error) {
	rows, err := database.DB.Query(`
		SELECT id, user_id, tx_type, company_name, symbol, shares, price, currency,
			exchange_rate, commission, date, total_cost, target_price, stop_loss_price,
			external_symbol_1, external_symbol_2, external_symbol_3, import_batch_id
		FROM transactions WHERE user_id = ? ORDER BY date ASC, id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("error querying transactions for userID %d: %w", userID, err)
	}
	defer rows.Close()

	var transactions []models.Transaction
	for rows.Next() {
		var tx models.Transaction
		scanErr := rows.Scan(&tx.ID, &tx.UserID, &tx.TxType, &tx.CompanyName, &tx.Symbol,
			&tx.Shares, &tx.Price, &tx.Currency, &tx.ExchangeRate, &tx.Commission, &tx.Date,
			&tx.TotalCost, &tx.TargetPrice, &tx.StopLossPrice,
			&tx.ExternalSymbol1, &tx.ExternalSymbol2, &tx.ExternalSymbol3, &tx.ImportBatchID)
		if scanErr != nil {
			return nil, fmt.Errorf("error scanning transaction row for userID %d: %w", userID, scanErr)
		}
		transactions = append(transactions, tx)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over transaction rows for userID %d: %w", userID, err)
	}
	return transactions, nil
}

func (s *transactionServiceImpl) checkOwnership(userID, id int64) error {
	var owner int64
	err := database.DB.QueryRow(`SELECT user_id FROM transactions WHERE id = ?`, id).Scan(&owner)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("error checking transaction ownership: %w", err)
	}
	if owner != userID {
		return ErrNotOwner
	}
	return nil
}

func (s *transactionServiceImpl) invalidate(userID int64) {
	if s.portfolio != nil {
		s.portfolio.InvalidateUserCache(userID)
	}
}
