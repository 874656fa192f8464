package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/username/micartera/backend/src/database"
	"github.com/username/micartera/backend/src/logger"
	"github.com/username/micartera/backend/src/model"
	"github.com/username/micartera/backend/src/models"
	"github.com/username/micartera/backend/src/processors"
)

const alertDedupeTTL = 24 * time.Hour

// alertServiceImpl watches active positions for crossed target/stop-loss
// thresholds. Thresholds live on purchase transactions, in the transaction's
// native currency; quotes are compared in that same currency, so no FX is
// involved here.
type alertServiceImpl struct {
	transactions TransactionService
	quotes       QuoteService
	email        EmailService

	positionProcessor *processors.PositionProcessor

	// firedCache de-duplicates notifications: one email per
	// (user, position, kind) per TTL window, not one per sweep.
	firedCache *cache.Cache

	sweepInterval time.Duration

	// userLookup is swappable for tests; defaults to the users table.
	userLookup func(id int64) (*model.User, error)
}

func NewAlertService(transactions TransactionService, quotes QuoteService, email EmailService, sweepInterval time.Duration) AlertService {
	return &alertServiceImpl{
		transactions:      transactions,
		quotes:            quotes,
		email:             email,
		positionProcessor: processors.NewPositionProcessor(),
		firedCache:        cache.New(alertDedupeTTL, 2*alertDedupeTTL),
		sweepInterval:     sweepInterval,
		userLookup: func(id int64) (*model.User, error) {
			return model.GetUserByID(database.DB, id)
		},
	}
}

// CheckUserAlerts evaluates all of a user's active positions and returns the
// alerts that fired in this check. Already-notified alerts inside the dedupe
// window are skipped silently.
func (s *alertServiceImpl) CheckUserAlerts(userID int64) ([]AlertNotification, error) {
	txs, err := s.transactions.ListByUser(userID)
	if err != nil {
		return nil, err
	}

	active := s.positionProcessor.ActivePositions(txs)
	if len(active) == 0 {
		return nil, nil
	}

	quotes := s.quotes.GetQuotes(active)
	fired := evaluateAlerts(userID, active, txs, quotes)

	var fresh []AlertNotification
	for _, alert := range fired {
		dedupeKey := fmt.Sprintf("alert_%d_%s_%s", alert.UserID, alert.PositionKey, alert.Kind)
		if _, seen := s.firedCache.Get(dedupeKey); seen {
			continue
		}
		s.firedCache.Set(dedupeKey, true, cache.DefaultExpiration)
		fresh = append(fresh, alert)
	}

	if len(fresh) > 0 {
		s.notify(userID, fresh)
	}
	return fresh, nil
}

// evaluateAlerts compares quotes against the latest threshold set on each
// position's purchases. A later purchase with a threshold supersedes earlier
// ones; zero means unset.
func evaluateAlerts(userID int64, active map[string]models.Position, txs []models.Transaction, quotes map[string]models.Quote) []AlertNotification {
	var fired []AlertNotification

	for key, pos := range active {
		quote, hasQuote := quotes[key]
		if !hasQuote || quote.Price <= 0 {
			continue
		}

		var targetPrice, stopLossPrice float64
		for _, tx := range txs {
			if tx.TxType != models.TxTypePurchase || processors.PositionKey(tx.CompanyName, tx.Symbol) != key {
				continue
			}
			if tx.TargetPrice > 0 {
				targetPrice = tx.TargetPrice
			}
			if tx.StopLossPrice > 0 {
				stopLossPrice = tx.StopLossPrice
			}
		}

		if targetPrice > 0 && quote.Price >= targetPrice {
			fired = append(fired, AlertNotification{
				ID:          uuid.New().String(),
				UserID:      userID,
				PositionKey: key,
				CompanyName: pos.CompanyName,
				Kind:        "target",
				Threshold:   targetPrice,
				Price:       quote.Price,
				Currency:    pos.Currency,
			})
		}
		if stopLossPrice > 0 && quote.Price <= stopLossPrice {
			fired = append(fired, AlertNotification{
				ID:          uuid.New().String(),
				UserID:      userID,
				PositionKey: key,
				CompanyName: pos.CompanyName,
				Kind:        "stop_loss",
				Threshold:   stopLossPrice,
				Price:       quote.Price,
				Currency:    pos.Currency,
			})
		}
	}
	return fired
}

func (s *alertServiceImpl) notify(userID int64, alerts []AlertNotification) {
	user, err := s.userLookup(userID)
	if err != nil {
		logger.L.Error("Alert notify: could not look up user", "userID", userID, "error", err)
		return
	}
	for _, alert := range alerts {
		if err := s.email.SendPriceAlertEmail(user.Email, user.Username, alert); err != nil {
			logger.L.Error("Alert notify: email send failed", "userID", userID,
				"key", alert.PositionKey, "kind", alert.Kind, "error", err)
		}
	}
}

// RunSweep periodically checks every user that has transactions. Blocks
// until the context is cancelled; callers run it in its own goroutine.
func (s *alertServiceImpl) RunSweep(ctx context.Context) {
	logger.L.Info("Alert sweep started", "interval", s.sweepInterval)
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.L.Info("Alert sweep stopped")
			return
		case <-ticker.C:
			s.sweepOnce()
		}
	}
}

func (s *alertServiceImpl) sweepOnce() {
	userIDs, err := usersWithTransactions()
	if err != nil {
		logger.L.Error("Alert sweep: could not list users", "error", err)
		return
	}
	for _, userID := range userIDs {
		fired, err := s.CheckUserAlerts(userID)
		if err != nil {
			logger.L.Error("Alert sweep: user check failed", "userID", userID, "error", err)
			continue
		}
		if len(fired) > 0 {
			logger.L.Info("Alert sweep: alerts fired", "userID", userID, "count", len(fired))
		}
	}
}

func usersWithTransactions() ([]int64, error) {
	rows, err := database.DB.Query(`SELECT DISTINCT user_id FROM transactions`)
	if err != nil {
		return nil, fmt.Errorf("error querying users with transactions: %w", err)
	}
	defer rows.Close()

	var userIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("error scanning user id: %w", err)
		}
		userIDs = append(userIDs, id)
	}
	return userIDs, rows.Err()
}
