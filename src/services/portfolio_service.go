package services

import (
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/micartera/backend/src/logger"
	"github.com/username/micartera/backend/src/models"
	"github.com/username/micartera/backend/src/processors"
)

const (
	ckValuations = "res_valuations_user_%d"
	ckRealized   = "res_realized_user_%d"
	ckSummary    = "res_summary_user_%d"

	DefaultCacheExpiration = 15 * time.Minute
	CacheCleanupInterval   = 30 * time.Minute
)

type cachedValuations struct {
	valuations []models.PositionValuation
	summary    models.PortfolioSummary
}

// portfolioServiceImpl glues the pure accounting processors to the stored
// transaction log and the live quote/FX collaborators. The processors get
// an immutable snapshot and return fresh results, so no locking is needed
// here; the report cache simply avoids refetching quotes on every request.
type portfolioServiceImpl struct {
	transactions TransactionService
	quotes       QuoteService
	fx           FXService

	positionProcessor  *processors.PositionProcessor
	valuationProcessor *processors.ValuationProcessor
	realizedProcessor  *processors.RealizedGainProcessor

	reportCache *cache.Cache
}

func NewPortfolioService(transactions TransactionService, quotes QuoteService, fx FXService, reportCache *cache.Cache) PortfolioService {
	return &portfolioServiceImpl{
		transactions:       transactions,
		quotes:             quotes,
		fx:                 fx,
		positionProcessor:  processors.NewPositionProcessor(),
		valuationProcessor: processors.NewValuationProcessor(),
		realizedProcessor:  processors.NewRealizedGainProcessor(),
		reportCache:        reportCache,
	}
}

func (s *portfolioServiceImpl) GetPositions(userID int64) (map[string]models.Position, error) {
	txs, err := s.transactions.ListByUser(userID)
	if err != nil {
		return nil, err
	}
	return s.positionProcessor.BuildPositions(txs), nil
}

func (s *portfolioServiceImpl) GetActivePositions(userID int64) (map[string]models.Position, error) {
	txs, err := s.transactions.ListByUser(userID)
	if err != nil {
		return nil, err
	}
	return s.positionProcessor.ActivePositions(txs), nil
}

func (s *portfolioServiceImpl) GetValuations(userID int64) ([]models.PositionValuation, models.PortfolioSummary, error) {
	cacheKey := fmt.Sprintf(ckValuations, userID)
	if cached, found := s.reportCache.Get(cacheKey); found {
		logger.L.Debug("Cache hit for valuations", "userID", userID)
		c := cached.(cachedValuations)
		return c.valuations, c.summary, nil
	}

	txs, err := s.transactions.ListByUser(userID)
	if err != nil {
		return nil, models.PortfolioSummary{}, err
	}

	active := s.positionProcessor.ActivePositions(txs)
	quotes := s.quotes.GetQuotes(active)
	eurPerUsd, live := s.fx.EurPerUsd()

	valuations, summary := s.valuationProcessor.EvaluateAll(active, txs, quotes, eurPerUsd)
	summary.EurPerUsd = eurPerUsd
	summary.EurPerUsdIsLive = live

	s.reportCache.Set(cacheKey, cachedValuations{valuations: valuations, summary: summary}, DefaultCacheExpiration)
	logger.L.Info("Computed portfolio valuations", "userID", userID,
		"positions", summary.PositionCount, "missingQuotes", summary.MissingQuotes)
	return valuations, summary, nil
}

// GetRealizedReport aggregates FIFO realizations over the closed-operation
// set. Intentionally a different algorithm from the live valuation path.
func (s *portfolioServiceImpl) GetRealizedReport(userID int64) (models.RealizedReport, error) {
	cacheKey := fmt.Sprintf(ckRealized, userID)
	if cached, found := s.reportCache.Get(cacheKey); found {
		return cached.(models.RealizedReport), nil
	}

	closed, err := s.GetClosedTransactions(userID)
	if err != nil {
		return models.RealizedReport{}, err
	}

	report := s.realizedProcessor.Report(closed)
	s.reportCache.Set(cacheKey, report, cache.NoExpiration)
	return report, nil
}

func (s *portfolioServiceImpl) GetClosedTransactions(userID int64) ([]models.Transaction, error) {
	txs, err := s.transactions.ListByUser(userID)
	if err != nil {
		return nil, err
	}
	return s.positionProcessor.ClosedTransactions(txs), nil
}

// InvalidateUserCache clears all cached reports for a user, forcing a full
// recalculation on the next request. Called on every write to the log.
func (s *portfolioServiceImpl) InvalidateUserCache(userID int64) {
	keysToDelete := []string{
		fmt.Sprintf(ckValuations, userID),
		fmt.Sprintf(ckRealized, userID),
		fmt.Sprintf(ckSummary, userID),
	}
	for _, key := range keysToDelete {
		s.reportCache.Delete(key)
	}
	logger.L.Debug("Invalidated report caches for user", "userID", userID)
}
