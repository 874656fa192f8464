package services

import (
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/micartera/backend/src/logger"
)

const (
	fxTickerEurUsd = "EURUSD=X" // USD per 1 EUR
	fxTickerGbpEur = "GBPEUR=X" // EUR per 1 GBP

	ckEurPerUsd = "fx_eur_per_usd"
	ckGbpToEur  = "fx_gbp_to_eur"
)

// quoteFetcher is the slice of the quote service the FX service needs.
// Satisfied by *quoteServiceImpl; tests substitute a stub.
type quoteFetcher interface {
	fetchSymbolPrice(symbol string) (float64, error)
}

func (s *quoteServiceImpl) fetchSymbolPrice(symbol string) (float64, error) {
	quote, err := s.fetchQuote(symbol)
	if err != nil {
		return 0, err
	}
	return quote.Price, nil
}

// fxServiceImpl reads FX crosses through the same Yahoo session as equity
// quotes. Rates are cached; the EUR/USD fallback is the application policy
// handed down from config, never decided here or in the engine.
type fxServiceImpl struct {
	fetcher           quoteFetcher
	fallbackEurPerUsd float64
	rateCache         *cache.Cache
}

func NewFXService(quoteService QuoteService, fallbackEurPerUsd float64, cacheTTL time.Duration) FXService {
	fetcher, _ := quoteService.(quoteFetcher)
	return &fxServiceImpl{
		fetcher:           fetcher,
		fallbackEurPerUsd: fallbackEurPerUsd,
		rateCache:         cache.New(cacheTTL, 2*cacheTTL),
	}
}

// EurPerUsd returns the best available EUR-per-USD rate. Yahoo quotes the
// cross as USD per EUR, so the live value is inverted. When nothing live is
// available the configured fallback is returned with live=false.
func (s *fxServiceImpl) EurPerUsd() (float64, bool) {
	if cached, found := s.rateCache.Get(ckEurPerUsd); found {
		return cached.(float64), true
	}

	if s.fetcher != nil {
		usdPerEur, err := s.fetcher.fetchSymbolPrice(fxTickerEurUsd)
		if err == nil && usdPerEur > 0 {
			rate := 1 / usdPerEur
			s.rateCache.Set(ckEurPerUsd, rate, cache.DefaultExpiration)
			return rate, true
		}
		logger.L.Warn("Live EUR/USD unavailable, using fallback", "fallback", s.fallbackEurPerUsd, "error", err)
	}
	return s.fallbackEurPerUsd, false
}

// GbpToEur returns the live EUR-per-GBP rate, used at import time to build
// the pence adjustment (GBp rate = GBP rate / 100).
func (s *fxServiceImpl) GbpToEur() (float64, error) {
	if cached, found := s.rateCache.Get(ckGbpToEur); found {
		return cached.(float64), nil
	}
	if s.fetcher == nil {
		return 0, ErrQuoteUnavailable
	}

	rate, err := s.fetcher.fetchSymbolPrice(fxTickerGbpEur)
	if err != nil {
		return 0, err
	}
	s.rateCache.Set(ckGbpToEur, rate, cache.DefaultExpiration)
	return rate, nil
}
