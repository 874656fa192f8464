package services

import (
	"errors"
	"testing"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFetcher struct {
	prices map[string]float64
	err    error
	calls  int
}

func (s *stubFetcher) fetchSymbolPrice(symbol string) (float64, error) {
	s.calls++
	if s.err != nil {
		return 0, s.err
	}
	return s.prices[symbol], nil
}

func newTestFXService(fetcher quoteFetcher) *fxServiceImpl {
	return &fxServiceImpl{
		fetcher:           fetcher,
		fallbackEurPerUsd: 0.92,
		rateCache:         cache.New(time.Minute, time.Minute),
	}
}

func TestEurPerUsd_LiveRateIsInverted(t *testing.T) {
	// Yahoo quotes EURUSD=X as USD per EUR.
	fx := newTestFXService(&stubFetcher{prices: map[string]float64{fxTickerEurUsd: 1.25}})

	rate, live := fx.EurPerUsd()
	assert.True(t, live)
	assert.InDelta(t, 0.8, rate, 1e-9)
}

func TestEurPerUsd_FallbackWhenFetchFails(t *testing.T) {
	fx := newTestFXService(&stubFetcher{err: errors.New("upstream down")})

	rate, live := fx.EurPerUsd()
	assert.False(t, live)
	assert.Equal(t, 0.92, rate)
}

func TestEurPerUsd_CachedAfterFirstFetch(t *testing.T) {
	fetcher := &stubFetcher{prices: map[string]float64{fxTickerEurUsd: 1.25}}
	fx := newTestFXService(fetcher)

	fx.EurPerUsd()
	fx.EurPerUsd()
	assert.Equal(t, 1, fetcher.calls)
}

func TestGbpToEur(t *testing.T) {
	fx := newTestFXService(&stubFetcher{prices: map[string]float64{fxTickerGbpEur: 1.17}})

	rate, err := fx.GbpToEur()
	require.NoError(t, err)
	assert.InDelta(t, 1.17, rate, 1e-9)
}

func TestGbpToEur_ErrorPropagates(t *testing.T) {
	fx := newTestFXService(&stubFetcher{err: errors.New("upstream down")})

	_, err := fx.GbpToEur()
	require.Error(t, err)
}
