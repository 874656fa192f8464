package processors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/micartera/backend/src/models"
)

func TestToEUR_PerCurrencyRules(t *testing.T) {
	v := NewValuationProcessor()

	assert.InDelta(t, 1000, v.ToEUR(1000, "EUR", 0.92, 0.85), 1e-9)
	assert.InDelta(t, 920, v.ToEUR(1000, "USD", 0.92, 0.85), 1e-9)
	// Third currencies are valued at the historical purchase-time rate.
	assert.InDelta(t, 850, v.ToEUR(1000, "GBP", 0.92, 0.85), 1e-9)
	assert.InDelta(t, 850, v.ToEUR(1000, "CAD", 0.92, 0.85), 1e-9)
}

func TestWeightedPurchaseRate(t *testing.T) {
	v := NewValuationProcessor()

	txs := []models.Transaction{
		{ID: 1, TxType: models.TxTypePurchase, CompanyName: "Maple", Shares: 10,
			Currency: "CAD", ExchangeRate: 0.70, Date: "2024-01-01"},
		{ID: 2, TxType: models.TxTypePurchase, CompanyName: "Maple", Shares: 30,
			Currency: "CAD", ExchangeRate: 0.66, Date: "2024-02-01"},
		// Sales contribute no rate.
		{ID: 3, TxType: models.TxTypeSale, CompanyName: "Maple", Shares: 5,
			Currency: "CAD", ExchangeRate: 0.60, Date: "2024-03-01"},
	}

	rate := v.WeightedPurchaseRate("Maple", txs)
	assert.InDelta(t, (0.70*10+0.66*30)/40, rate, 1e-9)

	// No purchases to weight: fall back to 1.
	assert.Equal(t, 1.0, v.WeightedPurchaseRate("Ghost", txs))
}

func TestWeightedPurchaseRate_PreservesPenceAdjustment(t *testing.T) {
	v := NewValuationProcessor()

	// A GBp transaction arrives with its rate already divided by 100 at
	// ingestion (1 GBp = 0.01 GBP). With GBP/EUR at 1.17 the stored rate is
	// 0.0117 EUR per penny and must flow through the weighting verbatim.
	txs := []models.Transaction{
		{ID: 1, TxType: models.TxTypePurchase, CompanyName: "UKCo", Shares: 10,
			Price: 500, Currency: models.CurrencyGBp, ExchangeRate: 0.0117,
			Date: "2024-01-01", TotalCost: 10 * 500 * 0.0117},
	}

	rate := v.WeightedPurchaseRate("UKCo", txs)
	assert.InDelta(t, 0.0117, rate, 1e-12)

	// 10 shares at 500 pence = 5000 GBp = 50 GBP = 58.50 EUR.
	assert.InDelta(t, 58.50, v.ToEUR(10*500, models.CurrencyGBp, 0.92, rate), 1e-9)

	pos := NewPositionProcessor().BuildPositions(txs)["UKCo"]
	assert.InDelta(t, 5000, pos.TotalOriginalCost, 1e-9)
	assert.InDelta(t, 58.50, pos.TotalCost, 1e-9)
}

func TestEvaluate_WithQuote(t *testing.T) {
	v := NewValuationProcessor()

	pos := models.Position{
		Key: "Acme", CompanyName: "Acme", Shares: 10,
		Currency: "USD", TotalCost: 900,
	}
	quote := &models.Quote{Price: 110, Currency: "USD", Source: "yahoo"}

	val := v.Evaluate(pos, quote, 0.92, 1)
	require.NotNil(t, val)
	assert.InDelta(t, 10*110*0.92, val.CurrentValueEUR, 1e-9)
	assert.InDelta(t, val.CurrentValueEUR-900, val.PnLEUR, 1e-9)
	assert.InDelta(t, val.PnLEUR/900*100, val.PnLPercent, 1e-9)
	assert.True(t, val.HasQuote)
}

func TestEvaluate_MissingQuoteReturnsNil(t *testing.T) {
	v := NewValuationProcessor()

	pos := models.Position{Key: "Acme", Shares: 10, Currency: "EUR", TotalCost: 900}
	assert.Nil(t, v.Evaluate(pos, nil, 0.92, 1))
}

func TestEvaluate_ZeroCostBasisGuardsPercent(t *testing.T) {
	v := NewValuationProcessor()

	pos := models.Position{Key: "Acme", Shares: 10, Currency: "EUR", TotalCost: 0}
	val := v.Evaluate(pos, &models.Quote{Price: 10, Currency: "EUR"}, 0.92, 1)
	require.NotNil(t, val)
	assert.Zero(t, val.PnLPercent)
}

func TestEvaluateAll_MissingQuoteFallsBackToCostBasis(t *testing.T) {
	v := NewValuationProcessor()
	p := NewPositionProcessor()

	txs := []models.Transaction{
		buy(1, "2024-01-01", "Acme", "", 10, 100),
		buy(2, "2024-01-01", "Beta", "", 10, 50),
	}
	positions := p.ActivePositions(txs)
	quotes := map[string]models.Quote{
		"Acme": {Price: 120, Currency: "EUR", Source: "yahoo"},
	}

	valuations, summary := v.EvaluateAll(positions, txs, quotes, 0.92)
	require.Len(t, valuations, 2)

	byKey := map[string]models.PositionValuation{}
	for _, val := range valuations {
		byKey[val.Key] = val
	}

	assert.True(t, byKey["Acme"].HasQuote)
	assert.InDelta(t, 1200, byKey["Acme"].CurrentValueEUR, 1e-9)

	// Beta has no quote: carried at cost, zero P&L, flagged.
	assert.False(t, byKey["Beta"].HasQuote)
	assert.InDelta(t, 500, byKey["Beta"].CurrentValueEUR, 1e-9)
	assert.Zero(t, byKey["Beta"].PnLEUR)

	assert.Equal(t, 1, summary.MissingQuotes)
	assert.InDelta(t, 1700, summary.TotalValueEUR, 1e-9)
	assert.InDelta(t, 1500, summary.TotalCostEUR, 1e-9)
	assert.InDelta(t, 200, summary.TotalPnLEUR, 1e-9)
}
