package processors

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/micartera/backend/src/models"
)

func buy(id int64, date, company, symbol string, shares, price float64) models.Transaction {
	return models.Transaction{
		ID: id, TxType: models.TxTypePurchase, CompanyName: company, Symbol: symbol,
		Shares: shares, Price: price, Currency: "EUR", ExchangeRate: 1,
		Date: date, TotalCost: shares * price,
	}
}

func sell(id int64, date, company, symbol string, shares, price float64) models.Transaction {
	return models.Transaction{
		ID: id, TxType: models.TxTypeSale, CompanyName: company, Symbol: symbol,
		Shares: shares, Price: price, Currency: "EUR", ExchangeRate: 1,
		Date: date, TotalCost: shares * price,
	}
}

func TestBuildPositions_PurchasesOnly(t *testing.T) {
	p := NewPositionProcessor()

	txs := []models.Transaction{
		{ID: 1, TxType: models.TxTypePurchase, CompanyName: "Acme", Shares: 10, Price: 100,
			Currency: "EUR", ExchangeRate: 1, Commission: 5, Date: "2024-01-02", TotalCost: 10*100 + 5},
		{ID: 2, TxType: models.TxTypePurchase, CompanyName: "Acme", Shares: 20, Price: 130,
			Currency: "EUR", ExchangeRate: 1, Commission: 5, Date: "2024-02-02", TotalCost: 20*130 + 5},
	}

	positions := p.BuildPositions(txs)
	require.Len(t, positions, 1)

	pos := positions["Acme"]
	assert.Equal(t, 30.0, pos.Shares)
	assert.InDelta(t, 1005+2605, pos.TotalCost, 1e-9)
	// Native cost: EUR transactions carry rate 1, so commission converts 1:1.
	assert.InDelta(t, 10*100+5+20*130+5, pos.TotalOriginalCost, 1e-9)

	// Average cost equals the shares-weighted mean including commissions.
	avg := pos.TotalCost / pos.Shares
	assert.InDelta(t, (1005.0+2605.0)/30.0, avg, 1e-9)
}

func TestBuildPositions_FullLiquidationClosesWithinEpsilon(t *testing.T) {
	p := NewPositionProcessor()

	txs := []models.Transaction{
		buy(1, "2024-01-02", "Acme", "", 3, 33.33),
		buy(2, "2024-01-10", "Acme", "", 7, 41.17),
		sell(3, "2024-03-01", "Acme", "", 10, 45),
	}

	pos := p.BuildPositions(txs)["Acme"]
	assert.InDelta(t, 0, pos.Shares, Epsilon)
	assert.InDelta(t, 0, pos.TotalCost, Epsilon)
	assert.InDelta(t, 0, pos.TotalOriginalCost, Epsilon)

	assert.Empty(t, p.ActivePositions(txs))
	assert.Len(t, p.ClosedTransactions(txs), 3)
}

func TestBuildPositions_InputOrderDoesNotMatter(t *testing.T) {
	p := NewPositionProcessor()

	ordered := []models.Transaction{
		buy(1, "2024-01-02", "Acme", "", 5, 100),
		buy(2, "2024-01-03", "Acme", "", 5, 120),
		sell(3, "2024-01-04", "Acme", "", 6, 150),
	}
	shuffled := []models.Transaction{ordered[2], ordered[0], ordered[1]}

	assert.Equal(t, p.BuildPositions(ordered), p.BuildPositions(shuffled))
}

func TestBuildPositions_SameDateTieBrokenByID(t *testing.T) {
	p := NewPositionProcessor()

	// Buy then sell on the same day: the sale must fold after the purchase
	// or the average cost would be computed against an empty position.
	txs := []models.Transaction{
		sell(2, "2024-01-02", "Acme", "", 5, 120),
		buy(1, "2024-01-02", "Acme", "", 10, 100),
	}

	pos := p.BuildPositions(txs)["Acme"]
	assert.Equal(t, 5.0, pos.Shares)
	assert.InDelta(t, 500, pos.TotalCost, 1e-9)
}

func TestBuildPositions_WeightedAverageScenario(t *testing.T) {
	p := NewPositionProcessor()

	// Purchase 5 @ 100, purchase 5 @ 120, sell 6 @ 150: avg cost before the
	// sale is 110, so 440 of cost basis remains on the 4 held shares.
	txs := []models.Transaction{
		buy(1, "2024-01-01", "Acme", "", 5, 100),
		buy(2, "2024-01-02", "Acme", "", 5, 120),
		sell(3, "2024-01-03", "Acme", "", 6, 150),
	}

	pos := p.BuildPositions(txs)["Acme"]
	assert.InDelta(t, 4, pos.Shares, 1e-9)
	assert.InDelta(t, 440, pos.TotalCost, 1e-9)
}

func TestBuildPositions_SymbolDisambiguatesPositions(t *testing.T) {
	p := NewPositionProcessor()

	txs := []models.Transaction{
		buy(1, "2024-01-01", "Acme", "ACM.L", 10, 100),
		buy(2, "2024-01-02", "Acme", "ACM.DE", 10, 100),
		buy(3, "2024-01-03", "Beta", "", 1, 10),
	}

	positions := p.BuildPositions(txs)
	require.Len(t, positions, 3)
	assert.Contains(t, positions, "Acme|||ACM.L")
	assert.Contains(t, positions, "Acme|||ACM.DE")
	assert.Contains(t, positions, "Beta")
}

func TestBuildPositions_SaleOnEmptyPositionDoesNotNaN(t *testing.T) {
	p := NewPositionProcessor()

	// Selling a fully closed position again must not divide by zero.
	txs := []models.Transaction{
		buy(1, "2024-01-01", "Acme", "", 10, 100),
		sell(2, "2024-01-02", "Acme", "", 10, 110),
		sell(3, "2024-01-03", "Acme", "", 5, 120),
	}

	pos := p.BuildPositions(txs)["Acme"]
	assert.False(t, math.IsNaN(pos.TotalCost))
	assert.InDelta(t, -5, pos.Shares, 1e-9)
}

func TestClosedTransactions_ReopenedKeyIsNotClosed(t *testing.T) {
	p := NewPositionProcessor()

	txs := []models.Transaction{
		buy(1, "2024-01-01", "Acme", "", 10, 100),
		sell(2, "2024-02-01", "Acme", "", 10, 110),
		buy(3, "2024-03-01", "Acme", "", 5, 90),
		buy(4, "2024-03-02", "Beta", "", 2, 50),
		sell(5, "2024-04-01", "Beta", "", 2, 60),
	}

	closed := p.ClosedTransactions(txs)
	require.Len(t, closed, 2)
	for _, tx := range closed {
		assert.Equal(t, "Beta", tx.CompanyName)
	}
}

func TestPositionKeyRoundTrip(t *testing.T) {
	key := PositionKey("Acme", "ACM")
	company, symbol := SplitPositionKey(key)
	assert.Equal(t, "Acme", company)
	assert.Equal(t, "ACM", symbol)

	company, symbol = SplitPositionKey(PositionKey("Beta", ""))
	assert.Equal(t, "Beta", company)
	assert.Empty(t, symbol)
}
