package processors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/micartera/backend/src/models"
)

func TestProcessSale_FIFODivergesFromRunningAverage(t *testing.T) {
	// 10 @ 100 then 10 @ 200; selling 10 realizes against the FIRST lot
	// (100/share) while the live position's average for the remaining 10
	// shares is 200/share. The two accountings answer different questions
	// and must not agree here.
	txs := []models.Transaction{
		buy(1, "2024-01-01", "Acme", "", 10, 100),
		buy(2, "2024-02-01", "Acme", "", 10, 200),
		sell(3, "2024-03-01", "Acme", "", 10, 250),
	}

	realized := NewRealizedGainProcessor().ProcessSale(txs[2], txs)
	assert.InDelta(t, 10*100, realized.CostBasisEUR, 1e-9)
	assert.InDelta(t, 10*250-10*100, realized.GainEUR, 1e-9)
	assert.Equal(t, "2024-01-01", realized.AvgPurchaseDate)

	pos := NewPositionProcessor().BuildPositions(txs)["Acme"]
	avgAfterSale := pos.TotalCost / pos.Shares
	assert.InDelta(t, 150, avgAfterSale, 1e-9)
	assert.NotEqual(t, realized.CostBasisEUR, avgAfterSale*10)
}

func TestProcessSale_SpansLotsAndProratesPartialLot(t *testing.T) {
	// Purchase 5 @ 100, purchase 5 @ 120, sell 6 @ 150: FIFO consumes the
	// whole first lot plus one share of the second.
	txs := []models.Transaction{
		buy(1, "2024-01-01", "Acme", "", 5, 100),
		buy(2, "2024-01-02", "Acme", "", 5, 120),
		sell(3, "2024-01-03", "Acme", "", 6, 150),
	}

	realized := NewRealizedGainProcessor().ProcessSale(txs[2], txs)
	assert.InDelta(t, 5*100+1*120, realized.CostBasisEUR, 1e-9)
	assert.InDelta(t, 6*150, realized.ProceedsEUR, 1e-9)
	assert.InDelta(t, 280, realized.GainEUR, 1e-9)
}

func TestProcessSale_EarlierSalesConsumeLotsFirst(t *testing.T) {
	txs := []models.Transaction{
		buy(1, "2024-01-01", "Acme", "", 10, 100),
		buy(2, "2024-02-01", "Acme", "", 10, 200),
		sell(3, "2024-03-01", "Acme", "", 10, 250),
		sell(4, "2024-04-01", "Acme", "", 10, 250),
	}

	second := NewRealizedGainProcessor().ProcessSale(txs[3], txs)
	// The first sale exhausted the 100/share lot; this one hits the second.
	assert.InDelta(t, 10*200, second.CostBasisEUR, 1e-9)
}

func TestProcessSale_PoolsLotsByCompanyAcrossSymbols(t *testing.T) {
	// Dual-listed: lots are pooled by company alone even though the live
	// positions are tracked per company+symbol.
	txs := []models.Transaction{
		buy(1, "2024-01-01", "Acme", "ACM.L", 10, 100),
		sell(2, "2024-02-01", "Acme", "ACM.DE", 10, 150),
	}

	realized := NewRealizedGainProcessor().ProcessSale(txs[1], txs)
	assert.InDelta(t, 10*100, realized.CostBasisEUR, 1e-9)
	assert.InDelta(t, 500, realized.GainEUR, 1e-9)
}

func TestProcessSale_RetentionOnlyOnPositiveGain(t *testing.T) {
	p := NewRealizedGainProcessor()

	gainTxs := []models.Transaction{
		buy(1, "2024-01-01", "Acme", "", 10, 100),
		sell(2, "2024-02-01", "Acme", "", 10, 150),
	}
	win := p.ProcessSale(gainTxs[1], gainTxs)
	assert.InDelta(t, 500, win.GainEUR, 1e-9)
	assert.InDelta(t, 500*0.19, win.RetentionEUR, 1e-9)
	assert.InDelta(t, 500*0.81, win.NetGainEUR, 1e-9)

	lossTxs := []models.Transaction{
		buy(1, "2024-01-01", "Acme", "", 10, 150),
		sell(2, "2024-02-01", "Acme", "", 10, 100),
	}
	loss := p.ProcessSale(lossTxs[1], lossTxs)
	assert.InDelta(t, -500, loss.GainEUR, 1e-9)
	assert.Zero(t, loss.RetentionEUR)
	assert.InDelta(t, -500, loss.NetGainEUR, 1e-9)
}

func TestProcessSale_CommissionNetsProceedsAndSticksToLots(t *testing.T) {
	txs := []models.Transaction{
		{ID: 1, TxType: models.TxTypePurchase, CompanyName: "Acme", Shares: 10, Price: 100,
			Currency: "EUR", ExchangeRate: 1, Commission: 10, Date: "2024-01-01", TotalCost: 1010},
		{ID: 2, TxType: models.TxTypeSale, CompanyName: "Acme", Shares: 5, Price: 150,
			Currency: "EUR", ExchangeRate: 1, Commission: 8, Date: "2024-02-01", TotalCost: 758},
	}

	realized := NewRealizedGainProcessor().ProcessSale(txs[1], txs)
	// Proceeds net of the sale commission; basis carries half the purchase
	// commission via the lot's EUR cost per share.
	assert.InDelta(t, 5*150-8, realized.ProceedsEUR, 1e-9)
	assert.InDelta(t, 1010.0/10*5, realized.CostBasisEUR, 1e-9)
}

func TestProcessAll_AveragePurchaseDateIsSharesWeighted(t *testing.T) {
	txs := []models.Transaction{
		buy(1, "2024-01-01", "Acme", "", 30, 100),
		buy(2, "2024-01-31", "Acme", "", 10, 100),
		sell(3, "2024-06-01", "Acme", "", 40, 120),
	}

	realizations := NewRealizedGainProcessor().ProcessAll(txs)
	require.Len(t, realizations, 1)
	// 30 days apart, weighted 30:10 toward the first lot.
	assert.Equal(t, "2024-01-08", realizations[0].AvgPurchaseDate)
}

func TestReport_AggregatesClosedOperations(t *testing.T) {
	txs := []models.Transaction{
		buy(1, "2024-01-01", "Acme", "", 10, 100),
		sell(2, "2024-02-01", "Acme", "", 10, 150),
		buy(3, "2024-01-01", "Beta", "", 10, 200),
		sell(4, "2024-02-01", "Beta", "", 10, 150),
	}

	closed := NewPositionProcessor().ClosedTransactions(txs)
	report := NewRealizedGainProcessor().Report(closed)

	require.Len(t, report.Sales, 2)
	assert.InDelta(t, 500-500, report.TotalGainEUR, 1e-9)
	assert.InDelta(t, 500*0.19, report.TotalRetention, 1e-9)
	assert.InDelta(t, -95, report.TotalNetGainEUR, 1e-9)
}
