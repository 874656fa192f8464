package processors

import (
	"time"

	"github.com/username/micartera/backend/src/models"
)

// RetentionRate is the withholding applied to positive realized gains on
// reports (retenciones, 19%). It is a report-formatting rule only and never
// feeds back into position accounting.
const RetentionRate = 0.19

// RealizedGainProcessor replays the transaction log per sale, consuming
// purchase lots oldest-first (FIFO) to compute the gain attributable to
// that specific sale.
//
// This is deliberately a second, independent algorithm next to the running
// weighted average of PositionProcessor: the live view wants a single
// average cost per share, tax reporting wants per-sale lot attribution.
// The two produce different numbers by construction and must stay separate.
//
// Lots are pooled by company name alone, not by company+symbol: two
// differently-symbol-tagged listings of the same company share one FIFO
// pool for realized gains even though they are tracked as separate live
// positions.
type RealizedGainProcessor struct{}

func NewRealizedGainProcessor() *RealizedGainProcessor {
	return &RealizedGainProcessor{}
}

// lotState tracks how much of one purchase lot is still unconsumed while
// replaying sales.
type lotState struct {
	tx        models.Transaction
	remaining float64
}

// ProcessSale computes the FIFO realization of a single sale against the
// full transaction history of the same company. Earlier sales of that
// company are replayed first so each sale consumes only the lots still
// available at its point in the timeline.
func (p *RealizedGainProcessor) ProcessSale(sale models.Transaction, transactions []models.Transaction) models.SaleRealization {
	lots := p.purchaseLots(sale.CompanyName, transactions)
	p.replayEarlierSales(sale, transactions, lots)
	return p.consume(sale, lots)
}

// ProcessAll computes realizations for every sale in the snapshot, in
// chronological order, sharing one lot replay per company.
func (p *RealizedGainProcessor) ProcessAll(transactions []models.Transaction) []models.SaleRealization {
	sorted := make([]models.Transaction, len(transactions))
	copy(sorted, transactions)
	sortChronological(sorted)

	lotsByCompany := make(map[string][]*lotState)
	var realizations []models.SaleRealization
	for _, tx := range sorted {
		switch tx.TxType {
		case models.TxTypePurchase:
			lotsByCompany[tx.CompanyName] = append(lotsByCompany[tx.CompanyName], &lotState{tx: tx, remaining: tx.Shares})
		case models.TxTypeSale:
			realizations = append(realizations, p.consume(tx, lotsByCompany[tx.CompanyName]))
		}
	}
	return realizations
}

// Report aggregates the realized P&L over a set of transactions, typically
// the closed-operation set from PositionProcessor.ClosedTransactions.
func (p *RealizedGainProcessor) Report(transactions []models.Transaction) models.RealizedReport {
	report := models.RealizedReport{Sales: p.ProcessAll(transactions)}
	for _, s := range report.Sales {
		report.TotalGainEUR += s.GainEUR
		report.TotalRetention += s.RetentionEUR
		report.TotalNetGainEUR += s.NetGainEUR
	}
	return report
}

func (p *RealizedGainProcessor) purchaseLots(company string, transactions []models.Transaction) []*lotState {
	var purchases []models.Transaction
	for _, tx := range transactions {
		if tx.CompanyName == company && tx.TxType == models.TxTypePurchase {
			purchases = append(purchases, tx)
		}
	}
	sortChronological(purchases)

	lots := make([]*lotState, len(purchases))
	for i, tx := range purchases {
		lots[i] = &lotState{tx: tx, remaining: tx.Shares}
	}
	return lots
}

// replayEarlierSales consumes lots for every same-company sale that comes
// strictly before the given sale in (date, id) order.
func (p *RealizedGainProcessor) replayEarlierSales(sale models.Transaction, transactions []models.Transaction, lots []*lotState) {
	var earlier []models.Transaction
	for _, tx := range transactions {
		if tx.CompanyName != sale.CompanyName || tx.TxType != models.TxTypeSale {
			continue
		}
		if tx.Date < sale.Date || (tx.Date == sale.Date && tx.ID < sale.ID) {
			earlier = append(earlier, tx)
		}
	}
	sortChronological(earlier)
	for _, tx := range earlier {
		p.consume(tx, lots)
	}
}

// consume walks the lots oldest-first, taking min(remaining, lot.remaining)
// shares from each at that lot's own per-share cost, and builds the
// realization row for the sale.
func (p *RealizedGainProcessor) consume(sale models.Transaction, lots []*lotState) models.SaleRealization {
	result := models.SaleRealization{
		SaleID:      sale.ID,
		CompanyName: sale.CompanyName,
		Symbol:      sale.Symbol,
		SaleDate:    sale.Date,
		Shares:      sale.Shares,
		Currency:    sale.Currency,
	}

	result.ProceedsNative = sale.Shares*sale.Price - nativeCommission(sale)
	result.ProceedsEUR = sale.Shares*sale.Price*sale.ExchangeRate - sale.Commission

	remaining := sale.Shares
	var weightedDate float64
	var matchedShares float64
	for _, lot := range lots {
		if remaining <= 0 {
			break
		}
		if lot.remaining <= 0 {
			continue
		}
		matched := remaining
		if lot.remaining < matched {
			matched = lot.remaining
		}

		result.CostBasisNative += matched * lot.tx.Price
		// EUR basis uses the lot's own EUR cost spread over its shares, so
		// commission and the purchase-time rate stay attached to the lot.
		if lot.tx.Shares != 0 {
			result.CostBasisEUR += lot.tx.TotalCost / lot.tx.Shares * matched
		}
		if t, err := time.Parse("2006-01-02", lot.tx.Date); err == nil {
			weightedDate += float64(t.Unix()) * matched
			matchedShares += matched
		}

		lot.remaining -= matched
		remaining -= matched
	}

	if matchedShares > 0 {
		avg := time.Unix(int64(weightedDate/matchedShares), 0).UTC()
		result.AvgPurchaseDate = avg.Format("2006-01-02")
	}

	result.GainEUR = result.ProceedsEUR - result.CostBasisEUR
	if result.GainEUR > 0 {
		result.RetentionEUR = result.GainEUR * RetentionRate
	}
	result.NetGainEUR = result.GainEUR - result.RetentionEUR
	return result
}
