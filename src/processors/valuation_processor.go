package processors

import (
	"sort"

	"github.com/username/micartera/backend/src/models"
)

// ValuationProcessor converts native-currency market values into EUR and
// combines positions with live quotes into unrealized P&L. Like the other
// processors it performs no I/O; live rates and quotes are passed in by the
// caller with whatever freshness it has.
type ValuationProcessor struct{}

func NewValuationProcessor() *ValuationProcessor {
	return &ValuationProcessor{}
}

// ToEUR converts a native-currency value into EUR.
//
//   - EUR is the identity.
//   - USD uses the caller-supplied live rate. The fallback when no live rate
//     is available is the caller's policy, never hardcoded here.
//   - Every other currency (GBP, CAD, JPY, GBp, ...) uses the weighted
//     purchase rate: no live feed is assumed for third currencies, so the
//     position is valued at historical purchase-time FX.
func (v *ValuationProcessor) ToEUR(nativeValue float64, currency string, liveEurPerUsd, weightedPurchaseRate float64) float64 {
	switch currency {
	case "EUR":
		return nativeValue
	case "USD":
		return nativeValue * liveEurPerUsd
	default:
		return nativeValue * weightedPurchaseRate
	}
}

// WeightedPurchaseRate is the shares-weighted average exchange rate of the
// purchase transactions under one position key. Sales do not contribute a
// rate. When there are no purchases to weight (a reopened key seen only
// through sales), the rate falls back to 1.
//
// GBp rates arrive here already divided by 100 at ingestion time and are
// preserved verbatim through the weighting.
func (v *ValuationProcessor) WeightedPurchaseRate(key string, transactions []models.Transaction) float64 {
	var weighted, shares float64
	for _, tx := range transactions {
		if tx.TxType != models.TxTypePurchase {
			continue
		}
		if PositionKey(tx.CompanyName, tx.Symbol) != key {
			continue
		}
		weighted += tx.ExchangeRate * tx.Shares
		shares += tx.Shares
	}
	if shares == 0 {
		return 1
	}
	return weighted / shares
}

// Evaluate prices one position against a live quote. Returns nil when no
// quote is available; callers valuing a whole portfolio should fall back to
// the position's cost basis instead (see EvaluateAll).
func (v *ValuationProcessor) Evaluate(pos models.Position, quote *models.Quote, liveEurPerUsd, weightedPurchaseRate float64) *models.PositionValuation {
	if quote == nil {
		return nil
	}
	currentNative := pos.Shares * quote.Price
	currentEUR := v.ToEUR(currentNative, pos.Currency, liveEurPerUsd, weightedPurchaseRate)
	pnl := currentEUR - pos.TotalCost
	pnlPercent := 0.0
	if pos.TotalCost > 0 {
		pnlPercent = pnl / pos.TotalCost * 100
	}
	return &models.PositionValuation{
		Key:             pos.Key,
		CompanyName:     pos.CompanyName,
		Symbol:          pos.Symbol,
		Shares:          pos.Shares,
		CostBasisEUR:    pos.TotalCost,
		CurrentValueEUR: currentEUR,
		PnLEUR:          pnl,
		PnLPercent:      pnlPercent,
		HasQuote:        true,
		Source:          quote.Source,
	}
}

// EvaluateAll values every active position and aggregates the portfolio.
// A position with no quote is carried at its cost basis (break-even) so a
// momentarily missing quote does not understate the total; its valuation
// row reports HasQuote=false with zero P&L.
func (v *ValuationProcessor) EvaluateAll(
	positions map[string]models.Position,
	transactions []models.Transaction,
	quotes map[string]models.Quote,
	liveEurPerUsd float64,
) ([]models.PositionValuation, models.PortfolioSummary) {
	valuations := make([]models.PositionValuation, 0, len(positions))
	var summary models.PortfolioSummary

	for key, pos := range positions {
		rate := v.WeightedPurchaseRate(key, transactions)
		var val *models.PositionValuation
		if quote, ok := quotes[key]; ok {
			val = v.Evaluate(pos, &quote, liveEurPerUsd, rate)
		}
		if val == nil {
			val = &models.PositionValuation{
				Key:             pos.Key,
				CompanyName:     pos.CompanyName,
				Symbol:          pos.Symbol,
				Shares:          pos.Shares,
				CostBasisEUR:    pos.TotalCost,
				CurrentValueEUR: pos.TotalCost,
			}
			summary.MissingQuotes++
		}
		valuations = append(valuations, *val)

		summary.TotalValueEUR += val.CurrentValueEUR
		summary.TotalCostEUR += val.CostBasisEUR
		summary.PositionCount++
	}

	sort.Slice(valuations, func(i, j int) bool { return valuations[i].Key < valuations[j].Key })

	summary.TotalPnLEUR = summary.TotalValueEUR - summary.TotalCostEUR
	if summary.TotalCostEUR > 0 {
		summary.TotalPnLPercent = summary.TotalPnLEUR / summary.TotalCostEUR * 100
	}
	return valuations, summary
}
