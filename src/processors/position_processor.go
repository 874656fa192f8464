package processors

import (
	"sort"
	"strings"

	"github.com/username/micartera/backend/src/models"
)

// Epsilon is the tolerance used when deciding whether a position is fully
// closed. Folding sales subtracts average costs computed from floating-point
// division, so a fully liquidated position rarely lands on exactly zero.
const Epsilon = 1e-6

const keySeparator = "|||"

// PositionKey identifies one holding. Two transactions with the same company
// but different symbols are different positions (dual-listed securities);
// a transaction without a symbol is keyed by company alone.
func PositionKey(company, symbol string) string {
	if symbol == "" {
		return company
	}
	return company + keySeparator + symbol
}

// SplitPositionKey is the inverse of PositionKey.
func SplitPositionKey(key string) (company, symbol string) {
	if i := strings.Index(key, keySeparator); i >= 0 {
		return key[:i], key[i+len(keySeparator):]
	}
	return key, ""
}

// PositionProcessor folds the transaction log into live position state using
// running weighted-average cost accounting. It is pure: no I/O, no shared
// state, safe to call concurrently on distinct snapshots.
type PositionProcessor struct{}

func NewPositionProcessor() *PositionProcessor {
	return &PositionProcessor{}
}

// BuildPositions folds transactions into a map of positions keyed by
// PositionKey. The input order does not matter: transactions are sorted by
// (date, id) ascending before folding, because the running average depends
// on fold order. The result contains every key that ever appeared, closed
// positions included.
//
// No validation is performed here. Non-finite numeric fields propagate into
// the sums; callers validate at ingestion.
func (p *PositionProcessor) BuildPositions(transactions []models.Transaction) map[string]models.Position {
	sorted := make([]models.Transaction, len(transactions))
	copy(sorted, transactions)
	sortChronological(sorted)

	positions := make(map[string]models.Position)
	for _, tx := range sorted {
		key := PositionKey(tx.CompanyName, tx.Symbol)
		pos, ok := positions[key]
		if !ok {
			pos = models.Position{
				Key:         key,
				CompanyName: tx.CompanyName,
				Symbol:      tx.Symbol,
			}
		}
		pos.Currency = tx.Currency

		switch tx.TxType {
		case models.TxTypePurchase:
			pos.Shares += tx.Shares
			pos.TotalCost += tx.TotalCost
			pos.TotalOriginalCost += tx.Price*tx.Shares + nativeCommission(tx)
		case models.TxTypeSale:
			// Average costs must be taken before decrementing; guard the
			// exactly-closed case so a reopening sale does not poison the
			// running sums with NaN.
			avgCost := 0.0
			avgOriginalCost := 0.0
			if pos.Shares != 0 {
				avgCost = pos.TotalCost / pos.Shares
				avgOriginalCost = pos.TotalOriginalCost / pos.Shares
			}
			pos.Shares -= tx.Shares
			pos.TotalCost -= avgCost * tx.Shares
			pos.TotalOriginalCost -= avgOriginalCost * tx.Shares
		}
		positions[key] = pos
	}
	return positions
}

// ActivePositions returns the subset of BuildPositions output still holding
// shares. Closed positions (shares within Epsilon of zero, or negative) are
// filtered out.
func (p *PositionProcessor) ActivePositions(transactions []models.Transaction) map[string]models.Position {
	active := make(map[string]models.Position)
	for key, pos := range p.BuildPositions(transactions) {
		if pos.Shares > Epsilon {
			active[key] = pos
		}
	}
	return active
}

// ClosedTransactions returns every transaction whose position key has, at
// some point, returned to zero shares and currently holds none. "Touched
// zero at least once" is sufficient: if a key was closed and later reopened,
// its transactions only count as closed while the key is flat again.
func (p *PositionProcessor) ClosedTransactions(transactions []models.Transaction) []models.Transaction {
	positions := p.BuildPositions(transactions)
	var closed []models.Transaction
	for _, tx := range transactions {
		pos, ok := positions[PositionKey(tx.CompanyName, tx.Symbol)]
		if ok && pos.Shares <= Epsilon {
			closed = append(closed, tx)
		}
	}
	return closed
}

// nativeCommission converts the EUR-denominated commission into the
// transaction's native currency for the original-cost running sum.
func nativeCommission(tx models.Transaction) float64 {
	if tx.ExchangeRate == 0 {
		return tx.Commission
	}
	return tx.Commission / tx.ExchangeRate
}

func sortChronological(transactions []models.Transaction) {
	sort.SliceStable(transactions, func(i, j int) bool {
		if transactions[i].Date != transactions[j].Date {
			return transactions[i].Date < transactions[j].Date
		}
		return transactions[i].ID < transactions[j].ID
	})
}
