package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/micartera/backend/src/models"
)

type stubFXService struct {
	eurPerUsd float64
	gbpToEur  float64
	gbpErr    error
}

func (s *stubFXService) EurPerUsd() (float64, bool) { return s.eurPerUsd, true }
func (s *stubFXService) GbpToEur() (float64, error) { return s.gbpToEur, s.gbpErr }

func newTestImportService(fx FXService) *importServiceImpl {
	return &importServiceImpl{
		transactions: NewTransactionService(),
		fx:           fx,
	}
}

func rawRow() models.RawImportRow {
	return models.RawImportRow{
		Date:         "2024-02-01",
		TxType:       models.TxTypePurchase,
		CompanyName:  "Iberdrola",
		Shares:       "10",
		Price:        "11,50",
		Currency:     "EUR",
		ExchangeRate: "",
		Commission:   "2",
	}
}

func TestRowToTransaction_EURRow(t *testing.T) {
	svc := newTestImportService(&stubFXService{})

	tx, pence, err := svc.rowToTransaction(rawRow(), 1, "batch-1")
	require.NoError(t, err)
	assert.False(t, pence)
	assert.Equal(t, 1.0, tx.ExchangeRate)
	assert.InDelta(t, 11.5, tx.Price, 1e-9)
	assert.InDelta(t, 10*11.5+2, tx.TotalCost, 1e-9)
	assert.Equal(t, "batch-1", tx.ImportBatchID)
}

func TestRowToTransaction_PenceRowDividesRateBy100(t *testing.T) {
	svc := newTestImportService(&stubFXService{})

	row := rawRow()
	row.Currency = "GBX"
	row.Price = "5000"
	row.ExchangeRate = "1,17" // GBP/EUR rate as brokers report it

	tx, pence, err := svc.rowToTransaction(row, 1, "batch-1")
	require.NoError(t, err)
	assert.True(t, pence)
	assert.Equal(t, models.CurrencyGBp, tx.Currency)
	assert.InDelta(t, 0.0117, tx.ExchangeRate, 1e-9)
	// 10 shares * 5000 pence * 0.0117 + 2 EUR commission
	assert.InDelta(t, 587.0, tx.TotalCost, 1e-6)
}

func TestRowToTransaction_PenceRowFetchesRateWhenMissing(t *testing.T) {
	svc := newTestImportService(&stubFXService{gbpToEur: 1.2})

	row := rawRow()
	row.Currency = "GBp"
	row.ExchangeRate = ""

	tx, pence, err := svc.rowToTransaction(row, 1, "batch-1")
	require.NoError(t, err)
	assert.True(t, pence)
	assert.InDelta(t, 0.012, tx.ExchangeRate, 1e-9)
}

func TestRowToTransaction_MissingRateRejected(t *testing.T) {
	svc := newTestImportService(&stubFXService{})

	row := rawRow()
	row.Currency = "USD"
	row.ExchangeRate = ""

	_, _, err := svc.rowToTransaction(row, 1, "batch-1")
	require.Error(t, err)
}

func TestRowToTransaction_BadNumbersRejected(t *testing.T) {
	svc := newTestImportService(&stubFXService{})

	row := rawRow()
	row.Shares = "diez"

	_, _, err := svc.rowToTransaction(row, 1, "batch-1")
	require.Error(t, err)
}
