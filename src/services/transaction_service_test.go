package services

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/micartera/backend/src/models"
)

func validTx() models.Transaction {
	return models.Transaction{
		UserID:       1,
		TxType:       models.TxTypePurchase,
		CompanyName:  "Iberdrola",
		Shares:       10,
		Price:        11.5,
		Currency:     "EUR",
		ExchangeRate: 1,
		Commission:   2,
		Date:         "2024-03-01",
	}
}

func TestValidateTransaction_Valid(t *testing.T) {
	require.NoError(t, ValidateTransaction(validTx()))
}

func TestValidateTransaction_Rejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*models.Transaction)
	}{
		{"bad type", func(tx *models.Transaction) { tx.TxType = "transfer" }},
		{"empty company", func(tx *models.Transaction) { tx.CompanyName = "" }},
		{"zero shares", func(tx *models.Transaction) { tx.Shares = 0 }},
		{"negative shares", func(tx *models.Transaction) { tx.Shares = -5 }},
		{"NaN shares", func(tx *models.Transaction) { tx.Shares = math.NaN() }},
		{"Inf price", func(tx *models.Transaction) { tx.Price = math.Inf(1) }},
		{"negative price", func(tx *models.Transaction) { tx.Price = -1 }},
		{"zero exchange rate", func(tx *models.Transaction) { tx.ExchangeRate = 0 }},
		{"negative commission", func(tx *models.Transaction) { tx.Commission = -0.5 }},
		{"empty currency", func(tx *models.Transaction) { tx.Currency = "" }},
		{"bad date", func(tx *models.Transaction) { tx.Date = "01/03/2024" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tx := validTx()
			tc.mutate(&tx)
			err := ValidateTransaction(tx)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestComputeTotalCost_ForeignCurrency(t *testing.T) {
	tx := validTx()
	tx.Currency = "USD"
	tx.Price = 100
	tx.Shares = 4
	tx.ExchangeRate = 0.9
	tx.Commission = 2

	// 4 * 100 * 0.9 + 2
	assert.InDelta(t, 362.0, ComputeTotalCost(tx), 1e-9)
}

func TestComputeTotalCost_EURForcesRateOne(t *testing.T) {
	tx := validTx()
	tx.ExchangeRate = 0.5 // bogus rate on an EUR transaction is ignored

	assert.InDelta(t, 10*11.5+2, ComputeTotalCost(tx), 1e-9)
}
