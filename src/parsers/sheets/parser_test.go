package sheets

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/micartera/backend/src/logger"
	"github.com/username/micartera/backend/src/models"
)

func init() {
	logger.InitLogger("error")
}

func TestParse_HeaderMappedColumns(t *testing.T) {
	csvData := `Symbol,Company,Date,Type,Shares,Price,Currency,Exchange Rate,Commission
VOD.L,Vodafone,2024-03-01,buy,100,72.50,GBP,1.17,4.95
AAPL,Apple,02-04-2024,sell,5,180.10,USD,0.93,1.00
`
	rows, err := NewParser().Parse(strings.NewReader(csvData))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, models.RawImportRow{
		Date: "2024-03-01", TxType: models.TxTypePurchase, CompanyName: "Vodafone",
		Symbol: "VOD.L", Shares: "100", Price: "72.50", Currency: "GBP",
		ExchangeRate: "1.17", Commission: "4.95",
	}, rows[0])

	// Non-ISO date and sale alias are normalized.
	assert.Equal(t, "2024-04-02", rows[1].Date)
	assert.Equal(t, models.TxTypeSale, rows[1].TxType)
}

func TestParse_CurrencyNormalization(t *testing.T) {
	csvData := `Date,Type,Company,Shares,Price,Currency
2024-01-02,buy,Shell,10,2800,GBp
2024-01-03,buy,Shell,10,2800,GBX
2024-01-04,buy,Acme,10,100,eur
`
	rows, err := NewParser().Parse(strings.NewReader(csvData))
	require.NoError(t, err)
	require.Len(t, rows, 3)

	// Pence stays pence; uppercasing "GBp" would silently turn it into pounds.
	assert.Equal(t, models.CurrencyGBp, rows[0].Currency)
	assert.Equal(t, models.CurrencyGBp, rows[1].Currency)
	assert.Equal(t, "EUR", rows[2].Currency)
}

func TestParse_SkipsRowsWithBadDates(t *testing.T) {
	csvData := `Date,Type,Company,Shares,Price,Currency
not-a-date,buy,Acme,10,100,EUR
2024-01-02,buy,Acme,10,100,EUR
`
	rows, err := NewParser().Parse(strings.NewReader(csvData))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "2024-01-02", rows[0].Date)
}

func TestParse_MissingRequiredColumn(t *testing.T) {
	csvData := `Date,Type,Company,Shares,Price
2024-01-02,buy,Acme,10,100
`
	_, err := NewParser().Parse(strings.NewReader(csvData))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "currency")
}
