package services

import (
	"testing"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/micartera/backend/src/logger"
	"github.com/username/micartera/backend/src/model"
	"github.com/username/micartera/backend/src/models"
	"github.com/username/micartera/backend/src/processors"
)

func init() {
	logger.InitLogger("error")
}

type stubTransactionService struct {
	txs []models.Transaction
}

func (s *stubTransactionService) Create(tx models.Transaction) (models.Transaction, error) {
	return tx, nil
}
func (s *stubTransactionService) Update(userID, id int64, tx models.Transaction) (models.Transaction, error) {
	return tx, nil
}
func (s *stubTransactionService) Delete(userID, id int64) error { return nil }
func (s *stubTransactionService) DeleteAll(userID int64) error  { return nil }
func (s *stubTransactionService) ListByUser(userID int64) ([]models.Transaction, error) {
	return s.txs, nil
}

type stubQuoteService struct {
	quotes map[string]models.Quote
}

func (s *stubQuoteService) GetQuotes(positions map[string]models.Position) map[string]models.Quote {
	return s.quotes
}
func (s *stubQuoteService) SearchSymbol(query string) ([]SymbolMatch, error) {
	return nil, nil
}

type recordingEmailService struct {
	sent []AlertNotification
}

func (r *recordingEmailService) SendPriceAlertEmail(toEmail, username string, alert AlertNotification) error {
	r.sent = append(r.sent, alert)
	return nil
}

func newTestAlertService(txs []models.Transaction, quotes map[string]models.Quote, email EmailService) *alertServiceImpl {
	return &alertServiceImpl{
		transactions:      &stubTransactionService{txs: txs},
		quotes:            &stubQuoteService{quotes: quotes},
		email:             email,
		positionProcessor: processors.NewPositionProcessor(),
		firedCache:        cache.New(time.Hour, time.Hour),
		sweepInterval:     time.Hour,
		userLookup: func(id int64) (*model.User, error) {
			return &model.User{ID: id, Username: "ana", Email: "ana@example.com"}, nil
		},
	}
}

func alertTx(id int64, txType, company string, shares, price, target, stopLoss float64) models.Transaction {
	return models.Transaction{
		ID:            id,
		UserID:        1,
		TxType:        txType,
		CompanyName:   company,
		Shares:        shares,
		Price:         price,
		Currency:      "EUR",
		ExchangeRate:  1,
		Date:          "2024-01-10",
		TargetPrice:   target,
		StopLossPrice: stopLoss,
	}
}

func TestCheckUserAlerts_TargetReached(t *testing.T) {
	txs := []models.Transaction{alertTx(1, models.TxTypePurchase, "Iberdrola", 10, 10, 12, 0)}
	quotes := map[string]models.Quote{"Iberdrola": {Price: 12.5, Currency: "EUR"}}
	email := &recordingEmailService{}
	svc := newTestAlertService(txs, quotes, email)

	fired, err := svc.CheckUserAlerts(1)
	require.NoError(t, err)
	require.Len(t, fired, 1)

	assert.Equal(t, "target", fired[0].Kind)
	assert.Equal(t, "Iberdrola", fired[0].CompanyName)
	assert.Equal(t, 12.0, fired[0].Threshold)
	assert.Equal(t, 12.5, fired[0].Price)
	assert.NotEmpty(t, fired[0].ID)
	assert.Len(t, email.sent, 1)
}

func TestCheckUserAlerts_StopLossCrossed(t *testing.T) {
	txs := []models.Transaction{alertTx(1, models.TxTypePurchase, "Iberdrola", 10, 10, 0, 8)}
	quotes := map[string]models.Quote{"Iberdrola": {Price: 7.9, Currency: "EUR"}}
	email := &recordingEmailService{}
	svc := newTestAlertService(txs, quotes, email)

	fired, err := svc.CheckUserAlerts(1)
	require.NoError(t, err)
	require.Len(t, fired, 1)
	assert.Equal(t, "stop_loss", fired[0].Kind)
}

func TestCheckUserAlerts_NoThresholdNoAlert(t *testing.T) {
	txs := []models.Transaction{alertTx(1, models.TxTypePurchase, "Iberdrola", 10, 10, 0, 0)}
	quotes := map[string]models.Quote{"Iberdrola": {Price: 100, Currency: "EUR"}}
	email := &recordingEmailService{}
	svc := newTestAlertService(txs, quotes, email)

	fired, err := svc.CheckUserAlerts(1)
	require.NoError(t, err)
	assert.Empty(t, fired)
	assert.Empty(t, email.sent)
}

func TestCheckUserAlerts_DedupeSuppressesRepeat(t *testing.T) {
	txs := []models.Transaction{alertTx(1, models.TxTypePurchase, "Iberdrola", 10, 10, 12, 0)}
	quotes := map[string]models.Quote{"Iberdrola": {Price: 13, Currency: "EUR"}}
	email := &recordingEmailService{}
	svc := newTestAlertService(txs, quotes, email)

	first, err := svc.CheckUserAlerts(1)
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := svc.CheckUserAlerts(1)
	require.NoError(t, err)
	assert.Empty(t, second, "same alert must not fire twice inside the dedupe window")
	assert.Len(t, email.sent, 1)
}

func TestCheckUserAlerts_LaterPurchaseSupersedesThreshold(t *testing.T) {
	txs := []models.Transaction{
		alertTx(1, models.TxTypePurchase, "Iberdrola", 10, 10, 15, 0),
		alertTx(2, models.TxTypePurchase, "Iberdrola", 10, 11, 12, 0),
	}
	quotes := map[string]models.Quote{"Iberdrola": {Price: 12.5, Currency: "EUR"}}
	email := &recordingEmailService{}
	svc := newTestAlertService(txs, quotes, email)

	fired, err := svc.CheckUserAlerts(1)
	require.NoError(t, err)
	require.Len(t, fired, 1)
	assert.Equal(t, 12.0, fired[0].Threshold)
}

func TestCheckUserAlerts_MissingQuoteSkipped(t *testing.T) {
	txs := []models.Transaction{alertTx(1, models.TxTypePurchase, "Iberdrola", 10, 10, 12, 8)}
	email := &recordingEmailService{}
	svc := newTestAlertService(txs, map[string]models.Quote{}, email)

	fired, err := svc.CheckUserAlerts(1)
	require.NoError(t, err)
	assert.Empty(t, fired)
}

func TestCheckUserAlerts_ClosedPositionIgnored(t *testing.T) {
	txs := []models.Transaction{
		alertTx(1, models.TxTypePurchase, "Iberdrola", 10, 10, 12, 0),
		alertTx(2, models.TxTypeSale, "Iberdrola", 10, 13, 0, 0),
	}
	quotes := map[string]models.Quote{"Iberdrola": {Price: 14, Currency: "EUR"}}
	email := &recordingEmailService{}
	svc := newTestAlertService(txs, quotes, email)

	fired, err := svc.CheckUserAlerts(1)
	require.NoError(t, err)
	assert.Empty(t, fired, "sold-out positions carry no live alerts")
}
