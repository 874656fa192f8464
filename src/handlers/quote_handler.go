package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/username/micartera/backend/src/logger"
	"github.com/username/micartera/backend/src/services"
	"github.com/username/micartera/backend/src/utils"
)

type QuoteHandler struct {
	quoteService services.QuoteService
	alertService services.AlertService
}

func NewQuoteHandler(quoteService services.QuoteService, alertService services.AlertService) *QuoteHandler {
	return &QuoteHandler{
		quoteService: quoteService,
		alertService: alertService,
	}
}

// HandleSearchSymbol resolves free-text company names or partial tickers to
// ticker candidates, used by the transaction entry form.
func (h *QuoteHandler) HandleSearchSymbol(w http.ResponseWriter, r *http.Request) {
	if _, ok := GetUserIDFromContext(r.Context()); !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		utils.SendJSONError(w, "Query parameter 'q' is required", http.StatusBadRequest)
		return
	}

	matches, err := h.quoteService.SearchSymbol(query)
	if err != nil {
		logger.L.Warn("Symbol search failed", "query", query, "error", err)
		utils.SendJSONError(w, "Symbol search failed", http.StatusBadGateway)
		return
	}
	if matches == nil {
		matches = []services.SymbolMatch{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(matches)
}

// HandleCheckAlerts runs an on-demand alert evaluation for the current user
// and returns whatever fired, alongside the periodic background sweep.
func (h *QuoteHandler) HandleCheckAlerts(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	fired, err := h.alertService.CheckUserAlerts(userID)
	if err != nil {
		logger.L.Error("Alert check failed", "userID", userID, "error", err)
		utils.SendJSONError(w, "Alert check failed", http.StatusInternalServerError)
		return
	}
	if fired == nil {
		fired = []services.AlertNotification{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"alerts": fired,
	})
}
