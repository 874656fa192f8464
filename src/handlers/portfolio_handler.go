package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/username/micartera/backend/src/logger"
	"github.com/username/micartera/backend/src/models"
	"github.com/username/micartera/backend/src/services"
	"github.com/username/micartera/backend/src/utils"
)

type PortfolioHandler struct {
	portfolioService services.PortfolioService
}

func NewPortfolioHandler(service services.PortfolioService) *PortfolioHandler {
	return &PortfolioHandler{
		portfolioService: service,
	}
}

// HandleGetPositions returns the user's active positions keyed by position
// key. Closed positions never appear here; they live under /closed.
func (h *PortfolioHandler) HandleGetPositions(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	positions, err := h.portfolioService.GetActivePositions(userID)
	if err != nil {
		logger.L.Error("Failed to build positions", "userID", userID, "error", err)
		utils.SendJSONError(w, "Failed to retrieve positions", http.StatusInternalServerError)
		return
	}
	if positions == nil {
		positions = map[string]models.Position{}
	}

	writeJSONWithETag(w, r, userID, positions)
}

// HandleGetValuations returns per-position valuations plus the portfolio
// summary. Positions without a quote are carried at cost and flagged.
func (h *PortfolioHandler) HandleGetValuations(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	valuations, summary, err := h.portfolioService.GetValuations(userID)
	if err != nil {
		logger.L.Error("Failed to compute valuations", "userID", userID, "error", err)
		utils.SendJSONError(w, "Failed to compute valuations", http.StatusInternalServerError)
		return
	}
	if valuations == nil {
		valuations = []models.PositionValuation{}
	}

	writeJSONWithETag(w, r, userID, map[string]interface{}{
		"valuations": valuations,
		"summary":    summary,
	})
}

func (h *PortfolioHandler) HandleGetRealizedReport(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	report, err := h.portfolioService.GetRealizedReport(userID)
	if err != nil {
		logger.L.Error("Failed to compute realized report", "userID", userID, "error", err)
		utils.SendJSONError(w, "Failed to compute realized gains", http.StatusInternalServerError)
		return
	}
	if report.Sales == nil {
		report.Sales = []models.SaleRealization{}
	}

	writeJSONWithETag(w, r, userID, report)
}

// HandleGetClosedTransactions returns the transactions that belong to fully
// closed positions, the input set of the realized gains report.
func (h *PortfolioHandler) HandleGetClosedTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	closed, err := h.portfolioService.GetClosedTransactions(userID)
	if err != nil {
		logger.L.Error("Failed to collect closed transactions", "userID", userID, "error", err)
		utils.SendJSONError(w, "Failed to retrieve closed positions", http.StatusInternalServerError)
		return
	}
	if closed == nil {
		closed = []models.Transaction{}
	}

	writeJSONWithETag(w, r, userID, closed)
}

// writeJSONWithETag responds with the payload and an ETag; a matching
// If-None-Match short-circuits to 304 so the frontend can poll cheaply.
func writeJSONWithETag(w http.ResponseWriter, r *http.Request, userID int64, payload interface{}) {
	w.Header().Set("Cache-Control", "no-cache, private")

	currentETag, etagErr := utils.GenerateETag(payload)
	if etagErr == nil && currentETag != "" {
		quotedETag := fmt.Sprintf("%q", currentETag)
		w.Header().Set("ETag", quotedETag)
		for _, clientETag := range strings.Split(r.Header.Get("If-None-Match"), ",") {
			if strings.TrimSpace(clientETag) == quotedETag {
				w.WriteHeader(http.StatusNotModified)
				return
			}
		}
	} else {
		logger.L.Warn("Proceeding without ETag", "userID", userID, "error", etagErr)
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.L.Error("Error encoding JSON response", "userID", userID, "error", err)
	}
}
