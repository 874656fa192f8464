package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/username/micartera/backend/src/logger"
	"github.com/username/micartera/backend/src/models"
	"github.com/username/micartera/backend/src/services"
	"github.com/username/micartera/backend/src/utils"
)

type TransactionHandler struct {
	transactionService services.TransactionService
}

func NewTransactionHandler(service services.TransactionService) *TransactionHandler {
	return &TransactionHandler{
		transactionService: service,
	}
}

func (h *TransactionHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	txs, err := h.transactionService.ListByUser(userID)
	if err != nil {
		logger.L.Error("Failed to list transactions", "userID", userID, "error", err)
		utils.SendJSONError(w, "Failed to retrieve transactions", http.StatusInternalServerError)
		return
	}
	if txs == nil {
		txs = []models.Transaction{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(txs)
}

func (h *TransactionHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var tx models.Transaction
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	tx.UserID = userID

	created, err := h.transactionService.Create(tx)
	if err != nil {
		h.writeServiceError(w, userID, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(created)
}

func (h *TransactionHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		utils.SendJSONError(w, "Invalid transaction id", http.StatusBadRequest)
		return
	}

	var tx models.Transaction
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	updated, err := h.transactionService.Update(userID, id, tx)
	if err != nil {
		h.writeServiceError(w, userID, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(updated)
}

func (h *TransactionHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		utils.SendJSONError(w, "Invalid transaction id", http.StatusBadRequest)
		return
	}

	if err := h.transactionService.Delete(userID, id); err != nil {
		h.writeServiceError(w, userID, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TransactionHandler) HandleDeleteAll(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	if err := h.transactionService.DeleteAll(userID); err != nil {
		logger.L.Error("Failed to delete all transactions", "userID", userID, "error", err)
		utils.SendJSONError(w, "Failed to delete transactions", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TransactionHandler) writeServiceError(w http.ResponseWriter, userID int64, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, services.ErrNotFound):
		utils.SendJSONError(w, "Transaction not found", http.StatusNotFound)
	case errors.Is(err, services.ErrNotOwner):
		utils.SendJSONError(w, "Transaction does not belong to user", http.StatusForbidden)
	default:
		logger.L.Error("Transaction operation failed", "userID", userID, "error", err)
		utils.SendJSONError(w, "An internal error occurred", http.StatusInternalServerError)
	}
}
