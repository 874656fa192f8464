package handlers

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"time"

	"github.com/username/micartera/backend/src/logger"
	"github.com/username/micartera/backend/src/security/validation"
	"github.com/username/micartera/backend/src/services"
	"github.com/username/micartera/backend/src/utils"
)

type ExportHandler struct {
	portfolioService services.PortfolioService
}

func NewExportHandler(service services.PortfolioService) *ExportHandler {
	return &ExportHandler{
		portfolioService: service,
	}
}

// HandleExportRealizedCSV downloads the realized gains report as a
// semicolon-separated CSV with comma decimals, the layout es-ES spreadsheet
// tools open correctly. Text cells are sanitized against formula injection.
func (h *ExportHandler) HandleExportRealizedCSV(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	report, err := h.portfolioService.GetRealizedReport(userID)
	if err != nil {
		logger.L.Error("Failed to compute realized report for export", "userID", userID, "error", err)
		utils.SendJSONError(w, "Failed to compute realized gains", http.StatusInternalServerError)
		return
	}

	filename := fmt.Sprintf("realized_gains_%s.csv", time.Now().Format("2006-01-02"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	writer := csv.NewWriter(w)
	writer.Comma = ';'

	header := []string{
		"sale_date", "company", "symbol", "shares", "currency",
		"proceeds_native", "proceeds_eur", "cost_basis_native", "cost_basis_eur",
		"avg_purchase_date", "gain_eur", "retention_eur", "net_gain_eur",
	}
	if err := writer.Write(header); err != nil {
		logger.L.Error("CSV export: failed to write header", "userID", userID, "error", err)
		return
	}

	for _, sale := range report.Sales {
		record := []string{
			sale.SaleDate,
			validation.SanitizeForFormulaInjection(sale.CompanyName),
			validation.SanitizeForFormulaInjection(sale.Symbol),
			utils.FormatDecimalComma(sale.Shares, 4),
			sale.Currency,
			utils.FormatDecimalComma(sale.ProceedsNative, 2),
			utils.FormatDecimalComma(sale.ProceedsEUR, 2),
			utils.FormatDecimalComma(sale.CostBasisNative, 2),
			utils.FormatDecimalComma(sale.CostBasisEUR, 2),
			sale.AvgPurchaseDate,
			utils.FormatDecimalComma(sale.GainEUR, 2),
			utils.FormatDecimalComma(sale.RetentionEUR, 2),
			utils.FormatDecimalComma(sale.NetGainEUR, 2),
		}
		if err := writer.Write(record); err != nil {
			logger.L.Error("CSV export: failed to write record", "userID", userID, "saleID", sale.SaleID, "error", err)
			return
		}
	}

	totals := []string{
		"TOTAL", "", "", "", "", "", "", "", "", "",
		utils.FormatDecimalComma(report.TotalGainEUR, 2),
		utils.FormatDecimalComma(report.TotalRetention, 2),
		utils.FormatDecimalComma(report.TotalNetGainEUR, 2),
	}
	if err := writer.Write(totals); err != nil {
		logger.L.Error("CSV export: failed to write totals row", "userID", userID, "error", err)
		return
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		logger.L.Error("CSV export: flush failed", "userID", userID, "error", err)
	}
}
