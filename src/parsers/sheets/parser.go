// Parser for the generic transaction spreadsheet format exported from
// Google Sheets / Excel. Column order is resolved from the header row, so
// users can keep extra columns in their sheet.
package sheets

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/username/micartera/backend/src/logger"
	"github.com/username/micartera/backend/src/models"
)

type SheetParser struct{}

func NewParser() *SheetParser {
	return &SheetParser{}
}

// Recognized header names, lowercased. Several aliases per column because
// exports differ between spreadsheet locales.
var columnAliases = map[string][]string{
	"date":          {"date", "fecha"},
	"type":          {"type", "operation", "tipo"},
	"company":       {"company", "name", "empresa"},
	"symbol":        {"symbol", "ticker"},
	"shares":        {"shares", "quantity", "acciones"},
	"price":         {"price", "precio"},
	"currency":      {"currency", "divisa", "moneda"},
	"exchange_rate": {"exchange rate", "exchange_rate", "rate", "cambio"},
	"commission":    {"commission", "fees", "comision", "comisión"},
}

var dateLayouts = []string{"2006-01-02", "02-01-2006", "02/01/2006"}

func (p *SheetParser) Parse(file io.Reader) ([]models.RawImportRow, error) {
	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	columns, err := resolveColumns(header)
	if err != nil {
		return nil, err
	}

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read all CSV records: %w", err)
	}

	var rows []models.RawImportRow
	for i, record := range records {
		get := func(name string) string {
			idx, ok := columns[name]
			if !ok || idx >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[idx])
		}

		date, ok := normalizeDate(get("date"))
		if !ok {
			logger.L.Warn("Skipping import row with unparseable date", "row", i+2, "date", get("date"))
			continue
		}

		rows = append(rows, models.RawImportRow{
			Date:         date,
			TxType:       normalizeTxType(get("type")),
			CompanyName:  get("company"),
			Symbol:       get("symbol"),
			Shares:       get("shares"),
			Price:        get("price"),
			Currency:     normalizeCurrency(get("currency")),
			ExchangeRate: get("exchange_rate"),
			Commission:   get("commission"),
		})
	}
	return rows, nil
}

func resolveColumns(header []string) (map[string]int, error) {
	columns := make(map[string]int)
	for i, cell := range header {
		cell = strings.ToLower(strings.TrimSpace(cell))
		for name, aliases := range columnAliases {
			for _, alias := range aliases {
				if cell == alias {
					columns[name] = i
				}
			}
		}
	}
	for _, required := range []string{"date", "type", "company", "shares", "price", "currency"} {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("spreadsheet is missing required column %q", required)
		}
	}
	return columns, nil
}

// normalizeDate converts the supported spreadsheet date formats to ISO.
func normalizeDate(s string) (string, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), true
		}
	}
	return "", false
}

// normalizeCurrency uppercases currency codes, except the pence cases:
// "GBp" must keep its casing (uppercasing it would turn pence into pounds)
// and "GBX" is its common alias.
func normalizeCurrency(s string) string {
	if s == models.CurrencyGBp {
		return s
	}
	up := strings.ToUpper(s)
	if up == "GBX" {
		return models.CurrencyGBp
	}
	return up
}

func normalizeTxType(s string) string {
	switch strings.ToLower(s) {
	case "buy", "purchase", "compra":
		return models.TxTypePurchase
	case "sell", "sale", "venta":
		return models.TxTypeSale
	default:
		return strings.ToLower(s)
	}
}
