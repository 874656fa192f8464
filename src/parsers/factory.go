package parsers

import (
	"fmt"

	"github.com/username/micartera/backend/src/parsers/sheets"
)

func GetParser(source string) (Parser, error) {
	switch source {
	case "", "csv", "sheets":
		return sheets.NewParser(), nil
	default:
		return nil, fmt.Errorf("no parser available for source: %s", source)
	}
}
