package parsers

import (
	"io"

	"github.com/username/micartera/backend/src/models"
)

// Parser reads an uploaded spreadsheet into raw import rows. Parsers only
// deal with file structure; numeric parsing, pence normalization and
// totalCost computation happen in the import service.
type Parser interface {
	Parse(file io.Reader) ([]models.RawImportRow, error)
}
