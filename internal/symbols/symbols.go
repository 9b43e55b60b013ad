// Package symbols parses uploaded symbol lists. The upload is a CSV that
// must contain a "symbol" column, matching what the browser tool accepts.
package symbols

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/quantrail/barfetch/pkg/errors"
)

// Column is the required header name of the symbol column.
const Column = "symbol"

// ParseCSV reads a symbol-list CSV and returns the symbols in file
// order. The header match is case-insensitive and tolerates a UTF-8
// BOM; blank cells are skipped and duplicates are kept once.
func ParseCSV(r io.Reader) ([]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.New(errors.ErrCodeInvalidSymbolList, "symbol CSV is empty")
	}

	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidSymbolList, "failed to read symbol CSV header", err)
	}

	columnIndex := -1

	for i, name := range header {
		name = strings.TrimPrefix(name, "\ufeff")
		if strings.EqualFold(strings.TrimSpace(name), Column) {
			columnIndex = i

			break
		}
	}

	if columnIndex == -1 {
		return nil, errors.Newf(errors.ErrCodeInvalidSymbolList, "symbol CSV must contain column: %s", Column)
	}

	var result []string

	seen := make(map[string]bool)

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}

		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidSymbolList, "failed to read symbol CSV row", err)
		}

		if columnIndex >= len(record) {
			continue
		}

		symbol := strings.ToUpper(strings.TrimSpace(record[columnIndex]))
		if symbol == "" || seen[symbol] {
			continue
		}

		seen[symbol] = true

		result = append(result, symbol)
	}

	if len(result) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidSymbolList, "symbol CSV contains no symbols")
	}

	return result, nil
}
