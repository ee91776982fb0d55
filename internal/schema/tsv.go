package schema

import (
	"encoding/csv"
	"fmt"
	"io"
)

// ReadTSV reads a tab-separated template. Rows may differ in length; widths
// are checked by ParseTable.
func ReadTSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.Comma = '\t'
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	matrix, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read template: %w", err)
	}
	return matrix, nil
}

// WriteTSV writes a matrix as tab-separated lines.
func WriteTSV(w io.Writer, matrix [][]string) error {
	writer := csv.NewWriter(w)
	writer.Comma = '\t'
	if err := writer.WriteAll(matrix); err != nil {
		return fmt.Errorf("failed to write template: %w", err)
	}
	return nil
}
