package handlers

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/qogitools/fba-scanner/internal/database"
)

// WriteProductsCSV serialises evaluated products to CSV with the same
// columns the dashboard table shows.
func WriteProductsCSV(w io.Writer, products []database.EvaluatedRow) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write([]string{"EAN", "ASIN", "Name", "Qogita Price", "Amazon Price", "Fee", "Profit", "Profitable"}); err != nil {
		return err
	}
	for _, p := range products {
		record := []string{
			p.EAN,
			p.ASIN,
			p.Name,
			p.QogitaPrice,
			p.AmazonPrice,
			p.Fee,
			p.Profit,
			strconv.FormatBool(p.Profitable),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
