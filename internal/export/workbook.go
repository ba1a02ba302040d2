// Package export renders readings as spreadsheet workbooks for the dashboard
// download link.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/tbourn/bodytemp-bot/internal/domain"
)

// SheetName is the single sheet written by WriteReadings.
const SheetName = "Sheet1"

// ContentType is the media type of the produced workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var header = []any{"datetime", "temperature"}

// WriteReadings writes rows to w as an xlsx workbook with a header row.
// The anonymized name is stored in the document properties, never the
// display name.
func WriteReadings(w io.Writer, anon string, rows []domain.Temperature) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetDocProps(&excelize.DocProperties{
		Title:   "Body temperature readings",
		Subject: anon,
	}); err != nil {
		return fmt.Errorf("doc props: %w", err)
	}

	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("header: %w", err)
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{r.Datetime, r.Temperature}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("row %d: %w", i+2, err)
		}
	}

	if err := f.SetColWidth(SheetName, "A", "A", 22); err != nil {
		return err
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
