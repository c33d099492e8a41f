package rides

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Rides"

// ExportFilename names the report for the given page, e.g.
// rides_report_2026-03-01_page_2.csv.
func ExportFilename(now time.Time, page int, ext string) string {
	return fmt.Sprintf("rides_report_%s_page_%d.%s", now.Format("2006-01-02"), page, strings.TrimPrefix(ext, "."))
}

// WriteCSV writes rows as a spreadsheet-friendly CSV: UTF-8 BOM, CRLF line
// endings, every cell quoted, embedded quotes doubled and line breaks folded
// into spaces.
func WriteCSV(w io.Writer, rows []Ride) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString("\ufeff"); err != nil {
		return err
	}

	header := make([]string, len(Columns))
	for i, col := range Columns {
		header[i] = col.Label
	}
	writeCSVLine(bw, header)

	for i := range rows {
		cells := make([]string, len(Columns))
		for j, col := range Columns {
			cells[j] = rows[i].Get(col.Key)
		}
		writeCSVLine(bw, cells)
	}
	return bw.Flush()
}

func writeCSVLine(w *bufio.Writer, cells []string) {
	for i, cell := range cells {
		if i > 0 {
			w.WriteByte(',')
		}
		w.WriteString(csvCell(cell))
	}
	w.WriteString("\r\n")
}

func csvCell(value string) string {
	value = strings.ReplaceAll(value, "\r\n", " ")
	value = strings.NewReplacer("\r", " ", "\n", " ").Replace(value)
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

// WriteXLSX writes rows to a single "Rides" sheet with a bold header row.
// Numeric prices are stored as numbers so spreadsheet sums work.
func WriteXLSX(w io.Writer, rows []Ride) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}

	for i, col := range Columns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheetName, cell, col.Label); err != nil {
			return err
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	last, _ := excelize.CoordinatesToCellName(len(Columns), 1)
	if err := f.SetCellStyle(sheetName, "A1", last, bold); err != nil {
		return err
	}

	for r := range rows {
		for c, col := range Columns {
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return err
			}
			value := rows[r].Get(col.Key)
			var setErr error
			if col.Key == KeyPrice {
				if n, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
					setErr = f.SetCellFloat(sheetName, cell, n, -1, 64)
				} else {
					setErr = f.SetCellStr(sheetName, cell, value)
				}
			} else {
				setErr = f.SetCellStr(sheetName, cell, value)
			}
			if setErr != nil {
				return setErr
			}
		}
	}

	if err := f.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return err
	}

	_, err = f.WriteTo(w)
	return err
}
