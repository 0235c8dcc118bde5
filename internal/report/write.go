package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/rankwise/internal/model"
)

// Format selects a report rendering.
type Format string

const (
	FormatTable Format = "table"
	FormatCSV   Format = "csv"
	FormatXLSX  Format = "xlsx"
	FormatJSON  Format = "json"
)

// OverallLabel is the tenant column value of the totals row.
const OverallLabel = "ALL"

var header = []string{"MONTH", "TENANT", "TOTAL", "ACCEPTED", "EVALUATED", "SUCCESSES", "SUCCESS_RATE"}

func rows(r *model.MonthlyReport) [][]string {
	out := make([][]string, 0, len(r.Tenants)+1)
	add := func(label string, s model.TenantMonthlyStats) {
		out = append(out, []string{
			r.Month,
			label,
			strconv.Itoa(s.Total),
			strconv.Itoa(s.Accepted),
			strconv.Itoa(s.Evaluated),
			strconv.Itoa(s.Successes),
			strconv.Itoa(s.SuccessRate),
		})
	}
	for _, t := range r.Tenants {
		add(t.TenantID, t)
	}
	add(OverallLabel, r.Overall)
	return out
}

// WriteTable renders r as an aligned text table.
func WriteTable(out io.Writer, r *model.MonthlyReport) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, line := range append([][]string{header}, rows(r)...) {
		for i, cell := range line {
			if i > 0 {
				_, _ = fmt.Fprint(w, "\t")
			}
			_, _ = fmt.Fprint(w, cell)
		}
		_, _ = fmt.Fprintln(w)
	}
	return eris.Wrap(w.Flush(), "report: flush table")
}

// WriteCSV renders r as CSV with a header row.
func WriteCSV(out io.Writer, r *model.MonthlyReport) error {
	w := csv.NewWriter(out)
	if err := w.Write(header); err != nil {
		return eris.Wrap(err, "report: write csv header")
	}
	if err := w.WriteAll(rows(r)); err != nil {
		return eris.Wrap(err, "report: write csv rows")
	}
	return nil
}

// WriteXLSX renders r as a single-sheet workbook named after the month.
func WriteXLSX(out io.Writer, r *model.MonthlyReport) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(r.Month)
	if err != nil {
		return eris.Wrap(err, "report: add sheet")
	}

	row := sheet.AddRow()
	for _, h := range header {
		row.AddCell().SetString(h)
	}
	for _, line := range rows(r) {
		row := sheet.AddRow()
		row.AddCell().SetString(line[0])
		row.AddCell().SetString(line[1])
		for _, v := range line[2:] {
			n, _ := strconv.Atoi(v)
			row.AddCell().SetInt(n)
		}
	}

	if err := f.Write(out); err != nil {
		return eris.Wrap(err, "report: write xlsx")
	}
	return nil
}
