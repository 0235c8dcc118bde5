package main

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/rankwise/internal/model"
	"github.com/sells-group/rankwise/internal/report"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the monthly recommendation outcome report",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("report"); err != nil {
			return err
		}

		monthStr, _ := cmd.Flags().GetString("month")
		format, _ := cmd.Flags().GetString("format")
		outPath, _ := cmd.Flags().GetString("out")

		month := report.PriorMonth(time.Now())
		if monthStr != "" {
			m, err := report.ParseMonth(monthStr)
			if err != nil {
				return err
			}
			month = m
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		r, err := report.NewAggregator(st).Build(ctx, month)
		if err != nil {
			return err
		}

		var out io.Writer = os.Stdout
		if outPath != "" {
			f, err := os.Create(outPath)
			if err != nil {
				return eris.Wrapf(err, "report: create %s", outPath)
			}
			defer f.Close() //nolint:errcheck
			out = f
		} else if report.Format(format) == report.FormatXLSX {
			return eris.New("report: --out is required for xlsx")
		}

		return writeReport(out, report.Format(format), r)
	},
}

func writeReport(out io.Writer, format report.Format, r *model.MonthlyReport) error {
	switch format {
	case report.FormatTable:
		return report.WriteTable(out, r)
	case report.FormatCSV:
		return report.WriteCSV(out, r)
	case report.FormatXLSX:
		return report.WriteXLSX(out, r)
	case report.FormatJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(r), "report: encode json")
	default:
		return eris.Errorf("report: unknown format %q (table, csv, xlsx, json)", format)
	}
}

func init() {
	reportCmd.Flags().String("month", "", "month YYYY-MM (default the previous month)")
	reportCmd.Flags().String("format", string(report.FormatTable), "output format: table, csv, xlsx, json")
	reportCmd.Flags().String("out", "", "write to this file instead of stdout")
	rootCmd.AddCommand(reportCmd)
}
