package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/rankwise/internal/engine"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Grade accounts and keywords and write recommendations for one date",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("run"); err != nil {
			return err
		}

		req, err := runRequestFromFlags(cmd)
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		summary, err := buildOrchestrator(st).Run(ctx, req)
		if summary != nil {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if encErr := enc.Encode(summary); encErr != nil {
				return eris.Wrap(encErr, "run: encode summary")
			}
		}
		return err
	},
}

func runRequestFromFlags(cmd *cobra.Command) (engine.RunRequest, error) {
	dateStr, _ := cmd.Flags().GetString("date")
	tenants, _ := cmd.Flags().GetStringSlice("tenant")
	concurrency, _ := cmd.Flags().GetInt("concurrency")
	forceMonthly, _ := cmd.Flags().GetBool("force-monthly")

	req := engine.RunRequest{
		TenantIDs:    tenants,
		Concurrency:  concurrency,
		ForceMonthly: forceMonthly,
	}
	if dateStr != "" {
		d, err := time.Parse(time.DateOnly, dateStr)
		if err != nil {
			return req, eris.Wrapf(err, "run: invalid --date %q (want YYYY-MM-DD)", dateStr)
		}
		req.Date = d
	}
	return req, nil
}

func init() {
	runCmd.Flags().String("date", "", "run date YYYY-MM-DD (default today, UTC)")
	runCmd.Flags().StringSlice("tenant", nil, "restrict the run to these tenant IDs")
	runCmd.Flags().Int("concurrency", 0, "tenants processed in parallel (default from config)")
	runCmd.Flags().Bool("force-monthly", false, "build the prior-month report regardless of date")
	rootCmd.AddCommand(runCmd)
}
