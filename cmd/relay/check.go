package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/netocloud/slack-relay/internal/data"
)

func newCheckWarehouseCmd() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "check-warehouse",
		Short: "Connect to the warehouse, inspect the table and write a test row",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			loc, err := cfg.Location()
			if err != nil {
				return err
			}

			wh, err := data.NewWarehouse(cfg.ToWarehouseConfig(), logger)
			if err != nil {
				return err
			}
			defer wh.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "driver: %s\ntable:  %s\n", wh.Driver(), wh.Table())

			report, err := data.DiagnoseWarehouse(ctx, wh, loc, time.Now())
			if len(report.Columns) > 0 {
				fmt.Fprintf(out, "columns: %s\n", strings.Join(report.Columns, ", "))
			}
			fmt.Fprintf(out, "test row inserted: %t\ntest row read back: %t\n", report.TestInserted, report.TestReadBack)
			if err != nil {
				return fmt.Errorf("warehouse check failed: %w", err)
			}
			if !report.TestReadBack {
				return fmt.Errorf("warehouse check failed: test row not found after insert")
			}
			fmt.Fprintln(out, "warehouse OK")
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "overall timeout")
	return cmd
}
