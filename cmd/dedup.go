package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/acceslibre/erpsync/internal/dedup"
	"github.com/acceslibre/erpsync/internal/erp"
	"github.com/acceslibre/erpsync/internal/metrics"
)

var dedupCmd = &cobra.Command{
	Use:   "dedup",
	Short: "Find and remove duplicate establishments",
	Long: "Groups published establishments sharing a name near each other, keeps one main record " +
		"per group and removes the others. Dry run unless --write is given.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		write, _ := cmd.Flags().GetBool("write")
		manualPath, _ := cmd.Flags().GetString("manual-report")
		metricsFile, _ := cmd.Flags().GetString("metrics-file")

		pool, err := openPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		r := dedup.NewResolver(erp.NewPostgresRepository(pool),
			dedup.WithRadii(cfg.Dedup.NearRadius, cfg.Dedup.WideRadius))
		report, err := r.Sweep(ctx, write)
		if err != nil {
			return eris.Wrap(err, "dedup")
		}

		fmt.Fprintln(os.Stdout, report.Summary())
		if err := writeManualReport(manualPath, os.Stdout, report.Manual); err != nil {
			return err
		}

		m := metrics.New()
		m.SetSweep(report.ToDelete, report.Unhandled, len(report.Manual))
		if metricsFile == "" {
			metricsFile = cfg.Import.MetricsFile
		}
		if err := m.WriteTextfile(metricsFile); err != nil {
			zap.L().Error("dedup: write metrics", zap.Error(err))
		}
		return nil
	},
}

// writeManualReport writes the manual review lines to path, or to fallback
// when path is empty.
func writeManualReport(path string, fallback io.Writer, lines []string) error {
	if len(lines) == 0 {
		return nil
	}
	body := strings.Join(lines, "\n") + "\n"
	if path == "" {
		_, err := io.WriteString(fallback, body)
		return err
	}
	return eris.Wrapf(os.WriteFile(path, []byte(body), 0o644), "dedup: write %s", path)
}

func init() {
	dedupCmd.Flags().Bool("write", false, "delete duplicates and save merged records")
	dedupCmd.Flags().String("manual-report", "", "write establishments needing manual review to this file")
	dedupCmd.Flags().String("metrics-file", "", "write Prometheus metrics to this textfile")
	rootCmd.AddCommand(dedupCmd)
}
