package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/acceslibre/erpsync/internal/commune"
	"github.com/acceslibre/erpsync/internal/dataset"
	"github.com/acceslibre/erpsync/internal/erp"
	"github.com/acceslibre/erpsync/internal/importer"
	"github.com/acceslibre/erpsync/internal/mapper"
	"github.com/acceslibre/erpsync/internal/metrics"
	"github.com/acceslibre/erpsync/internal/notify"
	"github.com/acceslibre/erpsync/internal/validate"
)

// errorsDirFromConfig is the --errors-file value when the flag has no
// directory.
const errorsDirFromConfig = "-"

var importCmd = &cobra.Command{
	Use:   "import <dataset>",
	Short: "Import a dataset into the directory",
	Long: "Fetches a registered dataset, maps each row, geocodes and validates it, and creates or " +
		"updates the matching establishment. Per-row failures are reported and do not fail the command.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		flags := cmd.Flags()
		verbose, _ := flags.GetBool("verbose")
		force, _ := flags.GetBool("force-update")
		enrich, _ := flags.GetBool("enrich-only")
		validateOnly, _ := flags.GetBool("validate-only")
		errorsDir, _ := flags.GetString("errors-file")
		sendNotify, _ := flags.GetBool("notify")
		metricsFile, _ := flags.GetString("metrics-file")

		reg, err := loadRegistry()
		if err != nil {
			return err
		}
		def, err := reg.Get(args[0])
		if err != nil {
			return err
		}
		def = applyOverrides(cmd, def)
		if err := def.Validate(); err != nil {
			return err
		}
		mp, err := mapper.Get(def.Mapper)
		if err != nil {
			return err
		}
		src, err := newLocator().Source(def.Fetch)
		if err != nil {
			return eris.Wrap(err, "import: source")
		}

		pool, err := openPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		m := metrics.New()
		geo, release, err := newGeocoder(ctx, pool, m)
		if err != nil {
			return err
		}
		defer release()

		ledger, err := openLedger(ctx, pool)
		if err != nil {
			return err
		}
		defer ledger.Close() //nolint:errcheck

		v := validate.New(geo, commune.NewResolver(commune.NewPostgresStore(pool)),
			validate.WithAttempts(cfg.Geocode.Attempts),
			validate.WithBackoff(time.Second),
			validate.WithDuplicateRadius(cfg.Dedup.ValidatorRadius),
		)
		im := importer.New(erp.NewPostgresRepository(pool), v,
			importer.WithMetrics(m),
			importer.WithLedger(ledger),
		)

		opts := importer.Options{
			Dataset: def.ID,
			Mapper:  mp,
			Defaults: mapper.Defaults{
				Activite:       def.Activite,
				Source:         def.Source,
				Today:          time.Now(),
				EnrichOnly:     enrich,
				TakeoverRadius: cfg.Dedup.TakeoverRadius,
			},
			ForceUpdate:  force,
			ValidateOnly: validateOnly,
		}
		if verbose {
			opts.Progress = os.Stdout
		}

		report, runErr := im.Run(ctx, src, opts)
		if report == nil {
			return runErr
		}
		printReport(os.Stdout, report, verbose)

		if errorsDir != "" {
			if errorsDir == errorsDirFromConfig {
				errorsDir = cfg.Import.ErrorsDir
			}
			path, err := report.WriteErrorsFile(errorsDir, time.Now())
			if err != nil {
				zap.L().Error("import: write errors file", zap.Error(err))
			} else if path != "" {
				fmt.Fprintf(os.Stdout, "Erreurs enregistrées dans %s\n", path)
			}
		}

		if sendNotify {
			var n notify.Sender = notify.New(cfg.Notify)
			attachments := []notify.Attachment{notify.ErrorsAttachment(report.ErrorLines())}
			// Delivery failures are logged by the notifier.
			_ = n.Send(ctx, report.Summary(false), attachments, "import", def.ID)
		}

		if metricsFile == "" {
			metricsFile = cfg.Import.MetricsFile
		}
		if err := m.WriteTextfile(metricsFile); err != nil {
			zap.L().Error("import: write metrics", zap.Error(err))
		}

		return runErr
	},
}

// applyOverrides applies the command line overrides to def.
func applyOverrides(cmd *cobra.Command, def dataset.Definition) dataset.Definition {
	flags := cmd.Flags()
	if v, _ := flags.GetString("file"); v != "" {
		def.Fetch.Location = v
	}
	if v, _ := flags.GetString("mapper"); v != "" {
		def.Mapper = v
	}
	if v, _ := flags.GetString("activity"); v != "" {
		def.Activite = v
	}
	if v, _ := flags.GetString("source"); v != "" {
		def.Source = v
	}
	return def
}

func printReport(w io.Writer, report *importer.Report, verbose bool) {
	fmt.Fprintln(w, report.Summary(verbose))
	if verbose {
		fmt.Fprintln(w)
		fmt.Fprintln(w, report.DetailedReport())
	}
}

func init() {
	f := importCmd.Flags()
	f.BoolP("verbose", "v", false, "print progress and the detailed report")
	f.Bool("force-update", false, "update the matching establishment when a row is a duplicate")
	f.Bool("enrich-only", false, "only fill accessibility fields that are still empty")
	f.Bool("validate-only", false, "map and validate rows without writing")
	f.String("file", "", "dataset location (URL or path), overriding the registered one")
	f.String("mapper", "", "mapper id, overriding the registered one")
	f.String("activity", "", "activity assigned to rows without one")
	f.String("source", "", "source assigned to generic datasets")
	f.String("errors-file", "", "write rejected rows to errors_<date>.csv in this directory")
	f.Lookup("errors-file").NoOptDefVal = errorsDirFromConfig
	f.Bool("notify", false, "post the summary to the configured webhook")
	f.String("metrics-file", "", "write Prometheus metrics to this textfile")

	rootCmd.AddCommand(importCmd)
}
