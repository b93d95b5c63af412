package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/acceslibre/erpsync/internal/commune"
)

var communesCmd = &cobra.Command{
	Use:   "communes",
	Short: "Maintain the municipality reference",
}

var communesSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Refresh communes from the geo API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		pool, err := openPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		api := commune.NewGeoAPI(cfg.Geo.APIURL, &http.Client{Timeout: time.Minute})
		n, err := commune.Sync(ctx, api, commune.NewPostgresStore(pool))
		if err != nil {
			return eris.Wrap(err, "communes sync")
		}
		fmt.Fprintf(os.Stdout, "%d communes synchronisées\n", n)
		return nil
	},
}

var communesContoursCmd = &cobra.Command{
	Use:   "contours",
	Short: "Import commune contours",
	Long: "Fills missing commune contours from the geo API, or loads every contour of an " +
		"IGN ADMIN EXPRESS shapefile with --shapefile.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		shapefile, _ := cmd.Flags().GetString("shapefile")

		pool, err := openPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()
		st := commune.NewPostgresStore(pool)

		if shapefile != "" {
			n, err := commune.LoadShapefile(ctx, st, shapefile)
			if err != nil {
				return eris.Wrap(err, "communes contours")
			}
			fmt.Fprintf(os.Stdout, "%d contours importés\n", n)
			return nil
		}

		job := &commune.ContourJob{
			Store:       st,
			Source:      commune.NewGeoAPI(cfg.Geo.APIURL, &http.Client{Timeout: 30 * time.Second}),
			Concurrency: cfg.Geo.Concurrency,
			Rate:        cfg.Geo.RatePerSec,
		}
		report, err := job.Run(ctx)
		if report != nil {
			report.Print(os.Stdout)
		}
		return eris.Wrap(err, "communes contours")
	},
}

func init() {
	communesContoursCmd.Flags().String("shapefile", "", "path to a commune shapefile (.shp)")

	communesCmd.AddCommand(communesSyncCmd)
	communesCmd.AddCommand(communesContoursCmd)
	rootCmd.AddCommand(communesCmd)
}
