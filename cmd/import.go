package cmd

import (
	"os"
	"time"

	log "github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/jjenkins/cornerwise/internal/service"
)

var (
	importFile     string
	importRegion   string
	importName     string
	importWhen     string
	importForce    bool
	importNoReport bool
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import proposal updates from the configured feeds",
	Long: `Import fetches the cases each configured importer reports as updated
since its last run, records every change as a changeset, and stores the
time of the run.

Examples:
  # Run every importer that is due
  cornerwise import

  # Run every importer, due or not
  cornerwise import --force

  # Run one importer for cases updated since a date
  cornerwise import --importer somerville --when 2017-06-01

  # Record the cases in a local file
  cornerwise import --file cases.json --region "Somerville, MA"`,
	Run: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().StringVarP(&importFile, "file", "f", "", "Import cases from a local JSON file instead of the feeds")
	importCmd.Flags().StringVarP(&importRegion, "region", "r", "", "Region the cases in --file belong to")
	importCmd.Flags().StringVarP(&importName, "importer", "i", "", "Run only the named importer")
	importCmd.Flags().StringVarP(&importWhen, "when", "w", "", "Ask for cases updated since this date (YYYY-MM-DD)")
	importCmd.Flags().BoolVar(&importForce, "force", false, "Run importers that are not due yet")
	importCmd.Flags().BoolVar(&importNoReport, "no-metrics", false, "Skip recalculating system metrics")
}

func runImport(cmd *cobra.Command, args []string) {
	ctx, cancel := signalContext()
	defer cancel()

	d, err := buildDeps(ctx, loadConfig())
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer d.Close()

	importer := d.importer()
	var all []*service.ImportStats

	switch {
	case importFile != "":
		region, ok := d.regions.Lookup(importRegion)
		if !ok {
			log.Fatalf("Unknown region %q; known regions: %v", importRegion, d.regions.Names())
		}
		log.Infof("Importing cases from %s", importFile)
		stats, err := importer.ImportFile(ctx, importFile, region)
		if err != nil {
			log.Fatalf("Import failed: %v", err)
		}
		all = append(all, stats)

	case importName != "":
		imp, ok := importer.Lookup(importName)
		if !ok {
			log.Fatalf("Unknown importer %q", importName)
		}
		_, when, err := importer.Due(ctx, imp)
		if err != nil {
			log.Fatalf("Failed to check importer: %v", err)
		}
		if importWhen != "" {
			t, err := time.Parse("2006-01-02", importWhen)
			if err != nil {
				log.Fatalf("Invalid date format: %v", err)
			}
			when = &t
		}
		stats, err := importer.Run(ctx, imp, when)
		if err != nil {
			if ctx.Err() != nil {
				log.Infof("Import cancelled")
				os.Exit(1)
			}
			log.Fatalf("Import failed: %v", err)
		}
		all = append(all, stats)

	default:
		all, err = importer.RunAll(ctx, importForce)
		if err != nil {
			log.Infof("Import cancelled")
			os.Exit(1)
		}
	}

	failed := 0
	for _, stats := range all {
		service.PrintSummary(stats)
		failed += stats.Failed
	}

	if !importNoReport {
		reportMetrics(ctx, d)
	}

	// Exit with error code if there were failures
	if failed > 0 {
		log.Flush()
		os.Exit(1)
	}
}
