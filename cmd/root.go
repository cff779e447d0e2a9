package cmd

import (
	"flag"
	"os"

	log "github.com/golang/glog"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "cornerwise",
	Short: "Track, summarize and announce planning and zoning changes",
	Long: `Cornerwise imports development proposals from municipal feeds, records
what changed on every import, and tells subscribers what happened near them.`,
}

func init() {
	rootCmd.PersistentFlags().AddGoFlagSet(flag.CommandLine)
}

// Execute runs the root command
func Execute() {
	// Log to stderr unless the caller asked otherwise
	if f := flag.Lookup("logtostderr"); f != nil && f.Value.String() == "false" {
		_ = flag.Set("logtostderr", "true") // nolint: gosec
	}
	defer log.Flush()

	if err := rootCmd.Execute(); err != nil {
		log.Flush()
		os.Exit(1)
	}
}
