package cmd

import (
	"time"

	log "github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/jjenkins/cornerwise/internal/service"
)

var digestSince time.Duration

var digestCmd = &cobra.Command{
	Use:   "digest",
	Short: "Email each subscriber a summary of nearby changes",
	Long: `Digest merges the updates selected by each user's subscriptions into
one message and queues it for delivery. Users with nothing new get no mail.

Without --since the digest covers everything since the last scheduled
digest, or the last day on the first run, and records the run.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signalContext()
		defer cancel()

		d, err := buildDeps(ctx, loadConfig())
		if err != nil {
			log.Fatalf("Failed to initialize: %v", err)
		}
		defer d.Close()

		digests := d.digests()
		var stats *service.DigestStats
		if digestSince > 0 {
			now := time.Now()
			stats, err = digests.Run(ctx, now.Add(-digestSince), &now)
		} else {
			stats, err = digests.RunScheduled(ctx)
		}
		if err != nil {
			log.Errorf("Digest failed: %v", err)
			return
		}
		log.Infof("Queued %d digests for %d recipients", stats.Sent, stats.Recipients)
	},
}

func init() {
	rootCmd.AddCommand(digestCmd)
	digestCmd.Flags().DurationVar(&digestSince, "since", 0, "Summarize this far back instead of since the last run (e.g. 48h)")
}
