package cmd

import (
	"context"
	"sync"
	"time"

	log "github.com/golang/glog"
	"github.com/robfig/cron"
	"github.com/spf13/cobra"

	"github.com/jjenkins/cornerwise/internal/config"
	"github.com/jjenkins/cornerwise/internal/service"
)

const checkRunInterval = 5 * time.Minute

var cronCmd = &cobra.Command{
	Use:   "cron",
	Short: "Run the import and digest jobs on a schedule",
	Long: `Cron runs every due importer, recalculates metrics and then sends the
digest, on the schedule in CORNERWISE_CRON_CONFIG (five field cron syntax).`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signalContext()
		defer cancel()

		cfg := loadConfig()
		d, err := buildDeps(ctx, cfg)
		if err != nil {
			log.Fatalf("Failed to initialize: %v", err)
		}
		defer d.Close()

		sched, err := config.CronParser().Parse(cfg.CronConfig)
		if err != nil {
			log.Fatalf("Invalid cron config: %v", err)
		}

		job := &scheduledJob{ctx: ctx, deps: d, importer: d.importer(), digests: d.digests()}
		cr := cron.New()
		cr.Schedule(sched, cron.FuncJob(job.run))
		cr.Start()
		defer cr.Stop()
		log.Infof("Scheduled jobs with %q", cfg.CronConfig)

		// Blocks here while the cron process runs
		ticker := time.NewTicker(checkRunInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				job.wait()
				return
			case <-ticker.C:
				checkCron(cr)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(cronCmd)
}

func checkCron(cr *cron.Cron) {
	for _, entry := range cr.Entries() {
		log.Infof("Job run times: prev: %v, next: %v", entry.Prev, entry.Next)
	}
}

// scheduledJob runs import, metrics and digest in order, never overlapping
// with itself
type scheduledJob struct {
	ctx      context.Context
	deps     *deps
	importer *service.Importer
	digests  *service.DigestService

	mu sync.Mutex
}

func (j *scheduledJob) run() {
	if !j.mu.TryLock() {
		log.Warningf("Previous run still in progress, skipping")
		return
	}
	defer j.mu.Unlock()

	all, err := j.importer.RunAll(j.ctx, false)
	if err != nil {
		log.Errorf("Import interrupted: %v", err)
		return
	}
	for _, stats := range all {
		service.PrintSummary(stats)
	}
	reportMetrics(j.ctx, j.deps)

	if _, err := j.digests.RunScheduled(j.ctx); err != nil {
		log.Errorf("Digest failed: %v", err)
	}
}

// wait blocks until a running job finishes
func (j *scheduledJob) wait() {
	j.mu.Lock()
	defer j.mu.Unlock()
}
