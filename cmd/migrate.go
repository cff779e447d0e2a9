package cmd

import (
	"context"

	log "github.com/golang/glog"
	"github.com/spf13/cobra"
)

type tableCreator interface {
	CreateTables(ctx context.Context) error
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the database schema",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signalContext()
		defer cancel()

		d, err := buildDeps(ctx, loadConfig())
		if err != nil {
			log.Fatalf("Failed to initialize: %v", err)
		}
		defer d.Close()

		tc, ok := d.persister.(tableCreator)
		if !ok {
			log.Infof("Persister %s keeps no schema", d.cfg.PersisterTypeName)
			return
		}
		if err := tc.CreateTables(ctx); err != nil {
			log.Errorf("Failed to create tables: %v", err)
			return
		}
		log.Infof("Schema is up to date")
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
