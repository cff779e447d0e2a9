package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jjenkins/cornerwise/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect configuration",
}

var configUsageCmd = &cobra.Command{
	Use:   "usage",
	Short: "List the environment variables Cornerwise reads",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := &config.Config{}
		cfg.OutputUsage()
	},
}

var configRegionsCmd = &cobra.Command{
	Use:   "regions",
	Short: "List the configured regions and importers",
	RunE: func(cmd *cobra.Command, args []string) error {
		regions, err := loadRegions(loadConfig())
		if err != nil {
			return err
		}
		for _, name := range regions.Names() {
			r := regions.Get(name)
			fmt.Printf("%s\t%s\n", r.Name, r.Timezone)
		}
		for _, imp := range regions.Importers() {
			fmt.Printf("importer %s\t%s\tevery %d day(s)\n", imp.Name, imp.URL, imp.RunDays())
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configUsageCmd, configRegionsCmd)
	rootCmd.AddCommand(configCmd)
}
