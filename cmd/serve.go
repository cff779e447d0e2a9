package cmd

import (
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	log "github.com/golang/glog"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/jjenkins/cornerwise/internal/handlers"
	"github.com/jjenkins/cornerwise/internal/service"
)

var port string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Cornerwise web server",
	Long: `Start the web server that serves proposals, update summaries, digest
previews and the staff notification workflow.`,
	Run: func(cmd *cobra.Command, args []string) {
		// Use PORT env var if set, otherwise use flag value
		if envPort := os.Getenv("PORT"); envPort != "" && port == "8080" {
			port = envPort
		}

		ctx, cancel := signalContext()
		defer cancel()

		d, err := buildDeps(ctx, loadConfig())
		if err != nil {
			log.Fatalf("Failed to initialize: %v", err)
		}
		defer d.Close()

		app := fiber.New(fiber.Config{
			AppName: "Cornerwise",
		})

		app.Use(logger.New())

		handlers.Register(app, handlers.Deps{
			Proposals:  d.persister,
			Summarizer: d.summarizer(),
			Notifier:   d.notifier(),
			Digests:    d.digests(),
			Metrics:    service.NewMetricsService(d.persister),
			Regions:    d.regions,
		})
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

		go func() {
			<-ctx.Done()
			if err := app.Shutdown(); err != nil {
				log.Errorf("Error shutting down: %v", err)
			}
		}()

		log.Infof("Starting server on :%s", port)
		if err := app.Listen(":" + port); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVarP(&port, "port", "p", "8080", "Port to run the server on")
}
