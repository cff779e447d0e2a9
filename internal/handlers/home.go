package handlers

import (
	"context"
	"io"
	"sort"

	"github.com/a-h/templ"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	log "github.com/golang/glog"

	"github.com/jjenkins/cornerwise/internal/config"
	"github.com/jjenkins/cornerwise/internal/service"
)

// HomeMetrics is what the landing page shows
type HomeMetrics struct {
	Regions []string
	Metrics map[string]string
	HasData bool
}

func homePage(m HomeMetrics) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var err error
		write := func(s string) {
			if err == nil {
				_, err = io.WriteString(w, s)
			}
		}

		write(`<html><head><title>Cornerwise</title></head><body><h1>Cornerwise</h1>`)
		write(`<h2>Regions</h2><ul>`)
		for _, r := range m.Regions {
			write(`<li>` + templ.EscapeString(r) + `</li>`)
		}
		write(`</ul>`)

		if !m.HasData {
			write(`<p>No data yet. Run an import to get started.</p>`)
		} else {
			names := make([]string, 0, len(m.Metrics))
			for name := range m.Metrics {
				names = append(names, name)
			}
			sort.Strings(names)
			write(`<h2>Metrics</h2><dl>`)
			for _, name := range names {
				write(`<dt>` + templ.EscapeString(name) + `</dt><dd>` + templ.EscapeString(m.Metrics[name]) + `</dd>`)
			}
			write(`</dl>`)
		}
		write(`</body></html>`)
		return err
	})
}

// HomeHandler renders the landing page with the latest stored metrics
func HomeHandler(metrics *service.MetricsService, regions *config.Regions) fiber.Handler {
	return func(c *fiber.Ctx) error {
		m := HomeMetrics{Regions: regions.Names()}

		latest, err := metrics.GetLatestMetrics(c.UserContext())
		if err != nil {
			log.Errorf("Error loading metrics: %v", err)
		} else {
			m.Metrics = latest
			m.HasData = len(latest) > 0
		}

		page := homePage(m)
		handler := adaptor.HTTPHandler(templ.Handler(page))

		return handler(c)
	}
}
