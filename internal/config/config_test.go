package config

import (
	"os"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
)

func setEnv(t *testing.T, vals map[string]string) {
	for k, v := range vals {
		k := k
		old, had := os.LookupEnv(k)
		os.Setenv(k, v)
		t.Cleanup(func() {
			if had {
				os.Setenv(k, old)
			} else {
				os.Unsetenv(k)
			}
		})
	}
}

func TestPopulateFromEnv(t *testing.T) {
	setEnv(t, map[string]string{
		"CORNERWISE_PERSISTER_TYPE_NAME": "memory",
		"CORNERWISE_CRON_CONFIG":         "*/5 * * * *",
		"CORNERWISE_NOTIFY_RADIUS_FEET":  "500",
	})
	c := &Config{}
	err := c.PopulateFromEnv()
	assert.Equal(t, err, nil)
	assert.Equal(t, c.PersisterType, PersisterTypeMemory)
	assert.Equal(t, c.NotifyRadiusFeet, 500.0)
	assert.Equal(t, c.PubSubTopic, "cornerwise-mail")
	assert.Equal(t, c.DispatchWorkers, 4)
}

func TestBadPersisterName(t *testing.T) {
	setEnv(t, map[string]string{
		"CORNERWISE_PERSISTER_TYPE_NAME": "mysql",
	})
	c := &Config{}
	err := c.PopulateFromEnv()
	assert.NotEqual(t, err, nil)
}

func TestBadCronConfig(t *testing.T) {
	setEnv(t, map[string]string{
		"CORNERWISE_PERSISTER_TYPE_NAME": "memory",
		"CORNERWISE_CRON_CONFIG":         "every day",
	})
	c := &Config{}
	err := c.PopulateFromEnv()
	assert.NotEqual(t, err, nil)
}

func TestBadNotifyRadius(t *testing.T) {
	setEnv(t, map[string]string{
		"CORNERWISE_PERSISTER_TYPE_NAME": "memory",
		"CORNERWISE_NOTIFY_RADIUS_FEET":  "50",
	})
	c := &Config{}
	err := c.PopulateFromEnv()
	assert.NotEqual(t, err, nil)
}

const regionsYAML = `
regions:
  - name: Somerville, MA
    timezone: US/Eastern
  - name: Boulder, CO
    timezone: America/Denver
importers:
  - name: somervillema
    url: https://example.com/somerville
    region: Somerville, MA
    run_frequency: 60h
`

func TestParseRegions(t *testing.T) {
	r, err := ParseRegions([]byte(regionsYAML))
	assert.Equal(t, err, nil)
	assert.Equal(t, r.Names(), []string{"Boulder, CO", "Somerville, MA"})

	reg, ok := r.Lookup("somerville, ma")
	assert.Equal(t, ok, true)
	assert.Equal(t, reg.Name, "Somerville, MA")

	imps := r.Importers()
	assert.Equal(t, len(imps), 1)
	assert.Equal(t, imps[0].RunDays(), 3)

	_, err = ParseRegions([]byte("regions:\n  - name: Nowhere\n    timezone: Mars/Olympus\n"))
	assert.NotEqual(t, err, nil)

	_, err = ParseRegions([]byte("regions:\n  - name: A\nimporters:\n  - name: x\n    url: http://x\n    region: B\n"))
	assert.NotEqual(t, err, nil)
}

func TestRegionParseTime(t *testing.T) {
	reg, _ := DefaultRegions().Lookup("Somerville, MA")

	naive, err := reg.ParseTime("2017-06-01T18:30:00")
	assert.Equal(t, err, nil)
	assert.Equal(t, naive.UTC(), time.Date(2017, 6, 1, 22, 30, 0, 0, time.UTC))

	winter, err := reg.ParseTime("2017-01-05")
	assert.Equal(t, err, nil)
	assert.Equal(t, winter.UTC(), time.Date(2017, 1, 5, 5, 0, 0, 0, time.UTC))

	offset, err := reg.ParseTime("2017-06-01T18:30:00Z")
	assert.Equal(t, err, nil)
	assert.Equal(t, offset.Equal(time.Date(2017, 6, 1, 18, 30, 0, 0, time.UTC)), true)

	_, err = reg.ParseTime("next tuesday")
	assert.NotEqual(t, err, nil)
}

func TestImporterRegionPrefersImporterTimezone(t *testing.T) {
	r := DefaultRegions()
	reg := r.ImporterRegion(Importer{Name: "x", RegionName: "Cambridge, MA", Timezone: "America/Chicago"})
	assert.Equal(t, reg.Name, "Cambridge, MA")
	assert.Equal(t, reg.Timezone, "America/Chicago")

	unknown := r.Get("Atlantis")
	assert.Equal(t, unknown.Location(), time.UTC)
}
