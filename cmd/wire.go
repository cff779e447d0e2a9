package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"cloud.google.com/go/storage"
	"github.com/go-redis/redis/v8"
	log "github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/jjenkins/cornerwise/internal/blob"
	"github.com/jjenkins/cornerwise/internal/config"
	"github.com/jjenkins/cornerwise/internal/geo"
	"github.com/jjenkins/cornerwise/internal/mail"
	"github.com/jjenkins/cornerwise/internal/service"
	"github.com/jjenkins/cornerwise/internal/store"
)

const mailQueueSize = 256

// deps holds everything a command needs, built from the environment
type deps struct {
	cfg        *config.Config
	regions    *config.Regions
	persister  store.Persister
	drafts     store.DraftStore
	dispatcher *mail.Dispatcher
	site       mail.Site

	closers []func() error
}

func loadConfig() *config.Config {
	cfg := &config.Config{}
	if err := cfg.PopulateFromEnv(); err != nil {
		cfg.OutputUsage()
		log.Fatalf("Invalid config: %v", err)
	}
	return cfg
}

func loadRegions(cfg *config.Config) (*config.Regions, error) {
	if cfg.RegionsFile == "" {
		return config.DefaultRegions(), nil
	}
	return config.LoadRegions(cfg.RegionsFile)
}

// buildDeps connects to the configured backends
func buildDeps(ctx context.Context, cfg *config.Config) (*deps, error) {
	d := &deps{
		cfg:  cfg,
		site: mail.Site{Name: cfg.SiteName, Root: cfg.SiteRoot},
	}

	var err error
	if d.regions, err = loadRegions(cfg); err != nil {
		return nil, err
	}

	blobs, err := d.blobStore(ctx)
	if err != nil {
		d.Close()
		return nil, err
	}

	switch cfg.PersisterType {
	case config.PersisterTypeMemory:
		log.Infof("Using in-memory persister")
		d.persister = store.NewMemoryStore(blobs)
	case config.PersisterTypePostgresql:
		log.Infof("Connecting to database...")
		db, err := store.NewDB(cfg.DatabaseURL)
		if err != nil {
			d.Close()
			return nil, err
		}
		pp := store.NewPostgresPersister(db, blobs)
		d.persister = pp
		d.closers = append(d.closers, pp.Close)
	default:
		d.Close()
		return nil, errors.Errorf("unsupported persister %q", cfg.PersisterTypeName)
	}

	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			d.Close()
			return nil, errors.Wrap(err, "failed to connect to redis")
		}
		d.drafts = store.NewRedisDraftStore(client)
		d.closers = append(d.closers, client.Close)
	} else {
		d.drafts = store.NewMemoryDraftStore()
	}

	var deliverer mail.Deliverer = mail.LogDeliverer{}
	if cfg.PubSubProjectID != "" {
		ps, err := mail.NewPubSubDeliverer(ctx, cfg.PubSubProjectID, cfg.PubSubTopic)
		if err != nil {
			d.Close()
			return nil, err
		}
		deliverer = ps
		d.closers = append(d.closers, ps.Close)
	}
	d.dispatcher = mail.NewDispatcher(deliverer, mailQueueSize)
	d.dispatcher.Start(cfg.DispatchWorkers)

	return d, nil
}

func (d *deps) blobStore(ctx context.Context) (blob.Store, error) {
	if d.cfg.BlobBucket == "" {
		return blob.NewFileStore(d.cfg.BlobDir), nil
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create storage client")
	}
	d.closers = append(d.closers, client.Close)
	return blob.NewGCSStore(client, d.cfg.BlobBucket), nil
}

// Close drains queued mail, then releases connections in reverse order
func (d *deps) Close() {
	if d.dispatcher != nil {
		d.dispatcher.Close()
	}
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			log.Errorf("Error closing: %v", err)
		}
	}
	d.closers = nil
}

func (d *deps) summarizer() *service.Summarizer {
	return service.NewSummarizer(d.persister, d.persister)
}

func (d *deps) importer() *service.Importer {
	recorder := service.NewRecorder(d.persister)
	return service.NewImporter(service.NewFeedClient(), recorder, d.persister, d.regions)
}

func (d *deps) digests() *service.DigestService {
	return service.NewDigestService(d.persister, d.persister, d.summarizer(), d.dispatcher, d.site)
}

func (d *deps) notifier() *service.Notifier {
	return service.NewNotifier(service.NotifierDeps{
		Proposals:     d.persister,
		Notifications: d.persister,
		Drafts:        d.drafts,
		Matcher:       service.NewMatcher(d.persister),
		Geocoder:      service.NewProposalGeocoder(d.persister),
		Sender:        d.dispatcher,
		Regions:       d.regions,
		Site:          d.site,
		Radius:        geo.Feet(d.cfg.NotifyRadiusFeet),
	})
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigChan:
			log.Infof("Received interrupt signal, shutting down...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()

	return ctx, cancel
}
