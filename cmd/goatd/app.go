package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/caprine/goatd/internal/dns/common/log"
	"github.com/caprine/goatd/internal/dns/config"
	"github.com/caprine/goatd/internal/dns/gateways/transport"
	"github.com/caprine/goatd/internal/dns/gateways/wire"
	"github.com/caprine/goatd/internal/dns/repos/msgcache"
	"github.com/caprine/goatd/internal/dns/repos/zonedb"
	"github.com/caprine/goatd/internal/dns/repos/zonefile"
	"github.com/caprine/goatd/internal/dns/repos/zonestore"
	"github.com/caprine/goatd/internal/dns/services/reload"
	"github.com/caprine/goatd/internal/dns/services/resolver"
)

// Application holds all the components of the DNS server.
type Application struct {
	config     *config.AppConfig
	db         *zonedb.Store
	store      *zonestore.Store
	dispatcher *resolver.Dispatcher
	watcher    *reload.Watcher
	transports []transport.ServerTransport
}

// buildApplication constructs all components and wires them together.
// Zone loading happens here: an invalid zone at startup is fatal, unlike
// a bad edit at runtime which only skips the reload.
func buildApplication(cfg *config.AppConfig) (*Application, error) {
	logger := log.GetLogger()
	codec := wire.NewMessageCodec(logger)
	store := zonestore.New()

	var db *zonedb.Store
	if cfg.DBPath != "" {
		var err error
		db, err = zonedb.Open(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("opening zone database: %w", err)
		}
	}

	docs, err := loadZones(cfg, db)
	if err != nil {
		return nil, err
	}

	snap, err := reload.BuildSnapshot(docs, store.NextGeneration())
	if err != nil {
		return nil, fmt.Errorf("building zone snapshot: %w", err)
	}
	store.Replace(snap)

	if db != nil {
		for _, doc := range docs {
			if err := db.SaveZone(doc.Zone, doc.Records); err != nil {
				log.Warn(map[string]any{
					"zone":  doc.Zone.Origin,
					"error": err.Error(),
				}, "Failed to persist zone")
			}
		}
	}

	log.Info(map[string]any{
		"zones":   snap.Zones(),
		"records": snap.RecordCount(),
	}, "Zone snapshot loaded")

	var cache resolver.AnswerCache
	if cfg.DisableCache {
		log.Info(map[string]any{"disabled": true}, "Answer caching disabled")
	} else {
		lruCache, err := msgcache.New(int(cfg.CacheSize))
		if err != nil {
			return nil, fmt.Errorf("creating answer cache: %w", err)
		}
		cache = lruCache
		log.Info(map[string]any{"type": "LRU", "size": cfg.CacheSize}, "Answer cache configured")
	}

	hostname := cfg.Hostname
	if hostname == "" {
		hostname, _ = os.Hostname()
	}
	adminNets, err := cfg.AdminNets()
	if err != nil {
		return nil, err
	}

	resolverService := resolver.NewResolver(resolver.ResolverOptions{
		Store:     store,
		Cache:     cache,
		Logger:    logger,
		Hostname:  hostname,
		AdminNets: adminNets,
	})

	dispatcher := resolver.NewDispatcher(resolver.DispatcherOptions{
		Responder:    resolverService,
		Logger:       logger,
		MaxInFlight:  cfg.MaxInFlight,
		ReplyTimeout: time.Duration(cfg.ReplyTimeoutMS) * time.Millisecond,
	})

	watcher := reload.NewWatcher(reload.WatcherOptions{
		ZoneDir: cfg.ZoneDir,
		Store:   store,
		DB:      db,
		Logger:  logger,
	})

	transports, err := buildTransports(cfg, codec, logger)
	if err != nil {
		return nil, err
	}

	return &Application{
		config:     cfg,
		db:         db,
		store:      store,
		dispatcher: dispatcher,
		watcher:    watcher,
		transports: transports,
	}, nil
}

// loadZones reads the zone directory, falling back to the persisted
// database when the directory holds no zone files.
func loadZones(cfg *config.AppConfig, db *zonedb.Store) ([]zonefile.Document, error) {
	docs, err := zonefile.LoadDirectory(cfg.ZoneDir)
	if err != nil {
		return nil, fmt.Errorf("loading zone directory: %w", err)
	}
	if len(docs) > 0 {
		return docs, nil
	}

	if db == nil {
		return nil, fmt.Errorf("no zone files found in %s", cfg.ZoneDir)
	}
	zones, records, err := db.LoadZones()
	if err != nil {
		return nil, fmt.Errorf("loading zones from database: %w", err)
	}
	if len(zones) == 0 {
		return nil, fmt.Errorf("no zone files in %s and no persisted zones", cfg.ZoneDir)
	}
	log.Info(map[string]any{"zones": len(zones)}, "Zone directory empty, serving persisted zones")
	for _, z := range zones {
		docs = append(docs, zonefile.Document{Zone: z, Records: records[z.Origin]})
	}
	return docs, nil
}

// buildTransports creates the configured listeners. UDP is always on;
// TCP and DoH run when their addresses are set.
func buildTransports(cfg *config.AppConfig, codec wire.DNSCodec, logger log.Logger) ([]transport.ServerTransport, error) {
	opts := transport.Options{
		Codec:          codec,
		Logger:         logger,
		PayloadSize:    cfg.UDPPayloadSize,
		FormErrReplies: cfg.FormErrReplies,
	}

	addrs := []struct {
		kind transport.TransportType
		addr string
	}{
		{transport.TransportUDP, cfg.UDPAddr},
		{transport.TransportTCP, cfg.TCPAddr},
		{transport.TransportDoH, cfg.DoHAddr},
	}

	var transports []transport.ServerTransport
	for _, entry := range addrs {
		if entry.addr == "" {
			continue
		}
		opts.Addr = entry.addr
		tr, err := transport.NewTransport(entry.kind, opts)
		if err != nil {
			return nil, err
		}
		transports = append(transports, tr)
	}
	return transports, nil
}

// Run starts the server and blocks until the context is cancelled, then
// drains: listeners close first, queued queries finish, then the workers
// stop.
func (app *Application) Run(ctx context.Context) error {
	app.dispatcher.Start()

	if err := app.watcher.Start(ctx); err != nil {
		app.dispatcher.Stop()
		return fmt.Errorf("starting zone watcher: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, tr := range app.transports {
		tr := tr
		g.Go(func() error {
			return tr.Start(gctx, app.dispatcher)
		})
	}
	if err := g.Wait(); err != nil {
		app.shutdown()
		return fmt.Errorf("starting transports: %w", err)
	}

	log.Info(map[string]any{
		"listeners": len(app.transports),
	}, "DNS server started")

	<-ctx.Done()
	log.Info(nil, "Shutdown initiated")
	app.shutdown()
	return nil
}

// shutdown stops components in dependency order.
func (app *Application) shutdown() {
	for _, tr := range app.transports {
		if err := tr.Stop(); err != nil {
			log.Warn(map[string]any{
				"address": tr.Address(),
				"error":   err.Error(),
			}, "Error during transport shutdown")
		}
	}
	app.watcher.Stop()
	app.dispatcher.Stop()
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			log.Warn(map[string]any{"error": err.Error()}, "Error closing zone database")
		}
	}
}
