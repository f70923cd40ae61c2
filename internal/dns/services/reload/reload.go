// Package reload rebuilds zone snapshots when zone files change on
// disk. A rebuild that fails leaves the previous snapshot serving; the
// server never drops authority because of a bad edit.
package reload

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/caprine/goatd/internal/dns/common/log"
	"github.com/caprine/goatd/internal/dns/common/metrics"
	"github.com/caprine/goatd/internal/dns/common/rrdata"
	"github.com/caprine/goatd/internal/dns/domain"
	"github.com/caprine/goatd/internal/dns/repos/zonedb"
	"github.com/caprine/goatd/internal/dns/repos/zonefile"
	"github.com/caprine/goatd/internal/dns/repos/zonestore"
)

// defaultDebounce batches the burst of events an editor save produces
// into one rebuild.
const defaultDebounce = 500 * time.Millisecond

// BuildSnapshot converts parsed zone documents into a frozen snapshot.
func BuildSnapshot(docs []zonefile.Document, generation uint64) (*zonestore.Snapshot, error) {
	builder := zonestore.NewBuilder()
	for _, doc := range docs {
		if err := builder.AddZone(doc.Zone); err != nil {
			return nil, err
		}
	}
	for _, doc := range docs {
		for _, rec := range doc.Records {
			rr, err := Materialize(rec)
			if err != nil {
				return nil, fmt.Errorf("zone %s: %w", doc.Zone.Origin, err)
			}
			if err := builder.AddRecord(doc.Zone.Origin, rr); err != nil {
				return nil, err
			}
		}
	}
	return builder.Build(generation)
}

// Materialize encodes a stored zone record into its wire form.
func Materialize(rec domain.FileZoneRecord) (domain.ResourceRecord, error) {
	rrtype := domain.RRTypeFromString(rec.Type)
	class := domain.RRClassIN
	if rec.Class != "" {
		class = domain.ParseRRClass(strings.ToUpper(rec.Class))
	}
	data, err := rrdata.Encode(rrtype, rec.RData)
	if err != nil {
		return domain.ResourceRecord{}, fmt.Errorf("record %s %s: %w", rec.Name, rec.Type, err)
	}
	return domain.NewResourceRecord(rec.Name, rrtype, class, rec.TTL, data, rec.RData)
}

// Watcher reloads the zone snapshot when files under the zone directory
// change.
type Watcher struct {
	dir      string
	store    *zonestore.Store
	db       *zonedb.Store
	logger   log.Logger
	debounce time.Duration

	fsw      *fsnotify.Watcher
	done     chan struct{}
	stopOnce sync.Once
}

// WatcherOptions configures a Watcher.
type WatcherOptions struct {
	// ZoneDir is the directory to watch.
	ZoneDir string

	// Store receives rebuilt snapshots.
	Store *zonestore.Store

	// DB, when set, is updated with each successfully loaded zone.
	DB *zonedb.Store

	Logger log.Logger

	// Debounce delays the rebuild after the last event; zero means
	// defaultDebounce.
	Debounce time.Duration
}

// NewWatcher creates a Watcher. Call Start to begin watching.
func NewWatcher(opts WatcherOptions) *Watcher {
	if opts.Debounce <= 0 {
		opts.Debounce = defaultDebounce
	}
	return &Watcher{
		dir:      opts.ZoneDir,
		store:    opts.Store,
		db:       opts.DB,
		logger:   opts.Logger,
		debounce: opts.Debounce,
		done:     make(chan struct{}),
	}
}

// Start begins watching the zone directory. It returns once the watch is
// registered; reloads happen in the background until Stop or ctx
// cancellation.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	if err := fsw.Add(w.dir); err != nil {
		fsw.Close()
		return fmt.Errorf("watching %s: %w", w.dir, err)
	}
	w.fsw = fsw

	w.logger.Info(map[string]any{"dir": w.dir}, "Watching zone directory for changes")
	go w.loop(ctx)
	return nil
}

// Stop ends the watch. Safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		if w.fsw != nil {
			_ = w.fsw.Close()
		}
	})
}

func (w *Watcher) loop(ctx context.Context) {
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	pending := false

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !relevant(event) {
				continue
			}
			if pending && !timer.Stop() {
				<-timer.C
			}
			timer.Reset(w.debounce)
			pending = true
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn(map[string]any{"error": err.Error()}, "Zone watcher error")
		case <-timer.C:
			pending = false
			w.Reload()
		}
	}
}

// relevant filters watcher noise down to events that can change zone
// content.
func relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	name := strings.ToLower(event.Name)
	for _, ext := range []string{".yaml", ".yml", ".json", ".toml"} {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

// Reload parses the zone directory and swaps in a new snapshot. On any
// failure the current snapshot keeps serving.
func (w *Watcher) Reload() {
	docs, err := zonefile.LoadDirectory(w.dir)
	if err != nil {
		metrics.SnapshotReloads.WithLabelValues("error").Inc()
		w.logger.Error(map[string]any{
			"dir":   w.dir,
			"error": err.Error(),
		}, "Zone reload failed, keeping current snapshot")
		return
	}

	snap, err := BuildSnapshot(docs, w.store.NextGeneration())
	if err != nil {
		metrics.SnapshotReloads.WithLabelValues("error").Inc()
		w.logger.Error(map[string]any{
			"dir":   w.dir,
			"error": err.Error(),
		}, "Zone reload failed, keeping current snapshot")
		return
	}

	w.store.Replace(snap)
	metrics.SnapshotReloads.WithLabelValues("ok").Inc()
	w.logger.Info(map[string]any{
		"generation": snap.Generation(),
		"zones":      len(snap.Zones()),
		"records":    snap.RecordCount(),
	}, "Zone snapshot reloaded")

	if w.db == nil {
		return
	}
	for _, doc := range docs {
		if err := w.db.SaveZone(doc.Zone, doc.Records); err != nil {
			w.logger.Warn(map[string]any{
				"zone":  doc.Zone.Origin,
				"error": err.Error(),
			}, "Failed to persist reloaded zone")
		}
	}
}
