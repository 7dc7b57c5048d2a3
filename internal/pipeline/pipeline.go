package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/DDatiOSCheat/iOS-App-Version-Tracker/internal/cache"
	"github.com/DDatiOSCheat/iOS-App-Version-Tracker/internal/config"
	"github.com/DDatiOSCheat/iOS-App-Version-Tracker/internal/model"
	"github.com/DDatiOSCheat/iOS-App-Version-Tracker/internal/notify"
	"github.com/DDatiOSCheat/iOS-App-Version-Tracker/internal/reconcile"
	"github.com/DDatiOSCheat/iOS-App-Version-Tracker/internal/store"
)

// ErrBusy is returned when a cycle for the same pair is already running.
var ErrBusy = errors.New("cycle already running for this app and country")

// Source is where observations come from.
type Source interface {
	FetchMetadata(ctx context.Context, appID, country string) (model.MetadataRecord, bool)
	FetchListing(ctx context.Context, appID, country, lang string) (model.ExtractionResult, error)
	ListingURL(appID, country string) string
}

// HistoryStore persists one history per pair.
type HistoryStore interface {
	Load(ctx context.Context, appID, country string) (*model.PersistedHistory, error)
	Save(ctx context.Context, appID, country string, rec model.PersistedHistory) error
}

// Notifier announces a detected version change.
type Notifier interface {
	Notify(ctx context.Context, msg notify.Message)
}

// Pipeline orchestrates: fetch -> reconcile -> store -> notify.
type Pipeline struct {
	source   Source
	store    HistoryStore
	cache    *cache.Cache
	notifier Notifier
	now      func() time.Time

	mu   sync.Mutex
	busy map[string]*semaphore.Weighted
}

func New(source Source, store HistoryStore, cache *cache.Cache, notifier Notifier) *Pipeline {
	return &Pipeline{
		source:   source,
		store:    store,
		cache:    cache,
		notifier: notifier,
		now:      time.Now,
		busy:     make(map[string]*semaphore.Weighted),
	}
}

// Snapshot is what the read path returns for a pair.
type Snapshot struct {
	SavedHistory  *model.PersistedHistory `json:"savedHistory"`
	FreshMetadata *model.MetadataRecord   `json:"freshMetadata"`
}

// RunCycle polls both sources for one pair, folds the observation into the
// saved history and notifies when the latest version changed. A cycle that
// is already running for the same pair makes this return ErrBusy without
// touching any external service.
func (p *Pipeline) RunCycle(ctx context.Context, appID, country, lang string) (model.Verdict, error) {
	key := store.Key(appID, country)
	sem := p.lock(key)
	if !sem.TryAcquire(1) {
		slog.Info("cycle skipped, previous run still in progress", "app_id", appID, "country", country)
		return model.Verdict{}, ErrBusy
	}
	defer sem.Release(1)

	slog.Info("cycle starting", "app_id", appID, "country", country, "lang", lang)

	// 1. Lookup metadata (advisory)
	observed := model.ObservedState{}
	if rec, ok := p.source.FetchMetadata(ctx, appID, country); ok {
		observed.Metadata = &rec
	}
	p.cache.SetMetadata(key, observed.Metadata)

	// 2. Scrape the listing page
	extraction, err := p.source.FetchListing(ctx, appID, country, lang)
	if err != nil {
		slog.Warn("listing fetch failed, continuing without scraped entries", "app_id", appID, "country", country, "error", err)
		extraction.Entries = []model.VersionEntry{}
	}
	observed.Extraction = extraction

	// 3. Load previous history
	prior, err := p.store.Load(ctx, appID, country)
	if err != nil {
		slog.Error("failed to load history", "key", key, "error", err)
		return model.Verdict{}, fmt.Errorf("load history: %w", err)
	}

	// 4. Reconcile
	verdict := reconcile.Reconcile(prior, observed, p.now())
	verdict.Record.AppID = appID
	verdict.Record.Country = country

	// 5. Persist, also on no-op cycles
	if err := p.store.Save(ctx, appID, country, verdict.Record); err != nil {
		slog.Error("failed to save history", "key", key, "error", err)
		return model.Verdict{}, fmt.Errorf("save history: %w", err)
	}
	p.cache.SetHistory(key, verdict.Record)

	// 6. Notify on transition
	if verdict.Transitioned {
		p.notifier.Notify(ctx, p.message(appID, country, observed, verdict))
		slog.Info("new version detected",
			"app_id", appID, "country", country,
			"latest", model.Deref(verdict.LatestVersion),
			"previous", model.Deref(verdict.PreviousVersion))
	} else {
		slog.Info("no version change",
			"app_id", appID, "country", country,
			"latest", model.Deref(verdict.LatestVersion),
			"previous", model.Deref(verdict.PreviousVersion))
	}

	return verdict, nil
}

// RunAll runs one cycle per country. Pairs are independent and run
// concurrently; a failing pair does not cancel the others.
func (p *Pipeline) RunAll(ctx context.Context, appID string, countries []string) error {
	var g errgroup.Group

	for _, country := range countries {
		g.Go(func() error {
			_, err := p.RunCycle(ctx, appID, country, config.LangFor(country))
			if errors.Is(err, ErrBusy) {
				return nil
			}
			if err != nil {
				slog.Error("cycle failed", "app_id", appID, "country", country, "error", err)
				return fmt.Errorf("%s: %w", country, err)
			}
			return nil
		})
	}

	return g.Wait()
}

// Snapshot returns the saved history and a recent lookup result for a pair.
// Either may be nil.
func (p *Pipeline) Snapshot(ctx context.Context, appID, country string) (Snapshot, error) {
	key := store.Key(appID, country)
	var snap Snapshot

	saved, err := p.Saved(ctx, appID, country)
	if err != nil {
		return Snapshot{}, err
	}
	snap.SavedHistory = saved

	if rec, ok := p.cache.Metadata(key); ok {
		snap.FreshMetadata = rec
		return snap, nil
	}
	if rec, ok := p.source.FetchMetadata(ctx, appID, country); ok {
		snap.FreshMetadata = &rec
	}
	p.cache.SetMetadata(key, snap.FreshMetadata)
	return snap, nil
}

// Saved returns the saved history of a pair from the cache, falling back to
// the store. It returns nil when the pair has never been saved.
func (p *Pipeline) Saved(ctx context.Context, appID, country string) (*model.PersistedHistory, error) {
	key := store.Key(appID, country)
	if rec, ok := p.cache.History(key); ok {
		return &rec, nil
	}

	slog.Info("cache miss, loading history from store", "key", key)
	rec, err := p.store.Load(ctx, appID, country)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	if rec != nil {
		p.cache.SetHistory(key, *rec)
	}
	return rec, nil
}

func (p *Pipeline) lock(key string) *semaphore.Weighted {
	p.mu.Lock()
	defer p.mu.Unlock()
	sem, ok := p.busy[key]
	if !ok {
		sem = semaphore.NewWeighted(1)
		p.busy[key] = sem
	}
	return sem
}

func (p *Pipeline) message(appID, country string, observed model.ObservedState, verdict model.Verdict) notify.Message {
	name := appID
	var notes string
	if m := observed.Metadata; m != nil {
		if m.TrackName != nil {
			name = *m.TrackName
		}
		notes = model.Deref(m.ReleaseNotes)
	}
	if notes == "" && len(observed.Extraction.Entries) > 0 {
		notes = model.Deref(observed.Extraction.Entries[0].Notes)
	}
	if notes == "" {
		notes = "No notes"
	}

	return notify.Message{
		Title: fmt.Sprintf("Update detected: %s — v%s", name, model.Deref(verdict.LatestVersion)),
		Body:  notes,
		URL:   p.source.ListingURL(appID, country),
	}
}
