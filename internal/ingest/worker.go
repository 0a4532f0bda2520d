// Package ingest runs the upload discovery and processing loop: poll object
// storage, download and extract candidate records, filter duplicates, and
// persist survivors into the hot and warm tiers.
package ingest

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"

	"github.com/stratamem/stratamem/internal/audit"
	"github.com/stratamem/stratamem/internal/dedup"
	"github.com/stratamem/stratamem/internal/model"
	"github.com/stratamem/stratamem/internal/notify"
	"github.com/stratamem/stratamem/internal/objstore"
	"github.com/stratamem/stratamem/internal/store"
)

// ErrAlreadyRunning is returned by Start when the worker is running.
var ErrAlreadyRunning = goerr.New("ingestion worker already running")

// Config holds the worker's tuning knobs.
type Config struct {
	Prefix       string        // object-storage key prefix to poll
	PollInterval time.Duration // wait between cycles (default: 30s)
	ErrorBackoff time.Duration // wait after a failed cycle (default: 60s)
	MaxAttempts  int           // consecutive failures before quarantine (default: 5)
	Concurrency  int           // parallel uploads per cycle (default: 4)
}

// Worker is the ingestion poll loop. States: stopped, running, stopped
// again after Stop. Stop interrupts an in-progress wait immediately.
type Worker struct {
	cfg      Config
	storage  objstore.ObjectStorage
	dedup    *dedup.Service
	hot      *store.HotStore
	warm     *store.WarmStore
	audit    audit.Recorder
	notifier notify.Notifier

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	// upload bookkeeping, shared by the per-upload goroutines of a cycle
	stateMu     sync.Mutex
	attempts    map[string]int
	processed   map[string]struct{}
	quarantined map[string]struct{}
}

// NewWorker wires the worker's collaborators. A nil audit recorder or
// notifier falls back to the no-op implementation.
func NewWorker(cfg Config, storage objstore.ObjectStorage, dd *dedup.Service, hot *store.HotStore, warm *store.WarmStore, recorder audit.Recorder, notifier notify.Notifier) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = 60 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if recorder == nil {
		recorder = audit.Noop{}
	}
	if notifier == nil {
		notifier = notify.Noop{}
	}
	return &Worker{
		cfg:         cfg,
		storage:     storage,
		dedup:       dd,
		hot:         hot,
		warm:        warm,
		audit:       recorder,
		notifier:    notifier,
		attempts:    make(map[string]int),
		processed:   make(map[string]struct{}),
		quarantined: make(map[string]struct{}),
	}
}

// Start transitions the worker to running and launches the poll loop.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return goerr.Wrap(ErrAlreadyRunning, "start rejected")
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	w.running = true

	w.seedFilter(runCtx)

	runID := uuid.New().String()
	slog.Info("ingestion worker starting", "run_id", runID,
		"poll_interval", w.cfg.PollInterval, "error_backoff", w.cfg.ErrorBackoff)

	go w.run(runCtx)
	return nil
}

// Stop cancels the loop, interrupting any in-progress wait, and blocks
// until the loop goroutine exits. Safe to call when already stopped.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	cancel()
	<-done

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()
	slog.Info("ingestion worker stopped")
}

// Running reports the worker state.
func (w *Worker) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.done)

	for {
		if ctx.Err() != nil {
			return
		}

		wait := w.cfg.PollInterval
		if err := w.runCycle(ctx); err != nil && ctx.Err() == nil {
			slog.Error("ingestion cycle failed", "error", err, "backoff", w.cfg.ErrorBackoff)
			wait = w.cfg.ErrorBackoff
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// runCycle discovers pending uploads and processes each independently. A
// failure in one upload never prevents the others in the same cycle.
func (w *Worker) runCycle(ctx context.Context) error {
	descs, err := w.discover(ctx)
	if err != nil {
		return goerr.Wrap(err, "discovery failed", goerr.Value("prefix", w.cfg.Prefix))
	}
	if len(descs) == 0 {
		slog.Debug("no pending uploads", "prefix", w.cfg.Prefix)
		return nil
	}
	slog.Info("processing uploads", "count", len(descs))

	sem := make(chan struct{}, w.cfg.Concurrency)
	var wg sync.WaitGroup
	for _, desc := range descs {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(d model.UploadDescriptor) {
			defer wg.Done()
			defer func() { <-sem }()
			w.handleUpload(ctx, d)
		}(desc)
	}
	wg.Wait()
	return ctx.Err()
}

// discover lists the prefix and parses keys into descriptors. Re-running
// discovery before an upload is marked processed legitimately returns it
// again; processing tolerates repeats.
func (w *Worker) discover(ctx context.Context) ([]model.UploadDescriptor, error) {
	keys, err := w.storage.List(ctx, w.cfg.Prefix)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	var descs []model.UploadDescriptor

	listed := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		listed[key] = struct{}{}
	}

	w.stateMu.Lock()
	defer w.stateMu.Unlock()

	// Keys deleted from storage cannot be rediscovered; drop their
	// bookkeeping so the sets stay proportional to the live listing.
	for key := range w.processed {
		if _, ok := listed[key]; !ok {
			delete(w.processed, key)
		}
	}
	for key := range w.attempts {
		if _, ok := listed[key]; !ok {
			delete(w.attempts, key)
		}
	}

	for _, key := range keys {
		if _, done := w.processed[key]; done {
			continue
		}
		if _, bad := w.quarantined[key]; bad {
			continue
		}
		desc, err := model.ParseUploadKey(key, now)
		if err != nil {
			slog.Warn("ignoring malformed upload key", "key", key, "error", err)
			w.processed[key] = struct{}{}
			continue
		}
		descs = append(descs, desc)
	}
	return descs, nil
}

// handleUpload processes one upload, isolating and accounting its failure.
func (w *Worker) handleUpload(ctx context.Context, desc model.UploadDescriptor) {
	err := w.processUpload(ctx, desc)
	if err == nil {
		w.stateMu.Lock()
		w.processed[desc.StorageKey] = struct{}{}
		delete(w.attempts, desc.StorageKey)
		w.stateMu.Unlock()
		return
	}
	if ctx.Err() != nil {
		// Cancelled mid-upload; leave it pending for the next start.
		return
	}

	if errors.Is(err, model.ErrValidation) {
		// Malformed uploads never fix themselves; skip without retry.
		slog.Warn("upload rejected", "upload", desc.String(), "error", err)
		w.stateMu.Lock()
		w.processed[desc.StorageKey] = struct{}{}
		w.stateMu.Unlock()
		w.audit.Record(ctx, audit.NewEvent("system", audit.ActionIngest, desc.StorageKey, audit.ResultRejected, map[string]string{
			"error": err.Error(),
		}))
		return
	}

	slog.Warn("upload processing failed", "upload", desc.String(), "error", err)

	w.stateMu.Lock()
	w.attempts[desc.StorageKey]++
	attempts := w.attempts[desc.StorageKey]
	exhausted := attempts >= w.cfg.MaxAttempts
	if exhausted {
		w.quarantined[desc.StorageKey] = struct{}{}
		delete(w.attempts, desc.StorageKey)
	}
	w.stateMu.Unlock()

	if exhausted {
		w.quarantine(ctx, desc, attempts, err)
	}
}

// processUpload downloads, extracts, deduplicates, and persists the
// records of one upload.
func (w *Worker) processUpload(ctx context.Context, desc model.UploadDescriptor) error {
	payload, err := w.storage.Get(ctx, desc.StorageKey)
	if err != nil {
		return goerr.Wrap(err, "download failed", goerr.Value("key", desc.StorageKey))
	}

	records, err := ExtractRecords(desc, payload)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		slog.Debug("upload contained no records", "upload", desc.String())
		return nil
	}

	for _, rec := range records {
		if err := w.ingestRecord(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

func (w *Worker) ingestRecord(ctx context.Context, rec *model.MemoryRecord) error {
	decision := w.dedup.CheckAndAdd(rec.SystemID, rec.ConversationID, rec.Summary)
	if decision.ExactDuplicate {
		slog.Debug("exact duplicate filtered", "key", rec.Key())
		w.audit.Record(ctx, audit.NewEvent("system", audit.ActionIngest, rec.Key(), audit.ResultDuplicate, nil))
		return nil
	}
	for _, m := range decision.Similar {
		slog.Info("near-duplicate detected", "key", rec.Key(),
			"similar_to", m.ConversationID, "similarity", m.Similarity)
	}

	if err := w.warm.Insert(ctx, rec); err != nil {
		if errors.Is(err, store.ErrConstraintViolation) {
			// The store is the final arbiter: a concurrent upload won the
			// race, so this record is already present.
			slog.Debug("record already stored", "key", rec.Key())
			w.audit.Record(ctx, audit.NewEvent("system", audit.ActionIngest, rec.Key(), audit.ResultDuplicate, nil))
			return nil
		}
		return goerr.Wrap(err, "warm insert failed", goerr.Value("key", rec.Key()))
	}

	if err := w.hot.Insert(rec); err != nil && !errors.Is(err, store.ErrConstraintViolation) {
		slog.Warn("hot tier insert failed", "key", rec.Key(), "error", err)
	}

	w.audit.Record(ctx, audit.NewEvent("system", audit.ActionIngest, rec.Key(), audit.ResultStored, nil))
	return nil
}

func (w *Worker) quarantine(ctx context.Context, desc model.UploadDescriptor, attempts int, cause error) {
	slog.Error("upload quarantined", "upload", desc.String(), "attempts", attempts, "error", cause)
	if err := w.warm.Quarantine(ctx, desc, attempts, cause.Error()); err != nil {
		slog.Warn("quarantine record failed", "upload", desc.String(), "error", err)
	}
	w.audit.Record(ctx, audit.NewEvent("system", audit.ActionQuarantine, desc.StorageKey, audit.ResultQuarantine, map[string]string{
		"attempts": strconv.Itoa(attempts),
		"error":    cause.Error(),
	}))
	w.notifier.QuarantinedUpload(ctx, desc, attempts, cause.Error())
}

// seedFilter rebuilds the dedup filter and quarantine set from the warm
// store so a restart does not re-ingest known content. Best effort.
func (w *Worker) seedFilter(ctx context.Context) {
	recs, err := w.warm.QueryByDateRange(ctx, time.Unix(0, 0), time.Now())
	if err != nil {
		slog.Warn("dedup filter seed failed", "error", err)
	} else {
		for _, rec := range recs {
			w.dedup.Seed(rec.SystemID, rec.ConversationID, rec.Summary)
		}
		if len(recs) > 0 {
			slog.Info("dedup filter seeded", "records", len(recs))
		}
	}

	keys, err := w.warm.QuarantinedKeys(ctx)
	if err != nil {
		slog.Warn("quarantine list load failed", "error", err)
		return
	}
	w.stateMu.Lock()
	for k := range keys {
		w.quarantined[k] = struct{}{}
	}
	w.stateMu.Unlock()
}
