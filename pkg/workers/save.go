package workers

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cbodonnell/progsync/pkg/concurrency"
	"github.com/cbodonnell/progsync/pkg/log"
	"github.com/cbodonnell/progsync/pkg/metrics"
	"github.com/cbodonnell/progsync/pkg/progression"
	"github.com/cbodonnell/progsync/pkg/repositories"
	"github.com/cenkalti/backoff/v4"
)

const (
	DefaultSaveInterval       = 5 * time.Second
	DefaultInlineRetries      = 3
	DefaultInlineRetryBackoff = 25 * time.Millisecond
	DefaultShutdownTimeout    = 5 * time.Second
)

// ErrWriteDeferred is returned by Save when the inline attempts failed and the
// values were left for the background loop.
var ErrWriteDeferred = errors.New("write deferred to background save")

// desiredValue is the newest value the authority wants persisted for one key,
// tagged with the snapshot it came from.
type desiredValue struct {
	value   int64
	epoch   int64
	version uint64
	dirty   bool
}

func (d *desiredValue) olderThan(s progression.Snapshot) bool {
	if d.epoch != s.Epoch() {
		return d.epoch < s.Epoch()
	}
	return d.version < s.Version()
}

// SaveWorker writes progression values through to the repository. Each player's
// writes are serialized and always carry the newest desired value, so a retried
// write can never overwrite a newer one. Writes that keep failing stay dirty and
// are retried by Start until they succeed.
type SaveWorker struct {
	repository    repositories.Repository
	interval      time.Duration
	inlineRetries uint64
	inlineBackoff time.Duration
	locks         *concurrency.LockManager

	desired map[string]map[progression.Key]*desiredValue
	lock    sync.Mutex
	logger  *log.Logger
}

type NewSaveWorkerOptions struct {
	Repository repositories.Repository
	// Interval between background retries of deferred writes.
	Interval time.Duration
	// InlineRetries is how many times Save retries before deferring.
	InlineRetries uint64
	// InlineBackoff is the first delay between inline retries.
	InlineBackoff time.Duration
}

// NewSaveWorker creates a new SaveWorker.
// Save is called by the authority on every change; Start runs the background
// loop that retries deferred writes.
func NewSaveWorker(opts NewSaveWorkerOptions) *SaveWorker {
	if opts.Interval <= 0 {
		opts.Interval = DefaultSaveInterval
	}
	if opts.InlineRetries == 0 {
		opts.InlineRetries = DefaultInlineRetries
	}
	if opts.InlineBackoff <= 0 {
		opts.InlineBackoff = DefaultInlineRetryBackoff
	}
	return &SaveWorker{
		repository:    opts.Repository,
		interval:      opts.Interval,
		inlineRetries: opts.InlineRetries,
		inlineBackoff: opts.InlineBackoff,
		locks:         concurrency.NewLockManager(),
		desired:       make(map[string]map[progression.Key]*desiredValue),
		logger:        log.With("component", "save"),
	}
}

// Save persists the given keys of snapshot. Values older than one already
// staged for the same key are ignored. It returns ErrWriteDeferred when the
// inline attempts failed; the values are then retried in the background.
func (w *SaveWorker) Save(ctx context.Context, snapshot progression.Snapshot, keys ...progression.Key) error {
	player := snapshot.Player()
	w.stage(snapshot, keys)

	operation := func() error {
		return w.flushPlayer(ctx, player)
	}
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = w.inlineBackoff
	policy.MaxElapsedTime = 0
	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(policy, w.inlineRetries), ctx))
	if err == nil {
		return nil
	}

	metrics.DurabilityWarnings.Inc()
	w.logger.With("player", player).With("durability", "pending").Warn("Failed to persist %v, retrying in background: %v", keys, err)
	return ErrWriteDeferred
}

func (w *SaveWorker) stage(snapshot progression.Snapshot, keys []progression.Key) {
	w.lock.Lock()
	defer w.lock.Unlock()

	player := snapshot.Player()
	values, ok := w.desired[player]
	if !ok {
		values = make(map[progression.Key]*desiredValue)
		w.desired[player] = values
	}
	state := snapshot.State()
	for _, key := range keys {
		d, ok := values[key]
		if !ok {
			d = &desiredValue{epoch: -1}
			values[key] = d
		}
		if !d.olderThan(snapshot) {
			continue
		}
		if !d.dirty {
			metrics.PendingWrites.Inc()
		}
		d.value = state.Get(key)
		d.epoch = snapshot.Epoch()
		d.version = snapshot.Version()
		d.dirty = true
	}
}

// dirtyValues copies the dirty values of player along with their tags.
func (w *SaveWorker) dirtyValues(player string) map[progression.Key]desiredValue {
	w.lock.Lock()
	defer w.lock.Unlock()
	dirty := make(map[progression.Key]desiredValue)
	for key, d := range w.desired[player] {
		if d.dirty {
			dirty[key] = *d
		}
	}
	return dirty
}

// markClean clears the dirty flag of every key whose tag was not replaced since it was written.
func (w *SaveWorker) markClean(player string, written map[progression.Key]desiredValue) {
	w.lock.Lock()
	defer w.lock.Unlock()
	for key, wrote := range written {
		d, ok := w.desired[player][key]
		if !ok || !d.dirty {
			continue
		}
		if d.epoch == wrote.epoch && d.version == wrote.version {
			d.dirty = false
			metrics.PendingWrites.Dec()
		}
	}
}

func (w *SaveWorker) flushPlayer(ctx context.Context, player string) error {
	lock := w.locks.GetLock(player)
	lock.Lock()
	defer lock.Unlock()

	dirty := w.dirtyValues(player)
	if len(dirty) == 0 {
		return nil
	}

	if err := w.write(ctx, player, dirty); err != nil {
		metrics.StoreWriteFailures.Inc()
		return err
	}
	w.markClean(player, dirty)
	return nil
}

// write persists values as one unit when the repository supports it. Otherwise
// upgrade levels go first and currency last, so an interrupted purchase never
// leaves a debit without its level.
func (w *SaveWorker) write(ctx context.Context, player string, values map[progression.Key]desiredValue) error {
	if batch, ok := w.repository.(repositories.BatchRepository); ok {
		plain := make(map[progression.Key]int64, len(values))
		for key, d := range values {
			plain[key] = d.value
		}
		if err := batch.SetMany(ctx, player, plain); err != nil {
			return fmt.Errorf("failed to save values: %v", err)
		}
		return nil
	}

	keys := make([]progression.Key, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if (keys[i] == progression.KeyCoins) != (keys[j] == progression.KeyCoins) {
			return keys[j] == progression.KeyCoins
		}
		return keys[i] < keys[j]
	})
	for _, key := range keys {
		if err := w.repository.Set(ctx, player, key, values[key].value); err != nil {
			return fmt.Errorf("failed to save %s: %v", key, err)
		}
	}
	return nil
}

// PendingValues returns the values of player that are staged but not yet
// persisted. They are newer than anything the repository holds for the player.
func (w *SaveWorker) PendingValues(player string) map[progression.Key]int64 {
	dirty := w.dirtyValues(player)
	values := make(map[progression.Key]int64, len(dirty))
	for key, d := range dirty {
		values[key] = d.value
	}
	return values
}

// Pending returns the number of values not yet persisted.
func (w *SaveWorker) Pending() int {
	w.lock.Lock()
	defer w.lock.Unlock()
	n := 0
	for _, values := range w.desired {
		for _, d := range values {
			if d.dirty {
				n++
			}
		}
	}
	return n
}

// Flush tries once to persist every dirty value.
func (w *SaveWorker) Flush(ctx context.Context) error {
	w.lock.Lock()
	players := make([]string, 0, len(w.desired))
	for player, values := range w.desired {
		for _, d := range values {
			if d.dirty {
				players = append(players, player)
				break
			}
		}
	}
	w.lock.Unlock()

	var errs []error
	for _, player := range players {
		if err := w.flushPlayer(ctx, player); err != nil {
			errs = append(errs, fmt.Errorf("player %s: %v", player, err))
		}
	}
	return errors.Join(errs...)
}

func (w *SaveWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.shutdown()
			return
		case <-ticker.C:
			if err := w.Flush(ctx); err != nil {
				w.logger.With("durability", "pending").Warn("Failed to save %d pending values: %v", w.Pending(), err)
			}
		}
	}
}

func (w *SaveWorker) shutdown() {
	if w.Pending() == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()
	if err := w.Flush(ctx); err != nil {
		w.logger.With("durability", "lost").Error("Failed to save %d values on shutdown: %v", w.Pending(), err)
		return
	}
	w.logger.Info("Saved pending values on shutdown")
}
