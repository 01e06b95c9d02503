package authority

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cbodonnell/progsync/pkg/bus"
	"github.com/cbodonnell/progsync/pkg/log"
	"github.com/cbodonnell/progsync/pkg/metrics"
	"github.com/cbodonnell/progsync/pkg/progression"
	"github.com/cbodonnell/progsync/pkg/repositories"
	"github.com/cenkalti/backoff/v4"
	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultReadRetries = 3
	DefaultReadBackoff = 20 * time.Millisecond
)

// Saver persists the listed keys of a snapshot.
type Saver interface {
	Save(ctx context.Context, snapshot progression.Snapshot, keys ...progression.Key) error
	// PendingValues returns values staged for player that have not reached the
	// repository yet.
	PendingValues(player string) map[progression.Key]int64
}

// Authority is the single owner of every online player's progression state.
// Operations on one player are serialized; different players proceed in parallel.
type Authority struct {
	repository  repositories.Repository
	saver       Saver
	publisher   bus.Publisher
	catalog     progression.Catalog
	validate    *validator.Validate
	readRetries uint64
	readBackoff time.Duration

	players   map[string]*playerEntry
	lock      sync.RWMutex
	joins     singleflight.Group
	lastEpoch atomic.Int64
	logger    *log.Logger
}

type NewAuthorityOptions struct {
	// Repository is read when a player joins.
	Repository repositories.Repository
	// Saver writes every change through to the repository.
	Saver     Saver
	Publisher bus.Publisher
	// Catalog enables price and max level checks. Without one any upgrade can be
	// bought at the requested cost.
	Catalog     progression.Catalog
	ReadRetries uint64
	ReadBackoff time.Duration
}

type playerEntry struct {
	lock    sync.Mutex
	state   progression.State
	epoch   int64
	version uint64
}

func (e *playerEntry) snapshot(player string) progression.Snapshot {
	return progression.NewSnapshot(player, e.epoch, e.version, e.state)
}

// NewAuthority creates a new Authority.
func NewAuthority(opts NewAuthorityOptions) *Authority {
	if opts.ReadRetries == 0 {
		opts.ReadRetries = DefaultReadRetries
	}
	if opts.ReadBackoff <= 0 {
		opts.ReadBackoff = DefaultReadBackoff
	}
	return &Authority{
		repository:  opts.Repository,
		saver:       opts.Saver,
		publisher:   opts.Publisher,
		catalog:     opts.Catalog,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		readRetries: opts.ReadRetries,
		readBackoff: opts.ReadBackoff,
		players:     make(map[string]*playerEntry),
		logger:      log.With("component", "authority"),
	}
}

// Catalog returns the shop catalog the authority enforces, which may be nil.
func (a *Authority) Catalog() progression.Catalog {
	return a.catalog
}

func (a *Authority) entry(player string) *playerEntry {
	a.lock.RLock()
	defer a.lock.RUnlock()
	return a.players[player]
}

// nextEpoch returns a strictly increasing, time based epoch.
func (a *Authority) nextEpoch() int64 {
	for {
		last := a.lastEpoch.Load()
		next := time.Now().UnixNano()
		if next <= last {
			next = last + 1
		}
		if a.lastEpoch.CompareAndSwap(last, next) {
			return next
		}
	}
}

// OnPlayerJoin loads the player's values, writes zero for every key that was
// never stored, caches the state and publishes the first snapshot.
// Joining an already cached player republishes its current snapshot.
func (a *Authority) OnPlayerJoin(ctx context.Context, player string) error {
	if player == "" {
		return &ErrInvalidRequest{Err: fmt.Errorf("player is required")}
	}

	_, err, shared := a.joins.Do(player, func() (interface{}, error) {
		if e := a.entry(player); e != nil {
			e.lock.Lock()
			defer e.lock.Unlock()
			a.publisher.Publish(e.snapshot(player))
			return nil, nil
		}
		return nil, a.join(ctx, player)
	})
	if shared {
		a.logger.With("player", player).Debug("Joined concurrent load")
	}
	return err
}

func (a *Authority) join(ctx context.Context, player string) error {
	logger := a.logger.With("player", player)

	// A value still pending from an earlier session is newer than the store.
	// It is read before and after the load since a flush may land in between.
	pending := a.saver.PendingValues(player)
	state, unset, err := a.load(ctx, player)
	if err != nil {
		return fmt.Errorf("failed to load player %s: %v", player, err)
	}
	for key, value := range a.saver.PendingValues(player) {
		pending[key] = value
	}
	if len(pending) > 0 {
		logger.Debug("Using %d values still pending from the last session", len(pending))
		unset = withPending(&state, unset, pending)
	}

	e := &playerEntry{
		state:   state,
		epoch:   a.nextEpoch(),
		version: 1,
	}
	e.lock.Lock()
	defer e.lock.Unlock()

	a.lock.Lock()
	a.players[player] = e
	a.lock.Unlock()
	metrics.PlayersOnline.Inc()

	snapshot := e.snapshot(player)
	if len(unset) > 0 {
		logger.Debug("Initializing unset keys %v", unset)
		a.save(ctx, snapshot, unset...)
	}
	a.publisher.Publish(snapshot)
	logger.Info("Player joined with %d currency", state.Currency)
	return nil
}

// load reads every key concurrently. Keys that are not stored are returned in
// unset. A key whose read keeps failing is treated as zero but not written back.
func (a *Authority) load(ctx context.Context, player string) (progression.State, []progression.Key, error) {
	keys := progression.AllKeys()
	values := make([]int64, len(keys))
	found := make([]bool, len(keys))
	failed := make([]bool, len(keys))

	g, gctx := errgroup.WithContext(ctx)
	for i, key := range keys {
		i, key := i, key
		g.Go(func() error {
			v, ok, err := a.read(gctx, player, key)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				a.logger.With("player", player).Warn("Failed to read %s, using 0: %v", key, err)
				failed[i] = true
				return nil
			}
			values[i], found[i] = v, ok
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return progression.State{}, nil, err
	}

	state := progression.NewState()
	var unset []progression.Key
	for i, key := range keys {
		switch {
		case found[i]:
			state.Set(key, values[i])
		case !failed[i]:
			unset = append(unset, key)
		}
	}
	return state, unset, nil
}

// withPending overrides loaded values with pending ones and drops them from unset.
func withPending(state *progression.State, unset []progression.Key, pending map[progression.Key]int64) []progression.Key {
	for key, value := range pending {
		state.Set(key, value)
	}
	remaining := unset[:0]
	for _, key := range unset {
		if _, ok := pending[key]; !ok {
			remaining = append(remaining, key)
		}
	}
	return remaining
}

func (a *Authority) read(ctx context.Context, player string, key progression.Key) (int64, bool, error) {
	var value int64
	var found bool
	operation := func() error {
		v, ok, err := a.repository.Get(ctx, player, key)
		if err != nil {
			return err
		}
		value, found = v, ok
		return nil
	}
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = a.readBackoff
	policy.MaxElapsedTime = 0
	if err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(policy, a.readRetries), ctx)); err != nil {
		return 0, false, err
	}
	return value, found, nil
}

func (a *Authority) save(ctx context.Context, snapshot progression.Snapshot, keys ...progression.Key) {
	if err := a.saver.Save(ctx, snapshot, keys...); err != nil {
		a.logger.With("player", snapshot.Player()).Debug("Save of %v did not complete inline: %v", keys, err)
	}
}

// OnPlayerLeave evicts the player's cached state. Nothing is written.
func (a *Authority) OnPlayerLeave(player string) {
	a.lock.Lock()
	_, ok := a.players[player]
	delete(a.players, player)
	a.lock.Unlock()
	if ok {
		metrics.PlayersOnline.Dec()
		a.logger.With("player", player).Info("Player left")
	}
}

// CreditCurrency adds amount to the player's currency, writes it through and
// publishes the new snapshot followed by a currency change signal.
func (a *Authority) CreditCurrency(ctx context.Context, player string, amount int64) (progression.Snapshot, error) {
	if amount <= 0 {
		return progression.Snapshot{}, ErrInvalidAmount
	}
	e := a.entry(player)
	if e == nil {
		return progression.Snapshot{}, ErrPlayerNotReady
	}

	e.lock.Lock()
	defer e.lock.Unlock()

	if amount > math.MaxInt64-e.state.Currency {
		return progression.Snapshot{}, ErrInvalidAmount
	}
	e.state.Currency += amount
	e.version++
	snapshot := e.snapshot(player)
	a.save(ctx, snapshot, progression.KeyCoins)
	a.publish(snapshot)
	metrics.CurrencyCredited.Add(float64(amount))
	return snapshot, nil
}

func (a *Authority) publish(snapshot progression.Snapshot) {
	a.publisher.Publish(snapshot)
	a.publisher.PublishCurrencyChanged(bus.CurrencyChanged{
		Player:   snapshot.Player(),
		Currency: snapshot.Currency(),
		Epoch:    snapshot.Epoch(),
		Version:  snapshot.Version(),
	})
}

// ApplyPurchase reports whether the purchase was accepted.
func (a *Authority) ApplyPurchase(ctx context.Context, req progression.PurchaseRequest) (bool, error) {
	result, err := a.Purchase(ctx, req)
	if err != nil {
		return false, err
	}
	return result.Accepted, nil
}

// Purchase re-validates req against the cached state. An accepted purchase
// debits the cost, raises the level by one, persists both and publishes. A
// rejected one changes nothing. The result always carries the state right
// after the decision.
func (a *Authority) Purchase(ctx context.Context, req progression.PurchaseRequest) (progression.PurchaseResult, error) {
	if err := a.validate.Struct(req); err != nil {
		return progression.PurchaseResult{}, &ErrInvalidRequest{Err: err}
	}
	e := a.entry(req.Player)
	if e == nil {
		return progression.PurchaseResult{}, ErrPlayerNotReady
	}
	logger := a.logger.With("player", req.Player)

	e.lock.Lock()
	defer e.lock.Unlock()

	if reason := a.check(e.state, req); reason != progression.ReasonNone {
		metrics.Purchases.WithLabelValues(string(req.Key), string(reason)).Inc()
		logger.Debug("Rejected purchase of %s for %d: %s", req.Key, req.Cost, reason)
		return progression.PurchaseResult{
			Reason:   reason,
			Snapshot: e.snapshot(req.Player),
		}, nil
	}

	e.state.Currency -= req.Cost
	e.state.Levels[req.Key]++
	e.version++
	snapshot := e.snapshot(req.Player)
	a.save(ctx, snapshot, req.Key, progression.KeyCoins)
	a.publish(snapshot)

	metrics.Purchases.WithLabelValues(string(req.Key), "accepted").Inc()
	logger.Info("Purchased %s level %d for %d", req.Key, snapshot.Level(req.Key), req.Cost)
	return progression.PurchaseResult{
		Accepted: true,
		Snapshot: snapshot,
	}, nil
}

func (a *Authority) check(state progression.State, req progression.PurchaseRequest) progression.RejectReason {
	if !req.Key.IsUpgrade() {
		return progression.ReasonUnknownKey
	}
	if a.catalog != nil {
		upgrade, ok := a.catalog.Lookup(req.Key)
		if !ok {
			return progression.ReasonUnknownKey
		}
		if upgrade.Cost != req.Cost {
			return progression.ReasonPriceMismatch
		}
		if upgrade.MaxLevel > 0 && state.Levels[req.Key] >= upgrade.MaxLevel {
			return progression.ReasonMaxLevel
		}
	}
	if req.Cost > state.Currency {
		return progression.ReasonInsufficientFunds
	}
	return progression.ReasonNone
}

// RequestSnapshot returns the player's current snapshot.
func (a *Authority) RequestSnapshot(ctx context.Context, player string) (progression.Snapshot, error) {
	e := a.entry(player)
	if e == nil {
		return progression.Snapshot{}, ErrPlayerNotReady
	}
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.snapshot(player), nil
}

// Players returns the ids of every cached player.
func (a *Authority) Players() []string {
	a.lock.RLock()
	defer a.lock.RUnlock()
	players := make([]string, 0, len(a.players))
	for player := range a.players {
		players = append(players, player)
	}
	return players
}
