package replica

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cbodonnell/progsync/pkg/bus"
	"github.com/cbodonnell/progsync/pkg/log"
	"github.com/cbodonnell/progsync/pkg/progression"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
)

const (
	DefaultMaxWait        = 5 * time.Second
	DefaultInitialBackoff = 50 * time.Millisecond
)

var (
	ErrClosed         = errors.New("replica is closed")
	ErrNotInitialized = errors.New("replica is not initialized")
)

// Source is where a replica pulls snapshots from and sends purchases to.
// The authority satisfies it in process; the network client does remotely.
type Source interface {
	RequestSnapshot(ctx context.Context, player string) (progression.Snapshot, error)
	Purchase(ctx context.Context, req progression.PurchaseRequest) (progression.PurchaseResult, error)
}

// Subscriber is the read side of the snapshot bus.
type Subscriber interface {
	Subscribe(player string, fn func(progression.Snapshot)) *bus.Subscription
}

// Replica is a read-mostly mirror of one player's progression. Reads are lock
// free; every update swaps in a new immutable view.
type Replica struct {
	source         Source
	subscriber     Subscriber
	maxWait        time.Duration
	initialBackoff time.Duration
	optimistic     bool
	onChange       func(progression.Snapshot)

	player string
	view   atomic.Pointer[view]
	// writeLock serializes view swaps so a pending overlay is never lost.
	writeLock sync.Mutex
	sub       *bus.Subscription
	closed    atomic.Bool
	logger    *log.Logger
}

type NewReplicaOptions struct {
	Source     Source
	Subscriber Subscriber
	// MaxWait bounds how long Initialize pulls before continuing with zeros.
	MaxWait        time.Duration
	InitialBackoff time.Duration
	// Optimistic shows a proposed purchase immediately, before the authority answers.
	Optimistic bool
	// OnChange is called with the authoritative snapshot after every accepted
	// update. It runs on the updating goroutine and must not block.
	OnChange func(progression.Snapshot)
}

func NewReplica(opts NewReplicaOptions) *Replica {
	if opts.MaxWait <= 0 {
		opts.MaxWait = DefaultMaxWait
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = DefaultInitialBackoff
	}
	r := &Replica{
		source:         opts.Source,
		subscriber:     opts.Subscriber,
		maxWait:        opts.MaxWait,
		initialBackoff: opts.InitialBackoff,
		optimistic:     opts.Optimistic,
		onChange:       opts.OnChange,
		logger:         log.With("component", "replica"),
	}
	r.view.Store(newView(progression.EmptySnapshot(""), nil))
	return r
}

// Initialize binds the replica to player, subscribes to its snapshots and then
// pulls the current one. If the source is not ready it retries with backoff for
// up to MaxWait and then continues with zeros; the subscription still brings the
// replica up to date once the authority publishes.
func (r *Replica) Initialize(ctx context.Context, player string) error {
	if r.closed.Load() {
		return ErrClosed
	}
	if player == "" {
		return fmt.Errorf("player is required")
	}

	r.writeLock.Lock()
	if r.player != "" {
		bound := r.player
		r.writeLock.Unlock()
		if bound == player {
			return nil
		}
		return fmt.Errorf("replica already bound to player %s", bound)
	}
	r.player = player
	r.logger = r.logger.With("player", player)
	r.view.Store(newView(progression.EmptySnapshot(player), nil))
	r.writeLock.Unlock()

	r.sub = r.subscriber.Subscribe(player, r.OnSnapshot)

	operation := func() error {
		if !r.view.Load().snapshot.IsZero() {
			return nil
		}
		snapshot, err := r.source.RequestSnapshot(ctx, player)
		if err != nil {
			r.logger.Trace("Snapshot not available yet: %v", err)
			return err
		}
		r.OnSnapshot(snapshot)
		return nil
	}
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = r.initialBackoff
	policy.MaxElapsedTime = r.maxWait
	err := backoff.Retry(operation, backoff.WithContext(policy, ctx))
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	r.logger.Warn("No snapshot after %s, continuing with defaults: %v", r.maxWait, err)
	return nil
}

// Player returns the player the replica is bound to.
func (r *Replica) Player() string {
	return r.view.Load().snapshot.Player()
}

// CurrentLevel returns the level of key including pending optimistic purchases.
func (r *Replica) CurrentLevel(key progression.Key) int64 {
	return r.view.Load().levels[key]
}

// CurrentCurrency returns the currency including pending optimistic purchases.
func (r *Replica) CurrentCurrency() int64 {
	return r.view.Load().currency
}

// Snapshot returns the last authoritative snapshot, without optimistic overlays.
func (r *Replica) Snapshot() progression.Snapshot {
	return r.view.Load().snapshot
}

// OnSnapshot replaces the cached state with snapshot unless it belongs to
// another player or is older than the one already held.
func (r *Replica) OnSnapshot(snapshot progression.Snapshot) {
	r.apply(snapshot, "")
}

// apply swaps in snapshot and drops the overlay settled by it, if any, in one step.
func (r *Replica) apply(snapshot progression.Snapshot, settled string) {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	if r.closed.Load() || snapshot.Player() != r.player {
		return
	}
	current := r.view.Load()
	pending := current.pending
	if _, ok := pending[settled]; ok {
		pending = without(pending, settled)
	}
	if current.snapshot.NewerThan(snapshot) {
		r.logger.Trace("Dropped stale snapshot %d/%d", snapshot.Epoch(), snapshot.Version())
		r.view.Store(newView(current.snapshot, pending))
		return
	}
	r.view.Store(newView(snapshot, pending))
	if r.onChange != nil {
		r.onChange(snapshot)
	}
}

// ProposePurchase asks the authority to buy one level of key for cost. With
// optimistic updates enabled the purchase shows up immediately and is replaced
// by the authority's snapshot once the answer arrives, so a rejection rolls back.
// An overlay also disappears as soon as any newer snapshot arrives, so a
// purchase is never counted twice.
func (r *Replica) ProposePurchase(ctx context.Context, key progression.Key, cost int64) (bool, error) {
	if r.closed.Load() {
		return false, ErrClosed
	}
	player := r.Player()
	if player == "" {
		return false, ErrNotInitialized
	}

	id := uuid.NewString()
	// only upgrades that look affordable locally are shown early
	optimistic := r.optimistic && key.IsUpgrade() && cost <= r.CurrentCurrency()
	if optimistic {
		r.addOverlay(id, key, cost)
	}

	result, err := r.source.Purchase(ctx, progression.PurchaseRequest{
		ID:     id,
		Player: player,
		Key:    key,
		Cost:   cost,
	})

	if err != nil {
		if optimistic {
			r.removeOverlay(id)
		}
		return false, fmt.Errorf("failed to purchase %s: %w", key, err)
	}
	r.apply(result.Snapshot, id)
	if !result.Accepted {
		r.logger.Debug("Purchase of %s rejected: %s", key, result.Reason)
	}
	return result.Accepted, nil
}

func (r *Replica) addOverlay(id string, key progression.Key, cost int64) {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()
	current := r.view.Load()
	pending := make(map[string]overlay, len(current.pending)+1)
	for k, v := range current.pending {
		pending[k] = v
	}
	pending[id] = overlay{key: key, cost: cost, base: current.snapshot}
	r.view.Store(newView(current.snapshot, pending))
}

func (r *Replica) removeOverlay(id string) {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()
	current := r.view.Load()
	if _, ok := current.pending[id]; !ok {
		return
	}
	r.view.Store(newView(current.snapshot, without(current.pending, id)))
}

func without(pending map[string]overlay, id string) map[string]overlay {
	out := make(map[string]overlay, len(pending))
	for k, v := range pending {
		if k != id {
			out[k] = v
		}
	}
	return out
}

// Close stops receiving snapshots. Reads keep returning the last state.
func (r *Replica) Close() {
	if r.closed.Swap(true) {
		return
	}
	if r.sub != nil {
		r.sub.Unsubscribe()
	}
}
