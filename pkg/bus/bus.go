package bus

import (
	"context"
	"sync"

	"github.com/cbodonnell/progsync/pkg/log"
	"github.com/cbodonnell/progsync/pkg/metrics"
	"github.com/cbodonnell/progsync/pkg/progression"
	"github.com/cbodonnell/progsync/pkg/queue"
	"github.com/google/uuid"
)

// CurrencyChanged is the lightweight signal published alongside a snapshot
// whenever a player's currency moves.
type CurrencyChanged struct {
	Player   string
	Currency int64
	Epoch    int64
	Version  uint64
}

// Publisher is the write side of the bus used by the authority.
type Publisher interface {
	Publish(snapshot progression.Snapshot)
	PublishCurrencyChanged(event CurrencyChanged)
}

// Bus fans snapshots out to subscribers. Every subscriber owns a queue and a
// delivery goroutine, so publishing never blocks on a slow consumer and each
// subscriber sees events in publish order.
type Bus struct {
	subs   map[string]*Subscription
	lock   sync.RWMutex
	closed bool
	logger *log.Logger
}

func New() *Bus {
	return &Bus{
		subs:   make(map[string]*Subscription),
		logger: log.With("component", "bus"),
	}
}

// Publish delivers snapshot to every snapshot subscriber whose filter matches.
func (b *Bus) Publish(snapshot progression.Snapshot) {
	metrics.SnapshotsPublished.WithLabelValues("snapshot").Inc()
	b.publish(snapshot.Player(), snapshot)
}

// PublishCurrencyChanged delivers event to every currency subscriber whose filter matches.
func (b *Bus) PublishCurrencyChanged(event CurrencyChanged) {
	metrics.SnapshotsPublished.WithLabelValues("currency").Inc()
	b.publish(event.Player, event)
}

func (b *Bus) publish(player string, event interface{}) {
	b.lock.RLock()
	defer b.lock.RUnlock()
	if b.closed {
		return
	}
	for _, sub := range b.subs {
		if !sub.accepts(player, event) {
			continue
		}
		if err := sub.queue.Enqueue(event); err != nil {
			// the subscription is being torn down
			b.logger.Trace("Dropped event for subscription %s: %v", sub.id, err)
		}
	}
}

// Subscribe registers fn for snapshots of player. An empty player receives every player's snapshots.
func (b *Bus) Subscribe(player string, fn func(progression.Snapshot)) *Subscription {
	return b.subscribe(player, fn, nil)
}

// SubscribeCurrency registers fn for currency changes of player. An empty player receives every player's changes.
func (b *Bus) SubscribeCurrency(player string, fn func(CurrencyChanged)) *Subscription {
	return b.subscribe(player, nil, fn)
}

func (b *Bus) subscribe(player string, onSnapshot func(progression.Snapshot), onCurrency func(CurrencyChanged)) *Subscription {
	sub := &Subscription{
		id:         uuid.NewString(),
		player:     player,
		onSnapshot: onSnapshot,
		onCurrency: onCurrency,
		queue:      queue.NewInMemoryQueue(0),
		done:       make(chan struct{}),
		bus:        b,
	}

	b.lock.Lock()
	if b.closed {
		b.lock.Unlock()
		sub.closed = true
		sub.queue.Close()
		close(sub.done)
		return sub
	}
	b.subs[sub.id] = sub
	b.lock.Unlock()

	metrics.BusSubscribers.Inc()
	go sub.run(b.logger)
	return sub
}

func (b *Bus) remove(id string) bool {
	b.lock.Lock()
	defer b.lock.Unlock()
	if _, ok := b.subs[id]; !ok {
		return false
	}
	delete(b.subs, id)
	return true
}

// Close unsubscribes everyone. Publishing afterwards is a no-op.
func (b *Bus) Close() {
	b.lock.Lock()
	b.closed = true
	subs := make([]*Subscription, 0, len(b.subs))
	for _, sub := range b.subs {
		subs = append(subs, sub)
	}
	b.lock.Unlock()

	for _, sub := range subs {
		sub.Unsubscribe()
	}
}

// Subscription is a registered callback. The zero value is not usable.
type Subscription struct {
	id         string
	player     string
	onSnapshot func(progression.Snapshot)
	onCurrency func(CurrencyChanged)
	queue      *queue.InMemoryQueue
	bus        *Bus

	deliverLock sync.Mutex
	closed      bool
	done        chan struct{}
	once        sync.Once
}

func (s *Subscription) ID() string {
	return s.id
}

func (s *Subscription) accepts(player string, event interface{}) bool {
	if s.player != "" && s.player != player {
		return false
	}
	switch event.(type) {
	case progression.Snapshot:
		return s.onSnapshot != nil
	case CurrencyChanged:
		return s.onCurrency != nil
	default:
		return false
	}
}

func (s *Subscription) run(logger *log.Logger) {
	defer close(s.done)
	for {
		event, err := s.queue.Dequeue(context.Background())
		if err != nil {
			return
		}
		if !s.deliver(logger, event) {
			return
		}
	}
}

// deliver invokes the callback unless the subscription was cancelled.
func (s *Subscription) deliver(logger *log.Logger, event interface{}) bool {
	s.deliverLock.Lock()
	defer s.deliverLock.Unlock()
	if s.closed {
		return false
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Subscriber %s panicked: %v", s.id, r)
		}
	}()

	switch e := event.(type) {
	case progression.Snapshot:
		s.onSnapshot(e)
	case CurrencyChanged:
		s.onCurrency(e)
	}
	return true
}

// Unsubscribe stops delivery. Once it returns the callback is never invoked
// again; a callback already running is waited for. It must not be called from
// within the subscription's own callback.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		removed := s.bus.remove(s.id)

		s.deliverLock.Lock()
		s.closed = true
		s.deliverLock.Unlock()

		s.queue.Close()
		if removed {
			metrics.BusSubscribers.Dec()
		}
	})
}

// Done is closed when the delivery goroutine has exited.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}
