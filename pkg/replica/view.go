package replica

import "github.com/cbodonnell/progsync/pkg/progression"

// overlay is a purchase shown before the authority answered. It is built on
// base and is superseded by any newer authoritative snapshot.
type overlay struct {
	key  progression.Key
	cost int64
	base progression.Snapshot
}

// view is an immutable read model: the authoritative snapshot with pending
// optimistic purchases folded in.
type view struct {
	snapshot progression.Snapshot
	pending  map[string]overlay
	currency int64
	levels   map[progression.Key]int64
}

func newView(snapshot progression.Snapshot, pending map[string]overlay) *view {
	v := &view{
		snapshot: snapshot,
		pending:  make(map[string]overlay, len(pending)),
		currency: snapshot.Currency(),
		levels:   snapshot.Levels(),
	}
	for id, o := range pending {
		if snapshot.NewerThan(o.base) {
			continue
		}
		v.pending[id] = o
		v.currency -= o.cost
		v.levels[o.key]++
	}
	return v
}
