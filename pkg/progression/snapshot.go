package progression

// Snapshot is an immutable copy of one player's State at a point in time.
//
// Epoch identifies the authority session the snapshot came from (it changes
// every time the player joins) and Version increases with every change inside
// an epoch. Snapshots are ordered by (Epoch, Version).
type Snapshot struct {
	player   string
	epoch    int64
	version  uint64
	currency int64
	levels   map[Key]int64
}

// NewSnapshot copies state into a new snapshot.
func NewSnapshot(player string, epoch int64, version uint64, state State) Snapshot {
	c := state.Copy()
	return Snapshot{
		player:   player,
		epoch:    epoch,
		version:  version,
		currency: c.Currency,
		levels:   c.Levels,
	}
}

// EmptySnapshot is the default-zero view used before any snapshot arrived.
func EmptySnapshot(player string) Snapshot {
	return NewSnapshot(player, 0, 0, NewState())
}

func (s Snapshot) Player() string { return s.player }
func (s Snapshot) Epoch() int64 { return s.epoch }
func (s Snapshot) Version() uint64 { return s.version }
func (s Snapshot) Currency() int64 { return s.currency }
func (s Snapshot) IsZero() bool { return s.epoch == 0 && s.version == 0 }
func (s Snapshot) Level(k Key) int64 { return s.levels[k] }

// Levels returns a copy of the level map.
func (s Snapshot) Levels() map[Key]int64 {
	levels := make(map[Key]int64, len(s.levels))
	for k, v := range s.levels {
		levels[k] = v
	}
	return levels
}

// State returns a mutable copy of the snapshot contents.
func (s Snapshot) State() State {
	return State{Currency: s.currency, Levels: s.Levels()}
}

// NewerThan reports whether s was produced after other.
func (s Snapshot) NewerThan(other Snapshot) bool {
	if s.epoch != other.epoch {
		return s.epoch > other.epoch
	}
	return s.version > other.version
}

// Equal compares identity tags and contents.
func (s Snapshot) Equal(other Snapshot) bool {
	if s.player != other.player || s.epoch != other.epoch || s.version != other.version || s.currency != other.currency {
		return false
	}
	for _, k := range upgradeKeys {
		if s.levels[k] != other.levels[k] {
			return false
		}
	}
	return true
}
