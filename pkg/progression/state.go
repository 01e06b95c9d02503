package progression

// State is the mutable per-player progression state owned by the authority.
type State struct {
	Currency int64
	Levels   map[Key]int64
}

// NewState returns a zero state with every upgrade key present.
func NewState() State {
	levels := make(map[Key]int64, len(upgradeKeys))
	for _, k := range upgradeKeys {
		levels[k] = 0
	}
	return State{Levels: levels}
}

// Copy returns a deep copy of the state. Missing upgrade keys are filled with 0.
func (s State) Copy() State {
	c := NewState()
	c.Currency = s.Currency
	for k, v := range s.Levels {
		if k.IsUpgrade() {
			c.Levels[k] = v
		}
	}
	return c
}

// Get returns the value stored under k, treating the currency key like any other.
func (s State) Get(k Key) int64 {
	if k == KeyCoins {
		return s.Currency
	}
	return s.Levels[k]
}

// Set stores v under k.
func (s *State) Set(k Key, v int64) {
	if k == KeyCoins {
		s.Currency = v
		return
	}
	if s.Levels == nil {
		s.Levels = NewState().Levels
	}
	s.Levels[k] = v
}
