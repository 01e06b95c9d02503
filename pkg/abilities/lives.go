package abilities

import "sync"

// Lives tracks the lives left in the current run. The maximum is read from
// the replica when a run starts, so an upgrade bought mid-run applies on the
// next run.
type Lives struct {
	levels LevelReader

	lock sync.Mutex
	left int64
}

func NewLives(levels LevelReader) *Lives {
	l := &Lives{levels: levels}
	l.Reset()
	return l
}

// Reset starts a new run with the maximum number of lives.
func (l *Lives) Reset() int64 {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.left = MaxLives(l.levels)
	return l.left
}

// Lose takes one life and reports whether the player is out of lives.
func (l *Lives) Lose() (left int64, out bool) {
	l.lock.Lock()
	defer l.lock.Unlock()
	if l.left > 0 {
		l.left--
	}
	return l.left, l.left == 0
}

func (l *Lives) Left() int64 {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.left
}
