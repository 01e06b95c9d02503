package abilities

import (
	"sync"
	"time"

	"github.com/cbodonnell/progsync/pkg/progression"
)

const (
	DefaultBaseAirDashForce     = 10.0
	DefaultAirDashForcePerLevel = 3.0
	DefaultAirDashCooldown      = time.Second
	DefaultSpeedPerLevel        = 0.1
	DefaultJumpPerLevel         = 0.1
)

// LevelReader is the part of a replica the gates need.
type LevelReader interface {
	CurrentLevel(key progression.Key) int64
}

// Gate answers what a player may do given their purchased levels. Every
// answer is read from the replica at call time, so it follows purchases and
// rollbacks without any notification.
type Gate struct {
	levels               LevelReader
	baseAirDashForce     float64
	airDashForcePerLevel float64
	airDashCooldown      time.Duration
	speedPerLevel        float64
	jumpPerLevel         float64
	now                  func() time.Time

	lock     sync.Mutex
	lastDash time.Time
}

type NewGateOptions struct {
	Levels               LevelReader
	BaseAirDashForce     float64
	AirDashForcePerLevel float64
	AirDashCooldown      time.Duration
	SpeedPerLevel        float64
	JumpPerLevel         float64
	// Now is used for cooldowns. Defaults to time.Now.
	Now func() time.Time
}

func NewGate(opts NewGateOptions) *Gate {
	if opts.BaseAirDashForce <= 0 {
		opts.BaseAirDashForce = DefaultBaseAirDashForce
	}
	if opts.AirDashForcePerLevel <= 0 {
		opts.AirDashForcePerLevel = DefaultAirDashForcePerLevel
	}
	if opts.AirDashCooldown <= 0 {
		opts.AirDashCooldown = DefaultAirDashCooldown
	}
	if opts.SpeedPerLevel <= 0 {
		opts.SpeedPerLevel = DefaultSpeedPerLevel
	}
	if opts.JumpPerLevel <= 0 {
		opts.JumpPerLevel = DefaultJumpPerLevel
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Gate{
		levels:               opts.Levels,
		baseAirDashForce:     opts.BaseAirDashForce,
		airDashForcePerLevel: opts.AirDashForcePerLevel,
		airDashCooldown:      opts.AirDashCooldown,
		speedPerLevel:        opts.SpeedPerLevel,
		jumpPerLevel:         opts.JumpPerLevel,
		now:                  opts.Now,
	}
}

// AirDashForce returns the dash force for the current AirDash level and false
// when the ability has not been bought.
func (g *Gate) AirDashForce() (float64, bool) {
	lvl := g.levels.CurrentLevel(progression.KeyAirDash)
	if lvl <= 0 {
		return 0, false
	}
	return g.baseAirDashForce + float64(lvl-1)*g.airDashForcePerLevel, true
}

// TryAirDash returns the force of a dash and starts the cooldown, or false
// when the ability is locked or still cooling down.
func (g *Gate) TryAirDash() (float64, bool) {
	force, ok := g.AirDashForce()
	if !ok {
		return 0, false
	}
	g.lock.Lock()
	defer g.lock.Unlock()
	now := g.now()
	if !g.lastDash.IsZero() && now.Sub(g.lastDash) < g.airDashCooldown {
		return 0, false
	}
	g.lastDash = now
	return force, true
}

func (g *Gate) CanDoubleJump() bool {
	return g.levels.CurrentLevel(progression.KeyDoubleJump) > 0
}

// SpeedMultiplier scales base movement speed, 1 at level 0.
func (g *Gate) SpeedMultiplier() float64 {
	return 1 + float64(g.levels.CurrentLevel(progression.KeySpeed))*g.speedPerLevel
}

// JumpMultiplier scales base jump velocity, 1 at level 0.
func (g *Gate) JumpMultiplier() float64 {
	return 1 + float64(g.levels.CurrentLevel(progression.KeyJump))*g.jumpPerLevel
}

func (g *Gate) MaxLives() int64 {
	return MaxLives(g.levels)
}

// MaxLives is one life plus one per Lives level.
func MaxLives(levels LevelReader) int64 {
	return 1 + levels.CurrentLevel(progression.KeyLives)
}
