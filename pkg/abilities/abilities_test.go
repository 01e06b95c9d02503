package abilities

import (
	"testing"
	"time"

	"github.com/cbodonnell/progsync/pkg/progression"
	"github.com/stretchr/testify/assert"
)

type levels map[progression.Key]int64

func (l levels) CurrentLevel(key progression.Key) int64 {
	return l[key]
}

func TestGate_AirDashForce(t *testing.T) {
	tests := []struct {
		name   string
		level  int64
		force  float64
		usable bool
	}{
		{name: "locked", level: 0, force: 0, usable: false},
		{name: "level 1", level: 1, force: 10, usable: true},
		{name: "level 3", level: 3, force: 16, usable: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGate(NewGateOptions{Levels: levels{progression.KeyAirDash: tt.level}})
			force, ok := g.AirDashForce()
			assert.Equal(t, tt.usable, ok)
			assert.InDelta(t, tt.force, force, 1e-9)
		})
	}
}

func TestGate_TryAirDashCooldown(t *testing.T) {
	now := time.Unix(100, 0)
	g := NewGate(NewGateOptions{
		Levels: levels{progression.KeyAirDash: 1},
		Now:    func() time.Time { return now },
	})

	_, ok := g.TryAirDash()
	assert.True(t, ok)
	_, ok = g.TryAirDash()
	assert.False(t, ok)

	now = now.Add(DefaultAirDashCooldown)
	_, ok = g.TryAirDash()
	assert.True(t, ok)
}

func TestGate_Levels(t *testing.T) {
	l := levels{}
	g := NewGate(NewGateOptions{Levels: l})
	assert.False(t, g.CanDoubleJump())
	assert.Equal(t, int64(1), g.MaxLives())
	assert.InDelta(t, 1.0, g.SpeedMultiplier(), 1e-9)
	assert.InDelta(t, 1.0, g.JumpMultiplier(), 1e-9)

	l[progression.KeyDoubleJump] = 1
	l[progression.KeyLives] = 2
	l[progression.KeySpeed] = 3
	l[progression.KeyJump] = 1
	assert.True(t, g.CanDoubleJump())
	assert.Equal(t, int64(3), g.MaxLives())
	assert.InDelta(t, 1.3, g.SpeedMultiplier(), 1e-9)
	assert.InDelta(t, 1.1, g.JumpMultiplier(), 1e-9)
}

func TestLives(t *testing.T) {
	l := levels{progression.KeyLives: 1}
	lives := NewLives(l)
	assert.Equal(t, int64(2), lives.Left())

	left, out := lives.Lose()
	assert.Equal(t, int64(1), left)
	assert.False(t, out)

	l[progression.KeyLives] = 2
	assert.Equal(t, int64(1), lives.Left(), "upgrades apply on the next run")

	left, out = lives.Lose()
	assert.Equal(t, int64(0), left)
	assert.True(t, out)
	left, out = lives.Lose()
	assert.Equal(t, int64(0), left)
	assert.True(t, out)

	assert.Equal(t, int64(3), lives.Reset())
}
