package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/web3guy0/polyneko/internal/config"
)

func TestState_RecordResult(t *testing.T) {
	s := NewState(config.RiskConfig{MaxConsecutiveLosses: 3, LossCooldown: 15 * time.Minute})
	t0 := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	s.RecordResult(true, t0)
	s.RecordResult(true, t0)
	snap := s.Snapshot()
	assert.Equal(t, 2, snap.WinStreak)
	assert.Equal(t, 0, snap.ConsecutiveLosses)

	s.RecordResult(false, t0)
	snap = s.Snapshot()
	assert.Equal(t, 0, snap.WinStreak)
	assert.Equal(t, 1, snap.ConsecutiveLosses)
	assert.Equal(t, t0, snap.LastLossTime)
	assert.Equal(t, 2, snap.SessionWins)
	assert.Equal(t, 1, snap.SessionLosses)
	assert.InDelta(t, 2.0/3.0, snap.WinRate(), 1e-9)

	s.RecordResult(true, t0)
	assert.Equal(t, 0, s.Snapshot().ConsecutiveLosses)
}

func TestState_Cooldown(t *testing.T) {
	s := NewState(config.RiskConfig{MaxConsecutiveLosses: 3, LossCooldown: 15 * time.Minute})
	t0 := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	s.RecordResult(false, t0)
	s.RecordResult(false, t0.Add(15*time.Minute))
	assert.False(t, s.InCooldown(t0.Add(16*time.Minute)))

	last := t0.Add(30 * time.Minute)
	s.RecordResult(false, last)
	assert.True(t, s.InCooldown(last.Add(time.Minute)))
	assert.Equal(t, 5*time.Minute, s.CooldownRemaining(last.Add(10*time.Minute)))
	assert.False(t, s.InCooldown(last.Add(15*time.Minute)))
	assert.Equal(t, time.Duration(0), s.CooldownRemaining(last.Add(20*time.Minute)))

	// a win clears it immediately
	s.RecordResult(false, last)
	s.RecordResult(true, last)
	assert.False(t, s.InCooldown(last.Add(time.Second)))
}
