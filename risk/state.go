package risk

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/web3guy0/polyneko/internal/config"
)

// ═══════════════════════════════════════════════════════════════════════════════
// RISK STATE - Streaks and the consecutive-loss cooldown
// ═══════════════════════════════════════════════════════════════════════════════
//
// Outlives every slot. Written only by settlement, read by sizing and entry.
//
// ═══════════════════════════════════════════════════════════════════════════════

// Snapshot is a copy of the risk state
type Snapshot struct {
	WinStreak         int
	ConsecutiveLosses int
	LastLossTime      time.Time
	SessionWins       int
	SessionLosses     int
}

// WinRate over the session, 0 before any result
func (s Snapshot) WinRate() float64 {
	total := s.SessionWins + s.SessionLosses
	if total == 0 {
		return 0
	}
	return float64(s.SessionWins) / float64(total)
}

type State struct {
	mu sync.RWMutex

	// Configuration
	maxConsecutiveLosses int
	cooldown             time.Duration

	// State
	winStreak         int
	consecutiveLosses int
	lastLossTime      time.Time
	sessionWins       int
	sessionLosses     int
}

// NewState creates an empty risk state
func NewState(cfg config.RiskConfig) *State {
	return &State{
		maxConsecutiveLosses: cfg.MaxConsecutiveLosses,
		cooldown:             cfg.LossCooldown,
	}
}

// RecordResult applies one settled position
func (s *State) RecordResult(win bool, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if win {
		s.winStreak++
		s.consecutiveLosses = 0
		s.sessionWins++
		return
	}

	s.winStreak = 0
	s.consecutiveLosses++
	s.lastLossTime = at
	s.sessionLosses++

	if s.maxConsecutiveLosses > 0 && s.consecutiveLosses == s.maxConsecutiveLosses {
		log.Warn().
			Int("consecutive_losses", s.consecutiveLosses).
			Dur("cooldown", s.cooldown).
			Msg("🚨 Loss cooldown engaged, new entries paused")
	}
}

// InCooldown blocks new entries after too many losses in a row
func (s *State) InCooldown(now time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.maxConsecutiveLosses <= 0 || s.consecutiveLosses < s.maxConsecutiveLosses {
		return false
	}
	return now.Sub(s.lastLossTime) < s.cooldown
}

// CooldownRemaining is zero when entries are allowed
func (s *State) CooldownRemaining(now time.Time) time.Duration {
	if !s.InCooldown(now) {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cooldown - now.Sub(s.lastLossTime)
}

// Snapshot returns a copy for sizing and display
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		WinStreak:         s.winStreak,
		ConsecutiveLosses: s.consecutiveLosses,
		LastLossTime:      s.lastLossTime,
		SessionWins:       s.sessionWins,
		SessionLosses:     s.sessionLosses,
	}
}
