// Package positions implements the position store: team -> instrument
// -> signed integer holdings, mutated only by the position-tracker
// pipeline stage. All other stages read defensive-copy snapshots.
package positions

import (
	"sync"

	"go.uber.org/zap"
)

// Store is the sole writer of position state, guarded by one plain
// RWMutex (reads and writes never nest, so no reentrancy is needed).
type Store struct {
	mu       sync.RWMutex
	byTeam   map[string]map[string]int64
	logger   *zap.Logger
}

// NewStore constructs an empty position store.
func NewStore(logger *zap.Logger) *Store {
	return &Store{
		byTeam: make(map[string]map[string]int64),
		logger: logger,
	}
}

// InitializeTeam ensures teamID has an entry, idempotently. Calling it
// twice leaves any existing positions unchanged.
func (s *Store) InitializeTeam(teamID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initLocked(teamID)
}

func (s *Store) initLocked(teamID string) map[string]int64 {
	if _, ok := s.byTeam[teamID]; !ok {
		s.byTeam[teamID] = make(map[string]int64)
	}
	return s.byTeam[teamID]
}

// Update applies signedDelta to teamID's holding of instrumentID. The
// team's entry is created lazily if this is its first observation.
func (s *Store) Update(teamID, instrumentID string, signedDelta int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	positions := s.initLocked(teamID)
	positions[instrumentID] += signedDelta

	s.logger.Debug("position updated",
		zap.String("team_id", teamID),
		zap.String("instrument_id", instrumentID),
		zap.Int64("signed_delta", signedDelta),
		zap.Int64("new_position", positions[instrumentID]))
}

// GetAll returns a defensive copy of teamID's full position map. An
// unknown team reads as an empty map without mutating the store.
func (s *Store) GetAll(teamID string) map[string]int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]int64, len(s.byTeam[teamID]))
	for inst, qty := range s.byTeam[teamID] {
		out[inst] = qty
	}
	return out
}

// Get returns teamID's signed holding of instrumentID. An absent team
// or instrument reads as zero without mutation.
func (s *Store) Get(teamID, instrumentID string) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byTeam[teamID][instrumentID]
}

// TotalAbsolute returns the sum of |position| across every instrument
// teamID holds.
func (s *Store) TotalAbsolute(teamID string) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total int64
	for _, qty := range s.byTeam[teamID] {
		if qty < 0 {
			total -= qty
		} else {
			total += qty
		}
	}
	return total
}
