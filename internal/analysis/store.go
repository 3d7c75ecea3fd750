package analysis

import (
	"errors"
	"sync"
	"time"

	"github.com/rawblock/ringbreaker-engine/pkg/models"
)

// Store holds the most recent analysis result for the read endpoints. The
// API serves whatever the last successful upload produced; a new upload
// replaces the whole snapshot atomically.

var (
	ErrNoAnalysis      = errors.New("no analysis has been run yet")
	ErrRingNotFound    = errors.New("ring not found")
	ErrAccountNotFound = errors.New("account not found in the latest analysis")
)

// Snapshot is one completed analysis together with the transactions that
// produced it, kept for the graph projection endpoints.
type Snapshot struct {
	Result       *models.AnalysisResult
	Transactions []models.Transaction
	CompletedAt  time.Time
}

type Store struct {
	mu   sync.RWMutex
	snap *Snapshot

	// lookup indexes rebuilt on Replace
	ringsByID    map[string]*models.FraudRing
	accountsByID map[string]*models.SuspiciousAccount
}

func NewStore() *Store {
	return &Store{}
}

// Replace swaps in a new analysis snapshot. The previous one is discarded.
func (s *Store) Replace(result *models.AnalysisResult, txs []models.Transaction) {
	rings := make(map[string]*models.FraudRing, len(result.FraudRings))
	for i := range result.FraudRings {
		rings[result.FraudRings[i].RingID] = &result.FraudRings[i]
	}
	accounts := make(map[string]*models.SuspiciousAccount, len(result.SuspiciousAccounts))
	for i := range result.SuspiciousAccounts {
		accounts[result.SuspiciousAccounts[i].AccountID] = &result.SuspiciousAccounts[i]
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = &Snapshot{Result: result, Transactions: txs, CompletedAt: time.Now().UTC()}
	s.ringsByID = rings
	s.accountsByID = accounts
}

// Latest returns the current snapshot, or ErrNoAnalysis before the first
// upload completes.
func (s *Store) Latest() (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snap == nil {
		return nil, ErrNoAnalysis
	}
	return s.snap, nil
}

// Rings returns all fraud rings from the latest analysis.
func (s *Store) Rings() ([]models.FraudRing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snap == nil {
		return nil, ErrNoAnalysis
	}
	return s.snap.Result.FraudRings, nil
}

// RingByID looks a ring up by its RING_NNN identifier.
func (s *Store) RingByID(ringID string) (*models.FraudRing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snap == nil {
		return nil, ErrNoAnalysis
	}
	ring, ok := s.ringsByID[ringID]
	if !ok {
		return nil, ErrRingNotFound
	}
	return ring, nil
}

// AccountByID looks up a flagged account from the latest analysis.
func (s *Store) AccountByID(accountID string) (*models.SuspiciousAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snap == nil {
		return nil, ErrNoAnalysis
	}
	acc, ok := s.accountsByID[accountID]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return acc, nil
}
