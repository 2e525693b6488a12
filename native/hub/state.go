package hub

import (
	"sort"
	"sync"

	"github.com/google/uuid"
)

// State is the persistence boundary of the ledger engine. Get methods return
// copies the caller owns (or nil when the record does not exist); mutations
// become visible only through Put.
type State interface {
	GetAsset(id AssetID) (*Asset, error)
	PutAsset(id AssetID, asset *Asset) error
	GetSubledger(id AssetID, spoke uuid.UUID) (*SpokeSubledger, error)
	PutSubledger(id AssetID, spoke uuid.UUID, sub *SpokeSubledger) error
	// Subledgers lists every spoke registered for the asset, in stable order.
	Subledgers(id AssetID) ([]uuid.UUID, error)
}

// MemoryState is an in-memory State used by tests and by the batch executor's
// snapshots.
type MemoryState struct {
	mu     sync.RWMutex
	assets map[AssetID]*Asset
	subs   map[AssetID]map[uuid.UUID]*SpokeSubledger
}

// NewMemoryState returns an empty in-memory state.
func NewMemoryState() *MemoryState {
	return &MemoryState{
		assets: make(map[AssetID]*Asset),
		subs:   make(map[AssetID]map[uuid.UUID]*SpokeSubledger),
	}
}

func (m *MemoryState) GetAsset(id AssetID) (*Asset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.assets[id].Clone(), nil
}

func (m *MemoryState) PutAsset(id AssetID, asset *Asset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assets[id] = asset.Clone()
	return nil
}

func (m *MemoryState) GetSubledger(id AssetID, spoke uuid.UUID) (*SpokeSubledger, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	byAsset, ok := m.subs[id]
	if !ok {
		return nil, nil
	}
	return byAsset[spoke].Clone(), nil
}

func (m *MemoryState) PutSubledger(id AssetID, spoke uuid.UUID, sub *SpokeSubledger) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byAsset, ok := m.subs[id]
	if !ok {
		byAsset = make(map[uuid.UUID]*SpokeSubledger)
		m.subs[id] = byAsset
	}
	byAsset[spoke] = sub.Clone()
	return nil
}

func (m *MemoryState) Subledgers(id AssetID) ([]uuid.UUID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	byAsset := m.subs[id]
	spokes := make([]uuid.UUID, 0, len(byAsset))
	for spoke := range byAsset {
		spokes = append(spokes, spoke)
	}
	sort.Slice(spokes, func(a, b int) bool {
		return spokes[a].String() < spokes[b].String()
	})
	return spokes, nil
}

// Snapshot returns a deep copy of the whole state for batch execution.
func (m *MemoryState) Snapshot() *MemoryState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap := NewMemoryState()
	for id, asset := range m.assets {
		snap.assets[id] = asset.Clone()
	}
	for id, byAsset := range m.subs {
		cloned := make(map[uuid.UUID]*SpokeSubledger, len(byAsset))
		for spoke, sub := range byAsset {
			cloned[spoke] = sub.Clone()
		}
		snap.subs[id] = cloned
	}
	return snap
}

// Restore replaces the state contents with the given snapshot.
func (m *MemoryState) Restore(snap *MemoryState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assets = snap.assets
	m.subs = snap.subs
}
