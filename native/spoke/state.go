package spoke

import (
	"sync"

	"github.com/google/uuid"

	"github.com/Tilt-github/aave-v4-sub006/native/positions"
)

// State is the persistence boundary of the risk engine. Get methods return
// copies the caller owns (or nil when absent); mutations land only through Put.
type State interface {
	GetReserve(id ReserveID) (*Reserve, error)
	PutReserve(id ReserveID, reserve *Reserve) error
	// ReserveCount is the number of listed reserves; reserve ids are dense
	// in [0, count).
	ReserveCount() (uint16, error)
	SetReserveCount(count uint16) error
	GetPosition(user uuid.UUID, id ReserveID) (*UserPosition, error)
	PutPosition(user uuid.UUID, id ReserveID, pos *UserPosition) error
	GetStatus(user uuid.UUID) (*positions.Map, error)
	PutStatus(user uuid.UUID, status *positions.Map) error
}

// MemoryState is an in-memory State used by tests and the batch executor.
type MemoryState struct {
	mu       sync.RWMutex
	reserves map[ReserveID]*Reserve
	count    uint16
	pos      map[uuid.UUID]map[ReserveID]*UserPosition
	status   map[uuid.UUID]*positions.Map
}

// NewMemoryState returns an empty in-memory state.
func NewMemoryState() *MemoryState {
	return &MemoryState{
		reserves: make(map[ReserveID]*Reserve),
		pos:      make(map[uuid.UUID]map[ReserveID]*UserPosition),
		status:   make(map[uuid.UUID]*positions.Map),
	}
}

func (m *MemoryState) GetReserve(id ReserveID) (*Reserve, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reserves[id].Clone(), nil
}

func (m *MemoryState) PutReserve(id ReserveID, reserve *Reserve) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reserves[id] = reserve.Clone()
	return nil
}

func (m *MemoryState) ReserveCount() (uint16, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.count, nil
}

func (m *MemoryState) SetReserveCount(count uint16) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.count = count
	return nil
}

func (m *MemoryState) GetPosition(user uuid.UUID, id ReserveID) (*UserPosition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	byUser, ok := m.pos[user]
	if !ok {
		return nil, nil
	}
	return byUser[id].Clone(), nil
}

func (m *MemoryState) PutPosition(user uuid.UUID, id ReserveID, pos *UserPosition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byUser, ok := m.pos[user]
	if !ok {
		byUser = make(map[ReserveID]*UserPosition)
		m.pos[user] = byUser
	}
	byUser[id] = pos.Clone()
	return nil
}

func (m *MemoryState) GetStatus(user uuid.UUID) (*positions.Map, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	status, ok := m.status[user]
	if !ok {
		return &positions.Map{}, nil
	}
	return status.Clone(), nil
}

func (m *MemoryState) PutStatus(user uuid.UUID, status *positions.Map) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status[user] = status.Clone()
	return nil
}

// Snapshot returns a deep copy of the whole state for batch execution.
func (m *MemoryState) Snapshot() *MemoryState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap := NewMemoryState()
	snap.count = m.count
	for id, reserve := range m.reserves {
		snap.reserves[id] = reserve.Clone()
	}
	for user, byUser := range m.pos {
		cloned := make(map[ReserveID]*UserPosition, len(byUser))
		for id, pos := range byUser {
			cloned[id] = pos.Clone()
		}
		snap.pos[user] = cloned
	}
	for user, status := range m.status {
		snap.status[user] = status.Clone()
	}
	return snap
}

// Restore replaces the state contents with the given snapshot.
func (m *MemoryState) Restore(snap *MemoryState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.count = snap.count
	m.reserves = snap.reserves
	m.pos = snap.pos
	m.status = snap.status
}
