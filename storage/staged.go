package storage

import "sync"

// Staged buffers writes over a base database until Commit, giving multi-step
// flows all-or-nothing semantics on persistent backends. Reads see the
// buffered writes first. Discard drops the buffer.
type Staged struct {
	base   Database
	mu     sync.RWMutex
	writes map[string][]byte
}

// NewStaged wraps the base database with a write buffer.
func NewStaged(base Database) *Staged {
	return &Staged{
		base:   base,
		writes: make(map[string][]byte),
	}
}

func (s *Staged) Put(key []byte, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes[string(key)] = append([]byte(nil), value...)
	return nil
}

func (s *Staged) Get(key []byte) ([]byte, error) {
	s.mu.RLock()
	value, ok := s.writes[string(key)]
	s.mu.RUnlock()
	if ok {
		return value, nil
	}
	return s.base.Get(key)
}

// Close satisfies the Database interface; the base stays open.
func (s *Staged) Close() {}

// Commit flushes the buffered writes to the base database and resets the
// buffer. Keys flush in insertion-independent order; records are independent.
func (s *Staged) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, value := range s.writes {
		if err := s.base.Put([]byte(key), value); err != nil {
			return err
		}
	}
	s.writes = make(map[string][]byte)
	return nil
}

// Discard drops the buffered writes.
func (s *Staged) Discard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = make(map[string][]byte)
}
