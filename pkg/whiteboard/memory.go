package whiteboard

import (
	"context"
	"sync"
)

type MemoryStore struct {
	lock   sync.RWMutex
	boards map[string]*Board
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		boards: make(map[string]*Board),
	}
}

func (m *MemoryStore) Get(_ context.Context, classID string) (*Board, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	b, ok := m.boards[classID]
	if !ok {
		return emptyBoard(), nil
	}
	out := &Board{Data: append([]Segment{}, b.Data...)}
	if b.Config != nil {
		config := *b.Config
		out.Config = &config
	}
	return out, nil
}

func (m *MemoryStore) SetConfig(_ context.Context, classID string, config DrawConfig) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.board(classID).Config = &config
	return nil
}

func (m *MemoryStore) Append(_ context.Context, classID string, segment Segment) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	b := m.board(classID)
	b.Data = append(b.Data, segment)
	return nil
}

func (m *MemoryStore) Clear(_ context.Context, classID string) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	if b, ok := m.boards[classID]; ok {
		b.Data = []Segment{}
	}
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, classID string) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	delete(m.boards, classID)
	return nil
}

// must hold lock
func (m *MemoryStore) board(classID string) *Board {
	b, ok := m.boards[classID]
	if !ok {
		b = emptyBoard()
		m.boards[classID] = b
	}
	return b
}
