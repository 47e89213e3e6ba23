package directory

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/coursova/lichess-stats-bot/internal/domain"
)

// Memory is a development and test directory used when no DB is
// configured.
type Memory struct {
	mu   sync.RWMutex
	byID map[string]domain.PlayerSnapshot
	keys map[string]string // lower(username) -> id
}

func NewMemory() *Memory {
	return &Memory{
		byID: map[string]domain.PlayerSnapshot{},
		keys: map[string]string{},
	}
}

func (m *Memory) Upsert(ctx context.Context, snap domain.PlayerSnapshot) error {
	key := strings.ToLower(snap.Username)

	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.keys[key]; ok {
		snap.ID = id
	} else if snap.ID == "" {
		snap.ID = uuid.NewString()
	}
	m.byID[snap.ID] = snap
	m.keys[key] = snap.ID
	return nil
}

func (m *Memory) GetByUsername(ctx context.Context, username string) (*domain.PlayerSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.keys[strings.ToLower(username)]
	if !ok {
		return nil, nil
	}
	snap := m.byID[id]
	return &snap, nil
}

func (m *Memory) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.byID[id]
	if !ok {
		return nil
	}
	delete(m.byID, id)
	delete(m.keys, strings.ToLower(snap.Username))
	return nil
}
