package store

import (
	"context"
	"encoding/json"
	"sync"

	constants "github.com/anuragn091/memory-game-cautio/internal/constants"
	models "github.com/anuragn091/memory-game-cautio/internal/models"
)

// Memory is a map-backed Store. Records are held as JSON bytes so reads
// return copies, the same value semantics the durable backends have.
type Memory struct {
	mu sync.RWMutex
	kv map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{kv: make(map[string][]byte)}
}

func (m *Memory) get(key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.kv[key]
	return data, ok
}

func (m *Memory) set(key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kv[key] = data
}

func (m *Memory) delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.kv, key)
}

func (m *Memory) SaveProfile(_ context.Context, user *models.UserData) error {
	data, err := json.Marshal(user)
	if err != nil {
		return err
	}
	m.set(constants.UserDataKey, data)
	return nil
}

func (m *Memory) GetProfile(_ context.Context) (*models.UserData, error) {
	data, ok := m.get(constants.UserDataKey)
	if !ok {
		return nil, nil
	}
	var user models.UserData
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (m *Memory) GetProfileByEmail(ctx context.Context, email string) (*models.UserData, error) {
	return profileByEmail(ctx, m, email)
}

func (m *Memory) NextGameNumber(ctx context.Context, email string) (int, error) {
	return nextGameNumber(ctx, m, email)
}

func (m *Memory) SetCurrentSession(_ context.Context, session *models.GameSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	m.set(constants.CurrentSessionKey, data)
	return nil
}

func (m *Memory) GetCurrentSession(_ context.Context) (*models.GameSession, error) {
	data, ok := m.get(constants.CurrentSessionKey)
	if !ok {
		return nil, nil
	}
	var session models.GameSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (m *Memory) ClearCurrentSession(_ context.Context) error {
	m.delete(constants.CurrentSessionKey)
	return nil
}

func (m *Memory) Close() error {
	return nil
}
