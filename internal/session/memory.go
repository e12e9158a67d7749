package session

import "sync"

// MemoryStore implements the Store interface with in-process maps
type MemoryStore struct {
	mu     sync.Mutex
	images map[string]PendingImage
	stages map[string]Stage
}

// NewMemoryStore creates a new MemoryStore instance
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		images: make(map[string]PendingImage),
		stages: make(map[string]Stage),
	}
}

// PutImage stores the pending image for a user
func (m *MemoryStore) PutImage(userID string, img PendingImage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.images[userID] = img
	return nil
}

// TakeImage returns and clears the pending image for a user
func (m *MemoryStore) TakeImage(userID string) (*PendingImage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	img, ok := m.images[userID]
	if !ok {
		return nil, ErrNoPendingImage
	}
	delete(m.images, userID)
	return &img, nil
}

// Stage returns the stage for a user
func (m *MemoryStore) Stage(userID string) (Stage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if stage, ok := m.stages[userID]; ok {
		return stage, nil
	}
	return StageIdle, nil
}

// SetStage sets the stage for a user
func (m *MemoryStore) SetStage(userID string, stage Stage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if stage == StageIdle {
		delete(m.stages, userID)
		return nil
	}
	m.stages[userID] = stage
	return nil
}
