package ws

import (
	"sync"

	"github.com/google/uuid"
)

// MemoryPresence — presence tracker по умолчанию: потокобезопасное
// множество онлайн-пользователей в памяти процесса.
type MemoryPresence struct {
	mu     sync.RWMutex
	online map[uuid.UUID]struct{}
}

// NewMemoryPresence создаёт трекер.
func NewMemoryPresence() *MemoryPresence {
	return &MemoryPresence{online: make(map[uuid.UUID]struct{})}
}

// Connected отмечает пользователя онлайн.
func (p *MemoryPresence) Connected(userID uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.online[userID] = struct{}{}
}

// Disconnected отмечает пользователя офлайн.
func (p *MemoryPresence) Disconnected(userID uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.online, userID)
}

// IsOnline сообщает, подключён ли пользователь.
func (p *MemoryPresence) IsOnline(userID uuid.UUID) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.online[userID]
	return ok
}

// Count возвращает число онлайн-пользователей.
func (p *MemoryPresence) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.online)
}
