package ws

import (
	"sync"

	"github.com/google/uuid"

	"github.com/ignatzorin/jobmarket-backend/internal/logger"
)

// PresenceTracker получает события подключения и отключения
// пользователей. Внедряется снаружи: хаб не владеет списком "кто
// онлайн", он только сообщает о фактах.
type PresenceTracker interface {
	Connected(userID uuid.UUID)
	Disconnected(userID uuid.UUID)
}

// Hub раздаёт push-уведомления по открытым WebSocket соединениям.
// Хаб — чистый транспорт: сохранением уведомлений занимается сервис
// уведомлений до обращения сюда.
type Hub struct {
	mu       sync.RWMutex
	clients  map[uuid.UUID]map[*Client]struct{}
	presence PresenceTracker
}

// NewHub создаёт хаб.
func NewHub(presence PresenceTracker) *Hub {
	return &Hub{
		clients:  make(map[uuid.UUID]map[*Client]struct{}),
		presence: presence,
	}
}

// Push отправляет сообщение во все соединения пользователя.
// Возвращает false, если пользователь не подключён.
func (h *Hub) Push(userID uuid.UUID, payload []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	conns, ok := h.clients[userID]
	if !ok || len(conns) == 0 {
		return false
	}

	for client := range conns {
		select {
		case client.send <- payload:
		default:
			// Переполненный буфер — мёртвое соединение, закрываем его
			// вне блокировки.
			go client.Close()
		}
	}
	return true
}

// Register добавляет соединение пользователя.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	first := false
	if _, ok := h.clients[client.userID]; !ok {
		h.clients[client.userID] = make(map[*Client]struct{})
		first = true
	}
	h.clients[client.userID][client] = struct{}{}
	h.mu.Unlock()

	if first && h.presence != nil {
		h.presence.Connected(client.userID)
	}
	logger.Log.WithField("user_id", client.userID).Debug("ws: клиент подключён")
}

// Unregister удаляет соединение пользователя.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	last := false
	if conns, ok := h.clients[client.userID]; ok {
		delete(conns, client)
		if len(conns) == 0 {
			delete(h.clients, client.userID)
			last = true
		}
	}
	h.mu.Unlock()

	if last && h.presence != nil {
		h.presence.Disconnected(client.userID)
	}
	logger.Log.WithField("user_id", client.userID).Debug("ws: клиент отключён")
}
