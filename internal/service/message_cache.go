package service

import (
	"sync"

	"simple-gpt/internal/domain"
)

// MessageCache guarda en memoria los mensajes ya vistos por conversación,
// para evitar recargas y el flash de transcript vacío al cambiar de hilo.
// Es una pista, nunca fuente de verdad: el gateway siempre manda.
type MessageCache struct {
	mu      sync.RWMutex
	entries map[string][]domain.Message
}

func NewMessageCache() *MessageCache {
	return &MessageCache{entries: make(map[string][]domain.Message)}
}

// Get devuelve una copia de los mensajes cacheados, si los hay.
func (c *MessageCache) Get(conversationID string) ([]domain.Message, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	msgs, ok := c.entries[conversationID]
	if !ok {
		return nil, false
	}
	out := make([]domain.Message, len(msgs))
	copy(out, msgs)
	return out, true
}

// Put sobrescribe la entrada de la conversación con una copia.
func (c *MessageCache) Put(conversationID string, messages []domain.Message) {
	if conversationID == "" {
		return
	}
	entry := make([]domain.Message, len(messages))
	copy(entry, messages)
	c.mu.Lock()
	c.entries[conversationID] = entry
	c.mu.Unlock()
}

// Delete descarta la entrada; se usa al borrar la conversación.
func (c *MessageCache) Delete(conversationID string) {
	c.mu.Lock()
	delete(c.entries, conversationID)
	c.mu.Unlock()
}

// Len devuelve cuántas conversaciones tienen entrada viva.
func (c *MessageCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
