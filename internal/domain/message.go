package domain

import "time"

// Role identifica al autor de un mensaje dentro de una conversación.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reporta si el rol es uno de los conocidos.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// Message es un turno individual dentro de una conversación.
// Persisted indica que el mensaje ya tiene un id canónico emitido por el store;
// los mensajes con id local (generado en el cliente) todavía no se insertaron.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id,omitempty"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
	Persisted      bool      `json:"-"`
}
