package domain

import "time"

// DefaultConversationTitle es el placeholder hasta derivar un título real.
const DefaultConversationTitle = "New Conversation"

// Conversation es un hilo ordenado de mensajes que pertenece a un usuario.
// LastMessage es derivado (preview para listados), nunca se persiste.
type Conversation struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"user_id"`
	Title       string    `json:"title"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	LastMessage string    `json:"last_message,omitempty"`
}

// ConversationWithMessages agrega la lista ordenada de mensajes al hilo.
type ConversationWithMessages struct {
	Conversation
	Messages []Message `json:"messages"`
}

// FirstUserMessage devuelve el primer mensaje con rol user, si existe.
// Se usa una sola vez para derivar el título de la conversación.
func (c ConversationWithMessages) FirstUserMessage() (Message, bool) {
	for _, m := range c.Messages {
		switch m.Role {
		case RoleUser:
			return m, true
		case RoleAssistant, RoleSystem:
		}
	}
	return Message{}, false
}
