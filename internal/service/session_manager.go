package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"simple-gpt/internal/domain"
	"simple-gpt/internal/llm"
	"simple-gpt/internal/notify"
	"simple-gpt/internal/repository"
)

// SessionState es el estado visible del gestor de sesión.
type SessionState string

const (
	StateIdle      SessionState = "idle"      // sin conversación seleccionada
	StateComposing SessionState = "composing" // conversación activa, nada en vuelo
	StateAwaiting  SessionState = "awaiting"  // respuesta del modelo en vuelo
	StateError     SessionState = "error"     // el último request falló
)

// ConversationStore es lo que el gestor necesita del gateway.
type ConversationStore interface {
	List(ctx context.Context, ownerID string) ([]domain.Conversation, error)
	Get(ctx context.Context, id, ownerID string) (domain.ConversationWithMessages, error)
	CreateWithMessages(ctx context.Context, ownerID, title string, messages []domain.Message) (domain.Conversation, error)
	Append(ctx context.Context, id, ownerID string, messages []domain.Message) ([]domain.Message, error)
	Rename(ctx context.Context, id, ownerID, title string) error
	Delete(ctx context.Context, id, ownerID string) error
}

// UsageChecker es lo que el gestor necesita del tracker de cuotas.
type UsageChecker interface {
	Check(ctx context.Context, id domain.Identity) (domain.UsageStatus, error)
	Increment(ctx context.Context, id domain.Identity) (domain.UsageStatus, error)
}

// SessionManager posee la conversación actual y orquesta crear, cambiar,
// renombrar, borrar y enviar mensajes, decidiendo cuándo bloquear por cuota.
// Todas las dependencias entran por constructor; no hay estado ambiente.
type SessionManager struct {
	logger   *zap.Logger
	store    ConversationStore
	tracker  UsageChecker
	client   llm.Client
	cache    *MessageCache
	backup   BackupStore
	notifier notify.Notifier
	identity domain.Identity
	now      func() time.Time

	mu            sync.Mutex
	state         SessionState
	currentID     string
	title         string
	transcript    []domain.Message
	conversations []domain.Conversation
	usage         domain.UsageStatus
	generation    uint64
}

// SubmitResult es el desenlace de un Submit. Un bloqueo por cuota no es un
// error: es una decisión normal que la UI traduce a un prompt de upgrade o
// de registro.
type SubmitResult struct {
	Blocked        bool
	SignUpRequired bool
	Reason         string
	Stale          bool
	Reply          domain.Message
}

var (
	ErrSessionBusy          = errors.New("session has a request in flight")
	ErrSessionNotConfigured = errors.New("session manager not configured")
)

func NewSessionManager(
	logger *zap.Logger,
	store ConversationStore,
	tracker UsageChecker,
	client llm.Client,
	cache *MessageCache,
	backup BackupStore,
	notifier notify.Notifier,
	identity domain.Identity,
) *SessionManager {
	if cache == nil {
		cache = NewMessageCache()
	}
	if backup == nil {
		backup = NewMemoryBackupStore()
	}
	if notifier == nil {
		notifier = notify.NewDisabledNotifier()
	}
	return &SessionManager{
		logger:   logger,
		store:    store,
		tracker:  tracker,
		client:   client,
		cache:    cache,
		backup:   backup,
		notifier: notifier,
		identity: identity,
		now:      time.Now,
		state:    StateIdle,
		title:    domain.DefaultConversationTitle,
	}
}

// Refresh recarga la lista de conversaciones y el estado de cuota.
func (m *SessionManager) Refresh(ctx context.Context) error {
	if m == nil || m.store == nil || m.tracker == nil {
		return ErrSessionNotConfigured
	}

	usage, err := m.tracker.Check(ctx, m.identity)
	if err != nil {
		return err
	}

	var conversations []domain.Conversation
	if m.identity.IsSignedIn() {
		conversations, err = m.store.List(ctx, m.identity.UserID)
		if err != nil {
			return err
		}
	}

	m.mu.Lock()
	m.usage = usage
	m.conversations = conversations
	m.mu.Unlock()
	return nil
}

// Submit envía el texto del usuario al modelo. La transición a Awaiting está
// custodiada por el tracker: cuota agotada devuelve Blocked sin transición y
// sin llamada al modelo.
func (m *SessionManager) Submit(ctx context.Context, text string) (SubmitResult, error) {
	if m == nil || m.client == nil || m.tracker == nil {
		return SubmitResult{}, ErrSessionNotConfigured
	}

	m.mu.Lock()
	if m.state == StateAwaiting {
		m.mu.Unlock()
		return SubmitResult{}, ErrSessionBusy
	}
	m.mu.Unlock()

	status, err := m.tracker.Check(ctx, m.identity)
	if err != nil {
		return SubmitResult{}, err
	}
	if status.HasReachedLimit {
		return m.blockedResult(status), nil
	}

	userMsg := domain.Message{
		ID:        fmt.Sprintf("local-%d", m.now().UnixNano()),
		Role:      domain.RoleUser,
		Content:   text,
		CreatedAt: m.now().UTC(),
	}

	m.mu.Lock()
	if m.state == StateAwaiting {
		m.mu.Unlock()
		return SubmitResult{}, ErrSessionBusy
	}
	m.usage = status
	m.transcript = append(m.transcript, userMsg)
	m.state = StateAwaiting
	generation := m.generation
	history := m.copyTranscriptLocked()
	m.mu.Unlock()

	reply, llmErr := m.client.Complete(ctx, llm.SystemPrompt, history)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.generation != generation {
		// La selección cambió mientras el modelo respondía: resultado
		// tardío, se descarta en silencio.
		m.logger.Info("discarding stale completion", zap.Uint64("generation", generation))
		return SubmitResult{Stale: true}, nil
	}

	if llmErr != nil {
		// El mensaje optimista del usuario se conserva para no perder su
		// input; se reintenta al reenviar, no automáticamente.
		m.state = StateError
		m.logger.Error("model request failed", zap.Error(llmErr))
		return SubmitResult{}, llmErr
	}

	assistantMsg := domain.Message{
		ID:        fmt.Sprintf("local-%d", m.now().UnixNano()),
		Role:      domain.RoleAssistant,
		Content:   reply,
		CreatedAt: m.now().UTC(),
	}
	m.transcript = append(m.transcript, assistantMsg)

	m.persistExchangeLocked(ctx, userMsg, assistantMsg)
	m.recordUsageLocked(ctx)
	m.state = StateComposing

	return SubmitResult{Reply: assistantMsg}, nil
}

// Select cambia la conversación activa. El transcript saliente queda en
// cache; el entrante se sirve de backup, cache o gateway, en ese orden.
// Un token de generación descarta cargas que llegaron tarde.
func (m *SessionManager) Select(ctx context.Context, id string) error {
	if m == nil || m.store == nil {
		return ErrSessionNotConfigured
	}

	m.mu.Lock()
	if id == "" || id == m.currentID {
		m.mu.Unlock()
		return nil
	}

	m.cacheCurrentLocked()
	m.generation++
	generation := m.generation
	m.currentID = id
	m.transcript = nil
	m.state = StateComposing
	m.title = m.titleForLocked(id)

	if msgs, ok, err := m.backup.Take(id); err == nil && ok {
		m.transcript = msgs
		m.cache.Put(id, msgs)
		m.mu.Unlock()
		return nil
	}

	if msgs, ok := m.cache.Get(id); ok {
		m.transcript = msgs
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	conv, err := m.store.Get(ctx, id, m.identity.UserID)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.generation != generation || m.currentID != id {
		// Otra selección ganó la carrera; este resultado ya no aplica.
		return nil
	}

	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			m.notifier.Notify(notify.LevelWarning, "conversation not found")
		} else {
			m.notifier.Notify(notify.LevelError, "could not load conversation")
		}
		m.state = StateError
		m.logger.Warn("load conversation failed", zap.Error(err), zap.String("conversation_id", id))
		return err
	}

	m.transcript = conv.Messages
	m.title = conv.Title
	m.cache.Put(id, conv.Messages)
	return nil
}

// New limpia la selección para componer desde cero.
func (m *SessionManager) New() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cacheCurrentLocked()
	m.newLocked()
}

// Delete borra la conversación; si era la activa, equivale a New.
func (m *SessionManager) Delete(ctx context.Context, id string) error {
	if m == nil || m.store == nil {
		return ErrSessionNotConfigured
	}
	if err := m.store.Delete(ctx, id, m.identity.UserID); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache.Delete(id)
	m.removeFromListLocked(id)
	if m.currentID == id {
		m.newLocked()
	}
	return nil
}

// Rename actualiza el título en el store y en el estado local.
func (m *SessionManager) Rename(ctx context.Context, id, title string) error {
	if m == nil || m.store == nil {
		return ErrSessionNotConfigured
	}
	if err := m.store.Rename(ctx, id, m.identity.UserID, title); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.conversations {
		if m.conversations[i].ID == id {
			m.conversations[i].Title = title
			m.conversations[i].UpdatedAt = m.now().UTC()
		}
	}
	if m.currentID == id {
		m.title = title
	}
	return nil
}

func (m *SessionManager) State() SessionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *SessionManager) CurrentID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentID
}

func (m *SessionManager) Title() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.title
}

func (m *SessionManager) Transcript() []domain.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.copyTranscriptLocked()
}

func (m *SessionManager) Conversations() []domain.Conversation {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Conversation, len(m.conversations))
	copy(out, m.conversations)
	return out
}

func (m *SessionManager) Usage() domain.UsageStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.usage
}

// persistExchangeLocked guarda el intercambio completado. Las fallas se
// notifican pero nunca revierten el transcript visible: el usuario sigue
// viendo su conversación aunque una recarga mostraría menos historia.
func (m *SessionManager) persistExchangeLocked(ctx context.Context, userMsg, assistantMsg domain.Message) {
	if !m.identity.IsSignedIn() || m.store == nil {
		return
	}

	if m.currentID == "" {
		conv, err := m.store.CreateWithMessages(ctx, m.identity.UserID, "", []domain.Message{userMsg, assistantMsg})
		if err != nil {
			m.logger.Error("create conversation failed", zap.Error(err))
			m.notifier.Notify(notify.LevelWarning, "your conversation could not be saved")
			return
		}
		// Backup del transcript antes de aplicar la nueva selección, por si
		// un reset de estado corre contra una carga asíncrona.
		if err := m.backup.Save(conv.ID, m.transcript); err != nil {
			m.logger.Warn("backup save failed", zap.Error(err))
		}
		m.currentID = conv.ID
		m.title = conv.Title
		m.cache.Put(conv.ID, m.transcript)
		m.conversations = append([]domain.Conversation{conv}, m.conversations...)
		return
	}

	if _, err := m.store.Append(ctx, m.currentID, m.identity.UserID, []domain.Message{userMsg, assistantMsg}); err != nil {
		m.logger.Error("append messages failed", zap.Error(err), zap.String("conversation_id", m.currentID))
		m.notifier.Notify(notify.LevelWarning, "your latest messages could not be saved")
	}
	m.cache.Put(m.currentID, m.transcript)
	m.moveToTopLocked(m.currentID, assistantMsg.Content)
}

// recordUsageLocked aplica el incremento optimista y lo reconcilia con el
// contador autoritativo; si el round-trip falla, lo revierte.
func (m *SessionManager) recordUsageLocked(ctx context.Context) {
	previous := m.usage
	m.usage.MessageCount++
	m.usage.HasReachedLimit = m.usage.MessageLimit.Reached(m.usage.MessageCount)

	status, err := m.tracker.Increment(ctx, m.identity)
	if err != nil {
		m.usage = previous
		m.logger.Warn("usage increment failed, rolled back", zap.Error(err))
		return
	}
	m.usage = status
}

func (m *SessionManager) blockedResult(status domain.UsageStatus) SubmitResult {
	if !m.identity.IsSignedIn() {
		return SubmitResult{
			Blocked:        true,
			SignUpRequired: true,
			Reason:         "sign up to keep asking questions",
		}
	}
	reason := "daily message limit reached"
	if status.TimeUntilReset != "" {
		reason += ", resets in " + status.TimeUntilReset
	}
	return SubmitResult{Blocked: true, Reason: reason}
}

func (m *SessionManager) newLocked() {
	m.generation++
	m.currentID = ""
	m.transcript = nil
	m.title = domain.DefaultConversationTitle
	m.state = StateIdle
}

func (m *SessionManager) cacheCurrentLocked() {
	if m.currentID != "" && len(m.transcript) > 0 {
		m.cache.Put(m.currentID, m.transcript)
	}
}

func (m *SessionManager) copyTranscriptLocked() []domain.Message {
	out := make([]domain.Message, len(m.transcript))
	copy(out, m.transcript)
	return out
}

func (m *SessionManager) titleForLocked(id string) string {
	for _, c := range m.conversations {
		if c.ID == id {
			return c.Title
		}
	}
	return domain.DefaultConversationTitle
}

func (m *SessionManager) moveToTopLocked(id, preview string) {
	for i := range m.conversations {
		if m.conversations[i].ID != id {
			continue
		}
		conv := m.conversations[i]
		conv.UpdatedAt = m.now().UTC()
		if preview != "" {
			conv.LastMessage = preview
		}
		m.conversations = append(m.conversations[:i], m.conversations[i+1:]...)
		m.conversations = append([]domain.Conversation{conv}, m.conversations...)
		return
	}
}

func (m *SessionManager) removeFromListLocked(id string) {
	for i := range m.conversations {
		if m.conversations[i].ID == id {
			m.conversations = append(m.conversations[:i], m.conversations[i+1:]...)
			return
		}
	}
}
