package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"simple-gpt/internal/domain"
)

// BackupStore guarda el transcript en vuelo justo antes de operaciones que
// resetean estado (crear y reseleccionar). Es un mecanismo de recuperación,
// no de durabilidad: cada backup se lee una sola vez y se descarta.
type BackupStore interface {
	Save(conversationID string, messages []domain.Message) error
	Take(conversationID string) ([]domain.Message, bool, error)
}

type memoryBackupStore struct {
	mu      sync.Mutex
	entries map[string][]domain.Message
}

func NewMemoryBackupStore() BackupStore {
	return &memoryBackupStore{entries: make(map[string][]domain.Message)}
}

func (s *memoryBackupStore) Save(conversationID string, messages []domain.Message) error {
	if conversationID == "" || len(messages) == 0 {
		return nil
	}
	entry := make([]domain.Message, len(messages))
	copy(entry, messages)
	s.mu.Lock()
	s.entries[conversationID] = entry
	s.mu.Unlock()
	return nil
}

func (s *memoryBackupStore) Take(conversationID string) ([]domain.Message, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs, ok := s.entries[conversationID]
	if !ok {
		return nil, false, nil
	}
	delete(s.entries, conversationID)
	return msgs, true, nil
}

type redisBackupStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisBackupStore guarda los backups en redis con un TTL corto; si el
// Take nunca llega, la entrada expira sola.
func NewRedisBackupStore(client *redis.Client, ttl time.Duration) BackupStore {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &redisBackupStore{
		client: client,
		prefix: "chat:backup:",
		ttl:    ttl,
	}
}

func (s *redisBackupStore) Save(conversationID string, messages []domain.Message) error {
	if conversationID == "" || len(messages) == 0 {
		return nil
	}
	payload, err := json.Marshal(messages)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	return s.client.Set(ctx, s.prefix+conversationID, payload, s.ttl).Err()
}

func (s *redisBackupStore) Take(conversationID string) ([]domain.Message, bool, error) {
	if conversationID == "" {
		return nil, false, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	payload, err := s.client.GetDel(ctx, s.prefix+conversationID).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var msgs []domain.Message
	if err := json.Unmarshal(payload, &msgs); err != nil {
		return nil, false, err
	}
	return msgs, true, nil
}
