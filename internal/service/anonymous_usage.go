package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// AnonymousUsage lleva el contador de prueba de usuarios sin cuenta.
// Es un tope de por vida, no diario: no existe reset automático.
type AnonymousUsage interface {
	Count(clientID string) (int, error)
	Increment(clientID string) (int, error)
	Reset(clientID string) error
}

type memoryAnonymousUsage struct {
	mu     sync.Mutex
	counts map[string]int
}

func NewMemoryAnonymousUsage() AnonymousUsage {
	return &memoryAnonymousUsage{counts: make(map[string]int)}
}

func (s *memoryAnonymousUsage) Count(clientID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[normalizeClientID(clientID)], nil
}

func (s *memoryAnonymousUsage) Increment(clientID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := normalizeClientID(clientID)
	if key == "" {
		return 0, nil
	}
	s.counts[key]++
	return s.counts[key], nil
}

func (s *memoryAnonymousUsage) Reset(clientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.counts, normalizeClientID(clientID))
	return nil
}

type redisAnonymousUsage struct {
	client *redis.Client
	prefix string
}

// NewRedisAnonymousUsage persiste los contadores en redis, compartidos
// entre instancias del servicio.
func NewRedisAnonymousUsage(client *redis.Client) AnonymousUsage {
	if client == nil {
		return nil
	}
	return &redisAnonymousUsage{
		client: client,
		prefix: "anon:usage:",
	}
}

func (s *redisAnonymousUsage) Count(clientID string) (int, error) {
	key := normalizeClientID(clientID)
	if key == "" {
		return 0, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	n, err := s.client.Get(ctx, s.prefix+key).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (s *redisAnonymousUsage) Increment(clientID string) (int, error) {
	key := normalizeClientID(clientID)
	if key == "" {
		return 0, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	n, err := s.client.Incr(ctx, s.prefix+key).Result()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *redisAnonymousUsage) Reset(clientID string) error {
	key := normalizeClientID(clientID)
	if key == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	return s.client.Del(ctx, s.prefix+key).Err()
}

func normalizeClientID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
