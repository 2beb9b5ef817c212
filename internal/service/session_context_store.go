package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"remi-llm/internal/domain"
)

// SessionContextStore guarda participante + modo por jti del token de sesión.
type SessionContextStore interface {
	Save(ctx context.Context, sc domain.SessionContext, ttl time.Duration) error
	Load(ctx context.Context, tokenID string) (domain.SessionContext, bool, error)
	Delete(ctx context.Context, tokenID string) error
}

type memoryEntry struct {
	sc  domain.SessionContext
	exp time.Time
}

type memorySessionContextStore struct {
	mu    sync.Mutex
	items map[string]memoryEntry
}

func NewMemorySessionContextStore() SessionContextStore {
	return &memorySessionContextStore{items: make(map[string]memoryEntry)}
}

func (s *memorySessionContextStore) Save(_ context.Context, sc domain.SessionContext, ttl time.Duration) error {
	if strings.TrimSpace(sc.TokenID) == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[sc.TokenID] = memoryEntry{sc: sc, exp: time.Now().UTC().Add(ttl)}
	return nil
}

func (s *memorySessionContextStore) Load(_ context.Context, tokenID string) (domain.SessionContext, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[tokenID]
	if !ok {
		return domain.SessionContext{}, false, nil
	}
	if time.Now().UTC().After(e.exp) {
		delete(s.items, tokenID)
		return domain.SessionContext{}, false, nil
	}
	return e.sc, true, nil
}

func (s *memorySessionContextStore) Delete(_ context.Context, tokenID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, tokenID)
	return nil
}

type redisKV interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

type redisSessionContextStore struct {
	client redisKV
	prefix string
}

// NewRedisSessionContextStore devuelve nil sin cliente (se usa el de memoria).
func NewRedisSessionContextStore(client *redis.Client) SessionContextStore {
	if client == nil {
		return nil
	}
	return &redisSessionContextStore{client: client, prefix: "remi:ctx:"}
}

func (s *redisSessionContextStore) Save(ctx context.Context, sc domain.SessionContext, ttl time.Duration) error {
	tokenID := strings.TrimSpace(sc.TokenID)
	if tokenID == "" {
		return nil
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	payload, err := json.Marshal(sc)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	return s.client.Set(ctx, s.prefix+tokenID, payload, ttl).Err()
}

func (s *redisSessionContextStore) Load(ctx context.Context, tokenID string) (domain.SessionContext, bool, error) {
	tokenID = strings.TrimSpace(tokenID)
	if tokenID == "" {
		return domain.SessionContext{}, false, nil
	}
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	raw, err := s.client.Get(ctx, s.prefix+tokenID).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.SessionContext{}, false, nil
	}
	if err != nil {
		return domain.SessionContext{}, false, err
	}
	var sc domain.SessionContext
	if err := json.Unmarshal(raw, &sc); err != nil {
		return domain.SessionContext{}, false, err
	}
	sc.TokenID = tokenID
	return sc, true, nil
}

func (s *redisSessionContextStore) Delete(ctx context.Context, tokenID string) error {
	tokenID = strings.TrimSpace(tokenID)
	if tokenID == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	return s.client.Del(ctx, s.prefix+tokenID).Err()
}
