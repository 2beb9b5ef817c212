package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"

	"remi-llm/internal/domain"
)

type mockRedisKVClient struct {
	data       map[string]string
	lastSetTTL time.Duration
	lastDel    []string
	setErr     error
	getErr     error
}

func newMockRedisKVClient() *mockRedisKVClient {
	return &mockRedisKVClient{data: make(map[string]string)}
}

func (m *mockRedisKVClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	m.lastSetTTL = expiration
	cmd := redis.NewStatusCmd(ctx)
	if m.setErr != nil {
		cmd.SetErr(m.setErr)
		return cmd
	}
	switch v := value.(type) {
	case []byte:
		m.data[key] = string(v)
	case string:
		m.data[key] = v
	}
	cmd.SetVal("OK")
	return cmd
}

func (m *mockRedisKVClient) Get(ctx context.Context, key string) *redis.StringCmd {
	cmd := redis.NewStringCmd(ctx)
	if m.getErr != nil {
		cmd.SetErr(m.getErr)
		return cmd
	}
	v, ok := m.data[key]
	if !ok {
		cmd.SetErr(redis.Nil)
		return cmd
	}
	cmd.SetVal(v)
	return cmd
}

func (m *mockRedisKVClient) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	m.lastDel = keys
	for _, k := range keys {
		delete(m.data, k)
	}
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(int64(len(keys)))
	return cmd
}

func TestSessionContextService_BeginResolve(t *testing.T) {
	ctx := context.Background()
	svc := NewSessionContextService("secret", time.Hour, NewMemorySessionContextStore())

	issued, err := svc.Begin(ctx, "GK82")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if issued.Token == "" || issued.ExpiresIn != 3600 || issued.Context.Mode != domain.ModeText {
		t.Fatalf("unexpected issued session: %+v", issued)
	}

	sc, err := svc.Resolve(ctx, issued.Token)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if sc.ParticipantID != "GK82" || sc.TokenID != issued.Context.TokenID {
		t.Fatalf("unexpected context: %+v", sc)
	}

	sc, err = svc.SetMode(ctx, sc, domain.ModeVoice)
	if err != nil {
		t.Fatalf("set mode: %v", err)
	}
	again, err := svc.Resolve(ctx, issued.Token)
	if err != nil || again.Mode != domain.ModeVoice {
		t.Fatalf("expected persisted voice mode, got %+v (%v)", again, err)
	}

	if err := svc.Forget(ctx, sc); err != nil {
		t.Fatalf("forget: %v", err)
	}
	if _, err := svc.Resolve(ctx, issued.Token); !errors.Is(err, ErrRegistrationRequired) {
		t.Fatalf("expected ErrRegistrationRequired after forget, got %v", err)
	}
}

func TestSessionContextService_ParseRejects(t *testing.T) {
	svc := NewSessionContextService("secret", time.Hour, nil)

	if _, err := svc.Parse(""); !errors.Is(err, ErrSessionTokenInvalid) {
		t.Fatalf("expected invalid for empty token, got %v", err)
	}

	other := NewSessionContextService("other", time.Hour, nil)
	issued, err := other.Begin(context.Background(), "GK82")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, err := svc.Parse(issued.Token); !errors.Is(err, ErrSessionTokenInvalid) {
		t.Fatalf("expected invalid for foreign signature, got %v", err)
	}

	past := time.Now().Add(-2 * time.Hour)
	expired := SessionClaims{
		ParticipantID: "GK82",
		TokenType:     sessionTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "jti",
			Issuer:    "remi",
			Subject:   "GK82",
			IssuedAt:  jwt.NewNumericDate(past),
			ExpiresAt: jwt.NewNumericDate(past.Add(time.Minute)),
		},
	}
	signed, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, expired).SignedString([]byte("secret"))
	if _, err := svc.Parse(signed); !errors.Is(err, ErrSessionTokenExpired) {
		t.Fatalf("expected expired, got %v", err)
	}

	wrongType := expired
	wrongType.TokenType = "access"
	wrongType.ExpiresAt = jwt.NewNumericDate(time.Now().Add(time.Hour))
	signed, _ = jwt.NewWithClaims(jwt.SigningMethodHS256, wrongType).SignedString([]byte("secret"))
	if _, err := svc.Parse(signed); !errors.Is(err, ErrSessionTokenInvalid) {
		t.Fatalf("expected invalid for wrong type, got %v", err)
	}
}

func TestRedisSessionContextStore(t *testing.T) {
	ctx := context.Background()
	mock := newMockRedisKVClient()
	store := &redisSessionContextStore{client: mock, prefix: "remi:ctx:"}

	sc := domain.SessionContext{TokenID: "jti-1", ParticipantID: "GK82", Mode: domain.ModeVoice}
	if err := store.Save(ctx, sc, 0); err != nil {
		t.Fatalf("save: %v", err)
	}
	if mock.lastSetTTL != 12*time.Hour {
		t.Fatalf("expected default ttl, got %v", mock.lastSetTTL)
	}
	if _, ok := mock.data["remi:ctx:jti-1"]; !ok {
		t.Fatalf("expected prefixed key")
	}

	got, ok, err := store.Load(ctx, "jti-1")
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if got != sc {
		t.Fatalf("unexpected context: %+v", got)
	}

	if _, ok, err := store.Load(ctx, "missing"); ok || err != nil {
		t.Fatalf("expected miss without error, got ok=%v err=%v", ok, err)
	}

	if err := store.Delete(ctx, "jti-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(mock.lastDel) != 1 || mock.lastDel[0] != "remi:ctx:jti-1" {
		t.Fatalf("unexpected delete keys: %v", mock.lastDel)
	}

	mock.getErr = errors.New("conn refused")
	if _, _, err := store.Load(ctx, "jti-1"); err == nil {
		t.Fatalf("expected redis error to surface")
	}
}

func TestMemorySessionContextStore_Expiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySessionContextStore()
	sc := domain.SessionContext{TokenID: "t", ParticipantID: "GK82", Mode: domain.ModeText}
	if err := store.Save(ctx, sc, -time.Second); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, ok, _ := store.Load(ctx, "t"); ok {
		t.Fatalf("expected expired entry to be gone")
	}
}
