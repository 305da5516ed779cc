package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"step_tracker_backend/internal/model"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// SessionStore 会话级状态：最近提交时间缓存与待确认操作
type SessionStore interface {
	GetLastSubmission(ctx context.Context, sessionID string) (*time.Time, error)
	SetLastSubmission(ctx context.Context, sessionID string, at time.Time, ttl time.Duration) error
	SavePending(ctx context.Context, action *model.PendingAction) error
	GetPending(ctx context.Context, token string) (*model.PendingAction, error)
	// DeletePending 返回令牌是否仍存在，并发确认时只有一方得到 true
	DeletePending(ctx context.Context, token string) (bool, error)
}

func lastSubmissionKey(sessionID string) string {
	return fmt.Sprintf("session:%s:last_submission", sessionID)
}

func pendingKey(token string) string {
	return fmt.Sprintf("pending:%s", token)
}

type RedisSessionStore struct {
	Client *redis.Client
}

func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{Client: client}
}

func (s *RedisSessionStore) GetLastSubmission(ctx context.Context, sessionID string) (*time.Time, error) {
	val, err := s.Client.Get(ctx, lastSubmissionKey(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	at, err := time.Parse(time.RFC3339Nano, val)
	if err != nil {
		return nil, fmt.Errorf("corrupt last submission for session %s: %w", sessionID, err)
	}
	return &at, nil
}

// SetLastSubmission ttl 为冷却时长，ttl <= 0 时无需缓存
func (s *RedisSessionStore) SetLastSubmission(ctx context.Context, sessionID string, at time.Time, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return s.Client.Set(ctx, lastSubmissionKey(sessionID), at.Format(time.RFC3339Nano), ttl).Err()
}

func (s *RedisSessionStore) SavePending(ctx context.Context, action *model.PendingAction) error {
	ttl := action.ExpiresAt.Sub(action.CreatedAt)
	if ttl <= 0 {
		return errors.New("pending action has no lifetime")
	}

	data, err := json.Marshal(action)
	if err != nil {
		return err
	}
	return s.Client.Set(ctx, pendingKey(action.Token), data, ttl).Err()
}

func (s *RedisSessionStore) GetPending(ctx context.Context, token string) (*model.PendingAction, error) {
	data, err := s.Client.Get(ctx, pendingKey(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var action model.PendingAction
	if err := json.Unmarshal(data, &action); err != nil {
		return nil, err
	}
	return &action, nil
}

func (s *RedisSessionStore) DeletePending(ctx context.Context, token string) (bool, error) {
	n, err := s.Client.Del(ctx, pendingKey(token)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

type memoryEntry struct {
	lastSubmission time.Time
	expiresAt      time.Time
}

// MemorySessionStore 未启用 redis 时的进程内实现
type MemorySessionStore struct {
	mu      sync.Mutex
	last    map[string]memoryEntry
	pending map[string]model.PendingAction
	now     func() time.Time
}

func NewMemorySessionStore() *MemorySessionStore {
	return NewMemorySessionStoreWithClock(time.Now)
}

// NewMemorySessionStoreWithClock 测试中注入时钟
func NewMemorySessionStoreWithClock(now func() time.Time) *MemorySessionStore {
	return &MemorySessionStore{
		last:    make(map[string]memoryEntry),
		pending: make(map[string]model.PendingAction),
		now:     now,
	}
}

func (s *MemorySessionStore) GetLastSubmission(_ context.Context, sessionID string) (*time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.last[sessionID]
	if !ok {
		return nil, nil
	}
	if !s.now().Before(entry.expiresAt) {
		delete(s.last, sessionID)
		return nil, nil
	}
	at := entry.lastSubmission
	return &at, nil
}

func (s *MemorySessionStore) SetLastSubmission(_ context.Context, sessionID string, at time.Time, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.last[sessionID] = memoryEntry{lastSubmission: at, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *MemorySessionStore) SavePending(_ context.Context, action *model.PendingAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[action.Token] = *action
	return nil
}

func (s *MemorySessionStore) GetPending(_ context.Context, token string) (*model.PendingAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	action, ok := s.pending[token]
	if !ok {
		return nil, nil
	}
	if action.Expired(s.now()) {
		delete(s.pending, token)
		return nil, nil
	}
	return &action, nil
}

func (s *MemorySessionStore) DeletePending(_ context.Context, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.pending[token]
	delete(s.pending, token)
	return ok, nil
}
