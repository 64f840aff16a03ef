package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jobmatch/credits/internal/models"
)

var (
	ErrIntentNotFound = errors.New("payment intent not found or expired")
	// ErrIntentClaimed means another payment is already settling the intent.
	ErrIntentClaimed = errors.New("payment intent claimed by another payment")
)

const (
	intentKeyPrefix = "credits:intent:"
	claimKeySuffix  = ":claim"
)

// IntentStore keeps payment intents until they are settled. An intent whose
// checkout window has passed is still returned: the provider may confirm a
// payment long after the checkout closed.
type IntentStore interface {
	Save(ctx context.Context, intent *models.PaymentIntent) error
	Get(ctx context.Context, intentID string) (*models.PaymentIntent, error)
	// Claim binds an intent to a single external payment id. Claiming again
	// with the same payment id succeeds so a failed settlement can be retried.
	Claim(ctx context.Context, intentID, paymentID string) error
	// Delete removes a settled intent. Its claim outlives it for
	// settledClaimTTL so a concurrent confirmation of another payment still
	// sees the intent as taken.
	Delete(ctx context.Context, intentID string) error
}

const settledClaimTTL = time.Hour

func intentKey(intentID string) string {
	return intentKeyPrefix + intentID
}

func claimKey(intentID string) string {
	return intentKeyPrefix + intentID + claimKeySuffix
}

// RedisIntentStore keeps intents for retention, or until deleted when
// retention is zero.
type RedisIntentStore struct {
	redis     *redis.Client
	retention time.Duration
}

func NewRedisIntentStore(client *redis.Client, retention time.Duration) *RedisIntentStore {
	return &RedisIntentStore{
		redis:     client,
		retention: retention,
	}
}

func (s *RedisIntentStore) Save(ctx context.Context, intent *models.PaymentIntent) error {
	data, err := json.Marshal(intent)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, intentKey(intent.IntentID), data, s.retention).Err(); err != nil {
		return fmt.Errorf("save payment intent: %w", err)
	}
	return nil
}

func (s *RedisIntentStore) Get(ctx context.Context, intentID string) (*models.PaymentIntent, error) {
	data, err := s.redis.Get(ctx, intentKey(intentID)).Bytes()
	if err == redis.Nil {
		return nil, ErrIntentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get payment intent: %w", err)
	}

	var intent models.PaymentIntent
	if err := json.Unmarshal(data, &intent); err != nil {
		return nil, fmt.Errorf("decode payment intent: %w", err)
	}
	return &intent, nil
}

func (s *RedisIntentStore) Claim(ctx context.Context, intentID, paymentID string) error {
	ok, err := s.redis.SetNX(ctx, claimKey(intentID), paymentID, s.retention).Result()
	if err != nil {
		return fmt.Errorf("claim payment intent: %w", err)
	}
	if ok {
		return nil
	}

	holder, err := s.redis.Get(ctx, claimKey(intentID)).Result()
	if err == redis.Nil {
		// claim expired between the two calls
		return s.Claim(ctx, intentID, paymentID)
	}
	if err != nil {
		return fmt.Errorf("read payment intent claim: %w", err)
	}
	if holder != paymentID {
		return ErrIntentClaimed
	}
	return nil
}

func (s *RedisIntentStore) Delete(ctx context.Context, intentID string) error {
	if err := s.redis.Del(ctx, intentKey(intentID)).Err(); err != nil {
		return fmt.Errorf("delete payment intent: %w", err)
	}
	if err := s.redis.Expire(ctx, claimKey(intentID), settledClaimTTL).Err(); err != nil {
		return fmt.Errorf("expire payment intent claim: %w", err)
	}
	return nil
}

// MemoryIntentStore is the in-process IntentStore. Entries are pruned on
// every write: settled ones after settledClaimTTL, unsettled ones after
// retention when it is set.
type MemoryIntentStore struct {
	mu        sync.Mutex
	entries   map[string]*intentEntry
	retention time.Duration
	now       func() time.Time
}

type intentEntry struct {
	intent    *models.PaymentIntent // nil once settled
	claim     string
	expiresAt time.Time // zero means never
}

func NewMemoryIntentStore(retention time.Duration) *MemoryIntentStore {
	return &MemoryIntentStore{
		entries:   make(map[string]*intentEntry),
		retention: retention,
		now:       time.Now,
	}
}

func (s *MemoryIntentStore) Save(_ context.Context, intent *models.PaymentIntent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prune()

	stored := *intent
	entry := &intentEntry{intent: &stored}
	if s.retention > 0 {
		entry.expiresAt = s.now().Add(s.retention)
	}
	s.entries[intent.IntentID] = entry
	return nil
}

func (s *MemoryIntentStore) Get(_ context.Context, intentID string) (*models.PaymentIntent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.live(intentID)
	if entry == nil || entry.intent == nil {
		return nil, ErrIntentNotFound
	}
	found := *entry.intent
	return &found, nil
}

func (s *MemoryIntentStore) Claim(_ context.Context, intentID, paymentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.live(intentID)
	if entry == nil {
		entry = &intentEntry{}
		if s.retention > 0 {
			entry.expiresAt = s.now().Add(s.retention)
		}
		s.entries[intentID] = entry
	}
	if entry.claim != "" && entry.claim != paymentID {
		return ErrIntentClaimed
	}
	entry.claim = paymentID
	return nil
}

func (s *MemoryIntentStore) Delete(_ context.Context, intentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prune()

	entry := s.live(intentID)
	if entry == nil {
		return nil
	}
	if entry.claim == "" {
		delete(s.entries, intentID)
		return nil
	}
	entry.intent = nil
	entry.expiresAt = s.now().Add(settledClaimTTL)
	return nil
}

// live returns the entry of intentID, dropping it when it has expired.
func (s *MemoryIntentStore) live(intentID string) *intentEntry {
	entry, ok := s.entries[intentID]
	if !ok {
		return nil
	}
	if !entry.expiresAt.IsZero() && s.now().After(entry.expiresAt) {
		delete(s.entries, intentID)
		return nil
	}
	return entry
}

func (s *MemoryIntentStore) prune() {
	now := s.now()
	for id, entry := range s.entries {
		if !entry.expiresAt.IsZero() && now.After(entry.expiresAt) {
			delete(s.entries, id)
		}
	}
}

func (s *MemoryIntentStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
