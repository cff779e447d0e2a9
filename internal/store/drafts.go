package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/jjenkins/cornerwise/internal/model"
)

// DraftTTL is how long a prepared notification waits for confirmation
const DraftTTL = time.Hour

// DraftStore holds staff notification drafts between review and send
type DraftStore interface {
	SaveDraft(ctx context.Context, d *model.NotificationDraft) error
	GetDraft(ctx context.Context, id string) (*model.NotificationDraft, error)
	// TakeDraft returns the draft and removes it
	TakeDraft(ctx context.Context, id string) (*model.NotificationDraft, error)
}

// RedisDraftStore keeps drafts in Redis with an expiry
type RedisDraftStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisDraftStore creates a new RedisDraftStore
func NewRedisDraftStore(client *redis.Client) *RedisDraftStore {
	return &RedisDraftStore{client: client, ttl: DraftTTL}
}

func draftKey(id string) string {
	return fmt.Sprintf("notification:draft:%s", id)
}

// SaveDraft stores d, replacing any draft with the same ID
func (s *RedisDraftStore) SaveDraft(ctx context.Context, d *model.NotificationDraft) error {
	data, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, draftKey(d.ID), data, s.ttl).Err()
}

// GetDraft retrieves a draft by ID
func (s *RedisDraftStore) GetDraft(ctx context.Context, id string) (*model.NotificationDraft, error) {
	data, err := s.client.Get(ctx, draftKey(id)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	return decodeDraft([]byte(data))
}

// TakeDraft retrieves and deletes a draft atomically, so a draft is sent
// at most once
func (s *RedisDraftStore) TakeDraft(ctx context.Context, id string) (*model.NotificationDraft, error) {
	var get *redis.StringCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		get = pipe.Get(ctx, draftKey(id))
		pipe.Del(ctx, draftKey(id))
		return nil
	})
	if err != nil && err != redis.Nil {
		return nil, err
	}
	data, err := get.Result()
	if err != nil {
		if err == redis.Nil {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	return decodeDraft([]byte(data))
}

func decodeDraft(data []byte) (*model.NotificationDraft, error) {
	var d model.NotificationDraft
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

type memoryDraft struct {
	draft   model.NotificationDraft
	expires time.Time
}

// MemoryDraftStore keeps drafts in process memory with the same expiry
type MemoryDraftStore struct {
	mu     sync.Mutex
	drafts map[string]memoryDraft
	ttl    time.Duration
	now    func() time.Time
}

// NewMemoryDraftStore creates a new MemoryDraftStore
func NewMemoryDraftStore() *MemoryDraftStore {
	return &MemoryDraftStore{
		drafts: make(map[string]memoryDraft),
		ttl:    DraftTTL,
		now:    time.Now,
	}
}

// SaveDraft stores d, replacing any draft with the same ID
func (s *MemoryDraftStore) SaveDraft(ctx context.Context, d *model.NotificationDraft) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drafts[d.ID] = memoryDraft{draft: *d, expires: s.now().Add(s.ttl)}
	return nil
}

// GetDraft retrieves a draft by ID
func (s *MemoryDraftStore) GetDraft(ctx context.Context, id string) (*model.NotificationDraft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookup(id)
}

// TakeDraft retrieves and deletes a draft
func (s *MemoryDraftStore) TakeDraft(ctx context.Context, id string) (*model.NotificationDraft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	delete(s.drafts, id)
	return d, nil
}

func (s *MemoryDraftStore) lookup(id string) (*model.NotificationDraft, error) {
	md, ok := s.drafts[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	if !s.now().Before(md.expires) {
		delete(s.drafts, id)
		return nil, model.ErrNotFound
	}
	d := md.draft
	return &d, nil
}
