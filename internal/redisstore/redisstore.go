// Package redisstore provides Redis-backed persistence for flows and fix
// sessions, for deployments where deliverd must survive restarts.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/fyrsmithlabs/deliverd/internal/fixtree"
	"github.com/fyrsmithlabs/deliverd/internal/flow"
)

const (
	flowKeyFmt   = "deliverd:flow:%s"
	flowIndexKey = "deliverd:flows"
	fixKeyFmt    = "deliverd:fix:%s"
)

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// NewClient dials Redis and verifies the connection with a ping.
func NewClient(ctx context.Context, opts Options) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", opts.Addr, err)
	}
	return client, nil
}

var _ flow.Store = (*FlowStore)(nil)

// FlowStore persists flows as JSON under deliverd:flow:<id>, with a set
// index for listing.
type FlowStore struct {
	client *redis.Client
}

// NewFlowStore wraps an existing client.
func NewFlowStore(client *redis.Client) *FlowStore {
	return &FlowStore{client: client}
}

// Save writes the flow and registers it in the index atomically.
func (s *FlowStore) Save(ctx context.Context, f *flow.Flow) error {
	payload, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal flow %s: %w", f.ID, err)
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, fmt.Sprintf(flowKeyFmt, f.ID), payload, 0)
	pipe.SAdd(ctx, flowIndexKey, f.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save flow %s: %w", f.ID, err)
	}
	return nil
}

// Get loads one flow.
func (s *FlowStore) Get(ctx context.Context, id string) (*flow.Flow, error) {
	payload, err := s.client.Get(ctx, fmt.Sprintf(flowKeyFmt, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, flow.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get flow %s: %w", id, err)
	}
	var f flow.Flow
	if err := json.Unmarshal(payload, &f); err != nil {
		return nil, fmt.Errorf("unmarshal flow %s: %w", id, err)
	}
	return &f, nil
}

// List loads every indexed flow. Flows deleted out from under the index are
// skipped rather than failing the whole listing.
func (s *FlowStore) List(ctx context.Context) ([]*flow.Flow, error) {
	ids, err := s.client.SMembers(ctx, flowIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list flows: %w", err)
	}
	flows := make([]*flow.Flow, 0, len(ids))
	for _, id := range ids {
		f, err := s.Get(ctx, id)
		if errors.Is(err, flow.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		flows = append(flows, f)
	}
	return flows, nil
}

var _ fixtree.SessionStore = (*SessionStore)(nil)

// SessionStore persists fix sessions as JSON under deliverd:fix:<id>.
type SessionStore struct {
	client *redis.Client
}

// NewSessionStore wraps an existing client.
func NewSessionStore(client *redis.Client) *SessionStore {
	return &SessionStore{client: client}
}

// Save implements fixtree.SessionStore.
func (s *SessionStore) Save(ctx context.Context, sess *fixtree.Session) error {
	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session %s: %w", sess.ID, err)
	}
	if err := s.client.Set(ctx, fmt.Sprintf(fixKeyFmt, sess.ID), payload, 0).Err(); err != nil {
		return fmt.Errorf("save session %s: %w", sess.ID, err)
	}
	return nil
}

// Get implements fixtree.SessionStore.
func (s *SessionStore) Get(ctx context.Context, id string) (*fixtree.Session, error) {
	payload, err := s.client.Get(ctx, fmt.Sprintf(fixKeyFmt, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fixtree.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}
	var sess fixtree.Session
	if err := json.Unmarshal(payload, &sess); err != nil {
		return nil, fmt.Errorf("unmarshal session %s: %w", id, err)
	}
	return &sess, nil
}
