package persistence

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRunStore is a RunStore backed by Redis.
// It uses a simple key structure:
//
//	<prefix>run:<id>              => gob-encoded redisRunPayload
//	<prefix>idx:all               => SET of all run IDs
//	<prefix>idx:wf:<workflow>     => SET of run IDs for a given workflow
//	<prefix>idx:status:<status>   => SET of run IDs for a given status
//
// The indexes are best-effort; ListRuns re-checks the filter against the
// decoded payload, so stale index entries are harmless.
type RedisRunStore struct {
	client *redis.Client
	prefix string
}

var _ RunStore = (*RedisRunStore)(nil)

type redisRunPayload struct {
	ID           string
	WorkflowID   string
	WorkflowName string
	Status       string
	Error        string
	Context      []byte
	StartedAt    int64
	FinishedAt   int64
}

// NewRedisRunStore creates a RedisRunStore.
// prefix is optional but recommended (e.g. "toolflow:").
func NewRedisRunStore(client *redis.Client, prefix string) *RedisRunStore {
	if prefix == "" {
		prefix = "toolflow:"
	}
	return &RedisRunStore{
		client: client,
		prefix: prefix,
	}
}

func (s *RedisRunStore) keyRun(id string) string {
	return s.prefix + "run:" + id
}

func (s *RedisRunStore) keyAll() string {
	return s.prefix + "idx:all"
}

func (s *RedisRunStore) keyWorkflow(id string) string {
	return s.prefix + "idx:wf:" + id
}

func (s *RedisRunStore) keyStatus(status RunStatus) string {
	return s.prefix + "idx:status:" + string(status)
}

func encodeRedisPayload(rec *RunRecord) ([]byte, error) {
	data, err := EncodeContext(rec.Context)
	if err != nil {
		return nil, err
	}

	payload := redisRunPayload{
		ID:           rec.ID,
		WorkflowID:   rec.WorkflowID,
		WorkflowName: rec.WorkflowName,
		Status:       string(rec.Status),
		Error:        rec.Error,
		Context:      data,
		StartedAt:    rec.StartedAt.UnixNano(),
		FinishedAt:   rec.FinishedAt.UnixNano(),
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&payload); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeRedisPayload(data []byte) (*RunRecord, error) {
	if len(data) == 0 {
		return nil, ErrRunNotFound
	}
	var payload redisRunPayload
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&payload); err != nil {
		return nil, err
	}

	fctx, err := DecodeContext(payload.Context)
	if err != nil {
		return nil, err
	}

	return &RunRecord{
		ID:           payload.ID,
		WorkflowID:   payload.WorkflowID,
		WorkflowName: payload.WorkflowName,
		Status:       RunStatus(payload.Status),
		Error:        payload.Error,
		Context:      fctx,
		StartedAt:    time.Unix(0, payload.StartedAt).UTC(),
		FinishedAt:   time.Unix(0, payload.FinishedAt).UTC(),
	}, nil
}

func (s *RedisRunStore) SaveRun(ctx context.Context, rec *RunRecord) error {
	data, err := encodeRedisPayload(rec)
	if err != nil {
		return err
	}

	if err := s.client.Set(ctx, s.keyRun(rec.ID), data, 0).Err(); err != nil {
		return err
	}

	// Index failures are not fatal.
	pipe := s.client.TxPipeline()
	pipe.SAdd(ctx, s.keyAll(), rec.ID)
	pipe.SAdd(ctx, s.keyWorkflow(rec.WorkflowID), rec.ID)
	pipe.SAdd(ctx, s.keyStatus(rec.Status), rec.ID)
	_, _ = pipe.Exec(ctx)

	return nil
}

func (s *RedisRunStore) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	data, err := s.client.Get(ctx, s.keyRun(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}
	return decodeRedisPayload(data)
}

func (s *RedisRunStore) ListRuns(ctx context.Context, filter RunFilter) ([]*RunRecord, error) {
	var ids []string
	var err error

	switch {
	case filter.WorkflowID != "" && filter.Status != "":
		ids, err = s.client.SInter(ctx,
			s.keyWorkflow(filter.WorkflowID),
			s.keyStatus(filter.Status),
		).Result()
	case filter.WorkflowID != "":
		ids, err = s.client.SMembers(ctx, s.keyWorkflow(filter.WorkflowID)).Result()
	case filter.Status != "":
		ids, err = s.client.SMembers(ctx, s.keyStatus(filter.Status)).Result()
	default:
		ids, err = s.client.SMembers(ctx, s.keyAll()).Result()
	}

	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.Get(ctx, s.keyRun(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	var runs []*RunRecord
	for _, cmd := range cmds {
		data, err := cmd.Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return nil, err
		}
		rec, err := decodeRedisPayload(data)
		if err != nil {
			return nil, err
		}
		if filter.match(rec) {
			runs = append(runs, rec)
		}
	}

	sortRuns(runs)
	return runs, nil
}
