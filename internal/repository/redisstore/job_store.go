package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"caption-worker-service/internal/entity"
)

// JobStore is the Redis-backed job store. Layout:
//
//	<prefix>:seq      counter assigning monotonic job ids
//	<prefix>:pending  sorted set of pending ids, score = id (FIFO order)
//	<prefix>:data     hash id -> job JSON
//	<prefix>:ref      hash external_reference_id -> id
//
// ZPOPMIN makes the claim atomic: two workers can never pop the same member,
// and a concurrent remove observes ZREM=0 once the id is gone.
type JobStore struct {
	rdb    *redis.Client
	prefix string
}

func NewJobStore(rdb *redis.Client, prefix string) *JobStore {
	if prefix == "" {
		prefix = "caption:jobs"
	}
	return &JobStore{rdb: rdb, prefix: prefix}
}

func (s *JobStore) seqKey() string     { return s.prefix + ":seq" }
func (s *JobStore) pendingKey() string { return s.prefix + ":pending" }
func (s *JobStore) dataKey() string    { return s.prefix + ":data" }
func (s *JobStore) refKey() string     { return s.prefix + ":ref" }

func (s *JobStore) Enqueue(ctx context.Context, job entity.Job) (int64, error) {
	id, err := s.rdb.Incr(ctx, s.seqKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("assign job id: %w", err)
	}
	job.ID = id
	job.CreatedAt = time.Now().UTC()

	raw, err := json.Marshal(job)
	if err != nil {
		return 0, fmt.Errorf("marshal job: %w", err)
	}

	member := strconv.FormatInt(id, 10)
	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, s.dataKey(), member, raw)
	pipe.HSet(ctx, s.refKey(), job.ExternalRefID, member)
	pipe.ZAdd(ctx, s.pendingKey(), redis.Z{Score: float64(id), Member: member})
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("enqueue job %d: %w", id, err)
	}
	return id, nil
}

func (s *JobStore) ClaimOldest(ctx context.Context) (*entity.Job, error) {
	popped, err := s.rdb.ZPopMin(ctx, s.pendingKey(), 1).Result()
	if err != nil {
		return nil, fmt.Errorf("pop pending job: %w", err)
	}
	if len(popped) == 0 {
		return nil, entity.ErrNoJob
	}
	member, ok := popped[0].Member.(string)
	if !ok {
		return nil, fmt.Errorf("unexpected member type %T in pending set", popped[0].Member)
	}

	raw, err := s.rdb.HGet(ctx, s.dataKey(), member).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// payload already removed, nothing to process
			return nil, entity.ErrNoJob
		}
		return nil, fmt.Errorf("load job %s: %w", member, err)
	}

	var job entity.Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return nil, fmt.Errorf("unmarshal job %s: %w", member, err)
	}

	if err := s.rdb.HDel(ctx, s.dataKey(), member).Err(); err != nil {
		return nil, fmt.Errorf("delete claimed job %s: %w", member, err)
	}

	// drop the ref index only if it still points at this job; a newer pending
	// job may have reused the same external reference id
	cur, err := s.rdb.HGet(ctx, s.refKey(), job.ExternalRefID).Result()
	if err == nil && cur == member {
		_ = s.rdb.HDel(ctx, s.refKey(), job.ExternalRefID).Err()
	}

	return &job, nil
}

func (s *JobStore) Remove(ctx context.Context, externalRefID string) (bool, error) {
	member, err := s.rdb.HGet(ctx, s.refKey(), externalRefID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("look up job for %s: %w", externalRefID, err)
	}

	removed, err := s.rdb.ZRem(ctx, s.pendingKey(), member).Result()
	if err != nil {
		return false, fmt.Errorf("remove pending job %s: %w", member, err)
	}
	if removed == 0 {
		// worker claimed it first; the claim already cleaned up
		return false, nil
	}

	pipe := s.rdb.TxPipeline()
	pipe.HDel(ctx, s.dataKey(), member)
	pipe.HDel(ctx, s.refKey(), externalRefID)
	if _, err := pipe.Exec(ctx); err != nil {
		return true, fmt.Errorf("clean up job %s: %w", member, err)
	}
	return true, nil
}

func (s *JobStore) Count(ctx context.Context) (int, error) {
	n, err := s.rdb.ZCard(ctx, s.pendingKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("count pending jobs: %w", err)
	}
	return int(n), nil
}
