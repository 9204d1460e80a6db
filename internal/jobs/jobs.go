// Package jobs holds finished output PDFs until they are downloaded.
// Artifacts are one-shot: the first download consumes them (GETDEL), so
// a leaked job id cannot be replayed.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// Artifact is a completed compression result awaiting pickup.
type Artifact struct {
	Filename string `json:"filename"`
	Data     []byte `json:"data"`
}

type Store struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStore(redisURL string, ttl time.Duration) (*Store, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	c := redis.NewClient(opt)
	if err := c.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	return &Store{client: c, ttl: ttl}, nil
}

func (s *Store) Close() error { return s.client.Close() }

func key(jobID string) string { return fmt.Sprintf("job:%s:artifact", jobID) }

// Put stores an artifact and returns its job id.
func (s *Store) Put(ctx context.Context, a Artifact) (string, error) {
	enc, err := json.Marshal(a)
	if err != nil {
		return "", fmt.Errorf("marshal artifact: %w", err)
	}
	jobID := uuid.NewString()
	if err := s.client.Set(ctx, key(jobID), enc, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("store artifact: %w", err)
	}
	return jobID, nil
}

// Take retrieves and deletes an artifact. Returns false when the job id
// is unknown, expired or already consumed.
func (s *Store) Take(ctx context.Context, jobID string) (Artifact, bool, error) {
	raw, err := s.client.GetDel(ctx, key(jobID)).Result()
	if err == redis.Nil {
		return Artifact{}, false, nil
	}
	if err != nil {
		return Artifact{}, false, fmt.Errorf("load artifact: %w", err)
	}
	var a Artifact
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		return Artifact{}, false, fmt.Errorf("unmarshal artifact: %w", err)
	}
	return a, true, nil
}
