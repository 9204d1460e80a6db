// Package session stores uploaded source blobs for the lifetime of a
// compression session. Blobs live in redis under a session token and
// expire on their own; the engine only ever borrows them read-only, so
// no locking is needed around access.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"

	"github.com/local/pdfpress/internal/engine"
)

// SourceBlob is one uploaded file: immutable bytes, a display name and
// the pdf/image discriminant.
type SourceBlob struct {
	Name string            `json:"name"`
	Kind engine.SourceKind `json:"kind"`
	Data []byte            `json:"data"`
}

// DetectKind sniffs the blob kind from magic bytes, falling back to the
// filename extension when sniffing is inconclusive.
func DetectKind(name string, data []byte) engine.SourceKind {
	mtype := mimetype.Detect(data)
	switch {
	case mtype.Is("application/pdf"):
		return engine.SourcePDF
	case strings.HasPrefix(mtype.String(), "image/"):
		return engine.SourceImage
	case strings.HasSuffix(strings.ToLower(name), ".pdf"):
		return engine.SourcePDF
	default:
		return engine.SourceImage
	}
}

// Store keeps session blobs in redis with a TTL; expiry is redis's sweep.
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

func (s *Store) key(token string) string { return fmt.Sprintf("session:%s:files", token) }

// NewToken mints a session token.
func (s *Store) NewToken() string { return uuid.NewString() }

// Append adds blobs to a session (creating it if needed) and returns the
// base index the new blobs start at. The TTL is refreshed on every write.
func (s *Store) Append(ctx context.Context, token string, blobs []SourceBlob) (int, error) {
	key := s.key(token)
	base, err := s.client.LLen(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("session length: %w", err)
	}
	for _, b := range blobs {
		enc, err := json.Marshal(b)
		if err != nil {
			return 0, fmt.Errorf("marshal blob %s: %w", b.Name, err)
		}
		if err := s.client.RPush(ctx, key, enc).Err(); err != nil {
			return 0, fmt.Errorf("store blob %s: %w", b.Name, err)
		}
	}
	if err := s.client.Expire(ctx, key, s.ttl).Err(); err != nil {
		return 0, fmt.Errorf("refresh session ttl: %w", err)
	}
	return int(base), nil
}

// Get returns the blob at index srcID, or false when the session or
// index does not exist.
func (s *Store) Get(ctx context.Context, token string, srcID int) (SourceBlob, bool, error) {
	raw, err := s.client.LIndex(ctx, s.key(token), int64(srcID)).Result()
	if err == redis.Nil {
		return SourceBlob{}, false, nil
	}
	if err != nil {
		return SourceBlob{}, false, fmt.Errorf("load blob %d: %w", srcID, err)
	}
	var b SourceBlob
	if err := json.Unmarshal([]byte(raw), &b); err != nil {
		return SourceBlob{}, false, fmt.Errorf("unmarshal blob %d: %w", srcID, err)
	}
	return b, true, nil
}
