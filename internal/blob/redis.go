package blob

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps objects in Redis hashes under the configured bucket.
// Receipt files are small scans, so inlining the bytes is acceptable.
type RedisStore struct {
	client    *redis.Client
	bucket    string
	presigner *Presigner
}

// NewRedisStore constructs the driver.
func NewRedisStore(client *redis.Client, bucket string, presigner *Presigner) *RedisStore {
	return &RedisStore{client: client, bucket: bucket, presigner: presigner}
}

func (s *RedisStore) objectKey(key string) string {
	return "blob:" + s.bucket + ":" + key
}

func (s *RedisStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	return s.client.HSet(ctx, s.objectKey(key), map[string]any{
		"data":         data,
		"content_type": contentType,
	}).Err()
}

func (s *RedisStore) Get(ctx context.Context, key string) (*Object, error) {
	fields, err := s.client.HGetAll(ctx, s.objectKey(key)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}
	return &Object{
		Key:         key,
		ContentType: fields["content_type"],
		Data:        []byte(fields["data"]),
	}, nil
}

func (s *RedisStore) SignedURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	return s.presigner.SignedURL(key, ttl), nil
}
