package publish

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/zero-day-ai/mxgraph/catalog"
)

// RedisOptions configures the Redis connection.
type RedisOptions struct {
	// URL is the Redis connection string (e.g., "redis://localhost:6379")
	URL string

	// Prefix namespaces every key. Default: "mxgraph"
	Prefix string

	// TLS configuration for secure connections
	TLS *tls.Config

	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

// Update is the message published on the update channel after every
// successful Publish.
type Update struct {
	Namespace string `json:"namespace"`
	Revision  uint64 `json:"revision"`
	Digest    string `json:"digest"`
	Types     int    `json:"types"`
}

// Meta describes the published catalog.
type Meta struct {
	Namespace   string
	Revision    uint64
	Digest      string
	PublishedAt time.Time
}

// RedisStore publishes catalogs to Redis and reads them back.
//
// Keys, for prefix p:
//
//	p:catalog:types     hash of node type id -> JSON TypeRecord
//	p:catalog:ids       list of node type ids in menu order
//	p:catalog:meta      hash with namespace, revision, digest, published_at
//	p:catalog.updated   pub/sub channel carrying Update messages
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(opts RedisOptions) (*RedisStore, error) {
	if opts.URL == "" {
		opts.URL = "redis://localhost:6379"
	}
	if opts.Prefix == "" {
		opts.Prefix = "mxgraph"
	}
	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = 5 * time.Second
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 5 * time.Second
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = 5 * time.Second
	}

	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	if opts.TLS != nil {
		redisOpts.TLSConfig = opts.TLS
	}
	redisOpts.DialTimeout = opts.ConnectTimeout
	redisOpts.ReadTimeout = opts.ReadTimeout
	redisOpts.WriteTimeout = opts.WriteTimeout

	client := redis.NewClient(redisOpts)

	ctx, cancel := context.WithTimeout(context.Background(), opts.ConnectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{client: client, prefix: opts.Prefix}, nil
}

func (s *RedisStore) key(parts ...string) string {
	return s.prefix + ":" + strings.Join(parts, ":")
}

// Channel returns the pub/sub channel updates are published on.
func (s *RedisStore) Channel() string {
	return s.prefix + ":catalog.updated"
}

// Name implements Publisher.
func (s *RedisStore) Name() string { return "redis" }

// Publish replaces the stored catalog with snap in one transaction and then
// announces it on the update channel.
func (s *RedisStore) Publish(ctx context.Context, snap *catalog.Snapshot) error {
	fields := make([]any, 0, len(snap.Types)*2)
	ids := make([]any, 0, len(snap.Types))
	for _, rec := range snap.Types {
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal node type %s: %w", rec.ID, err)
		}
		fields = append(fields, rec.ID, data)
		ids = append(ids, rec.ID)
	}

	typesKey, idsKey, metaKey := s.key("catalog", "types"), s.key("catalog", "ids"), s.key("catalog", "meta")
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, typesKey, idsKey)
		if len(ids) > 0 {
			pipe.HSet(ctx, typesKey, fields...)
			pipe.RPush(ctx, idsKey, ids...)
		}
		pipe.HSet(ctx, metaKey,
			"namespace", snap.Namespace,
			"revision", strconv.FormatUint(snap.Revision, 10),
			"digest", snap.Digest,
			"published_at", snap.CreatedAt.Format(time.RFC3339Nano),
		)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store catalog revision %d: %w", snap.Revision, err)
	}

	msg, err := json.Marshal(Update{
		Namespace: snap.Namespace,
		Revision:  snap.Revision,
		Digest:    snap.Digest,
		Types:     len(snap.Types),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal update: %w", err)
	}
	if err := s.client.Publish(ctx, s.Channel(), msg).Err(); err != nil {
		return fmt.Errorf("failed to publish to channel %s: %w", s.Channel(), err)
	}
	return nil
}

// Meta returns the description of the published catalog. ErrNotFound means
// nothing was published yet.
func (s *RedisStore) Meta(ctx context.Context) (*Meta, error) {
	m, err := s.client.HGetAll(ctx, s.key("catalog", "meta")).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog meta: %w", err)
	}
	if len(m) == 0 {
		return nil, ErrNotFound
	}

	rev, err := strconv.ParseUint(m["revision"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid catalog revision %q: %w", m["revision"], err)
	}
	meta := &Meta{Namespace: m["namespace"], Revision: rev, Digest: m["digest"]}
	if ts, err := time.Parse(time.RFC3339Nano, m["published_at"]); err == nil {
		meta.PublishedAt = ts
	}
	return meta, nil
}

// IDs returns the published node type ids in menu order.
func (s *RedisStore) IDs(ctx context.Context) ([]string, error) {
	ids, err := s.client.LRange(ctx, s.key("catalog", "ids"), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list node types: %w", err)
	}
	return ids, nil
}

// Get returns the published record of one node type.
func (s *RedisStore) Get(ctx context.Context, id string) (*catalog.TypeRecord, error) {
	data, err := s.client.HGet(ctx, s.key("catalog", "types"), id).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get node type %s: %w", id, err)
	}

	var rec catalog.TypeRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal node type %s: %w", id, err)
	}
	return &rec, nil
}

// List returns every published record in menu order. Ids whose record is
// missing are skipped.
func (s *RedisStore) List(ctx context.Context) ([]catalog.TypeRecord, error) {
	ids, err := s.IDs(ctx)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	vals, err := s.client.HMGet(ctx, s.key("catalog", "types"), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get node types: %w", err)
	}

	out := make([]catalog.TypeRecord, 0, len(vals))
	for _, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var rec catalog.TypeRecord
		if err := json.Unmarshal([]byte(str), &rec); err != nil {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// Subscribe streams update messages until ctx is canceled.
func (s *RedisStore) Subscribe(ctx context.Context) (<-chan Update, error) {
	pubsub := s.client.Subscribe(ctx, s.Channel())
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to channel %s: %w", s.Channel(), err)
	}

	out := make(chan Update)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var u Update
				if err := json.Unmarshal([]byte(msg.Payload), &u); err != nil {
					continue
				}
				select {
				case out <- u:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
