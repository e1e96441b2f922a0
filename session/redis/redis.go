package redis_session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/webscout-ai/webscout/config"
	"github.com/webscout-ai/webscout/models"
	"github.com/webscout-ai/webscout/session"
)

const keyPrefix = "webscout:session:"

// Store keeps each session as a redis list of JSON-encoded messages,
// expiring with the session TTL.
type Store struct {
	rdb *redis.Client
}

// Conn opens and pings a redis client for the session backend.
func Conn(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.Timeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed (%s:%s): %w", cfg.Host, cfg.Port, err)
	}
	return client, nil
}

func NewSessionStore(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

func (st *Store) EnsureSession(ctx context.Context, id string, ttl time.Duration) (session.Session, error) {
	if id == "" {
		id = uuid.NewString()
	}
	key := keyPrefix + id
	// Touch the key so an existing session survives another TTL window.
	if err := st.rdb.Expire(ctx, key, ttl).Err(); err != nil {
		return nil, err
	}
	return &sess{rdb: st.rdb, id: id, key: key, ttl: ttl}, nil
}

type sess struct {
	rdb *redis.Client
	id  string
	key string
	ttl time.Duration
}

func (s *sess) ID() string { return s.id }

func (s *sess) History(ctx context.Context) ([]models.Message, error) {
	raw, err := s.rdb.LRange(ctx, s.key, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]models.Message, 0, len(raw))
	for _, item := range raw {
		var m models.Message
		if err := json.Unmarshal([]byte(item), &m); err != nil {
			return nil, fmt.Errorf("corrupt session entry: %w", err)
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *sess) Append(ctx context.Context, msgs ...models.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	vals := make([]interface{}, 0, len(msgs))
	for _, m := range msgs {
		b, err := json.Marshal(m)
		if err != nil {
			return err
		}
		vals = append(vals, b)
	}
	pipe := s.rdb.TxPipeline()
	pipe.RPush(ctx, s.key, vals...)
	pipe.Expire(ctx, s.key, s.ttl)
	_, err := pipe.Exec(ctx)
	return err
}
