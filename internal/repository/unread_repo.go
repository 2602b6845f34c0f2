package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mbeoliero/ringlink/pkg/constant"
	"github.com/redis/go-redis/v9"
)

const unreadTTL = 24 * time.Hour

// UnreadRepo caches unread contact counts in Redis
type UnreadRepo struct {
	rdb *redis.Client
}

var _ UnreadCache = (*UnreadRepo)(nil)

// NewUnreadRepo creates a new UnreadRepo
func NewUnreadRepo(rdb *redis.Client) *UnreadRepo {
	return &UnreadRepo{rdb: rdb}
}

// SetUnreadContacts stores the count of contacts with unread messages
func (r *UnreadRepo) SetUnreadContacts(ctx context.Context, userId string, n int64) error {
	key := fmt.Sprintf(constant.RedisKeyContactUnread(), userId)
	return r.rdb.Set(ctx, key, n, unreadTTL).Err()
}

// GetUnreadContacts reads the cached count, ok is false on a miss
func (r *UnreadRepo) GetUnreadContacts(ctx context.Context, userId string) (int64, bool, error) {
	key := fmt.Sprintf(constant.RedisKeyContactUnread(), userId)
	n, err := r.rdb.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return n, true, nil
}
