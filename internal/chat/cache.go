package chat

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const cacheKey = "chat:recent-frames"

// HistoryCache keeps the most recent rendered frames in a capped Redis
// list so a newly joined connection can be served its backlog without a
// database round-trip. It is best-effort: cache errors are logged and
// never fail the message path, and a nil cache disables replay entirely.
type HistoryCache struct {
	rdb    *redis.Client
	size   int64
	logger *zap.Logger
}

func NewHistoryCache(rdb *redis.Client, size int, logger *zap.Logger) *HistoryCache {
	if rdb == nil {
		return nil
	}
	if size <= 0 {
		size = 50
	}
	return &HistoryCache{rdb: rdb, size: int64(size), logger: logger}
}

// Push records a rendered frame, trimming the list to the cap.
func (c *HistoryCache) Push(ctx context.Context, frame []byte) {
	if c == nil {
		return
	}
	pipe := c.rdb.Pipeline()
	pipe.LPush(ctx, cacheKey, frame)
	pipe.LTrim(ctx, cacheKey, 0, c.size-1)
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Warn("history cache push failed", zap.Error(err))
	}
}

// Recent returns cached frames oldest-first.
func (c *HistoryCache) Recent(ctx context.Context) [][]byte {
	if c == nil {
		return nil
	}
	items, err := c.rdb.LRange(ctx, cacheKey, 0, c.size-1).Result()
	if err != nil {
		c.logger.Warn("history cache read failed", zap.Error(err))
		return nil
	}

	frames := make([][]byte, 0, len(items))
	for i := len(items) - 1; i >= 0; i-- {
		frames = append(frames, []byte(items[i]))
	}
	return frames
}
