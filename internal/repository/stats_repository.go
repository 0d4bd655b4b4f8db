package repository

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// 统计计数的字段名。
const (
	StatAsked  = "asked"
	StatHit    = "hit"
	StatMiss   = "miss"
	StatTaught = "taught"
)

// StatsRepository 记录每个分区的问答计数。
type StatsRepository interface {
	Incr(ctx context.Context, partition, field string) error
	Get(ctx context.Context, partition string) (map[string]int64, error)
}

type redisStatsRepository struct {
	redisClient *redis.Client
}

// NewStatsRepository 创建一个基于 Redis 的 StatsRepository。redisClient 为 nil 时返回空实现。
func NewStatsRepository(redisClient *redis.Client) StatsRepository {
	if redisClient == nil {
		return nopStatsRepository{}
	}
	return &redisStatsRepository{redisClient: redisClient}
}

func statsKey(partition string) string {
	return fmt.Sprintf("mangrat:stats:%s", partition)
}

// Incr 对分区的某个计数字段加一。
func (r *redisStatsRepository) Incr(ctx context.Context, partition, field string) error {
	if err := r.redisClient.HIncrBy(ctx, statsKey(partition), field, 1).Err(); err != nil {
		return fmt.Errorf("failed to incr stats %s/%s: %w", partition, field, err)
	}
	return nil
}

// Get 返回分区的全部计数，缺失的字段补 0。
func (r *redisStatsRepository) Get(ctx context.Context, partition string) (map[string]int64, error) {
	raw, err := r.redisClient.HGetAll(ctx, statsKey(partition)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get stats %s: %w", partition, err)
	}
	counts := emptyCounts()
	for field, v := range raw {
		var n int64
		if _, scanErr := fmt.Sscanf(v, "%d", &n); scanErr != nil {
			continue
		}
		counts[field] = n
	}
	return counts, nil
}

func emptyCounts() map[string]int64 {
	return map[string]int64{StatAsked: 0, StatHit: 0, StatMiss: 0, StatTaught: 0}
}

// nopStatsRepository 在未配置 Redis 时使用。
type nopStatsRepository struct{}

func (nopStatsRepository) Incr(context.Context, string, string) error { return nil }

func (nopStatsRepository) Get(context.Context, string) (map[string]int64, error) {
	return emptyCounts(), nil
}
