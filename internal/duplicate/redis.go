package duplicate

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/civicfix/verification-service/pkg/phash"
)

const redisKey = "verification:fingerprints"

type redisEntry struct {
	IssueID    int64     `json:"issue_id"`
	InsertedAt time.Time `json:"inserted_at"`
}

// RedisIndex persists fingerprints in a redis hash so the duplicate index
// survives restarts and can be shared by replicas. The mutex makes
// check-then-insert a critical section within one process; cross-replica
// races only risk a fingerprint being stored twice, never a missed duplicate
// on later lookups.
type RedisIndex struct {
	mu        sync.Mutex
	rdb       *redis.Client
	threshold float64
}

// NewRedisIndex builds a redis-backed index from a redis URL
// (redis://host:port/db).
func NewRedisIndex(url string, threshold float64) (*RedisIndex, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	return &RedisIndex{rdb: redis.NewClient(opt), threshold: threshold}, nil
}

func (ix *RedisIndex) CheckAndInsert(ctx context.Context, fp phash.Fingerprint, issueID int64) (Match, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	stored, err := ix.rdb.HGetAll(ctx, redisKey).Result()
	if err != nil {
		return Match{}, fmt.Errorf("fingerprint lookup failed: %w", err)
	}

	for hexFP, raw := range stored {
		var e redisEntry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			continue
		}
		if e.IssueID == issueID {
			continue
		}
		other, err := phash.Parse(hexFP)
		if err != nil {
			continue
		}
		if sim := phash.Similarity(fp, other); sim >= ix.threshold {
			return Match{Found: true, Similarity: sim, IssueID: e.IssueID}, nil
		}
	}

	raw, err := json.Marshal(redisEntry{IssueID: issueID, InsertedAt: time.Now().UTC()})
	if err != nil {
		return Match{}, err
	}
	if err := ix.rdb.HSet(ctx, redisKey, fp.String(), raw).Err(); err != nil {
		return Match{}, fmt.Errorf("fingerprint insert failed: %w", err)
	}

	return Match{}, nil
}

func (ix *RedisIndex) Len(ctx context.Context) (int, error) {
	n, err := ix.rdb.HLen(ctx, redisKey).Result()
	return int(n), err
}

func (ix *RedisIndex) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	stored, err := ix.rdb.HGetAll(ctx, redisKey).Result()
	if err != nil {
		return 0, err
	}

	var stale []string
	for hexFP, raw := range stored {
		var e redisEntry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			stale = append(stale, hexFP)
			continue
		}
		if e.InsertedAt.Before(cutoff) {
			stale = append(stale, hexFP)
		}
	}

	if len(stale) == 0 {
		return 0, nil
	}
	if err := ix.rdb.HDel(ctx, redisKey, stale...).Err(); err != nil {
		return 0, err
	}
	return len(stale), nil
}
