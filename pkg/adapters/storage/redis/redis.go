package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/aescanero/reelgen/internal/domain"
)

// DefaultTTL is how long a run record lives after its last write. Terminal
// runs expire a day after finishing; the catalog keeps the durable summary.
const DefaultTTL = 24 * time.Hour

// RunStore implements ports.RunStore using Redis
type RunStore struct {
	client *redis.Client
	logger *zap.Logger
	ttl    time.Duration
}

// NewRunStore creates a new Redis run store
func NewRunStore(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RunStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RunStore{
		client: client,
		logger: logger,
		ttl:    ttl,
	}
}

// saveScript writes the record only when its seq advances past the stored
// one. Every run mutation bumps seq before saving, so a writer whose
// snapshot another process has since overwritten is rejected instead of
// clobbering the newer record. Atomicity comes from Redis running the
// script single-threaded.
var saveScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if cur then
	local stored = cjson.decode(cur)
	if tonumber(stored.seq) >= tonumber(ARGV[2]) then
		return 0
	end
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
return 1
`)

// Save persists a run as JSON and refreshes its TTL (ports.RunStore
// interface). Returns ErrStaleWrite when a newer revision is already
// stored.
func (s *RunStore) Save(ctx context.Context, run *domain.Run) error {
	if run == nil || run.ID == "" {
		return fmt.Errorf("run ID is required")
	}

	key := getRunKey(run.ID)

	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	ok, err := saveScript.Run(ctx, s.client, []string{key},
		data, run.Seq, s.ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	if ok == 0 {
		return fmt.Errorf("%w: run %s at seq %d", domain.ErrStaleWrite, run.ID, run.Seq)
	}

	s.logger.Debug("run saved",
		zap.String("run_id", run.ID),
		zap.String("state", string(run.State)))

	return nil
}

// Get retrieves a run by ID (ports.RunStore interface)
func (s *RunStore) Get(ctx context.Context, runID string) (*domain.Run, error) {
	key := getRunKey(runID)

	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("%w: run %s", domain.ErrNotFound, runID)
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	var run domain.Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run: %w", err)
	}

	return &run, nil
}

// Delete removes a run record (ports.RunStore interface)
func (s *RunStore) Delete(ctx context.Context, runID string) error {
	key := getRunKey(runID)

	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}

	s.logger.Debug("run deleted", zap.String("run_id", runID))

	return nil
}

// List returns all stored runs (ports.RunStore interface)
func (s *RunStore) List(ctx context.Context) ([]*domain.Run, error) {
	pattern := runKeyPrefix + "*"

	var cursor uint64
	var keys []string

	for {
		var batch []string
		var err error

		batch, cursor, err = s.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan keys: %w", err)
		}

		keys = append(keys, batch...)

		if cursor == 0 {
			break
		}
	}

	runs := make([]*domain.Run, 0, len(keys))
	for _, key := range keys {
		data, err := s.client.Get(ctx, key).Bytes()
		if err != nil {
			// Key expired between SCAN and GET
			continue
		}

		var run domain.Run
		if err := json.Unmarshal(data, &run); err != nil {
			s.logger.Warn("skipping malformed run record", zap.String("key", key), zap.Error(err))
			continue
		}

		runs = append(runs, &run)
	}

	return runs, nil
}

const runKeyPrefix = "reelgen:run:"

// getRunKey returns the Redis key for a run record
func getRunKey(runID string) string {
	return runKeyPrefix + runID
}
