// Copyright 2025 AxonFlow
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package ledger records placeholders that were created in storage but
// could not be linked to a record or removed again, so an operator can
// clean them up.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-redis/redis/v8"

	"folderlink/platform/connectors/base"
)

// DefaultKeyPrefix namespaces ledger keys
const DefaultKeyPrefix = "folderlink"

// Orphan is a placeholder blob with no linked record. PlaceholderURL never
// carries a credential.
type Orphan struct {
	Registration   string    `json:"registration"`
	CorrelationID  string    `json:"correlation_id,omitempty"`
	Entity         string    `json:"entity"`
	RecordID       string    `json:"record_id"`
	BlobPath       string    `json:"blob_path"`
	PlaceholderURL string    `json:"placeholder_url"`
	Reason         string    `json:"reason"`
	RecordedAt     time.Time `json:"recorded_at"`
}

// RedisLedger keeps orphans in a hash keyed by placeholder URL with a sorted
// set index by time.
type RedisLedger struct {
	client *redis.Client
	prefix string
	logger *log.Logger
}

// NewRedisLedger connects to Redis at redisURL (redis://host:port/db)
func NewRedisLedger(ctx context.Context, redisURL, prefix string) (*RedisLedger, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisLedgerWithClient(client, prefix), nil
}

// NewRedisLedgerWithClient uses an existing client
func NewRedisLedgerWithClient(client *redis.Client, prefix string) *RedisLedger {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisLedger{
		client: client,
		prefix: prefix,
		logger: log.New(os.Stdout, "[LEDGER] ", log.LstdFlags),
	}
}

// Name returns the ledger name
func (l *RedisLedger) Name() string {
	return "orphan-ledger"
}

func (l *RedisLedger) dataKey() string  { return l.prefix + ":orphans" }
func (l *RedisLedger) indexKey() string { return l.prefix + ":orphans:index" }

// Record stores an orphan. Recording the same placeholder again replaces
// the earlier entry.
func (l *RedisLedger) Record(ctx context.Context, o Orphan) error {
	if o.PlaceholderURL == "" {
		return base.NewConnectorError(l.Name(), "Record", "placeholder URL is required", nil)
	}
	if o.RecordedAt.IsZero() {
		o.RecordedAt = time.Now().UTC()
	}

	data, err := json.Marshal(o)
	if err != nil {
		return base.NewConnectorError(l.Name(), "Record", "failed to encode orphan", err)
	}

	_, err = l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, l.dataKey(), o.PlaceholderURL, data)
		pipe.ZAdd(ctx, l.indexKey(), &redis.Z{
			Score:  float64(o.RecordedAt.UnixNano()),
			Member: o.PlaceholderURL,
		})
		return nil
	})
	if err != nil {
		return base.NewConnectorError(l.Name(), "Record", "failed to store orphan", err)
	}

	l.logger.Printf("Recorded orphaned placeholder %s for %s %s", o.BlobPath, o.Entity, o.RecordID)
	return nil
}

// List returns up to limit orphans, newest first. A limit <= 0 returns all.
func (l *RedisLedger) List(ctx context.Context, limit int) ([]Orphan, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}

	urls, err := l.client.ZRevRange(ctx, l.indexKey(), 0, stop).Result()
	if err != nil {
		return nil, base.NewConnectorError(l.Name(), "List", "failed to read index", err)
	}
	if len(urls) == 0 {
		return []Orphan{}, nil
	}

	values, err := l.client.HMGet(ctx, l.dataKey(), urls...).Result()
	if err != nil {
		return nil, base.NewConnectorError(l.Name(), "List", "failed to read orphans", err)
	}

	orphans := make([]Orphan, 0, len(values))
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			l.logger.Printf("Warning: index entry %s has no data", urls[i])
			continue
		}
		var o Orphan
		if err := json.Unmarshal([]byte(s), &o); err != nil {
			l.logger.Printf("Warning: skipping unreadable entry %s: %v", urls[i], err)
			continue
		}
		orphans = append(orphans, o)
	}
	return orphans, nil
}

// Resolve removes an orphan once it has been cleaned up. It reports whether
// the entry existed.
func (l *RedisLedger) Resolve(ctx context.Context, placeholderURL string) (bool, error) {
	var hdel *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		hdel = pipe.HDel(ctx, l.dataKey(), placeholderURL)
		pipe.ZRem(ctx, l.indexKey(), placeholderURL)
		return nil
	})
	if err != nil {
		return false, base.NewConnectorError(l.Name(), "Resolve", "failed to remove orphan", err)
	}
	return hdel.Val() > 0, nil
}

// Count returns the number of recorded orphans
func (l *RedisLedger) Count(ctx context.Context) (int64, error) {
	n, err := l.client.HLen(ctx, l.dataKey()).Result()
	if err != nil {
		return 0, base.NewConnectorError(l.Name(), "Count", "failed to count orphans", err)
	}
	return n, nil
}

// HealthCheck pings Redis
func (l *RedisLedger) HealthCheck(ctx context.Context) (*base.HealthStatus, error) {
	return base.Probe(ctx, func(ctx context.Context) error {
		return l.client.Ping(ctx).Err()
	}), nil
}

// Close closes the Redis client
func (l *RedisLedger) Close() error {
	return l.client.Close()
}
