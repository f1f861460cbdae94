package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/georgegoldman/mothrbox-walrus-layer/internal/models"
)

const (
	redisRecordPrefix = "mothrbox:file:"
	redisOwnerPrefix  = "mothrbox:owner:"
)

// redisBackend keeps each record as a JSON document and an owner sorted set
// scored by upload time.
type redisBackend struct {
	client redis.UniversalClient
}

func newRedisBackend(client redis.UniversalClient) *redisBackend {
	return &redisBackend{client: client}
}

func recordKey(blobID string) string { return redisRecordPrefix + blobID }
func ownerKey(owner string) string   { return redisOwnerPrefix + owner }

func (b *redisBackend) upsert(ctx context.Context, rec models.FileRecord) error {
	doc, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	// a re-upsert may move the record to another owner
	prev, err := b.client.Get(ctx, recordKey(rec.BlobID)).Bytes()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("read file record: %w", err)
	}
	var old models.FileRecord
	if len(prev) > 0 {
		if err := json.Unmarshal(prev, &old); err != nil {
			old = models.FileRecord{}
		}
	}

	_, err = b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if old.Owner != "" && old.Owner != rec.Owner {
			pipe.ZRem(ctx, ownerKey(old.Owner), rec.BlobID)
		}
		pipe.Set(ctx, recordKey(rec.BlobID), doc, 0)
		pipe.ZAdd(ctx, ownerKey(rec.Owner), redis.Z{
			Score:  float64(rec.UploadedAt.UnixMilli()),
			Member: rec.BlobID,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("upsert file record: %w", err)
	}
	return nil
}

func (b *redisBackend) listByOwner(ctx context.Context, owner string) ([]models.FileRecord, error) {
	ids, err := b.client.ZRevRange(ctx, ownerKey(owner), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list file records: %w", err)
	}
	records := make([]models.FileRecord, 0, len(ids))
	if len(ids) == 0 {
		return records, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = recordKey(id)
	}
	docs, err := b.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load file records: %w", err)
	}
	for i, doc := range docs {
		s, ok := doc.(string)
		if !ok {
			continue
		}
		var rec models.FileRecord
		if err := json.Unmarshal([]byte(s), &rec); err != nil {
			return nil, fmt.Errorf("decode file record %s: %w", ids[i], err)
		}
		if rec.Owner != owner {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

func (b *redisBackend) close() error {
	return b.client.Close()
}
