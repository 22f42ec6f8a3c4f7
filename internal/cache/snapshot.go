package cache

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// SnapshotStore keeps whole JSON snapshots under plain keys, overwritten on
// every save and never expired.
type SnapshotStore struct {
	client *redis.Client
	prefix string
}

func NewSnapshotStore(client *redis.Client) *SnapshotStore {
	return &SnapshotStore{client: client, prefix: "local:"}
}

func (s *SnapshotStore) Save(ctx context.Context, key string, v any) error {
	return setJSON(ctx, s.client, s.prefix+key, v, 0)
}

// Load decodes the snapshot stored under key into dst. A missing key is ErrCacheMiss.
func (s *SnapshotStore) Load(ctx context.Context, key string, dst any) error {
	return getJSON(ctx, s.client, s.prefix+key, dst)
}
