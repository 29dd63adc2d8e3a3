package redis

import (
	"context"
	"sort"

	"github.com/redis/go-redis/v9"
)

// AdminIndex maintains per-class reference sets in Redis:
//
//	SADD admin:classes {className}
//	SADD admin:class:{className}:{kind} {id...}
type AdminIndex struct {
	client *redis.Client
}

func NewAdminIndex(client *redis.Client) *AdminIndex {
	return &AdminIndex{client: client}
}

func (i *AdminIndex) Add(ctx context.Context, className, kind string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	members := make([]interface{}, len(ids))
	for n, id := range ids {
		members[n] = id
	}
	pipe := i.client.TxPipeline()
	pipe.SAdd(ctx, classesKey, className)
	pipe.SAdd(ctx, i.refsKey(className, kind), members...)
	_, err := pipe.Exec(ctx)
	return err
}

// Refs returns the sorted IDs recorded for a class and kind.
func (i *AdminIndex) Refs(ctx context.Context, className, kind string) ([]string, error) {
	ids, err := i.client.SMembers(ctx, i.refsKey(className, kind)).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}

const classesKey = "admin:classes"

func (i *AdminIndex) refsKey(className, kind string) string {
	return "admin:class:" + className + ":" + kind
}
