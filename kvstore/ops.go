package kvstore

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

type opKind uint8

const (
	opSet opKind = iota + 1
	opDelete
	opAddToSet
	opRemoveFromSet
	opExpire
)

// Op is one write queued into [Store.Pipeline].
type Op struct {
	kind   opKind
	key    string
	keys   []string
	member string
	value  interface{}
	ttl    time.Duration
}

// SetOp queues SetWithTTL.
func SetOp(key string, value interface{}, ttl time.Duration) Op {
	if ttl < 0 {
		ttl = 0
	}
	return Op{kind: opSet, key: key, value: value, ttl: ttl}
}

// DeleteOp queues Delete.
func DeleteOp(keys ...string) Op {
	return Op{kind: opDelete, keys: keys}
}

// AddToSetOp queues AddToSet.
func AddToSetOp(key, member string) Op {
	return Op{kind: opAddToSet, key: key, member: member}
}

// RemoveFromSetOp queues RemoveFromSet.
func RemoveFromSetOp(key, member string) Op {
	return Op{kind: opRemoveFromSet, key: key, member: member}
}

// ExpireOp queues Expire.
func ExpireOp(key string, ttl time.Duration) Op {
	return Op{kind: opExpire, key: key, ttl: ttl}
}

func (o Op) apply(ctx context.Context, pipe redis.Pipeliner) {
	switch o.kind {
	case opSet:
		pipe.Set(ctx, o.key, o.value, o.ttl)
	case opDelete:
		// One DEL per key keeps the pipeline valid when keys hash to
		// different cluster slots.
		for _, k := range o.keys {
			pipe.Del(ctx, k)
		}
	case opAddToSet:
		pipe.SAdd(ctx, o.key, o.member)
	case opRemoveFromSet:
		pipe.SRem(ctx, o.key, o.member)
	case opExpire:
		pipe.Expire(ctx, o.key, o.ttl)
	}
}
