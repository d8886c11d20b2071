package goredis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	gojobredis "github.com/goliatone/go-job/queue/adapters/redis"
)

// Commands is the subset of the go-redis v8 API the queue storage needs. A
// *redis.Client satisfies it.
type Commands interface {
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	HGetAll(ctx context.Context, key string) *redis.StringStringMapCmd
	HGet(ctx context.Context, key, field string) *redis.StringCmd
	HDel(ctx context.Context, key string, fields ...string) *redis.IntCmd
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	RPop(ctx context.Context, key string) *redis.StringCmd
	ZAdd(ctx context.Context, key string, members ...*redis.Z) *redis.IntCmd
	ZRem(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	ZRangeByScoreWithScores(ctx context.Context, key string, opt *redis.ZRangeBy) *redis.ZSliceCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Client exposes go-redis commands in the shape go-job's Redis storage
// expects. Missing keys read as empty values rather than redis.Nil.
type Client struct {
	cmds Commands
}

func NewClient(cmds Commands) *Client {
	return &Client{cmds: cmds}
}

func (c *Client) HSet(ctx context.Context, key string, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	args := make([]interface{}, 0, len(values)*2)
	for field, value := range values {
		args = append(args, field, value)
	}
	return c.cmds.HSet(ctx, key, args...).Err()
}

func (c *Client) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return c.cmds.HGetAll(ctx, key).Result()
}

func (c *Client) HGet(ctx context.Context, key, field string) (string, error) {
	value, err := c.cmds.HGet(ctx, key, field).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return value, err
}

func (c *Client) HDel(ctx context.Context, key string, fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	return c.cmds.HDel(ctx, key, fields...).Err()
}

func (c *Client) LPush(ctx context.Context, key string, values ...string) error {
	if len(values) == 0 {
		return nil
	}
	return c.cmds.LPush(ctx, key, toInterfaces(values)...).Err()
}

func (c *Client) RPop(ctx context.Context, key string) (string, error) {
	value, err := c.cmds.RPop(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return value, err
}

func (c *Client) ZAdd(ctx context.Context, key string, score float64, member string) error {
	return c.cmds.ZAdd(ctx, key, &redis.Z{Score: score, Member: member}).Err()
}

func (c *Client) ZRem(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	return c.cmds.ZRem(ctx, key, toInterfaces(members)...).Err()
}

func (c *Client) ZRangeByScore(ctx context.Context, key string, max float64, limit int64) ([]gojobredis.ZItem, error) {
	entries, err := c.cmds.ZRangeByScoreWithScores(ctx, key, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatFloat(max, 'f', -1, 64),
		Count: limit,
	}).Result()
	if err != nil {
		return nil, err
	}
	out := make([]gojobredis.ZItem, 0, len(entries))
	for _, entry := range entries {
		out = append(out, gojobredis.ZItem{Member: memberString(entry.Member), Score: entry.Score})
	}
	return out, nil
}

func (c *Client) Eval(ctx context.Context, script string, keys []string, args ...any) (any, error) {
	value, err := c.cmds.Eval(ctx, script, keys, args...).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return value, err
}

func (c *Client) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return c.cmds.Expire(ctx, key, ttl).Err()
}

func (c *Client) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.cmds.Del(ctx, keys...).Err()
}

func toInterfaces(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, value := range values {
		out[i] = value
	}
	return out
}

func memberString(member interface{}) string {
	switch value := member.(type) {
	case string:
		return value
	case []byte:
		return string(value)
	default:
		return fmt.Sprint(value)
	}
}

var (
	_ gojobredis.Client = (*Client)(nil)
	_ Commands          = (*redis.Client)(nil)
)
