// Package goredis runs the webhook queue on Redis through go-job's Redis
// storage. Ready ids live in a list, delayed retries and leased deliveries
// in sorted sets scored by due time, and each message in its own hash.
// Expired leases return to the ready list on the next dequeue.
package goredis

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-redis/redis/v8"

	"github.com/goliatone/go-job/queue"
	gojobredis "github.com/goliatone/go-job/queue/adapters/redis"
)

const DefaultQueueName = "inbox:webhooks"

// NewQueue builds a go-job queue adapter whose keys are prefixed with name.
func NewQueue(cmds Commands, name string, opts ...gojobredis.Option) (*gojobredis.Adapter, error) {
	if cmds == nil {
		return nil, fmt.Errorf("goredis: client is required")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultQueueName
	}
	storageOpts := append([]gojobredis.Option{gojobredis.WithQueueName(name)}, opts...)
	return gojobredis.NewAdapter(gojobredis.NewStorage(NewClient(cmds), storageOpts...)), nil
}

// Dial connects to addr and checks the server answers before the queue is
// used.
func Dial(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("goredis: ping %s: %w", addr, err)
	}
	return client, nil
}

var (
	_ queue.Enqueuer             = (*gojobredis.Adapter)(nil)
	_ queue.Dequeuer             = (*gojobredis.Adapter)(nil)
	_ queue.DispatchStatusReader = (*gojobredis.Adapter)(nil)
)
