package stream

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

const (
	// FanoutStream 扇出任务流
	FanoutStream = "fanout:stream"
	// FanoutGroup 扇出消费组
	FanoutGroup = "fanout-group"
)

// Event 日志中的一条记录
type Event struct {
	ID     string
	Fields map[string]string
}

// EventLog 顺序事件日志，带消费组语义
type EventLog interface {
	Append(ctx context.Context, stream string, fields map[string]string) (string, error)
	// EnsureGroup 幂等创建消费组，已存在不算错误
	EnsureGroup(ctx context.Context, stream, group string) error
	// ReadBatch 先读本消费者未确认的条目，再补读新条目，合计不超过 count。
	// 进程崩溃后重启时，读过未 ack 的事件会在这里被重放（at-least-once 边界）。
	ReadBatch(ctx context.Context, stream, group, consumer string, count int64) ([]Event, error)
	Ack(ctx context.Context, stream, group string, ids ...string) error
}

type redisEventLog struct{ client *redis.Client }

// NewRedisEventLog 基于 Redis Stream 的实现
func NewRedisEventLog(client *redis.Client) EventLog { return &redisEventLog{client: client} }

func (l *redisEventLog) Append(ctx context.Context, stream string, fields map[string]string) (string, error) {
	values := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		values[k] = v
	}
	return l.client.XAdd(ctx, &redis.XAddArgs{Stream: stream, Values: values}).Result()
}

func (l *redisEventLog) EnsureGroup(ctx context.Context, stream, group string) error {
	err := l.client.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil && strings.Contains(err.Error(), "BUSYGROUP") {
		return nil
	}
	return err
}

func (l *redisEventLog) ReadBatch(ctx context.Context, stream, group, consumer string, count int64) ([]Event, error) {
	// "0"：本消费者的 pending 条目（读过未 ack）
	events, err := l.read(ctx, stream, group, consumer, "0", count)
	if err != nil {
		return nil, fmt.Errorf("read pending entries: %w", err)
	}
	if int64(len(events)) < count {
		fresh, err := l.read(ctx, stream, group, consumer, ">", count-int64(len(events)))
		if err != nil {
			return nil, fmt.Errorf("read new entries: %w", err)
		}
		events = append(events, fresh...)
	}
	return events, nil
}

func (l *redisEventLog) read(ctx context.Context, stream, group, consumer, offset string, count int64) ([]Event, error) {
	res, err := l.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{stream, offset},
		Count:    count,
		Block:    -1, // 非阻塞，空流直接返回
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var events []Event
	for _, s := range res {
		for _, msg := range s.Messages {
			fields := make(map[string]string, len(msg.Values))
			for k, v := range msg.Values {
				if str, ok := v.(string); ok {
					fields[k] = str
				}
			}
			events = append(events, Event{ID: msg.ID, Fields: fields})
		}
	}
	return events, nil
}

func (l *redisEventLog) Ack(ctx context.Context, stream, group string, ids ...string) error {
	return l.client.XAck(ctx, stream, group, ids...).Err()
}
