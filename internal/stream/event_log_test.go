package stream

import (
	"context"
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLog(t *testing.T) EventLog {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisEventLog(client)
}

func TestEnsureGroupIsIdempotent(t *testing.T) {
	log := newTestLog(t)
	ctx := context.Background()

	require.NoError(t, log.EnsureGroup(ctx, FanoutStream, FanoutGroup))
	// 已存在不算错误
	require.NoError(t, log.EnsureGroup(ctx, FanoutStream, FanoutGroup))
}

func TestAppendReadAck(t *testing.T) {
	log := newTestLog(t)
	ctx := context.Background()
	require.NoError(t, log.EnsureGroup(ctx, FanoutStream, FanoutGroup))

	id, err := log.Append(ctx, FanoutStream, map[string]string{"postId": "p1", "userId": "u1"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	events, err := log.ReadBatch(ctx, FanoutStream, FanoutGroup, "c1", 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, id, events[0].ID)
	assert.Equal(t, "p1", events[0].Fields["postId"])
	assert.Equal(t, "u1", events[0].Fields["userId"])

	require.NoError(t, log.Ack(ctx, FanoutStream, FanoutGroup, id))

	// ack 后不再投递
	events, err = log.ReadBatch(ctx, FanoutStream, FanoutGroup, "c1", 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestReadBatchReplaysUnacked(t *testing.T) {
	log := newTestLog(t)
	ctx := context.Background()
	require.NoError(t, log.EnsureGroup(ctx, FanoutStream, FanoutGroup))

	id, err := log.Append(ctx, FanoutStream, map[string]string{"postId": "p1"})
	require.NoError(t, err)

	// 第一次读到但不 ack
	events, err := log.ReadBatch(ctx, FanoutStream, FanoutGroup, "c1", 10)
	require.NoError(t, err)
	require.Len(t, events, 1)

	// 未确认条目在下一轮重放（at-least-once）
	events, err = log.ReadBatch(ctx, FanoutStream, FanoutGroup, "c1", 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, id, events[0].ID)
}

func TestReadBatchHonorsCount(t *testing.T) {
	log := newTestLog(t)
	ctx := context.Background()
	require.NoError(t, log.EnsureGroup(ctx, FanoutStream, FanoutGroup))

	for i := 0; i < 5; i++ {
		_, err := log.Append(ctx, FanoutStream, map[string]string{"n": strconv.Itoa(i)})
		require.NoError(t, err)
	}

	events, err := log.ReadBatch(ctx, FanoutStream, FanoutGroup, "c1", 3)
	require.NoError(t, err)
	assert.Len(t, events, 3)

	// 剩余的混合 pending + 新条目仍不超过 count
	events, err = log.ReadBatch(ctx, FanoutStream, FanoutGroup, "c1", 10)
	require.NoError(t, err)
	assert.Len(t, events, 5)
}

func TestReadBatchEmptyStream(t *testing.T) {
	log := newTestLog(t)
	ctx := context.Background()
	require.NoError(t, log.EnsureGroup(ctx, FanoutStream, FanoutGroup))

	events, err := log.ReadBatch(ctx, FanoutStream, FanoutGroup, "c1", 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}
