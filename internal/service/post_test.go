package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/newsfeed/internal/repository"
)

func TestCreatePostEnqueuesFanout(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.createUser(t, "u1")
	env.createUser(t, "u2")
	env.follow(t, "u2", "u1")

	post, err := env.postSvc.Create(ctx, "u1", "hello")
	require.NoError(t, err)

	// 发帖本身不写缓存，扇出异步
	assert.Empty(t, env.feedIDs(t, "u2"))

	require.NoError(t, env.worker.ProcessOnce(ctx))
	assert.Equal(t, []string{post.ID}, env.feedIDs(t, "u2"))
}

func TestCreatePostFailsWhenEnqueueFails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createUser(t, "u1")

	env.mr.Close()
	_, err := env.postSvc.Create(ctx, "u1", "hello")
	assert.ErrorIs(t, err, ErrEnqueueFailed)
}

func TestDeletePostCleansLikesAndFeeds(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.createUser(t, "u1")
	env.createUser(t, "u2")
	env.follow(t, "u2", "u1")

	post, err := env.postSvc.Create(ctx, "u1", "hello")
	require.NoError(t, err)
	require.NoError(t, env.worker.ProcessOnce(ctx))
	require.NoError(t, env.likes.Create(ctx, post.ID, "u2"))

	require.NoError(t, env.postSvc.Delete(ctx, post.ID))

	assert.Empty(t, env.feedIDs(t, "u1"))
	assert.Empty(t, env.feedIDs(t, "u2"))

	cnt, err := env.likes.CountByPostID(ctx, post.ID)
	require.NoError(t, err)
	assert.Zero(t, cnt)

	_, err = env.posts.GetByID(ctx, post.ID)
	assert.ErrorIs(t, err, repository.ErrPostNotFound)
}

func TestUpdatePostReenqueues(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.createUser(t, "u1")
	env.createUser(t, "u2")
	env.follow(t, "u2", "u1")

	post, err := env.postSvc.Create(ctx, "u1", "hello")
	require.NoError(t, err)
	require.NoError(t, env.worker.ProcessOnce(ctx))

	_, err = env.postSvc.Update(ctx, post.ID, "edited")
	require.NoError(t, err)
	require.NoError(t, env.worker.ProcessOnce(ctx))

	// upsert 幂等：还是一条
	ids := env.feedIDs(t, "u2")
	require.Len(t, ids, 1)
	assert.Equal(t, post.ID, ids[0])

	got, err := env.posts.GetByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "edited", got.Caption)
}
