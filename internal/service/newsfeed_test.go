package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/newsfeed/internal/cache"
)

func TestGetNewsFeedEmptyCacheTriggersRebuild(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	author := env.createUser(t, "u1")
	env.createUser(t, "u2")
	env.follow(t, "u2", "u1")
	p1 := env.createPost(t, author.ID, time.Unix(100, 0))
	p2 := env.createPost(t, author.ID, time.Unix(200, 0))

	// 扇出从未运行过，读路径必须自己从库重建
	feed, err := env.newsfeed.GetNewsFeed(ctx, "u2", 0, 10)
	require.NoError(t, err)
	require.Len(t, feed.Items, 2)
	assert.Equal(t, p2.ID, feed.Items[0].ID)
	assert.Equal(t, p1.ID, feed.Items[1].ID)
	assert.Equal(t, int64(2), feed.Total)

	// 重建把这一页灌回缓存
	assert.Equal(t, []string{p2.ID, p1.ID}, env.feedIDs(t, "u2"))
	assert.Equal(t, 12*time.Hour, env.mr.TTL(cache.FeedKey("u2")))
}

func TestStalenessDetectsPostNotYetFannedOut(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	author := env.createUser(t, "u1")
	env.createUser(t, "u2")
	env.follow(t, "u2", "u1")

	p1 := env.createPost(t, author.ID, time.Unix(100, 0))
	env.enqueue(t, p1)
	require.NoError(t, env.worker.ProcessOnce(ctx))
	assert.Equal(t, []string{p1.ID}, env.feedIDs(t, "u2"))

	// P2 已落库但扇出还没跑：读路径必须发现并重建
	p2 := env.createPost(t, author.ID, time.Unix(200, 0))

	feed, err := env.newsfeed.GetNewsFeed(ctx, "u2", 0, 10)
	require.NoError(t, err)
	require.Len(t, feed.Items, 2)
	assert.Equal(t, p2.ID, feed.Items[0].ID)
	assert.Equal(t, p1.ID, feed.Items[1].ID)
}

func TestFreshCacheIsServedWithoutRebuild(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	author := env.createUser(t, "u1")
	env.createUser(t, "u2")
	env.follow(t, "u2", "u1")
	p1 := env.createPost(t, author.ID, time.Unix(100, 0))
	env.enqueue(t, p1)
	require.NoError(t, env.worker.ProcessOnce(ctx))

	// 库的最新帖与缓存头部一致 ⇒ 不过期
	page, err := env.feeds.RangeDescByRank(ctx, cache.FeedKey("u2"), 0, 9)
	require.NoError(t, err)
	assert.False(t, env.newsfeed.isStale(ctx, "u2", cache.FeedKey("u2"), page))

	feed, err := env.newsfeed.GetNewsFeed(ctx, "u2", 0, 10)
	require.NoError(t, err)
	require.Len(t, feed.Items, 1)
	assert.Equal(t, p1.ID, feed.Items[0].ID)
	assert.Equal(t, "user-u1", feed.Items[0].Author.Username)
}

func TestIsStaleEmptyPageAlwaysStale(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createUser(t, "u2")

	assert.True(t, env.newsfeed.isStale(ctx, "u2", cache.FeedKey("u2"), nil))
}

func TestIsStaleNoSourcePostsNotStale(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createUser(t, "u2")

	// 缓存里有残留条目但库里（关注集内）没有任何帖子 ⇒ 不可能有新内容
	require.NoError(t, env.feeds.Upsert(ctx, cache.FeedKey("u2"), "ghost", 100))
	page := []string{"ghost"}
	assert.False(t, env.newsfeed.isStale(ctx, "u2", cache.FeedKey("u2"), page))
}

func TestSelfPostsAppearInOwnFeed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	author := env.createUser(t, "u1")
	p1 := env.createPost(t, author.ID, time.Unix(100, 0))
	env.enqueue(t, p1)
	require.NoError(t, env.worker.ProcessOnce(ctx))

	feed, err := env.newsfeed.GetNewsFeed(ctx, "u1", 0, 10)
	require.NoError(t, err)
	require.Len(t, feed.Items, 1)
	assert.Equal(t, p1.ID, feed.Items[0].ID)
}

func TestRebuildCompleteness(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	author := env.createUser(t, "u1")
	env.createUser(t, "u2")
	env.follow(t, "u2", "u1")

	var latestID string
	for i := 0; i < 5; i++ {
		p := env.createPost(t, author.ID, time.Unix(int64(100+i), 0))
		latestID = p.ID
	}

	feed, err := env.newsfeed.GetNewsFeed(ctx, "u2", 0, 3)
	require.NoError(t, err)
	assert.Len(t, feed.Items, 3)
	assert.Equal(t, int64(5), feed.Total)
	assert.Equal(t, latestID, feed.Items[0].ID)

	// 缓存基数 = min(pageSize, total)，且头部是最新帖
	n, err := env.feeds.Cardinality(ctx, cache.FeedKey("u2"))
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	head, err := env.feeds.RangeDescByRank(ctx, cache.FeedKey("u2"), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{latestID}, head)
}

func TestRebuildMaterializesOnlyRequestedPage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	author := env.createUser(t, "u1")
	env.createUser(t, "u2")
	env.follow(t, "u2", "u1")
	for i := 0; i < 5; i++ {
		env.createPost(t, author.ID, time.Unix(int64(100+i), 0))
	}

	feed, err := env.newsfeed.GetNewsFeed(ctx, "u2", 1, 3)
	require.NoError(t, err)
	assert.Len(t, feed.Items, 2)
	assert.Equal(t, int64(5), feed.Total)

	// 只灌请求页
	n, err := env.feeds.Cardinality(ctx, cache.FeedKey("u2"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestGetNewsFeedPageBeyondRange(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	author := env.createUser(t, "u1")
	env.createUser(t, "u2")
	env.follow(t, "u2", "u1")
	env.createPost(t, author.ID, time.Unix(100, 0))

	feed, err := env.newsfeed.GetNewsFeed(ctx, "u2", 5, 10)
	require.NoError(t, err)
	assert.Empty(t, feed.Items)
	assert.Equal(t, int64(1), feed.Total)
}

func TestRemovePostSweepsAllCachedFeeds(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	author := env.createUser(t, "u1")
	env.createUser(t, "u2")
	env.createUser(t, "u3")
	env.follow(t, "u2", "u1")
	env.follow(t, "u3", "u1")

	p1 := env.createPost(t, author.ID, time.Unix(100, 0))
	p2 := env.createPost(t, author.ID, time.Unix(200, 0))
	env.enqueue(t, p1)
	env.enqueue(t, p2)
	require.NoError(t, env.worker.ProcessOnce(ctx))

	// 删除 P1：行删除 + 所有缓存信息流清理
	require.NoError(t, env.postSvc.Delete(ctx, p1.ID))

	for _, uid := range []string{"u1", "u2", "u3"} {
		feed, err := env.newsfeed.GetNewsFeed(ctx, uid, 0, 10)
		require.NoError(t, err)
		assert.Equal(t, int64(1), feed.Total, "user %s", uid)
		for _, item := range feed.Items {
			assert.NotEqual(t, p1.ID, item.ID)
		}
	}
}

func TestFeedOrderingNonIncreasing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	author := env.createUser(t, "u1")
	env.createUser(t, "u2")
	env.follow(t, "u2", "u1")

	times := []int64{300, 100, 500, 200, 400}
	for _, ts := range times {
		p := env.createPost(t, author.ID, time.Unix(ts, 0))
		env.enqueue(t, p)
	}
	require.NoError(t, env.worker.ProcessOnce(ctx))

	feed, err := env.newsfeed.GetNewsFeed(ctx, "u2", 0, 10)
	require.NoError(t, err)
	require.Len(t, feed.Items, 5)
	for i := 1; i < len(feed.Items); i++ {
		prev := feed.Items[i-1].UpdatedAt
		cur := feed.Items[i].UpdatedAt
		assert.False(t, cur.After(prev), "feed must be non-increasing by time")
	}
}
