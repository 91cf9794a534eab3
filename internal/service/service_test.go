package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/d60-Lab/newsfeed/internal/cache"
	"github.com/d60-Lab/newsfeed/internal/model"
	"github.com/d60-Lab/newsfeed/internal/repository"
	"github.com/d60-Lab/newsfeed/internal/stream"
)

type testEnv struct {
	db       *gorm.DB
	mr       *miniredis.Miniredis
	client   *redis.Client
	feeds    cache.FeedStore
	log      stream.EventLog
	posts    repository.PostRepository
	follows  repository.FollowRepository
	users    repository.UserRepository
	likes    repository.LikeRepository
	producer *FanoutProducer
	worker   *FanoutWorker
	newsfeed *NewsFeedService
	postSvc  *PostService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.User{}, &model.Post{}, &model.Follow{}, &model.Like{}))

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	env := &testEnv{
		db:      db,
		mr:      mr,
		client:  client,
		feeds:   cache.NewRedisFeedStore(client),
		log:     stream.NewRedisEventLog(client),
		posts:   repository.NewPostRepository(db),
		follows: repository.NewFollowRepository(db),
		users:   repository.NewUserRepository(db),
		likes:   repository.NewLikeRepository(db),
	}
	env.producer = NewFanoutProducer(env.log)
	env.worker = NewFanoutWorker(env.log, env.feeds, env.posts, env.follows, "test-consumer", 10, 12*time.Hour, time.Millisecond)
	require.NoError(t, env.worker.Init(context.Background()))
	env.newsfeed = NewNewsFeedService(env.feeds, env.posts, env.follows, env.users, 12*time.Hour, 10, 3*time.Second)
	env.postSvc = NewPostService(env.posts, env.likes, env.producer, env.newsfeed)
	return env
}

func (e *testEnv) createUser(t *testing.T, id string) *model.User {
	t.Helper()
	u := &model.User{ID: id, Username: "user-" + id, Email: id + "@example.com", Password: "p"}
	require.NoError(t, e.users.Create(context.Background(), u))
	return u
}

func (e *testEnv) createPost(t *testing.T, authorID string, ts time.Time) *model.Post {
	t.Helper()
	p := &model.Post{ID: uuid.New().String(), AuthorID: authorID, Caption: "caption", CreatedAt: ts, UpdatedAt: ts}
	require.NoError(t, e.posts.Create(context.Background(), p))
	return p
}

func (e *testEnv) follow(t *testing.T, from, to string) {
	t.Helper()
	require.NoError(t, e.follows.Create(context.Background(), from, to))
}

// enqueue 发帖 + 扇出事件入队
func (e *testEnv) enqueue(t *testing.T, post *model.Post) string {
	t.Helper()
	id, err := e.producer.Enqueue(context.Background(), post)
	require.NoError(t, err)
	return id
}

func (e *testEnv) feedIDs(t *testing.T, userID string) []string {
	t.Helper()
	ids, err := e.feeds.RangeDescByRank(context.Background(), cache.FeedKey(userID), 0, -1)
	require.NoError(t, err)
	return ids
}
