package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/d60-Lab/newsfeed/internal/cache"
	"github.com/d60-Lab/newsfeed/internal/model"
	"github.com/d60-Lab/newsfeed/internal/repository"
	"github.com/d60-Lab/newsfeed/internal/stream"
	"github.com/d60-Lab/newsfeed/pkg/logger"
)

// FanoutProducer 发帖后向事件日志追加扇出任务
type FanoutProducer struct {
	log stream.EventLog
}

func NewFanoutProducer(log stream.EventLog) *FanoutProducer { return &FanoutProducer{log: log} }

// Enqueue 追加一条扇出事件并返回日志分配的事件 ID。
// 只写日志，不碰缓存——扇出相对发帖永远是异步的。
func (p *FanoutProducer) Enqueue(ctx context.Context, post *model.Post) (string, error) {
	ts := post.EffectiveTime()
	id, err := p.log.Append(ctx, stream.FanoutStream, map[string]string{
		"postId":    post.ID,
		"userId":    post.AuthorID,
		"timestamp": strconv.FormatInt(ts.Unix(), 10),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEnqueueFailed, err)
	}
	logger.Info("fan-out event enqueued",
		zap.String("post_id", post.ID),
		zap.String("author_id", post.AuthorID),
		zap.String("event_id", id))
	return id, nil
}

// FanoutWorker 从事件日志批量拉取扇出任务并物化到各用户的信息流缓存
type FanoutWorker struct {
	log      stream.EventLog
	feeds    cache.FeedStore
	posts    repository.PostRepository
	follows  repository.FollowRepository
	consumer string
	batch    int64
	ttl      time.Duration
	interval time.Duration
}

func NewFanoutWorker(log stream.EventLog, feeds cache.FeedStore, posts repository.PostRepository, follows repository.FollowRepository, consumer string, batch int, ttl, interval time.Duration) *FanoutWorker {
	if consumer == "" {
		consumer = "fanout-consumer"
	}
	if batch <= 0 {
		batch = 10
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	if interval <= 0 {
		interval = 10 * time.Millisecond
	}
	return &FanoutWorker{log: log, feeds: feeds, posts: posts, follows: follows, consumer: consumer, batch: int64(batch), ttl: ttl, interval: interval}
}

// Init 幂等创建消费组，启动前调用一次
func (w *FanoutWorker) Init(ctx context.Context) error {
	return w.log.EnsureGroup(ctx, stream.FanoutStream, stream.FanoutGroup)
}

// Start 启动轮询循环；返回停止函数。
func (w *FanoutWorker) Start() func(context.Context) error {
	stop := make(chan struct{})
	done := make(chan struct{})
	go w.loop(stop, done)
	return func(ctx context.Context) error {
		close(stop)
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	}
}

func (w *FanoutWorker) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := w.ProcessOnce(context.Background()); err != nil {
				// 批次级失败（日志不可用等），下个周期重试
				logger.Error("fan-out batch failed", zap.Error(err))
			}
		}
	}
}

// ProcessOnce 拉取一批事件并逐条扇出。单条事件失败只跳过该事件（不 ack），
// 批次继续；全部 upsert 成功后才 ack。测试可直接调用以同步驱动迭代。
func (w *FanoutWorker) ProcessOnce(ctx context.Context) error {
	events, err := w.log.ReadBatch(ctx, stream.FanoutStream, stream.FanoutGroup, w.consumer, w.batch)
	if err != nil {
		return fmt.Errorf("read fan-out batch: %w", err)
	}
	if len(events) == 0 {
		return nil
	}
	logger.Debug("processing fan-out tasks", zap.Int("count", len(events)))
	for _, ev := range events {
		if err := w.processEvent(ctx, ev); err != nil {
			logger.Warn("fan-out event failed, will retry",
				zap.String("event_id", ev.ID), zap.Error(err))
			continue
		}
		if err := w.log.Ack(ctx, stream.FanoutStream, stream.FanoutGroup, ev.ID); err != nil {
			// ack 失败事件会重放，upsert 幂等，安全
			logger.Warn("ack failed", zap.String("event_id", ev.ID), zap.Error(err))
		}
	}
	return nil
}

func (w *FanoutWorker) processEvent(ctx context.Context, ev stream.Event) error {
	postID := ev.Fields["postId"]
	authorID := ev.Fields["userId"]
	score, parseErr := strconv.ParseFloat(ev.Fields["timestamp"], 64)
	if postID == "" || authorID == "" || parseErr != nil {
		return fmt.Errorf("%w: event %s", ErrEventParse, ev.ID)
	}

	if _, err := w.posts.GetByID(ctx, postID); err != nil {
		return fmt.Errorf("%w: post %s: %v", ErrSourceLookup, postID, err)
	}
	followers, err := w.follows.ListFollowerIDs(ctx, authorID)
	if err != nil {
		return fmt.Errorf("%w: followers of %s: %v", ErrSourceLookup, authorID, err)
	}

	// 作者自己的信息流也包含本帖
	targets := make([]string, 0, len(followers)+1)
	targets = append(targets, authorID)
	targets = append(targets, followers...)
	for _, uid := range targets {
		key := cache.FeedKey(uid)
		if err := w.feeds.Upsert(ctx, key, postID, score); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrCacheWrite, key, err)
		}
		if err := w.feeds.Expire(ctx, key, w.ttl); err != nil {
			return fmt.Errorf("%w: expire %s: %v", ErrCacheWrite, key, err)
		}
	}
	return nil
}
