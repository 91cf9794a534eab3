package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/d60-Lab/newsfeed/internal/cache"
	"github.com/d60-Lab/newsfeed/internal/model"
	"github.com/d60-Lab/newsfeed/internal/repository"
	"github.com/d60-Lab/newsfeed/pkg/logger"
)

// AuthorDTO 信息流条目里的作者摘要
type AuthorDTO struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// FeedItemDTO 信息流条目
type FeedItemDTO struct {
	ID        string    `json:"id"`
	Caption   string    `json:"caption"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Author    AuthorDTO `json:"author"`
}

// FeedPage 分页结果
type FeedPage struct {
	Items    []FeedItemDTO `json:"items"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
	Total    int64         `json:"total"`
}

// NewsFeedService 信息流读路径：缓存命中直接出，检测到过期则从库重建
type NewsFeedService struct {
	feeds           cache.FeedStore
	posts           repository.PostRepository
	follows         repository.FollowRepository
	users           repository.UserRepository
	ttl             time.Duration
	defaultPageSize int
	requestTimeout  time.Duration
}

func NewNewsFeedService(feeds cache.FeedStore, posts repository.PostRepository, follows repository.FollowRepository, users repository.UserRepository, ttl time.Duration, defaultPageSize int, requestTimeout time.Duration) *NewsFeedService {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	if defaultPageSize <= 0 {
		defaultPageSize = 10
	}
	if requestTimeout <= 0 {
		requestTimeout = 3 * time.Second
	}
	return &NewsFeedService{feeds: feeds, posts: posts, follows: follows, users: users, ttl: ttl, defaultPageSize: defaultPageSize, requestTimeout: requestTimeout}
}

// GetNewsFeed 返回 userID 的信息流分页。page 从 0 开始。
// 缓存过期或读不到时走全量重建，调用方拿到的要么是正确的一页，
// 要么是可重试的错误，不会拿到悄悄过期的数据。
func (s *NewsFeedService) GetNewsFeed(ctx context.Context, userID string, page, pageSize int) (*FeedPage, error) {
	if page < 0 {
		page = 0
	}
	if pageSize <= 0 {
		pageSize = s.defaultPageSize
	}
	ctx, cancel := context.WithTimeout(ctx, s.requestTimeout)
	defer cancel()

	key := cache.FeedKey(userID)
	offset := int64(page) * int64(pageSize)
	cached, err := s.feeds.RangeDescByRank(ctx, key, offset, offset+int64(pageSize)-1)
	if err != nil {
		// 读缓存失败按过期处理，走重建
		logger.Warn("feed cache read failed", zap.String("key", key), zap.Error(err))
		cached = nil
	}

	if s.isStale(ctx, userID, key, cached) {
		logger.Info("feed cache stale, rebuilding from store", zap.String("user_id", userID))
		return s.rebuild(ctx, userID, page, pageSize)
	}

	posts, err := s.posts.GetByIDs(ctx, cached)
	if err != nil {
		return nil, fmt.Errorf("hydrate cached feed: %w", err)
	}
	total, err := s.feeds.Cardinality(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("feed cardinality: %w", err)
	}
	items, err := s.toItems(ctx, posts)
	if err != nil {
		return nil, err
	}
	return &FeedPage{Items: items, Page: page, PageSize: pageSize, Total: total}, nil
}

// isStale 判断缓存是否需要重建：
//   - 请求页为空 ⇒ 过期
//   - 关注集（含自己）没有任何帖子 ⇒ 不过期
//   - 库里最新一条帖子与缓存头部（score 最高）不一致 ⇒ 过期
//   - 探测过程任何错误 ⇒ 按过期处理（宁可重建也不出错页）
func (s *NewsFeedService) isStale(ctx context.Context, userID, key string, cachedPage []string) bool {
	if len(cachedPage) == 0 {
		return true
	}

	followingIDs, err := s.follows.ListFollowingIDs(ctx, userID)
	if err != nil {
		logger.Warn("staleness probe: list following failed", zap.String("user_id", userID), zap.Error(err))
		return true
	}
	authorIDs := append(followingIDs, userID)

	latest, err := s.posts.LatestByAuthors(ctx, authorIDs)
	if err != nil {
		logger.Warn("staleness probe: latest post lookup failed", zap.String("user_id", userID), zap.Error(err))
		return true
	}
	if latest == nil {
		// 库里压根没有可见帖子，缓存不可能缺新内容
		return false
	}

	head, err := s.feeds.RangeDescByRank(ctx, key, 0, 0)
	if err != nil || len(head) == 0 {
		return true
	}
	return head[0] != latest.ID
}

// rebuild 全量重建：整键删除后从库重灌请求页（只灌这一页），
// 总数取库里关注集查询的总数而不是刚灌的部分缓存。
func (s *NewsFeedService) rebuild(ctx context.Context, userID string, page, pageSize int) (*FeedPage, error) {
	key := cache.FeedKey(userID)
	if err := s.feeds.Delete(ctx, key); err != nil {
		return nil, fmt.Errorf("%w: delete %s: %v", ErrRebuildFailed, key, err)
	}

	followingIDs, err := s.follows.ListFollowingIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: list following: %v", ErrRebuildFailed, err)
	}
	authorIDs := append(followingIDs, userID)

	posts, total, err := s.posts.ListByAuthorsByRecency(ctx, authorIDs, page*pageSize, pageSize)
	if err != nil {
		return nil, fmt.Errorf("%w: query posts: %v", ErrRebuildFailed, err)
	}

	for _, p := range posts {
		if err := s.feeds.Upsert(ctx, key, p.ID, rebuildScore(p)); err != nil {
			// 不留下半灌的键
			_ = s.feeds.Delete(ctx, key)
			return nil, fmt.Errorf("%w: repopulate %s: %v", ErrRebuildFailed, key, err)
		}
	}
	if len(posts) > 0 {
		if err := s.feeds.Expire(ctx, key, s.ttl); err != nil {
			logger.Warn("rebuild: expire failed", zap.String("key", key), zap.Error(err))
		}
	}

	items, err := s.toItems(ctx, posts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRebuildFailed, err)
	}
	return &FeedPage{Items: items, Page: page, PageSize: pageSize, Total: total}, nil
}

// rebuildScore 重建时的排序时间戳：更新时间优先，其次创建时间
func rebuildScore(p *model.Post) float64 {
	if !p.UpdatedAt.IsZero() {
		return float64(p.UpdatedAt.Unix())
	}
	return float64(p.CreatedAt.Unix())
}

// RemovePost 从所有缓存的信息流里移除指定帖子（帖子删除时调用）。
// 按键前缀全量扫描，删除频率远低于读写，可接受。
func (s *NewsFeedService) RemovePost(ctx context.Context, postID string) error {
	keys, err := s.feeds.KeysMatchingPrefix(ctx, cache.KeyPrefix)
	if err != nil {
		return fmt.Errorf("scan feed keys: %w", err)
	}
	for _, key := range keys {
		if err := s.feeds.Remove(ctx, key, postID); err != nil {
			return fmt.Errorf("remove post %s from %s: %w", postID, key, err)
		}
	}
	logger.Info("post removed from cached feeds",
		zap.String("post_id", postID), zap.Int("feeds", len(keys)))
	return nil
}

func (s *NewsFeedService) toItems(ctx context.Context, posts []*model.Post) ([]FeedItemDTO, error) {
	items := make([]FeedItemDTO, 0, len(posts))
	if len(posts) == 0 {
		return items, nil
	}

	authorIDs := make([]string, 0, len(posts))
	seen := make(map[string]struct{}, len(posts))
	for _, p := range posts {
		if _, ok := seen[p.AuthorID]; !ok {
			seen[p.AuthorID] = struct{}{}
			authorIDs = append(authorIDs, p.AuthorID)
		}
	}
	authors, err := s.users.GetByIDs(ctx, authorIDs)
	if err != nil {
		return nil, fmt.Errorf("hydrate authors: %w", err)
	}
	byID := make(map[string]*model.User, len(authors))
	for _, u := range authors {
		byID[u.ID] = u
	}

	for _, p := range posts {
		item := FeedItemDTO{ID: p.ID, Caption: p.Caption, CreatedAt: p.CreatedAt, UpdatedAt: p.UpdatedAt}
		if u, ok := byID[p.AuthorID]; ok {
			item.Author = AuthorDTO{ID: u.ID, Username: u.Username, Email: u.Email}
		}
		items = append(items, item)
	}
	return items, nil
}
