package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/d60-Lab/newsfeed/internal/model"
	"github.com/d60-Lab/newsfeed/internal/repository"
)

// PostService 帖子服务：发帖落库后把扇出任务写入事件日志
type PostService struct {
	posts    repository.PostRepository
	likes    repository.LikeRepository
	producer *FanoutProducer
	newsfeed *NewsFeedService
}

func NewPostService(posts repository.PostRepository, likes repository.LikeRepository, producer *FanoutProducer, newsfeed *NewsFeedService) *PostService {
	return &PostService{posts: posts, likes: likes, producer: producer, newsfeed: newsfeed}
}

// Create 发帖。扇出事件入队失败视为发帖失败——没有事件的帖子
// 除了作者自己按需重建外永远进不了任何人的信息流。
func (s *PostService) Create(ctx context.Context, authorID, caption string) (*model.Post, error) {
	post := &model.Post{ID: uuid.New().String(), AuthorID: authorID, Caption: caption}
	if err := s.posts.Create(ctx, post); err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}
	if _, err := s.producer.Enqueue(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

// Update 修改帖子并重新入队扇出（同一 postId 的 upsert 幂等）
func (s *PostService) Update(ctx context.Context, id, caption string) (*model.Post, error) {
	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	post.Caption = caption
	if err := s.posts.Update(ctx, post); err != nil {
		return nil, fmt.Errorf("update post: %w", err)
	}
	if _, err := s.producer.Enqueue(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

func (s *PostService) GetByID(ctx context.Context, id string) (*model.Post, error) {
	return s.posts.GetByID(ctx, id)
}

func (s *PostService) ListByAuthor(ctx context.Context, authorID string) ([]*model.Post, error) {
	return s.posts.ListByAuthor(ctx, authorID)
}

// Delete 删帖：先把帖子从所有缓存信息流里清掉，再清点赞，最后删行
func (s *PostService) Delete(ctx context.Context, id string) error {
	if err := s.newsfeed.RemovePost(ctx, id); err != nil {
		return err
	}
	if err := s.likes.DeleteByPostID(ctx, id); err != nil {
		return fmt.Errorf("delete likes: %w", err)
	}
	return s.posts.Delete(ctx, id)
}

// DeleteByAuthor 删除某作者全部帖子（删号用）
func (s *PostService) DeleteByAuthor(ctx context.Context, authorID string) error {
	posts, err := s.posts.ListByAuthor(ctx, authorID)
	if err != nil {
		return err
	}
	for _, p := range posts {
		if err := s.Delete(ctx, p.ID); err != nil {
			return err
		}
	}
	return nil
}
