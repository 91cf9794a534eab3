package service

import (
	"context"

	"github.com/d60-Lab/newsfeed/internal/repository"
)

// LikeService 点赞服务
type LikeService struct {
	likes repository.LikeRepository
	posts repository.PostRepository
}

func NewLikeService(likes repository.LikeRepository, posts repository.PostRepository) *LikeService {
	return &LikeService{likes: likes, posts: posts}
}

func (s *LikeService) Like(ctx context.Context, postID, userID string) error {
	if _, err := s.posts.GetByID(ctx, postID); err != nil {
		return err
	}
	return s.likes.Create(ctx, postID, userID)
}

func (s *LikeService) Unlike(ctx context.Context, postID, userID string) error {
	return s.likes.Delete(ctx, postID, userID)
}

func (s *LikeService) Count(ctx context.Context, postID string) (int64, error) {
	return s.likes.CountByPostID(ctx, postID)
}
