package handler

import (
	"github.com/d60-Lab/newsfeed/internal/service"
)

// Handler 聚合各领域服务，供路由注册
type Handler struct {
	newsfeedService *service.NewsFeedService
	postService     *service.PostService
	relService      service.RelationshipService
	likeService     *service.LikeService
	userService     *service.UserService
}

func New(newsfeed *service.NewsFeedService, posts *service.PostService, rel service.RelationshipService, likes *service.LikeService, users *service.UserService) *Handler {
	return &Handler{
		newsfeedService: newsfeed,
		postService:     posts,
		relService:      rel,
		likeService:     likes,
		userService:     users,
	}
}
