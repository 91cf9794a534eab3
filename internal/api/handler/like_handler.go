package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/newsfeed/internal/api/middleware"
	"github.com/d60-Lab/newsfeed/internal/repository"
	"github.com/d60-Lab/newsfeed/pkg/response"
)

// LikePost 点赞
// @Summary 点赞帖子
// @Tags 点赞
// @Param id path string true "帖子ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/posts/{id}/like [post]
func (h *Handler) LikePost(c *gin.Context) {
	err := h.likeService.Like(c.Request.Context(), c.Param("id"), middleware.CurrentUserID(c))
	if err != nil {
		if errors.Is(err, repository.ErrPostNotFound) {
			response.NotFound(c, err.Error())
			return
		}
		response.InternalError(c, err)
		return
	}
	response.Success(c, nil)
}

// UnlikePost 取消点赞
// @Summary 取消点赞
// @Tags 点赞
// @Param id path string true "帖子ID"
// @Success 200 {object} response.Response
// @Router /api/v1/posts/{id}/like [delete]
func (h *Handler) UnlikePost(c *gin.Context) {
	if err := h.likeService.Unlike(c.Request.Context(), c.Param("id"), middleware.CurrentUserID(c)); err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, nil)
}

// CountLikes 点赞数
// @Summary 查询帖子点赞数
// @Tags 点赞
// @Param id path string true "帖子ID"
// @Success 200 {object} response.Response
// @Router /api/v1/posts/{id}/likes [get]
func (h *Handler) CountLikes(c *gin.Context) {
	cnt, err := h.likeService.Count(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, gin.H{"count": cnt})
}
