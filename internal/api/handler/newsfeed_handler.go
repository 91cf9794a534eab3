package handler

import (
	"context"
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/newsfeed/internal/service"
	"github.com/d60-Lab/newsfeed/pkg/response"
)

// GetNewsFeed 查询用户信息流
// @Summary 信息流分页查询
// @Tags 信息流
// @Param user_id path string true "用户ID"
// @Param page query int false "页码（从 0 开始）" default(0)
// @Param page_size query int false "每页数量" default(10)
// @Success 200 {object} response.Response{data=service.FeedPage}
// @Failure 503 {object} response.Response
// @Router /api/v1/newsfeed/{user_id} [get]
func (h *Handler) GetNewsFeed(c *gin.Context) {
	userID := c.Param("user_id")
	page, _ := strconv.Atoi(c.DefaultQuery("page", "0"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "0"))

	feed, err := h.newsfeedService.GetNewsFeed(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		// 重建失败/超时对客户端是可重试错误
		if errors.Is(err, service.ErrRebuildFailed) || errors.Is(err, context.DeadlineExceeded) {
			response.Retryable(c, err)
			return
		}
		response.InternalError(c, err)
		return
	}
	response.Success(c, feed)
}
