package api

import (
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/time/rate"

	"github.com/d60-Lab/newsfeed/config"
	_ "github.com/d60-Lab/newsfeed/docs"
	"github.com/d60-Lab/newsfeed/internal/api/handler"
	"github.com/d60-Lab/newsfeed/internal/api/middleware"
)

// NewRouter 组装路由与中间件
func NewRouter(cfg *config.Config, h *handler.Handler) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())
	r.Use(otelgin.Middleware("newsfeed"))
	r.Use(gzip.Gzip(gzip.DefaultCompression))
	r.Use(middleware.RateLimit(rate.Limit(100), 200))

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	r.GET("/healthz", func(c *gin.Context) { c.JSON(200, gin.H{"status": "ok"}) })

	v1 := r.Group("/api/v1")
	{
		v1.POST("/users/register", h.Register)
		v1.POST("/users/login", h.Login)
		v1.GET("/users/:id", h.GetUser)

		auth := v1.Group("", middleware.Auth(cfg.JWT.Secret))
		{
			auth.DELETE("/users/:id", h.DeleteUser)

			auth.POST("/posts", h.CreatePost)
			auth.GET("/posts/:id", h.GetPost)
			auth.PUT("/posts/:id", h.UpdatePost)
			auth.DELETE("/posts/:id", h.DeletePost)

			auth.POST("/posts/:id/like", h.LikePost)
			auth.DELETE("/posts/:id/like", h.UnlikePost)
			auth.GET("/posts/:id/likes", h.CountLikes)

			auth.POST("/relations/follow", h.Follow)
			auth.POST("/relations/unfollow", h.Unfollow)
			auth.GET("/relations/:user_id/following", h.ListFollowing)
			auth.GET("/relations/:user_id/followers", h.ListFollowers)

			auth.GET("/newsfeed/:user_id", h.GetNewsFeed)
		}
	}
	return r
}
