package middleware

import (
	"context"
	"errors"
	"step_tracker_backend/internal/model"
	"step_tracker_backend/internal/util"
	"step_tracker_backend/pkg/logger"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AuthMiddleware 校验 Bearer 令牌并构造请求会话
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))

		if tokenString == "" || tokenString == authHeader {
			util.Unauthorized(c)
			c.Abort()
			return
		}

		claims, err := util.ParseJWT(tokenString, secret)
		if err != nil {
			logger.Log.Debug("JWT rejected", zap.Error(err))
			util.Unauthorized(c)
			c.Abort()
			return
		}

		c.Set(util.ContextSessionKey, util.NewSession(claims))
		c.Next()
	}
}

// AdminLookup 管理员标志的来源
type AdminLookup interface {
	FindByID(ctx context.Context, id uint) (*model.User, error)
}

// AdminMiddleware 每个请求都从库中重新读取管理员标志，令牌里的副本不作数
func AdminMiddleware(users AdminLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := util.GetSessionFromContext(c)
		if session == nil {
			util.Unauthorized(c)
			c.Abort()
			return
		}

		user, err := users.FindByID(c.Request.Context(), session.UserID)
		if err != nil && !errors.Is(err, util.ErrNotFound) {
			util.LogInternalError(c, err)
			c.Abort()
			return
		}
		if user == nil || !user.IsAdmin {
			util.Forbidden(c)
			c.Abort()
			return
		}

		session.IsAdmin = true
		c.Next()
	}
}
