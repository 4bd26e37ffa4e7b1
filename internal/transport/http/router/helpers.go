package router

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"registry-console/internal/domain"
	httpez "registry-console/internal/transport/http/ez"
	mdw "registry-console/internal/transport/http/middleware"
)

// currentUser 按令牌里的 uid 回表取用户。令牌无状态，账户被停用或删除后
// 旧令牌仍在有效期内，所以每次都要校验 is_active。
func currentUser(c *gin.Context, users domain.UserRepository) (*domain.User, error) {
	uid := c.GetUint(mdw.CtxUID)
	if uid == 0 {
		return nil, httpez.Unauthorized("unauthorized")
	}
	u, err := users.FindByID(uid)
	if err != nil {
		return nil, httpez.Internal("load user failed", err)
	}
	if u == nil || !u.IsActive {
		return nil, httpez.Unauthorized("user disabled or removed")
	}
	return u, nil
}

func idParam(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		return 0, httpez.BadRequest("invalid id")
	}
	return uint(id), nil
}

// isDupKey 优先认 gorm 的翻译错误（TranslateError 已开），文本匹配兜底
func isDupKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "unique violation") ||
		strings.Contains(msg, "duplicate key")
}
