// Package user 用户侧的领域逻辑（种子账户等）
package user

import (
	"go.uber.org/zap"

	"registry-console/internal/domain"
	"registry-console/pkg/utils"
)

// EnsureDefaultAdmin 首次启动时播种引导管理员，已存在则不动。
// 这个账户随后不可删除（见 router 的 users 模块）。
func EnsureDefaultAdmin(users domain.UserRepository, username, password string, l *zap.Logger) error {
	existing, err := users.FindByUsername(username)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	hash, err := utils.HashPassword(password)
	if err != nil {
		return err
	}
	admin := &domain.User{
		Username:     username,
		PasswordHash: hash,
		IsActive:     true,
		IsAdmin:      true,
	}
	if err := users.Create(admin); err != nil {
		return err
	}
	l.Info("bootstrap admin created", zap.String("username", username))
	return nil
}
