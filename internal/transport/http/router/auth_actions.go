package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"registry-console/internal/domain"
	httpez "registry-console/internal/transport/http/ez"
	"registry-console/pkg/utils"
)

// ---------- 动作注册：/auth/login + /users/me ----------

func mountAuthActions(public, authed *gin.RouterGroup, o Options) {
	ezPublic := httpez.New(public, o.Log)

	type loginIn struct {
		Username string `json:"username" binding:"required,max=50"`
		Password string `json:"password" binding:"required"`
	}
	type loginOut struct {
		Token string       `json:"token"`
		User  *domain.User `json:"user"`
	}
	httpez.RegisterAction[loginIn, loginOut](ezPublic, httpez.Action[loginIn, loginOut]{
		Method: http.MethodPost,
		Path:   "/auth/login",
		Binder: httpez.BindJSON,
		Handler: func(c *gin.Context, in *loginIn) (loginOut, error) {
			ctx := c.Request.Context()
			ip := c.ClientIP()

			if !o.Guard.Allow(ctx, in.Username, ip) {
				return loginOut{}, httpez.TooManyRequests("too many failed logins, try again later")
			}

			u, err := o.Users.FindByUsername(in.Username)
			if err != nil {
				return loginOut{}, httpez.Internal("login failed", err)
			}
			// 不存在、停用、密码不对走同一个 401，避免枚举用户名
			if u == nil || !u.IsActive || !utils.CheckPassword(in.Password, u.PasswordHash) {
				o.Guard.Fail(ctx, in.Username, ip)
				return loginOut{}, httpez.Unauthorized("incorrect username or password")
			}
			o.Guard.Reset(ctx, in.Username, ip)

			tok, err := o.JWTer.Issue(u.ID, u.Username, u.IsAdmin)
			if err != nil || tok == "" {
				return loginOut{}, httpez.Internal("issue token failed", err)
			}
			return loginOut{Token: tok, User: u}, nil
		},
	})

	ezAuth := httpez.New(authed, o.Log)

	httpez.RegisterAction[struct{}, *domain.User](ezAuth, httpez.Action[struct{}, *domain.User]{
		Method: http.MethodGet,
		Path:   "/users/me",
		Binder: httpez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) (*domain.User, error) {
			return currentUser(c, o.Users)
		},
	})

	// 自助改密：旧密码必须能校验过
	type passwordIn struct {
		OldPassword string `json:"old_password" binding:"required"`
		NewPassword string `json:"new_password" binding:"required,min=6,max=72"`
	}
	httpez.RegisterAction[passwordIn, gin.H](ezAuth, httpez.Action[passwordIn, gin.H]{
		Method: http.MethodPut,
		Path:   "/users/me/password",
		Binder: httpez.BindJSON,
		Handler: func(c *gin.Context, in *passwordIn) (gin.H, error) {
			u, err := currentUser(c, o.Users)
			if err != nil {
				return nil, err
			}
			if !utils.CheckPassword(in.OldPassword, u.PasswordHash) {
				return nil, httpez.Unauthorized("old password does not match")
			}
			hash, err := utils.HashPassword(in.NewPassword)
			if err != nil {
				return nil, httpez.Internal("hash password failed", err)
			}
			u.PasswordHash = hash
			if err := o.Users.Update(u); err != nil {
				return nil, httpez.Internal("update password failed", err)
			}
			return gin.H{"id": u.ID}, nil
		},
	})
}
