package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"registry-console/internal/domain"
	httpez "registry-console/internal/transport/http/ez"
	"registry-console/pkg/utils"
)

// ---------- 用户管理，全部仅管理员 ----------

func mountUserActions(g *gin.RouterGroup, o Options) {
	ezg := httpez.New(g, o.Log)

	httpez.RegisterAction[struct{}, []domain.User](ezg, httpez.Action[struct{}, []domain.User]{
		Method:    http.MethodGet,
		Path:      "/users",
		Binder:    httpez.BindNone,
		AdminOnly: true,
		Handler: func(c *gin.Context, _ *struct{}) ([]domain.User, error) {
			users, err := o.Users.List()
			if err != nil {
				return nil, httpez.Internal("list users failed", err)
			}
			return users, nil
		},
	})

	type createIn struct {
		Username string `json:"username" binding:"required,min=3,max=50"`
		Password string `json:"password" binding:"required,min=6,max=72"`
		Email    string `json:"email" binding:"omitempty,email"`
		IsAdmin  bool   `json:"is_admin"`
	}
	httpez.RegisterAction[createIn, *domain.User](ezg, httpez.Action[createIn, *domain.User]{
		Method:    http.MethodPost,
		Path:      "/users",
		Binder:    httpez.BindJSON,
		AdminOnly: true,
		Status:    http.StatusCreated,
		Handler: func(c *gin.Context, in *createIn) (*domain.User, error) {
			existing, err := o.Users.FindByUsername(in.Username)
			if err != nil {
				return nil, httpez.Internal("lookup username failed", err)
			}
			if existing != nil {
				return nil, httpez.Conflict("username already exists")
			}
			hash, err := utils.HashPassword(in.Password)
			if err != nil {
				return nil, httpez.Internal("hash password failed", err)
			}
			u := &domain.User{
				Username:     in.Username,
				PasswordHash: hash,
				Email:        in.Email,
				IsActive:     true,
				IsAdmin:      in.IsAdmin,
			}
			if err := o.Users.Create(u); err != nil {
				if isDupKey(err) {
					// 并发兜底：唯一索引挡下的重复
					return nil, httpez.Conflict("username already exists")
				}
				return nil, httpez.Internal("create user failed", err)
			}
			return u, nil
		},
	})

	httpez.RegisterAction[struct{}, *domain.User](ezg, httpez.Action[struct{}, *domain.User]{
		Method:    http.MethodGet,
		Path:      "/users/:id",
		Binder:    httpez.BindNone,
		AdminOnly: true,
		Handler: func(c *gin.Context, _ *struct{}) (*domain.User, error) {
			id, err := idParam(c)
			if err != nil {
				return nil, err
			}
			u, err := o.Users.FindByID(id)
			if err != nil {
				return nil, httpez.Internal("load user failed", err)
			}
			if u == nil {
				return nil, httpez.NotFound("user not found")
			}
			return u, nil
		},
	})

	type updateIn struct {
		Email    *string `json:"email" binding:"omitempty,email"`
		Password *string `json:"password" binding:"omitempty,min=6,max=72"`
		IsActive *bool   `json:"is_active"`
		IsAdmin  *bool   `json:"is_admin"`
	}
	httpez.RegisterAction[updateIn, *domain.User](ezg, httpez.Action[updateIn, *domain.User]{
		Method:    http.MethodPut,
		Path:      "/users/:id",
		Binder:    httpez.BindJSON,
		AdminOnly: true,
		Handler: func(c *gin.Context, in *updateIn) (*domain.User, error) {
			id, err := idParam(c)
			if err != nil {
				return nil, err
			}
			u, err := o.Users.FindByID(id)
			if err != nil {
				return nil, httpez.Internal("load user failed", err)
			}
			if u == nil {
				return nil, httpez.NotFound("user not found")
			}

			// 不变量：至少保留一名启用的管理员
			losesAdmin := u.IsAdmin && u.IsActive &&
				((in.IsAdmin != nil && !*in.IsAdmin) || (in.IsActive != nil && !*in.IsActive))
			if losesAdmin {
				n, err := o.Users.CountActiveAdmins(u.ID)
				if err != nil {
					return nil, httpez.Internal("count admins failed", err)
				}
				if n == 0 {
					return nil, httpez.Conflict("at least one active admin is required")
				}
			}

			if in.Email != nil {
				u.Email = *in.Email
			}
			if in.Password != nil {
				hash, err := utils.HashPassword(*in.Password)
				if err != nil {
					return nil, httpez.Internal("hash password failed", err)
				}
				u.PasswordHash = hash
			}
			if in.IsActive != nil {
				u.IsActive = *in.IsActive
			}
			if in.IsAdmin != nil {
				u.IsAdmin = *in.IsAdmin
			}
			if err := o.Users.Update(u); err != nil {
				return nil, httpez.Internal("update user failed", err)
			}
			return u, nil
		},
	})

	httpez.RegisterAction[struct{}, struct{}](ezg, httpez.Action[struct{}, struct{}]{
		Method:    http.MethodDelete,
		Path:      "/users/:id",
		Binder:    httpez.BindNone,
		AdminOnly: true,
		Status:    http.StatusNoContent,
		Handler: func(c *gin.Context, _ *struct{}) (struct{}, error) {
			id, err := idParam(c)
			if err != nil {
				return struct{}{}, err
			}
			u, err := o.Users.FindByID(id)
			if err != nil {
				return struct{}{}, httpez.Internal("load user failed", err)
			}
			if u == nil {
				return struct{}{}, httpez.NotFound("user not found")
			}
			if u.Username == o.BootstrapAdmin {
				return struct{}{}, httpez.Forbidden("bootstrap admin cannot be deleted")
			}
			if u.IsAdmin && u.IsActive {
				n, err := o.Users.CountActiveAdmins(u.ID)
				if err != nil {
					return struct{}{}, httpez.Internal("count admins failed", err)
				}
				if n == 0 {
					return struct{}{}, httpez.Conflict("at least one active admin is required")
				}
			}
			if err := o.Users.DeleteCascade(u.ID); err != nil {
				return struct{}{}, httpez.Internal("delete user failed", err)
			}
			return struct{}{}, nil
		},
	})
}
