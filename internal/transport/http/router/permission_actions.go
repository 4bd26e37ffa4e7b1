package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"registry-console/internal/domain"
	httpez "registry-console/internal/transport/http/ez"
)

// ---------- 权限管理，全部仅管理员 ----------

func mountPermissionActions(g *gin.RouterGroup, o Options) {
	ezg := httpez.New(g, o.Log)

	httpez.RegisterAction[struct{}, []domain.Permission](ezg, httpez.Action[struct{}, []domain.Permission]{
		Method:    http.MethodGet,
		Path:      "/permissions",
		Binder:    httpez.BindNone,
		AdminOnly: true,
		Handler: func(c *gin.Context, _ *struct{}) ([]domain.Permission, error) {
			ps, err := o.Perms.List()
			if err != nil {
				return nil, httpez.Internal("list permissions failed", err)
			}
			return ps, nil
		},
	})

	httpez.RegisterAction[struct{}, []domain.Permission](ezg, httpez.Action[struct{}, []domain.Permission]{
		Method:    http.MethodGet,
		Path:      "/permissions/repository/:id",
		Binder:    httpez.BindNone,
		AdminOnly: true,
		Handler: func(c *gin.Context, _ *struct{}) ([]domain.Permission, error) {
			id, err := idParam(c)
			if err != nil {
				return nil, err
			}
			rep, err := o.Repos.FindByID(id)
			if err != nil {
				return nil, httpez.Internal("load repository failed", err)
			}
			if rep == nil {
				return nil, httpez.NotFound("repository not found")
			}
			ps, err := o.Perms.ListByRepository(rep.ID)
			if err != nil {
				return nil, httpez.Internal("list permissions failed", err)
			}
			return ps, nil
		},
	})

	// 授权是 upsert：同一 (user, repository) 只会有一行，重复授予就地更新
	type grantIn struct {
		UserID       uint  `json:"user_id" binding:"required"`
		RepositoryID uint  `json:"repository_id" binding:"required"`
		CanPull      *bool `json:"can_pull"` // 缺省 true，对齐授权即至少可拉取的习惯
		CanPush      bool  `json:"can_push"`
		CanDelete    bool  `json:"can_delete"`
	}
	httpez.RegisterAction[grantIn, *domain.Permission](ezg, httpez.Action[grantIn, *domain.Permission]{
		Method:    http.MethodPost,
		Path:      "/permissions",
		Binder:    httpez.BindJSON,
		AdminOnly: true,
		Status:    http.StatusCreated,
		Handler: func(c *gin.Context, in *grantIn) (*domain.Permission, error) {
			u, err := o.Users.FindByID(in.UserID)
			if err != nil {
				return nil, httpez.Internal("load user failed", err)
			}
			if u == nil {
				return nil, httpez.NotFound("user not found")
			}
			rep, err := o.Repos.FindByID(in.RepositoryID)
			if err != nil {
				return nil, httpez.Internal("load repository failed", err)
			}
			if rep == nil {
				return nil, httpez.NotFound("repository not found")
			}

			canPull := true
			if in.CanPull != nil {
				canPull = *in.CanPull
			}

			existing, err := o.Perms.FindByUserAndRepo(u.ID, rep.ID)
			if err != nil {
				return nil, httpez.Internal("lookup permission failed", err)
			}
			if existing != nil {
				existing.CanPull = canPull
				existing.CanPush = in.CanPush
				existing.CanDelete = in.CanDelete
				if err := o.Perms.Update(existing); err != nil {
					return nil, httpez.Internal("update permission failed", err)
				}
				return existing, nil
			}

			p := &domain.Permission{
				UserID:       u.ID,
				RepositoryID: rep.ID,
				CanPull:      canPull,
				CanPush:      in.CanPush,
				CanDelete:    in.CanDelete,
			}
			if err := o.Perms.Create(p); err != nil {
				return nil, httpez.Internal("create permission failed", err)
			}
			return p, nil
		},
	})

	type updateIn struct {
		CanPull   *bool `json:"can_pull" binding:"required"`
		CanPush   *bool `json:"can_push" binding:"required"`
		CanDelete *bool `json:"can_delete" binding:"required"`
	}
	httpez.RegisterAction[updateIn, *domain.Permission](ezg, httpez.Action[updateIn, *domain.Permission]{
		Method:    http.MethodPut,
		Path:      "/permissions/:id",
		Binder:    httpez.BindJSON,
		AdminOnly: true,
		Handler: func(c *gin.Context, in *updateIn) (*domain.Permission, error) {
			id, err := idParam(c)
			if err != nil {
				return nil, err
			}
			p, err := o.Perms.FindByID(id)
			if err != nil {
				return nil, httpez.Internal("load permission failed", err)
			}
			if p == nil {
				return nil, httpez.NotFound("permission not found")
			}
			p.CanPull = *in.CanPull
			p.CanPush = *in.CanPush
			p.CanDelete = *in.CanDelete
			if err := o.Perms.Update(p); err != nil {
				return nil, httpez.Internal("update permission failed", err)
			}
			return p, nil
		},
	})

	httpez.RegisterAction[struct{}, struct{}](ezg, httpez.Action[struct{}, struct{}]{
		Method:    http.MethodDelete,
		Path:      "/permissions/:id",
		Binder:    httpez.BindNone,
		AdminOnly: true,
		Status:    http.StatusNoContent,
		Handler: func(c *gin.Context, _ *struct{}) (struct{}, error) {
			id, err := idParam(c)
			if err != nil {
				return struct{}{}, err
			}
			p, err := o.Perms.FindByID(id)
			if err != nil {
				return struct{}{}, httpez.Internal("load permission failed", err)
			}
			if p == nil {
				return struct{}{}, httpez.NotFound("permission not found")
			}
			if err := o.Perms.Delete(p.ID); err != nil {
				return struct{}{}, httpez.Internal("delete permission failed", err)
			}
			return struct{}{}, nil
		},
	})
}
