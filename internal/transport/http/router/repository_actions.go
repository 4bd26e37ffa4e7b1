package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"registry-console/internal/domain"
	"registry-console/internal/feature/permission"
	httpez "registry-console/internal/transport/http/ez"
)

// ---------- 仓库元数据管理，写操作仅管理员 ----------

func mountRepositoryActions(g *gin.RouterGroup, o Options, checker *permission.Checker) {
	ezg := httpez.New(g, o.Log)

	// 列表按调用者可见范围过滤：管理员全量，其余公开 + 显式授权
	httpez.RegisterAction[struct{}, []domain.Repository](ezg, httpez.Action[struct{}, []domain.Repository]{
		Method: http.MethodGet,
		Path:   "/repositories",
		Binder: httpez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) ([]domain.Repository, error) {
			cu, err := currentUser(c, o.Users)
			if err != nil {
				return nil, err
			}
			reps, err := checker.AccessibleRepositories(cu)
			if err != nil {
				return nil, httpez.Internal("list repositories failed", err)
			}
			return reps, nil
		},
	})

	type createIn struct {
		Name        string `json:"name" binding:"required,max=255"`
		Description string `json:"description"`
		IsPublic    bool   `json:"is_public"`
	}
	httpez.RegisterAction[createIn, *domain.Repository](ezg, httpez.Action[createIn, *domain.Repository]{
		Method:    http.MethodPost,
		Path:      "/repositories",
		Binder:    httpez.BindJSON,
		AdminOnly: true,
		Status:    http.StatusCreated,
		Handler: func(c *gin.Context, in *createIn) (*domain.Repository, error) {
			if !domain.ValidRepositoryName(in.Name) {
				return nil, httpez.BadRequest("invalid repository name")
			}
			existing, err := o.Repos.FindByName(in.Name)
			if err != nil {
				return nil, httpez.Internal("lookup repository failed", err)
			}
			if existing != nil {
				return nil, httpez.Conflict("repository already exists")
			}
			rep := &domain.Repository{
				Name:        in.Name,
				Description: in.Description,
				IsPublic:    in.IsPublic,
			}
			if err := o.Repos.Create(rep); err != nil {
				if isDupKey(err) {
					return nil, httpez.Conflict("repository already exists")
				}
				return nil, httpez.Internal("create repository failed", err)
			}
			return rep, nil
		},
	})

	httpez.RegisterAction[struct{}, *domain.Repository](ezg, httpez.Action[struct{}, *domain.Repository]{
		Method: http.MethodGet,
		Path:   "/repositories/:id",
		Binder: httpez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) (*domain.Repository, error) {
			id, err := idParam(c)
			if err != nil {
				return nil, err
			}
			cu, err := currentUser(c, o.Users)
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
			ok, err := checker.Can(cu, rep, permission.OpPull)
			if err != nil {
				return nil, httpez.Internal("permission check failed", err)
			}
			if !ok {
				return nil, httpez.Forbidden("no access to this repository")
			}
			return rep, nil
		},
	})

	type updateIn struct {
		Description *string `json:"description"`
		IsPublic    *bool   `json:"is_public"`
	}
	httpez.RegisterAction[updateIn, *domain.Repository](ezg, httpez.Action[updateIn, *domain.Repository]{
		Method:    http.MethodPut,
		Path:      "/repositories/:id",
		Binder:    httpez.BindJSON,
		AdminOnly: true,
		Handler: func(c *gin.Context, in *updateIn) (*domain.Repository, error) {
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
			if in.Description != nil {
				rep.Description = *in.Description
			}
			if in.IsPublic != nil {
				rep.IsPublic = *in.IsPublic
			}
			if err := o.Repos.Update(rep); err != nil {
				return nil, httpez.Internal("update repository failed", err)
			}
			return rep, nil
		},
	})

	httpez.RegisterAction[struct{}, struct{}](ezg, httpez.Action[struct{}, struct{}]{
		Method:    http.MethodDelete,
		Path:      "/repositories/:id",
		Binder:    httpez.BindNone,
		AdminOnly: true,
		Status:    http.StatusNoContent,
		Handler: func(c *gin.Context, _ *struct{}) (struct{}, error) {
			id, err := idParam(c)
			if err != nil {
				return struct{}{}, err
			}
			rep, err := o.Repos.FindByID(id)
			if err != nil {
				return struct{}{}, httpez.Internal("load repository failed", err)
			}
			if rep == nil {
				return struct{}{}, httpez.NotFound("repository not found")
			}
			if err := o.Repos.DeleteCascade(rep.ID); err != nil {
				return struct{}{}, httpez.Internal("delete repository failed", err)
			}
			return struct{}{}, nil
		},
	})
}
