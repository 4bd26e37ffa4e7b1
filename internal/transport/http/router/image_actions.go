package router

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"registry-console/internal/domain"
	"registry-console/internal/feature/permission"
	"registry-console/internal/registry"
	httpez "registry-console/internal/transport/http/ez"
)

// ---------- 镜像浏览：转发到上游 Registry ----------
//
// 仓库名可以带斜杠（library/nginx），所以这里用通配路由 + 自己解析：
//   /catalog                     上游目录（按权限过滤）
//   /<repository...>/tags        tag 列表
//   /<repository...>/<tag>       镜像详情 / 删除

type imagePath struct {
	catalog bool
	repo    string
	tag     string // 为空表示 tag 列表
}

func parseImagePath(p string) (imagePath, error) {
	p = strings.Trim(p, "/")
	if p == "catalog" {
		return imagePath{catalog: true}, nil
	}
	segs := strings.Split(p, "/")
	if len(segs) < 2 {
		return imagePath{}, httpez.BadRequest("specify <repository>/tags or <repository>/<tag>")
	}
	last := segs[len(segs)-1]
	repo := strings.Join(segs[:len(segs)-1], "/")
	if !domain.ValidRepositoryName(repo) {
		return imagePath{}, httpez.BadRequest("invalid repository name")
	}
	if last == "tags" {
		return imagePath{repo: repo}, nil
	}
	return imagePath{repo: repo, tag: last}, nil
}

func mapRegistryErr(err error, what string) error {
	switch {
	case errors.Is(err, registry.ErrNotFound):
		return httpez.NotFound(what + " not found upstream")
	case errors.Is(err, registry.ErrUpstreamAuth):
		return httpez.BadGateway("registry rejected the service credential")
	case errors.Is(err, registry.ErrUnavailable):
		return httpez.BadGateway("registry unavailable")
	}
	return err
}

func mountImageActions(g *gin.RouterGroup, o Options, checker *permission.Checker) {
	images := g.Group("/images")
	ezg := httpez.New(images, o.Log)

	// 非管理员必须先在本地表里有这个仓库并且判定通过；
	// 本地没有记录的上游仓库只有管理员能看（原样沿用目录同款规则）。
	requireAccess := func(cu *domain.User, repoName string, op permission.Operation) error {
		if cu.IsAdmin {
			return nil
		}
		rep, err := o.Repos.FindByName(repoName)
		if err != nil {
			return httpez.Internal("load repository failed", err)
		}
		if rep == nil {
			return httpez.Forbidden("no access to this repository")
		}
		ok, err := checker.Can(cu, rep, op)
		if err != nil {
			return httpez.Internal("permission check failed", err)
		}
		if !ok {
			return httpez.Forbidden("no access to this repository")
		}
		return nil
	}

	httpez.RegisterAction[struct{}, any](ezg, httpez.Action[struct{}, any]{
		Method: http.MethodGet,
		Path:   "/*path",
		Binder: httpez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) (any, error) {
			ref, err := parseImagePath(c.Param("path"))
			if err != nil {
				return nil, err
			}
			cu, err := currentUser(c, o.Users)
			if err != nil {
				return nil, err
			}
			ctx := c.Request.Context()

			switch {
			case ref.catalog:
				names, err := o.Registry.Catalog(ctx)
				if err != nil {
					return nil, mapRegistryErr(err, "catalog")
				}
				visible := make([]string, 0, len(names))
				for _, name := range names {
					rep, err := o.Repos.FindByName(name)
					if err != nil {
						return nil, httpez.Internal("load repository failed", err)
					}
					if rep == nil {
						if cu.IsAdmin {
							visible = append(visible, name)
						}
						continue
					}
					ok, err := checker.Can(cu, rep, permission.OpPull)
					if err != nil {
						return nil, httpez.Internal("permission check failed", err)
					}
					if ok {
						visible = append(visible, name)
					}
				}
				return visible, nil

			case ref.tag == "":
				if err := requireAccess(cu, ref.repo, permission.OpPull); err != nil {
					return nil, err
				}
				tags, err := o.Registry.Tags(ctx, ref.repo)
				if err != nil {
					return nil, mapRegistryErr(err, "repository")
				}
				return gin.H{"name": ref.repo, "tags": tags}, nil

			default:
				if err := requireAccess(cu, ref.repo, permission.OpPull); err != nil {
					return nil, err
				}
				detail, err := o.Registry.ImageDetails(ctx, ref.repo, ref.tag)
				if err != nil {
					return nil, mapRegistryErr(err, "image")
				}
				return detail, nil
			}
		},
	})

	// 删除按 tag 解析出 digest 再删 manifest
	httpez.RegisterAction[struct{}, struct{}](ezg, httpez.Action[struct{}, struct{}]{
		Method: http.MethodDelete,
		Path:   "/*path",
		Binder: httpez.BindNone,
		Status: http.StatusNoContent,
		Handler: func(c *gin.Context, _ *struct{}) (struct{}, error) {
			ref, err := parseImagePath(c.Param("path"))
			if err != nil {
				return struct{}{}, err
			}
			if ref.catalog || ref.tag == "" {
				return struct{}{}, httpez.BadRequest("specify <repository>/<tag>")
			}
			cu, err := currentUser(c, o.Users)
			if err != nil {
				return struct{}{}, err
			}
			if err := requireAccess(cu, ref.repo, permission.OpDelete); err != nil {
				return struct{}{}, err
			}
			ctx := c.Request.Context()

			_, digest, err := o.Registry.Manifest(ctx, ref.repo, ref.tag)
			if err != nil {
				return struct{}{}, mapRegistryErr(err, "image")
			}
			if digest == "" {
				return struct{}{}, httpez.BadGateway("registry did not return a content digest")
			}
			if err := o.Registry.DeleteManifest(ctx, ref.repo, digest); err != nil {
				return struct{}{}, mapRegistryErr(err, "image")
			}
			return struct{}{}, nil
		},
	})
}
