package router

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"registry-console/internal/domain"
	"registry-console/internal/feature/dockerauth"
	"registry-console/internal/feature/permission"
	"registry-console/pkg/utils"
)

// ---------- docker 客户端入口：令牌认证 + /v2 权限代理 ----------
//
// 这两组路由说 Docker Registry 的协议，不走 /api 的鉴权中间件和响应信封：
//   GET /token        Basic 凭证换 registry 访问令牌（令牌认证协议）
//   ANY /v2/*         校验 Bearer 令牌和权限后原样转发到上游

const apiVersionHeader = "Docker-Distribution-Api-Version"

func mountDockerActions(r *gin.Engine, o Options, da *dockerauth.Service, checker *permission.Checker) {
	r.GET("/token", registryTokenHandler(o, da))
	r.Any("/v2/*path", registryProxyHandler(o, da, checker))
}

func registryTokenHandler(o Options, da *dockerauth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		username, password, ok := c.Request.BasicAuth()
		if !ok {
			c.Header("WWW-Authenticate", `Basic realm="Registry Realm"`)
			c.JSON(http.StatusUnauthorized, gin.H{"detail": "authentication required"})
			return
		}
		u, err := o.Users.FindByUsername(username)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"detail": "lookup failed"})
			return
		}
		// 不存在、停用、密码不对同一个 401，不帮着枚举用户名
		if u == nil || !u.IsActive || !utils.CheckPassword(password, u.PasswordHash) {
			c.Header("WWW-Authenticate", `Basic realm="Registry Realm"`)
			c.JSON(http.StatusUnauthorized, gin.H{"detail": "incorrect username or password"})
			return
		}

		tok, err := da.IssueToken(u, c.QueryArray("scope"))
		if err != nil {
			o.Log.Error("issue registry token failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"detail": "issue token failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"token":        tok,
			"access_token": tok, // 部分客户端只认这个字段
			"expires_in":   int(da.TTL().Seconds()),
		})
	}
}

func registryProxyHandler(o Options, da *dockerauth.Service, checker *permission.Checker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusOK)
			return
		}
		path := "/v2" + c.Param("path")

		// 版本探测：docker login 的第一跳，401 挑战里带 /token 的地址
		if path == "/v2/" {
			if bearerUser(c, o, da) == nil {
				challenge(c, "")
				return
			}
			c.Header(apiVersionHeader, "registry/2.0")
			c.Data(http.StatusOK, "application/json", []byte("{}"))
			return
		}

		// 目录只给管理员
		if strings.Contains(path, "_catalog") {
			u := bearerUser(c, o, da)
			if u == nil || !u.IsAdmin {
				c.JSON(http.StatusForbidden, registryError("DENIED", "admin access required"))
				return
			}
			forward(c, o, path)
			return
		}

		repoName := repositoryFromPath(path)
		if repoName == "" {
			c.JSON(http.StatusBadRequest, registryError("NAME_INVALID", "invalid repository path"))
			return
		}

		u := bearerUser(c, o, da)
		if u == nil {
			challenge(c, repoName)
			return
		}

		op := operationFor(c.Request.Method)
		rep, err := o.Repos.FindByName(repoName)
		if err != nil {
			c.JSON(http.StatusInternalServerError, registryError("UNKNOWN", "lookup failed"))
			return
		}
		if rep == nil {
			// 管理员推送未建档的仓库时顺手建档（私有），其余一律 404
			if !u.IsAdmin || op != permission.OpPush {
				c.JSON(http.StatusNotFound, registryError("NAME_UNKNOWN", "repository not found"))
				return
			}
			rep = &domain.Repository{
				Name:        repoName,
				Description: "Auto-created repository: " + repoName,
			}
			if err := o.Repos.Create(rep); err != nil && !isDupKey(err) {
				c.JSON(http.StatusInternalServerError, registryError("UNKNOWN", "create repository failed"))
				return
			}
		}

		ok, err := checker.Can(u, rep, op)
		if err != nil {
			c.JSON(http.StatusInternalServerError, registryError("UNKNOWN", "permission check failed"))
			return
		}
		if !ok {
			c.JSON(http.StatusForbidden,
				registryError("DENIED", fmt.Sprintf("no %s permission for repository %s", op, repoName)))
			return
		}

		forward(c, o, path)
	}
}

func forward(c *gin.Context, o Options, path string) {
	if err := o.Proxy.Forward(c.Writer, c.Request, path); err != nil {
		o.Log.Error("registry proxy failed", zap.String("path", path), zap.Error(err))
		c.JSON(http.StatusBadGateway, registryError("UNAVAILABLE", "registry unavailable"))
	}
}

// bearerUser 解析 Bearer 令牌并回表校验 is_active，失败一律匿名处理
func bearerUser(c *gin.Context, o Options, da *dockerauth.Service) *domain.User {
	ah := c.GetHeader("Authorization")
	if !strings.HasPrefix(ah, "Bearer ") {
		return nil
	}
	sub, err := da.ParseSubject(strings.TrimPrefix(ah, "Bearer "))
	if err != nil {
		return nil
	}
	u, err := o.Users.FindByUsername(sub)
	if err != nil || u == nil || !u.IsActive {
		return nil
	}
	return u
}

// challenge 按令牌认证协议回 401，realm 指向本服务的 /token
func challenge(c *gin.Context, repoName string) {
	scheme := c.GetHeader("X-Forwarded-Proto")
	if scheme == "" {
		scheme = "http"
	}
	wa := fmt.Sprintf(`Bearer realm="%s://%s/token",service="Docker Registry"`, scheme, c.Request.Host)
	if repoName != "" {
		wa += fmt.Sprintf(`,scope="repository:%s:pull,push"`, repoName)
	}
	c.Header("WWW-Authenticate", wa)
	c.Header(apiVersionHeader, "registry/2.0")
	c.JSON(http.StatusUnauthorized, registryError("UNAUTHORIZED", "authentication required"))
}

// registryError Registry API 的错误体格式
func registryError(code, msg string) gin.H {
	return gin.H{"errors": []gin.H{{"code": code, "message": msg}}}
}

// repositoryFromPath 从 Registry API 路径提取仓库名（可以带命名空间）：
//
//	/v2/nginx/manifests/latest  → nginx
//	/v2/ns/repo/blobs/sha256:x  → ns/repo
//	/v2/ns/repo/tags/list       → ns/repo
func repositoryFromPath(p string) string {
	p = strings.TrimPrefix(p, "/v2/")
	segs := strings.Split(p, "/")
	for i, s := range segs {
		switch s {
		case "manifests", "blobs", "tags", "uploads":
			return strings.Join(segs[:i], "/")
		}
	}
	return ""
}

// operationFor 按 HTTP 方法归类动作：读是 pull，写是 push，DELETE 是 delete
func operationFor(method string) permission.Operation {
	switch method {
	case http.MethodDelete:
		return permission.OpDelete
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return permission.OpPush
	default:
		return permission.OpPull
	}
}
