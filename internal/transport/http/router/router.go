package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"registry-console/internal/core/auth"
	"registry-console/internal/core/logger"
	"registry-console/internal/core/throttle"
	"registry-console/internal/domain"
	"registry-console/internal/feature/dockerauth"
	"registry-console/internal/feature/permission"
	"registry-console/internal/registry"
	mdw "registry-console/internal/transport/http/middleware"
)

type Options struct {
	Log      *zap.Logger
	DB       *gorm.DB // 只用于 /health 探活，测试可为 nil
	JWTer    *auth.JWTer
	Users    domain.UserRepository
	Repos    domain.RepositoryRepository
	Perms    domain.PermissionRepository
	Registry *registry.Client
	Proxy    *registry.Proxy      // 为 nil 时不挂 docker 入口
	Guard    *throttle.LoginGuard // 可为 nil

	// DockerService registry 令牌的 audience，必须与 registry 配置一致
	DockerService string
	// DockerTokenTTL registry 访问令牌有效期，0 取默认 30 分钟
	DockerTokenTTL time.Duration

	// BootstrapAdmin 引导管理员用户名，该账户不可删除
	BootstrapAdmin string
}

func New(o Options) *gin.Engine {
	r := gin.New()

	r.Use(
		mdw.RequestID(),
		mdw.RateLimit(200, 400),
		mdw.ConcurrencyLimit(300),
		ginzap.RecoveryWithZap(o.Log, true),
		mdw.Metrics(),
		logger.AccessLog(o.Log),
		cors.Default(),
	)

	r.GET("/health", healthHandler(o))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	checker := permission.NewChecker(o.Perms, o.Repos)

	// docker 客户端入口：/v2 走 blob 上传，不能套 /api 的体积和超时上限
	if o.Proxy != nil {
		if o.DockerService == "" {
			o.DockerService = "Docker Registry"
		}
		if o.DockerTokenTTL == 0 {
			o.DockerTokenTTL = 30 * time.Minute
		}
		da := dockerauth.New(o.JWTer.Secret, o.JWTer.Issuer, o.DockerService,
			o.DockerTokenTTL, o.Repos, checker)
		mountDockerActions(r, o, da, checker)
	}

	api := r.Group("/api")
	api.Use(
		mdw.MaxBodyBytes(1<<20),
		mdw.Timeout(35*time.Second), // 要盖过上游 Registry 的超时
	)

	// 除登录外所有路由都要求有效令牌
	authed := api.Group("")
	authed.Use(mdw.AuthJWT(o.JWTer))

	mountAuthActions(api, authed, o)
	mountUserActions(authed, o)
	mountRepositoryActions(authed, o, checker)
	mountPermissionActions(authed, o)
	mountImageActions(authed, o, checker)

	return r
}

func healthHandler(o Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		out := gin.H{"ok": 1}
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()
		if o.DB != nil {
			out["db"] = "up"
			if sqlDB, err := o.DB.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
				out["db"] = "down"
			}
		}
		if o.Registry != nil {
			out["registry"] = "up"
			if err := o.Registry.Ping(ctx); err != nil {
				out["registry"] = "down"
			}
		}
		c.JSON(http.StatusOK, out)
	}
}
