package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "go.uber.org/automaxprocs"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"registry-console/internal/core/auth"
	"registry-console/internal/core/config"
	"registry-console/internal/core/database"
	"registry-console/internal/core/logger"
	"registry-console/internal/core/throttle"
	"registry-console/internal/domain"
	"registry-console/internal/feature/user"
	"registry-console/internal/registry"
	"registry-console/internal/repo"
	"registry-console/internal/transport/http/router"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load(os.Getenv("CONFIG_PATH"))
	log, cleanup := logger.New(logger.Options{
		Level:    cfg.Log.Level,
		JSON:     cfg.Log.JSON,
		File:     cfg.Log.File,
		MaxSize:  cfg.Log.MaxSize,
		MaxAge:   cfg.Log.MaxAge,
		Backups:  cfg.Log.Backups,
		Compress: cfg.Log.Compress,
	})
	defer cleanup()

	// 数据库（失败会直接 Fatal）
	db := mustOpenDB(cfg, log)
	log.Info("database connected", zap.String("driver", cfg.DB.Driver))

	if cfg.DB.AutoMigrate {
		if err := db.AutoMigrate(&domain.User{}, &domain.Repository{}, &domain.Permission{}); err != nil {
			log.Fatal("automigrate failed", zap.Error(err))
		}
		log.Info("automigrate done")
	}

	users := repo.NewUserRepo(db)
	repos := repo.NewRepositoryRepo(db)
	perms := repo.NewPermissionRepo(db)

	// 引导管理员
	if err := user.EnsureDefaultAdmin(users, cfg.Bootstrap.AdminUsername, cfg.Bootstrap.AdminPassword, log); err != nil {
		log.Fatal("bootstrap admin failed", zap.Error(err))
	}

	// JWT
	jwter := &auth.JWTer{
		Secret: []byte(cfg.JWT.Secret),
		Issuer: cfg.JWT.Issuer,
		TTL:    time.Duration(cfg.JWT.AccessTokenTTLMin) * time.Minute,
	}

	// 登录防爆破（未配置 redis 则关闭）
	guard := throttle.NewLoginGuard(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, 5, 15*time.Minute)
	if guard == nil {
		log.Info("login guard disabled, no redis configured")
	}

	// 上游 Registry 客户端（服务级凭证）和 docker 客户端用的透传代理
	rc := registry.New(cfg.Registry.URL, cfg.Registry.Username, cfg.Registry.Password,
		time.Duration(cfg.Registry.TimeoutSec)*time.Second)
	proxy := registry.NewProxy(cfg.Registry.URL,
		time.Duration(cfg.Registry.ProxyTimeoutSec)*time.Second)

	if cfg.App.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := router.New(router.Options{
		Log:            log,
		DB:             db,
		JWTer:          jwter,
		Users:          users,
		Repos:          repos,
		Perms:          perms,
		Registry:       rc,
		Proxy:          proxy,
		Guard:          guard,
		DockerService:  cfg.Registry.Service,
		DockerTokenTTL: time.Duration(cfg.Registry.TokenTTLMin) * time.Minute,
		BootstrapAdmin: cfg.Bootstrap.AdminUsername,
	})

	addr := fmt.Sprintf("%s:%d", cfg.App.HTTP.Host, cfg.App.HTTP.Port)
	srv := &http.Server{
		Addr:           addr,
		Handler:        r,
		ReadTimeout:    time.Duration(cfg.App.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout:   time.Duration(cfg.App.HTTP.WriteTimeoutSec) * time.Second,
		IdleTimeout:    time.Duration(cfg.App.HTTP.IdleTimeoutSec) * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	log.Info("registry console starting",
		zap.String("addr", addr),
		zap.String("registry", cfg.Registry.URL),
	)

	// 异步启动
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("registry console start FAILED", zap.Error(err))
		}
	}()
	log.Info("registry console started SUCCESS")

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	log.Info("registry console stopped gracefully")
}

func mustOpenDB(cfg *config.Config, l *zap.Logger) *gorm.DB {
	db, err := database.NewGorm(database.Opts{
		Driver:             cfg.DB.Driver,
		DSN:                cfg.DB.DSN,
		MaxOpenConns:       cfg.DB.MaxOpenConns,
		MaxIdleConns:       cfg.DB.MaxIdleConns,
		ConnMaxLifetimeMin: cfg.DB.ConnMaxLifetimeMin,
		LogLevel:           cfg.DB.LogLevel,
	})
	if err != nil {
		l.Fatal("db open", zap.Error(err))
	}
	return db
}
