package throttle

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// LoginGuard 登录防爆破：redis 固定窗口计数失败次数。
// nil guard 等于关闭（未配置 redis 时）。
type LoginGuard struct {
	rdb    *redis.Client
	limit  int64
	window time.Duration
}

func NewLoginGuard(addr, pass string, db int, limit int64, window time.Duration) *LoginGuard {
	if addr == "" {
		return nil
	}
	return &LoginGuard{
		rdb:    redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db}),
		limit:  limit,
		window: window,
	}
}

func key(username, ip string) string { return fmt.Sprintf("login:fail:%s:%s", username, ip) }

// Allow 当前窗口内失败次数未达上限则放行。redis 不可达时放行，登录不因计数器瘫痪。
func (g *LoginGuard) Allow(ctx context.Context, username, ip string) bool {
	if g == nil {
		return true
	}
	n, err := g.rdb.Get(ctx, key(username, ip)).Int64()
	if err != nil {
		return true
	}
	return n < g.limit
}

// Fail 记一次失败，首次失败时设置窗口过期
func (g *LoginGuard) Fail(ctx context.Context, username, ip string) {
	if g == nil {
		return
	}
	k := key(username, ip)
	n, err := g.rdb.Incr(ctx, k).Result()
	if err == nil && n == 1 {
		g.rdb.Expire(ctx, k, g.window)
	}
}

// Reset 登录成功后清零
func (g *LoginGuard) Reset(ctx context.Context, username, ip string) {
	if g == nil {
		return
	}
	g.rdb.Del(ctx, key(username, ip))
}
