// Package dockerauth 签发 Docker Registry 令牌认证协议要求的访问令牌：
// docker 客户端带 Basic 凭证来换 JWT，令牌里的 access 列表即权限判定结果。
package dockerauth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"registry-console/internal/domain"
	"registry-console/internal/feature/permission"
)

// AccessEntry 令牌 access 声明里的一条授权（registry 令牌格式）
type AccessEntry struct {
	Type    string   `json:"type"`
	Name    string   `json:"name"`
	Actions []string `json:"actions"`
}

// Scope 解析后的 scope 参数：repository:<name>:pull,push
type Scope struct {
	Type    string
	Name    string
	Actions []string
}

// ParseScope 不合形状的 scope 返回 ok=false，整条忽略
func ParseScope(s string) (Scope, bool) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return Scope{}, false
	}
	return Scope{Type: parts[0], Name: parts[1], Actions: strings.Split(parts[2], ",")}, true
}

type registryClaims struct {
	Access []AccessEntry `json:"access,omitempty"`
	jwt.RegisteredClaims
}

// Service 按本地权限表过滤 scope 并签发 registry 令牌。
// Secret/Issuer 与 web 端令牌共用，Audience 必须与 registry 配置一致。
type Service struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
	repos    domain.RepositoryRepository
	checker  *permission.Checker
}

func New(secret []byte, issuer, audience string, ttl time.Duration,
	repos domain.RepositoryRepository, checker *permission.Checker) *Service {
	return &Service{
		secret:   secret,
		issuer:   issuer,
		audience: audience,
		ttl:      ttl,
		repos:    repos,
		checker:  checker,
	}
}

func (s *Service) TTL() time.Duration { return s.ttl }

// Grant 把请求的 scope 动作过滤成实际授予的动作。
// 本地没建档的仓库只有管理员推送时放行（pull+push，顺手建仓走代理那边）。
func (s *Service) Grant(u *domain.User, scopes []string) ([]AccessEntry, error) {
	var access []AccessEntry
	for _, raw := range scopes {
		sc, ok := ParseScope(raw)
		if !ok {
			continue
		}
		rep, err := s.repos.FindByName(sc.Name)
		if err != nil {
			return nil, err
		}
		if rep == nil {
			if u.IsAdmin && contains(sc.Actions, "push") {
				access = append(access, AccessEntry{
					Type: sc.Type, Name: sc.Name, Actions: []string{"pull", "push"},
				})
			}
			continue
		}

		var granted []string
		for _, action := range sc.Actions {
			var op permission.Operation
			switch action {
			case "pull":
				op = permission.OpPull
			case "push":
				op = permission.OpPush
			case "delete", "*":
				op = permission.OpDelete
			default:
				continue
			}
			ok, err := s.checker.Can(u, rep, op)
			if err != nil {
				return nil, err
			}
			if ok {
				granted = append(granted, action)
			}
		}
		if len(granted) > 0 {
			access = append(access, AccessEntry{Type: sc.Type, Name: sc.Name, Actions: granted})
		}
	}
	return access, nil
}

// IssueToken 过滤 scope 后签发令牌。没有任何授权也签（access 为空），
// docker 客户端据此得到明确的 denied 而不是反复重试认证。
func (s *Service) IssueToken(u *domain.User, scopes []string) (string, error) {
	access, err := s.Grant(u, scopes)
	if err != nil {
		return "", err
	}
	now := time.Now()
	claims := registryClaims{
		Access: access,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   u.Username,
			Audience:  jwt.ClaimStrings{s.audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        fmt.Sprintf("%d-%d", u.ID, now.Unix()),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// ParseSubject 从令牌取 sub（用户名）。web 令牌和 registry 令牌的 sub 都是
// 用户名，代理两种都收；不校验 audience，过期照常拒绝。
func (s *Service) ParseSubject(token string) (string, error) {
	var claims jwt.RegisteredClaims
	t, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected alg")
		}
		return s.secret, nil
	})
	if err != nil {
		return "", err
	}
	if !t.Valid || claims.Subject == "" {
		return "", errors.New("invalid token")
	}
	return claims.Subject, nil
}

func contains(ss []string, want string) bool {
	for _, s := range ss {
		if s == want {
			return true
		}
	}
	return false
}
