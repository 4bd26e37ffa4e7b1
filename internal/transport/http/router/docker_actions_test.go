package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"

	"registry-console/internal/domain"
	"registry-console/internal/feature/dockerauth"
	"registry-console/internal/feature/permission"
)

func TestRepositoryFromPath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/v2/nginx/manifests/latest", "nginx"},
		{"/v2/ns/repo/blobs/sha256:abc", "ns/repo"},
		{"/v2/ns/repo/tags/list", "ns/repo"},
		{"/v2/a/b/c/blobs/uploads/", "a/b/c"},
		{"/v2/manifests/latest", ""}, // 仓库名缺失
		{"/v2/justaname", ""},        // 不是 registry API 形状
	}
	for _, tt := range tests {
		if got := repositoryFromPath(tt.in); got != tt.want {
			t.Errorf("repositoryFromPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestOperationFor(t *testing.T) {
	tests := []struct {
		method string
		want   permission.Operation
	}{
		{http.MethodGet, permission.OpPull},
		{http.MethodHead, permission.OpPull},
		{http.MethodPost, permission.OpPush},
		{http.MethodPut, permission.OpPush},
		{http.MethodPatch, permission.OpPush},
		{http.MethodDelete, permission.OpDelete},
	}
	for _, tt := range tests {
		if got := operationFor(tt.method); got != tt.want {
			t.Errorf("operationFor(%s) = %s, want %s", tt.method, got, tt.want)
		}
	}
}

// 记录转发请求的假上游
type upstreamRecorder struct {
	srv  *httptest.Server
	reqs []*http.Request
}

func newUpstream(t *testing.T) *upstreamRecorder {
	t.Helper()
	u := &upstreamRecorder{}
	u.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.reqs = append(u.reqs, r.Clone(r.Context()))
		if strings.HasSuffix(r.URL.Path, "/blobs/uploads/") && r.Method == http.MethodPost {
			// registry 用 Location 指示续传地址，必须被代理改写
			w.Header().Set("Location", u.srv.URL+r.URL.Path+"uuid-1")
			w.WriteHeader(http.StatusAccepted)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(u.srv.Close)
	return u
}

func basicAuth(t *testing.T, e *env, method, path, username, password string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	req.SetBasicAuth(username, password)
	w := httptest.NewRecorder()
	e.r.ServeHTTP(w, req)
	return w
}

func TestToken_RequiresBasicAuth(t *testing.T) {
	up := newUpstream(t)
	e := newEnv(t, up.srv.URL)
	e.addUser(t, "alice", "s3cret99", false, true)
	e.addUser(t, "gone", "s3cret99", false, false)

	w := e.do(t, http.MethodGet, "/token", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous: status=%d", w.Code)
	}
	if wa := w.Header().Get("WWW-Authenticate"); !strings.Contains(wa, "Basic realm") {
		t.Fatalf("WWW-Authenticate = %q", wa)
	}

	for _, tt := range []struct{ name, user, pass string }{
		{"wrong password", "alice", "nope1234"},
		{"unknown user", "nobody", "whatever"},
		{"inactive user", "gone", "s3cret99"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			if w := basicAuth(t, e, http.MethodGet, "/token", tt.user, tt.pass); w.Code != http.StatusUnauthorized {
				t.Fatalf("status=%d", w.Code)
			}
		})
	}
}

func TestToken_ScopeFilteredByPermissions(t *testing.T) {
	up := newUpstream(t)
	e := newEnv(t, up.srv.URL)
	alice := e.addUser(t, "alice", "s3cret99", false, true)
	rep := domain.Repository{Name: "internal/api"}
	_ = (&fakeRepos{e.s}).Create(&rep)
	_ = (&fakePerms{e.s}).Create(&domain.Permission{UserID: alice.ID, RepositoryID: rep.ID, CanPull: true})

	w := basicAuth(t, e,
		http.MethodGet, "/token?service=Docker+Registry&scope=repository:internal/api:pull,push",
		"alice", "s3cret99")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var out struct {
		Token       string `json:"token"`
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Token == "" || out.Token != out.AccessToken || out.ExpiresIn != 1800 {
		t.Fatalf("out = %+v", out)
	}

	var claims struct {
		Access []dockerauth.AccessEntry `json:"access"`
		jwt.RegisteredClaims
	}
	if _, err := jwt.ParseWithClaims(out.Token, &claims, func(*jwt.Token) (interface{}, error) {
		return e.j.Secret, nil
	}); err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.Subject != "alice" {
		t.Fatalf("sub = %q", claims.Subject)
	}
	// push 没授权，必须被过滤掉
	if len(claims.Access) != 1 || claims.Access[0].Name != "internal/api" ||
		len(claims.Access[0].Actions) != 1 || claims.Access[0].Actions[0] != "pull" {
		t.Fatalf("access = %+v", claims.Access)
	}
}

func TestProxy_VersionCheck(t *testing.T) {
	up := newUpstream(t)
	e := newEnv(t, up.srv.URL)
	alice := e.addUser(t, "alice", "s3cret99", false, true)

	w := e.do(t, http.MethodGet, "/v2/", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous: status=%d", w.Code)
	}
	wa := w.Header().Get("WWW-Authenticate")
	if !strings.Contains(wa, `Bearer realm="http://`) || !strings.Contains(wa, "/token") {
		t.Fatalf("WWW-Authenticate = %q", wa)
	}
	if v := w.Header().Get("Docker-Distribution-Api-Version"); v != "registry/2.0" {
		t.Fatalf("api version header = %q", v)
	}

	w = e.do(t, http.MethodGet, "/v2/", e.token(t, alice), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("authenticated: status=%d body=%s", w.Code, w.Body.String())
	}
	if len(up.reqs) != 0 {
		t.Fatalf("version check must not hit upstream: %d", len(up.reqs))
	}
}

func TestProxy_EnforcesPermissions(t *testing.T) {
	up := newUpstream(t)
	e := newEnv(t, up.srv.URL)
	alice := e.addUser(t, "alice", "s3cret99", false, true)
	rep := domain.Repository{Name: "internal/api"}
	_ = (&fakeRepos{e.s}).Create(&rep)
	_ = (&fakePerms{e.s}).Create(&domain.Permission{UserID: alice.ID, RepositoryID: rep.ID, CanPull: true})
	tok := e.token(t, alice)

	// 匿名 → 401，挑战里带上仓库 scope
	w := e.do(t, http.MethodGet, "/v2/internal/api/manifests/latest", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous pull: status=%d", w.Code)
	}
	if wa := w.Header().Get("WWW-Authenticate"); !strings.Contains(wa, `scope="repository:internal/api:pull,push"`) {
		t.Fatalf("WWW-Authenticate = %q", wa)
	}

	// 有拉取权 → 转发，且不带我们的 Authorization
	w = e.do(t, http.MethodGet, "/v2/internal/api/manifests/latest", tok, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("pull: status=%d body=%s", w.Code, w.Body.String())
	}
	if len(up.reqs) != 1 || up.reqs[0].URL.Path != "/v2/internal/api/manifests/latest" {
		t.Fatalf("upstream requests = %+v", up.reqs)
	}
	if got := up.reqs[0].Header.Get("Authorization"); got != "" {
		t.Fatalf("Authorization leaked upstream: %q", got)
	}

	// 没有推送权 → 403，上游不能被打到
	w = e.do(t, http.MethodPut, "/v2/internal/api/manifests/latest", tok, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("push denied: status=%d body=%s", w.Code, w.Body.String())
	}
	// 没有删除权 → 403
	w = e.do(t, http.MethodDelete, "/v2/internal/api/manifests/sha256:abc", tok, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("delete denied: status=%d", w.Code)
	}
	if len(up.reqs) != 1 {
		t.Fatalf("denied requests reached upstream: %d", len(up.reqs))
	}

	// 本地没建档的仓库对非管理员是 404
	w = e.do(t, http.MethodGet, "/v2/brand/new/manifests/latest", tok, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown repo: status=%d", w.Code)
	}
}

func TestProxy_AdminPushAutoCreatesRepository(t *testing.T) {
	up := newUpstream(t)
	e := newEnv(t, up.srv.URL)
	admin := e.addUser(t, "admin", "admin123", true, true)
	tok := e.token(t, admin)

	w := e.do(t, http.MethodPut, "/v2/brand/new/manifests/latest", tok, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	created, err := (&fakeRepos{e.s}).FindByName("brand/new")
	if err != nil || created == nil {
		t.Fatalf("repository not auto-created: %v %v", created, err)
	}
	if created.IsPublic {
		t.Fatal("auto-created repository must be private")
	}
	if len(up.reqs) != 1 {
		t.Fatalf("upstream requests = %d", len(up.reqs))
	}
}

func TestProxy_CatalogAdminOnly(t *testing.T) {
	up := newUpstream(t)
	e := newEnv(t, up.srv.URL)
	admin := e.addUser(t, "admin", "admin123", true, true)
	alice := e.addUser(t, "alice", "s3cret99", false, true)

	if w := e.do(t, http.MethodGet, "/v2/_catalog", e.token(t, alice), nil); w.Code != http.StatusForbidden {
		t.Fatalf("non-admin catalog: status=%d", w.Code)
	}
	if w := e.do(t, http.MethodGet, "/v2/_catalog", e.token(t, admin), nil); w.Code != http.StatusOK {
		t.Fatalf("admin catalog: status=%d", w.Code)
	}
	if len(up.reqs) != 1 || up.reqs[0].URL.Path != "/v2/_catalog" {
		t.Fatalf("upstream requests = %+v", up.reqs)
	}
}

func TestProxy_RewritesLocationHeader(t *testing.T) {
	up := newUpstream(t)
	e := newEnv(t, up.srv.URL)
	admin := e.addUser(t, "admin", "admin123", true, true)
	rep := domain.Repository{Name: "internal/api"}
	_ = (&fakeRepos{e.s}).Create(&rep)

	w := e.do(t, http.MethodPost, "/v2/internal/api/blobs/uploads/", e.token(t, admin), nil)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	loc := w.Header().Get("Location")
	// 上游地址必须被改写成对外地址，客户端的续传才会走回代理
	if want := "http://example.com/v2/internal/api/blobs/uploads/uuid-1"; loc != want {
		t.Fatalf("Location = %q, want %q", loc, want)
	}
}

func TestProxy_DisabledUserTokenRejected(t *testing.T) {
	up := newUpstream(t)
	e := newEnv(t, up.srv.URL)
	alice := e.addUser(t, "alice", "s3cret99", false, true)
	tok := e.token(t, alice)

	alice.IsActive = false
	e.s.users[alice.ID] = alice

	w := e.do(t, http.MethodGet, "/v2/", tok, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status=%d", w.Code)
	}
}
