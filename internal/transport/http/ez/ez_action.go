package ez

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	mdw "registry-console/internal/transport/http/middleware"
	resp "registry-console/internal/transport/http/response"
)

type EZ struct {
	g   *gin.RouterGroup
	log *zap.Logger
}

func New(g *gin.RouterGroup, log *zap.Logger) EZ { return EZ{g: g, log: log} }

// 绑定方式
type Binder string

const (
	BindJSON  Binder = "json"  // 从 JSON 绑定
	BindQuery Binder = "query" // 从 URL ?a=b 绑定
	BindNone  Binder = "none"  // 不绑定，自己从 c.Param 取
)

// AErr 统一错误对象，Code 即响应状态码；Err 只进日志不出网
type AErr struct {
	Code int
	Msg  string
	Err  error
}

func (e *AErr) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "action error"
}

func BadRequest(msg string) error      { return &AErr{Code: resp.CodeBadRequest, Msg: msg} }
func Unauthorized(msg string) error    { return &AErr{Code: resp.CodeUnauthorized, Msg: msg} }
func Forbidden(msg string) error       { return &AErr{Code: resp.CodeForbidden, Msg: msg} }
func NotFound(msg string) error        { return &AErr{Code: resp.CodeNotFound, Msg: msg} }
func Conflict(msg string) error        { return &AErr{Code: resp.CodeConflict, Msg: msg} }
func TooManyRequests(msg string) error { return &AErr{Code: resp.CodeTooManyRequests, Msg: msg} }
func BadGateway(msg string) error      { return &AErr{Code: resp.CodeBadGateway, Msg: msg} }
func Internal(msg string, err error) error {
	return &AErr{Code: resp.CodeServerError, Msg: msg, Err: err}
}

// 动作定义：I 入参，O 出参
type Action[I any, O any] struct {
	Method    string // "GET" | "POST" | "PUT" | "DELETE"
	Path      string // 例："/auth/login"、"/users/:id"
	Binder    Binder
	AdminOnly bool // 仅管理员（在任何表访问之前拒绝）
	Status    int  // 成功状态码，0 表示 200；204 不带响应体
	Handler   func(c *gin.Context, in *I) (O, error)
}

// RegisterAction 在当前 EZ 下注册动作接口
func RegisterAction[I any, O any](e EZ, a Action[I, O]) {
	h := func(c *gin.Context) {
		// 1) 管理员门禁，先于一切业务逻辑
		if a.AdminOnly && !c.GetBool(mdw.CtxIsAdmin) {
			c.JSON(resp.CodeForbidden, resp.Error(resp.CodeForbidden, "admin privilege required"))
			return
		}

		// 2) 绑定入参
		var in I
		var bindErr error
		switch a.Binder {
		case BindJSON:
			bindErr = c.ShouldBindJSON(&in)
		case BindQuery:
			bindErr = c.ShouldBindQuery(&in)
		default: // BindNone
		}
		if bindErr != nil {
			c.JSON(resp.CodeBadRequest, resp.Error(resp.CodeBadRequest, bindErr.Error()))
			return
		}

		// 3) 执行 + 统一错误映射
		out, err := a.Handler(c, &in)
		if err != nil {
			var ae *AErr
			if errors.As(err, &ae) {
				if ae.Err != nil && e.log != nil {
					e.log.Error("action failed",
						zap.String("path", c.FullPath()),
						zap.Int("code", ae.Code),
						zap.Error(ae.Err),
					)
				}
				c.JSON(ae.Code, resp.Error(ae.Code, ae.Msg))
				return
			}
			// 不认识的错误一律 500，细节进日志不出网
			if e.log != nil {
				e.log.Error("action failed", zap.String("path", c.FullPath()), zap.Error(err))
			}
			c.JSON(resp.CodeServerError, resp.Error(resp.CodeServerError, ""))
			return
		}

		status := a.Status
		if status == 0 {
			status = resp.CodeOK
		}
		if status == http.StatusNoContent {
			c.Status(http.StatusNoContent)
			return
		}
		if status == resp.CodeCreated {
			c.JSON(status, resp.Created(out))
			return
		}
		c.JSON(status, resp.OK(out))
	}

	switch strings.ToUpper(a.Method) {
	case http.MethodGet:
		e.g.GET(a.Path, h)
	case http.MethodPut:
		e.g.PUT(a.Path, h)
	case http.MethodDelete:
		e.g.DELETE(a.Path, h)
	default: // 默认 POST
		e.g.POST(a.Path, h)
	}
}
