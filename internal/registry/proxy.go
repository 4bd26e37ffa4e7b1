package registry

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Proxy 把 docker 客户端的 /v2 请求原样转发到上游 Registry。
// 权限判定在转发之前由调用方完成，这里只负责搬运字节。
// blob 上传可能很大很慢，超时与 Client 分开配置。
type Proxy struct {
	base string
	hc   *http.Client
}

func NewProxy(baseURL string, timeout time.Duration) *Proxy {
	return &Proxy{
		base: strings.TrimRight(baseURL, "/"),
		hc:   &http.Client{Timeout: timeout},
	}
}

// Forward 转发 r 到上游的 upstreamPath（含 /v2 前缀），响应原样写回 w。
// Location 头里的上游地址改写成对外地址，blob 上传的续传 URL 才能走回代理。
func (p *Proxy) Forward(w http.ResponseWriter, r *http.Request, upstreamPath string) error {
	u := p.base + upstreamPath
	if r.URL.RawQuery != "" {
		u += "?" + r.URL.RawQuery
	}
	req, err := http.NewRequestWithContext(r.Context(), r.Method, u, r.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header = r.Header.Clone()
	req.Header.Del("Authorization") // 上游不认我们的令牌
	if r.ContentLength >= 0 {
		req.ContentLength = r.ContentLength
	}

	resp, err := p.hc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	h := w.Header()
	for k, vs := range resp.Header {
		for _, v := range vs {
			h.Add(k, v)
		}
	}
	if loc := resp.Header.Get("Location"); strings.HasPrefix(loc, p.base) {
		scheme := r.Header.Get("X-Forwarded-Proto")
		if scheme == "" {
			scheme = "http"
		}
		h.Set("Location", scheme+"://"+r.Host+strings.TrimPrefix(loc, p.base))
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(w, resp.Body)
	return nil
}
