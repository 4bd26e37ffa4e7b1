// Package registry 是上游 Docker Registry v2 API 的只读客户端。
// 单次请求、有界超时、不缓存响应；鉴权用的是服务级凭证而不是终端用户身份。
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

var (
	// ErrNotFound 上游 404：仓库/tag/manifest 不存在
	ErrNotFound = errors.New("registry: not found")
	// ErrUpstreamAuth 上游 401/403：服务凭证配置有误
	ErrUpstreamAuth = errors.New("registry: upstream auth failed")
	// ErrUnavailable 网络错误或超时
	ErrUnavailable = errors.New("registry: upstream unavailable")
)

const manifestV2 = "application/vnd.docker.distribution.manifest.v2+json"

// catalog 分页步长
const catalogPageSize = 100

type Client struct {
	base     string
	username string
	password string
	hc       *http.Client
}

func New(baseURL, username, password string, timeout time.Duration) *Client {
	return &Client{
		base:     strings.TrimRight(baseURL, "/"),
		username: username,
		password: password,
		hc:       &http.Client{Timeout: timeout},
	}
}

func (c *Client) get(ctx context.Context, path, accept string) (*http.Response, error) {
	return c.do(ctx, http.MethodGet, path, accept)
}

func (c *Client) do(ctx context.Context, method, path, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, nil)
	if err != nil {
		return nil, err
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		drain(resp)
		return nil, ErrNotFound
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		drain(resp)
		return nil, ErrUpstreamAuth
	case resp.StatusCode >= 400:
		drain(resp)
		return nil, fmt.Errorf("%w: unexpected status %d", ErrUnavailable, resp.StatusCode)
	}
	return resp, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()
}

func decode(resp *http.Response, v any) error {
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(v)
}

// Ping GET /v2/，探活
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.get(ctx, "/v2/", "")
	if err != nil {
		return err
	}
	drain(resp)
	return nil
}

// Catalog 列出上游全部仓库名，沿 Link 头翻完所有分页
func (c *Client) Catalog(ctx context.Context) ([]string, error) {
	path := fmt.Sprintf("/v2/_catalog?n=%d", catalogPageSize)
	var out []string
	for path != "" {
		resp, err := c.get(ctx, path, "")
		if err != nil {
			return nil, err
		}
		link := resp.Header.Get("Link")
		var page catalogPage
		if err := decode(resp, &page); err != nil {
			return nil, fmt.Errorf("%w: decode catalog: %v", ErrUnavailable, err)
		}
		out = append(out, page.Repositories...)
		path = nextLink(link)
	}
	return out, nil
}

// nextLink 解析 RFC5988 Link 头里 rel="next" 的路径，没有则返回空串
func nextLink(h string) string {
	for _, part := range strings.Split(h, ",") {
		part = strings.TrimSpace(part)
		if !strings.Contains(part, `rel="next"`) {
			continue
		}
		start := strings.IndexByte(part, '<')
		end := strings.IndexByte(part, '>')
		if start < 0 || end <= start {
			continue
		}
		u, err := url.Parse(part[start+1 : end])
		if err != nil {
			continue
		}
		path := u.Path
		if u.RawQuery != "" {
			path += "?" + u.RawQuery
		}
		return path
	}
	return ""
}

// Tags 列出仓库的全部 tag
func (c *Client) Tags(ctx context.Context, repository string) ([]string, error) {
	resp, err := c.get(ctx, "/v2/"+repository+"/tags/list", "")
	if err != nil {
		return nil, err
	}
	var tl tagList
	if err := decode(resp, &tl); err != nil {
		return nil, fmt.Errorf("%w: decode tags: %v", ErrUnavailable, err)
	}
	return tl.Tags, nil
}

// Manifest 取 v2 manifest，digest 以 Docker-Content-Digest 响应头为准
func (c *Client) Manifest(ctx context.Context, repository, reference string) (*Manifest, string, error) {
	resp, err := c.get(ctx, "/v2/"+repository+"/manifests/"+reference, manifestV2)
	if err != nil {
		return nil, "", err
	}
	digest := resp.Header.Get("Docker-Content-Digest")
	var m Manifest
	if err := decode(resp, &m); err != nil {
		return nil, "", fmt.Errorf("%w: decode manifest: %v", ErrUnavailable, err)
	}
	return &m, digest, nil
}

// ConfigBlob 取镜像配置 blob（架构、环境变量、构建历史等）
func (c *Client) ConfigBlob(ctx context.Context, repository, digest string) (*ImageConfig, error) {
	resp, err := c.get(ctx, "/v2/"+repository+"/blobs/"+digest, "")
	if err != nil {
		return nil, err
	}
	var cfg ImageConfig
	if err := decode(resp, &cfg); err != nil {
		return nil, fmt.Errorf("%w: decode config blob: %v", ErrUnavailable, err)
	}
	return &cfg, nil
}

// DeleteManifest 按 digest 删除 manifest，上游以 202 确认
func (c *Client) DeleteManifest(ctx context.Context, repository, digest string) error {
	resp, err := c.do(ctx, http.MethodDelete, "/v2/"+repository+"/manifests/"+digest, "")
	if err != nil {
		return err
	}
	drain(resp)
	return nil
}

// ImageDetails 把 manifest 和 config blob 拼成镜像详情。
// config blob 拉取失败不致命，平台信息留空。
func (c *Client) ImageDetails(ctx context.Context, repository, tag string) (*ImageDetail, error) {
	m, digest, err := c.Manifest(ctx, repository, tag)
	if err != nil {
		return nil, err
	}

	d := &ImageDetail{
		Repository:   repository,
		Tag:          tag,
		Digest:       digest,
		Size:         m.Config.Size,
		Env:          []string{},
		Labels:       map[string]string{},
		Cmd:          []string{},
		Entrypoint:   []string{},
		ExposedPorts: []string{},
		Volumes:      []string{},
		History:      []HistoryEntry{},
		Layers:       []LayerInfo{},
	}
	if d.Digest == "" {
		d.Digest = m.Config.Digest
	}

	if m.Config.Digest != "" {
		if cfg, err := c.ConfigBlob(ctx, repository, m.Config.Digest); err == nil {
			d.Architecture = cfg.Architecture
			d.OS = cfg.OS
			d.Created = cfg.Created
			if cfg.Config.Env != nil {
				d.Env = cfg.Config.Env
			}
			if cfg.Config.Labels != nil {
				d.Labels = cfg.Config.Labels
			}
			if cfg.Config.Cmd != nil {
				d.Cmd = cfg.Config.Cmd
			}
			if cfg.Config.Entrypoint != nil {
				d.Entrypoint = cfg.Config.Entrypoint
			}
			d.WorkDir = cfg.Config.WorkingDir
			d.User = cfg.Config.User
			d.ExposedPorts = sortedKeys(cfg.Config.ExposedPorts)
			d.Volumes = sortedKeys(cfg.Config.Volumes)
			if cfg.History != nil {
				d.History = cfg.History
			}
		}
	}

	var total int64
	for _, l := range m.Layers {
		total += l.Size
	}
	for _, l := range m.Layers {
		li := LayerInfo{Digest: l.Digest, Size: l.Size, MediaType: l.MediaType}
		if total > 0 {
			li.Percentage = float64(l.Size) / float64(total) * 100
		}
		d.Layers = append(d.Layers, li)
	}
	d.Size += total

	return d, nil
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
