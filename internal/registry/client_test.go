package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(url string) *Client {
	return New(url, "svc", "secret", 5*time.Second)
}

func TestCatalog_FollowsPagination(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if u, p, ok := r.BasicAuth(); !ok || u != "svc" || p != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Query().Get("last") {
		case "":
			w.Header().Set("Link", fmt.Sprintf(`</v2/_catalog?last=bravo&n=%d>; rel="next"`, catalogPageSize))
			_ = json.NewEncoder(w).Encode(catalogPage{Repositories: []string{"alpha", "bravo"}})
		case "bravo":
			_ = json.NewEncoder(w).Encode(catalogPage{Repositories: []string{"charlie"}})
		default:
			t.Errorf("unexpected last=%q", r.URL.Query().Get("last"))
		}
	}))
	defer srv.Close()

	got, err := newTestClient(srv.URL).Catalog(context.Background())
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	want := []string{"alpha", "bravo", "charlie"}
	if len(got) != len(want) {
		t.Fatalf("catalog = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("catalog = %v, want %v", got, want)
		}
	}
}

func TestTags_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Tags(context.Background(), "missing/repo")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestTags_UpstreamAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Tags(context.Background(), "nginx")
	if !errors.Is(err, ErrUpstreamAuth) {
		t.Fatalf("err = %v, want ErrUpstreamAuth", err)
	}
}

func TestTags_Unavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // 连接被拒

	_, err := newTestClient(srv.URL).Tags(context.Background(), "nginx")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}

func TestImageDetails_ComposesManifestAndConfig(t *testing.T) {
	const configDigest = "sha256:cfg"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v2/library/nginx/manifests/1.25":
			if got := r.Header.Get("Accept"); got != manifestV2 {
				t.Errorf("accept = %q", got)
			}
			w.Header().Set("Docker-Content-Digest", "sha256:manifest")
			_ = json.NewEncoder(w).Encode(Manifest{
				SchemaVersion: 2,
				MediaType:     manifestV2,
				Config:        Descriptor{Digest: configDigest, Size: 100},
				Layers: []Descriptor{
					{Digest: "sha256:l1", Size: 300, MediaType: "application/vnd.docker.image.rootfs.diff.tar.gzip"},
					{Digest: "sha256:l2", Size: 100, MediaType: "application/vnd.docker.image.rootfs.diff.tar.gzip"},
				},
			})
		case "/v2/library/nginx/blobs/" + configDigest:
			_ = json.NewEncoder(w).Encode(ImageConfig{
				Architecture: "amd64",
				OS:           "linux",
				Created:      "2024-01-01T00:00:00Z",
				Config: ContainerConfig{
					Env:          []string{"PATH=/usr/bin"},
					ExposedPorts: map[string]struct{}{"80/tcp": {}},
				},
				History: []HistoryEntry{{CreatedBy: "RUN apk add nginx"}},
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	d, err := newTestClient(srv.URL).ImageDetails(context.Background(), "library/nginx", "1.25")
	if err != nil {
		t.Fatalf("details: %v", err)
	}
	if d.Digest != "sha256:manifest" {
		t.Fatalf("digest = %q, want header digest", d.Digest)
	}
	if d.Size != 500 { // config 100 + layers 400
		t.Fatalf("size = %d, want 500", d.Size)
	}
	if d.Architecture != "amd64" || d.OS != "linux" {
		t.Fatalf("platform = %s/%s", d.OS, d.Architecture)
	}
	if len(d.Layers) != 2 || d.Layers[0].Percentage != 75 || d.Layers[1].Percentage != 25 {
		t.Fatalf("layers = %+v", d.Layers)
	}
	if len(d.ExposedPorts) != 1 || d.ExposedPorts[0] != "80/tcp" {
		t.Fatalf("ports = %v", d.ExposedPorts)
	}
	if len(d.History) != 1 {
		t.Fatalf("history = %+v", d.History)
	}
}

func TestImageDetails_ConfigBlobFailureNotFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v2/app/manifests/latest":
			_ = json.NewEncoder(w).Encode(Manifest{
				SchemaVersion: 2,
				Config:        Descriptor{Digest: "sha256:cfg", Size: 10},
				Layers:        []Descriptor{{Digest: "sha256:l1", Size: 90}},
			})
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	d, err := newTestClient(srv.URL).ImageDetails(context.Background(), "app", "latest")
	if err != nil {
		t.Fatalf("details: %v", err)
	}
	// header 缺失时退回 config digest
	if d.Digest != "sha256:cfg" {
		t.Fatalf("digest = %q", d.Digest)
	}
	if d.Architecture != "" || len(d.Layers) != 1 {
		t.Fatalf("detail = %+v", d)
	}
}

func TestDeleteManifest(t *testing.T) {
	var gotMethod, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	if err := newTestClient(srv.URL).DeleteManifest(context.Background(), "app", "sha256:x"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if gotMethod != http.MethodDelete || gotPath != "/v2/app/manifests/sha256:x" {
		t.Fatalf("upstream saw %s %s", gotMethod, gotPath)
	}
}

func TestNextLink(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{`</v2/_catalog?last=foo&n=100>; rel="next"`, "/v2/_catalog?last=foo&n=100"},
		{`<https://reg.example/v2/_catalog?last=foo>; rel="next"`, "/v2/_catalog?last=foo"},
		{`</v2/_catalog?n=100>; rel="prev"`, ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := nextLink(tt.header); got != tt.want {
			t.Fatalf("nextLink(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}
