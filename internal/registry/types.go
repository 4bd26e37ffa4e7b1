package registry

// Registry v2 的响应形状，只保留本服务用到的字段

type catalogPage struct {
	Repositories []string `json:"repositories"`
}

type tagList struct {
	Name string   `json:"name"`
	Tags []string `json:"tags"`
}

type Descriptor struct {
	MediaType string `json:"mediaType"`
	Size      int64  `json:"size"`
	Digest    string `json:"digest"`
}

type Manifest struct {
	SchemaVersion int          `json:"schemaVersion"`
	MediaType     string       `json:"mediaType"`
	Config        Descriptor   `json:"config"`
	Layers        []Descriptor `json:"layers"`
}

type ContainerConfig struct {
	Env          []string            `json:"Env"`
	Labels       map[string]string   `json:"Labels"`
	Cmd          []string            `json:"Cmd"`
	Entrypoint   []string            `json:"Entrypoint"`
	WorkingDir   string              `json:"WorkingDir"`
	User         string              `json:"User"`
	ExposedPorts map[string]struct{} `json:"ExposedPorts"`
	Volumes      map[string]struct{} `json:"Volumes"`
}

type HistoryEntry struct {
	Created    string `json:"created"`
	CreatedBy  string `json:"created_by"`
	EmptyLayer bool   `json:"empty_layer"`
	Comment    string `json:"comment"`
}

type ImageConfig struct {
	Architecture string          `json:"architecture"`
	OS           string          `json:"os"`
	Created      string          `json:"created"`
	Config       ContainerConfig `json:"config"`
	History      []HistoryEntry  `json:"history"`
}

// LayerInfo 单层摘要，percentage 为该层占全部层体积的百分比
type LayerInfo struct {
	Digest     string  `json:"digest"`
	Size       int64   `json:"size"`
	MediaType  string  `json:"mediaType"`
	Percentage float64 `json:"percentage"`
}

// ImageDetail manifest + config blob 拼出的镜像详情
type ImageDetail struct {
	Repository   string            `json:"repository"`
	Tag          string            `json:"tag"`
	Digest       string            `json:"digest"`
	Size         int64             `json:"size"`
	Architecture string            `json:"architecture"`
	OS           string            `json:"os"`
	Created      string            `json:"created"`
	Env          []string          `json:"env"`
	Labels       map[string]string `json:"labels"`
	Cmd          []string          `json:"cmd"`
	Entrypoint   []string          `json:"entrypoint"`
	WorkDir      string            `json:"workdir"`
	User         string            `json:"user"`
	ExposedPorts []string          `json:"exposed_ports"`
	Volumes      []string          `json:"volumes"`
	History      []HistoryEntry    `json:"history"`
	Layers       []LayerInfo       `json:"layers"`
}
