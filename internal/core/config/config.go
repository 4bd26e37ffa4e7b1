package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

type HTTP struct {
	Host            string
	Port            int
	ReadTimeoutSec  int
	WriteTimeoutSec int
	IdleTimeoutSec  int
}

type App struct {
	Name string
	Env  string // dev / prod
	HTTP HTTP
}

type Log struct {
	Level    string
	JSON     bool
	File     string // 为空则只写 stdout
	MaxSize  int    // MB
	MaxAge   int    // 天
	Backups  int
	Compress bool
}

type JWT struct {
	Secret            string
	Issuer            string
	AccessTokenTTLMin int
}

type DB struct {
	Driver             string
	DSN                string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeMin int
	AutoMigrate        bool
	LogLevel           string
}

// Registry 上游 Docker Registry v2，服务级凭证
type Registry struct {
	URL        string
	Username   string
	Password   string
	TimeoutSec int
	// 以下是 docker 客户端入口（令牌认证 + /v2 代理）的参数
	Service         string // 令牌 audience，需与 registry 的 auth.token.service 一致
	TokenTTLMin     int
	ProxyTimeoutSec int // blob 上传走这个超时，远大于 API 超时
}

// Redis 登录防爆破计数器，Addr 为空则关闭
type Redis struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Bootstrap 种子管理员，该账户不可删除
type Bootstrap struct {
	AdminUsername string
	AdminPassword string
}

type Config struct {
	App       App
	Log       Log
	JWT       JWT
	DB        DB
	Registry  Registry
	Redis     Redis `mapstructure:"redis"`
	Bootstrap Bootstrap
}

func Load(path string) *Config {
	v := viper.New()
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
		if path == "" {
			path = "./configs/config.local.yaml"
		}
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("APP")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "registry-console")
	v.SetDefault("app.env", "dev")
	v.SetDefault("app.http.host", "0.0.0.0")
	v.SetDefault("app.http.port", 8000)
	v.SetDefault("app.http.readtimeoutsec", 15)
	v.SetDefault("app.http.writetimeoutsec", 30)
	v.SetDefault("app.http.idletimeoutsec", 60)
	v.SetDefault("jwt.issuer", "registry-console")
	v.SetDefault("jwt.accesstokenttlmin", 60*24)
	v.SetDefault("db.automigrate", true)
	v.SetDefault("registry.url", "http://127.0.0.1:5000")
	v.SetDefault("registry.timeoutsec", 30)
	v.SetDefault("registry.service", "Docker Registry")
	v.SetDefault("registry.tokenttlmin", 30)
	v.SetDefault("registry.proxytimeoutsec", 300)
	v.SetDefault("bootstrap.adminusername", "admin")
	v.SetDefault("bootstrap.adminpassword", "admin123")

	if err := v.ReadInConfig(); err != nil {
		log.Fatalf("read config: %v", err)
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		log.Fatalf("unmarshal config: %v", err)
	}
	if c.JWT.Secret == "" {
		log.Fatal("jwt.secret is required")
	}
	return &c
}
