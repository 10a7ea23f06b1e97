package config

import (
	"context"
	"strings"

	"github.com/ceyewan/warden/clog"
)

// Config 配置加载器自身的配置
type Config struct {
	Name      string   `mapstructure:"name"`       // 配置文件名称（不含扩展名），默认 "config"
	Paths     []string `mapstructure:"paths"`      // 搜索路径，默认 [".", "./config"]
	FileType  string   `mapstructure:"file_type"`  // yaml、json 等，默认 yaml
	EnvPrefix string   `mapstructure:"env_prefix"` // 环境变量前缀，默认 "WARDEN"
}

func (c *Config) validate() error {
	if c.Name == "" {
		c.Name = "config"
	}
	if c.Paths == nil {
		c.Paths = []string{".", "./config"}
	}
	if c.FileType == "" {
		c.FileType = "yaml"
	}
	if c.EnvPrefix == "" {
		c.EnvPrefix = "WARDEN"
	}
	c.EnvPrefix = strings.ToUpper(c.EnvPrefix)
	return nil
}

// New 创建配置加载器，需调用 Load 才会读取配置
func New(cfg *Config, opts ...Option) (Loader, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	o := &options{logger: clog.Discard()}
	for _, opt := range opts {
		opt(o)
	}

	return newLoader(cfg, o), nil
}

// MustLoad 创建并加载配置，失败时 panic，仅用于初始化阶段
func MustLoad(cfg *Config, opts ...Option) Loader {
	l, err := New(cfg, opts...)
	if err != nil {
		panic(err)
	}
	if err := l.Load(context.Background()); err != nil {
		panic(err)
	}
	return l
}
