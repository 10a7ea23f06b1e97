package metrics

// Config 指标系统配置
//
//	metrics:
//	  enabled: true
//	  service_name: "warden"
//	  version: "v0.1.0"
//	  port: 9090
//	  path: "/metrics"
//	  runtime: true
type Config struct {
	// Enabled 为 false 时 New 返回 noop Meter
	Enabled bool `mapstructure:"enabled"`

	// ServiceName 作为 OTel Resource 的 service.name
	ServiceName string `mapstructure:"service_name"`

	// Version 作为 OTel Resource 的 service.version
	Version string `mapstructure:"version"`

	// Port 大于 0 时启动 Prometheus HTTP 服务器
	Port int `mapstructure:"port"`

	// Path 指标暴露路径，默认 "/metrics"
	Path string `mapstructure:"path"`

	// Runtime 是否采集 Go 运行时指标（goroutine、GC、内存）
	Runtime bool `mapstructure:"runtime"`
}

func (c *Config) setDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = "warden"
	}
	if c.Path == "" {
		c.Path = "/metrics"
	}
}
