package trace

// Config 链路追踪配置
//
//	trace:
//	  enabled: true
//	  service_name: "warden"
//	  endpoint: "localhost:4317"
//	  sampler: 1.0
//	  batcher: "batch"
//	  insecure: true
type Config struct {
	// Enabled 为 false 时不导出，仅生成 TraceID
	Enabled     bool    `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	ServiceName string  `json:"service_name" yaml:"service_name" mapstructure:"service_name"`
	Endpoint    string  `json:"endpoint" yaml:"endpoint" mapstructure:"endpoint"`
	Sampler     float64 `json:"sampler" yaml:"sampler" mapstructure:"sampler"`
	// Batcher "batch" | "simple"
	Batcher  string `json:"batcher" yaml:"batcher" mapstructure:"batcher"`
	Insecure bool   `json:"insecure" yaml:"insecure" mapstructure:"insecure"`
}

// DefaultConfig 返回默认配置
func DefaultConfig(serviceName string) *Config {
	return &Config{
		ServiceName: serviceName,
		Endpoint:    "localhost:4317",
		Sampler:     1.0,
		Batcher:     "batch",
		Insecure:    true,
	}
}
