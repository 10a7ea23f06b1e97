package session

import (
	"github.com/ceyewan/warden/breaker"
	"github.com/ceyewan/warden/cache"
	"github.com/ceyewan/warden/clog"
	"github.com/ceyewan/warden/guard"
	"github.com/ceyewan/warden/httpclient"
	"github.com/ceyewan/warden/metrics"
	"github.com/ceyewan/warden/trace"
)

// Config 会话的完整配置，通常由 config.Loader 反序列化得到
//
//	log:
//	  level: info
//	  format: json
//	metrics:
//	  enabled: true
//	  port: 9090
//	trace:
//	  enabled: false
//	  service_name: warden
//	http:
//	  base_url: "https://api.example.com"
//	  timeout: 10s
//	cache:
//	  dir: "./.cache"
//	  codec: gzip
//	breakers:
//	  default:
//	    failure_threshold: 5
//	    timeout: 60s
//	guard:
//	  default_ttl: 5m
type Config struct {
	Log      clog.Config            `json:"log" yaml:"log" mapstructure:"log"`
	Metrics  metrics.Config         `json:"metrics" yaml:"metrics" mapstructure:"metrics"`
	Trace    trace.Config           `json:"trace" yaml:"trace" mapstructure:"trace"`
	HTTP     httpclient.Config      `json:"http" yaml:"http" mapstructure:"http"`
	Cache    cache.Config           `json:"cache" yaml:"cache" mapstructure:"cache"`
	Breakers breaker.RegistryConfig `json:"breakers" yaml:"breakers" mapstructure:"breakers"`
	Guard    guard.Config           `json:"guard" yaml:"guard" mapstructure:"guard"`
}
