package dispatch_worker_config

import (
	"time"

	"github.com/NordCoder/Courier/internal/obs"
	"github.com/NordCoder/Courier/internal/providers"
	pg "github.com/NordCoder/Courier/internal/repository/postgres"
	"github.com/NordCoder/Courier/internal/repository/redisq"
)

type Worker struct {
	Concurrency  int           `mapstructure:"concurrency"`
	BlockTimeout time.Duration `mapstructure:"block_timeout"`
}

type Server struct {
	MetricsAddr string `mapstructure:"metrics_addr"`
}

type OTEL struct {
	Enable       bool    `mapstructure:"enable"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
}

func (oc *OTEL) AsOTELConfig() *obs.OTELConfig {
	return &obs.OTELConfig{
		Enable:      oc.Enable,
		Endpoint:    oc.OTLPEndpoint,
		ServiceName: oc.ServiceName,
		SampleRatio: oc.SampleRatio,
	}
}

type Config struct {
	DB        pg.Config        `mapstructure:"db"`
	Redis     redisq.Config    `mapstructure:"redis"`
	Worker    Worker           `mapstructure:"worker"`
	Providers providers.Config `mapstructure:"providers"`
	OTEL      OTEL             `mapstructure:"otel"`
	Server    Server           `mapstructure:"server"`
	LogLevel  string           `mapstructure:"log_level"`
}
