package sweeper_config

import (
	"time"

	"github.com/NordCoder/Courier/internal/obs"
	pg "github.com/NordCoder/Courier/internal/repository/postgres"
	"github.com/NordCoder/Courier/internal/repository/redisq"
)

type SweepCfg struct {
	Tick        time.Duration `mapstructure:"tick"`
	BatchLimit  int64         `mapstructure:"batch_limit"`
	MetricsAddr string        `mapstructure:"metrics_addr"`
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
	DB       pg.Config     `mapstructure:"db"`
	Redis    redisq.Config `mapstructure:"redis"`
	Sweep    SweepCfg      `mapstructure:"sweep"`
	OTEL     OTEL          `mapstructure:"otel"`
	LogLevel string        `mapstructure:"log_level"`
}
