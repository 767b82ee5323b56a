package event_subscriber_config

import (
	"github.com/NordCoder/Courier/internal/obs"
	"github.com/NordCoder/Courier/internal/repository/kafka"
	pg "github.com/NordCoder/Courier/internal/repository/postgres"
	"github.com/NordCoder/Courier/internal/repository/redisq"
)

type KafkaIn struct {
	Brokers []string `mapstructure:"brokers"`
	Topics  []string `mapstructure:"topics"`
	GroupID string   `mapstructure:"group_id"`
}

func (k *KafkaIn) AsConsumerConfig() *kafka.ConsumerConfig {
	return &kafka.ConsumerConfig{
		Brokers: k.Brokers,
		Topics:  k.Topics,
		GroupID: k.GroupID,
	}
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
	DB       pg.Config     `mapstructure:"db"`
	Redis    redisq.Config `mapstructure:"redis"`
	In       KafkaIn       `mapstructure:"kafka_in"`
	OTEL     OTEL          `mapstructure:"otel"`
	Server   Server        `mapstructure:"server"`
	LogLevel string        `mapstructure:"log_level"`
}
