package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"
)

func BootstrapConsumer(ctx context.Context, cfg *ConsumerConfig, logger *zap.Logger) *Consumer {
	for _, topic := range cfg.Topics {
		_ = EnsureTopic(ctx, cfg.Brokers, TopicSpec{
			Name:              topic, // todo partitions/replication from config
			NumPartitions:     1,
			ReplicationFactor: 1,
			MaxWait:           5 * time.Second,
		}, logger)
	}

	return NewConsumer(cfg)
}
