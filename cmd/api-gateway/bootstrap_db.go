package main

import (
	"context"

	config "github.com/NordCoder/Courier/internal/config/api-gateway"
	pg "github.com/NordCoder/Courier/internal/repository/postgres"
)

func initDB(ctx context.Context, cfg *config.Config) (*pg.DB, error) {
	return pg.New(ctx, cfg.DB)
}
