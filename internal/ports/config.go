package ports

import (
	"context"

	"horizon-bridge/internal/domain/model"
)

type ConfigRepository interface {
	Load(ctx context.Context) (*model.Config, error)
	Save(ctx context.Context, config *model.Config) error
}
