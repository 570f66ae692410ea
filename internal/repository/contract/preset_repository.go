package contract

import (
	"context"

	"research-chat-be/internal/entity"
	"research-chat-be/internal/repository/specification"

	"github.com/google/uuid"
)

type PresetRepository interface {
	Create(ctx context.Context, preset *entity.Preset) error
	Update(ctx context.Context, preset *entity.Preset) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Preset, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Preset, error)
}

type WebsiteSettingsRepository interface {
	// Create returns ErrUniqueViolation when the (environment, route) pair already exists.
	Create(ctx context.Context, settings *entity.WebsiteSettings) error
	Update(ctx context.Context, settings *entity.WebsiteSettings) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.WebsiteSettings, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.WebsiteSettings, error)
}
