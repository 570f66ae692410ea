package implementation

import (
	"context"
	"errors"

	"research-chat-be/internal/constant"
	"research-chat-be/internal/entity"
	"research-chat-be/internal/mapper"
	"research-chat-be/internal/model"
	"research-chat-be/internal/repository/contract"
	"research-chat-be/internal/repository/specification"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

type PresetRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.PresetMapper
}

func NewPresetRepository(db *gorm.DB) contract.PresetRepository {
	return &PresetRepositoryImpl{
		db:     db,
		mapper: mapper.NewPresetMapper(),
	}
}

func (r *PresetRepositoryImpl) Create(ctx context.Context, preset *entity.Preset) error {
	m := r.mapper.PresetToModel(preset)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*preset = *r.mapper.PresetToEntity(m)
	return nil
}

func (r *PresetRepositoryImpl) Update(ctx context.Context, preset *entity.Preset) error {
	m := r.mapper.PresetToModel(preset)
	if err := r.db.WithContext(ctx).Save(m).Error; err != nil {
		return err
	}
	*preset = *r.mapper.PresetToEntity(m)
	return nil
}

func (r *PresetRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&model.Preset{}, id).Error
}

func (r *PresetRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Preset, error) {
	var m model.Preset
	query := applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.PresetToEntity(&m), nil
}

func (r *PresetRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Preset, error) {
	var models []*model.Preset
	query := applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	entities := make([]*entity.Preset, len(models))
	for i, m := range models {
		entities[i] = r.mapper.PresetToEntity(m)
	}
	return entities, nil
}

type WebsiteSettingsRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.PresetMapper
}

func NewWebsiteSettingsRepository(db *gorm.DB) contract.WebsiteSettingsRepository {
	return &WebsiteSettingsRepositoryImpl{
		db:     db,
		mapper: mapper.NewPresetMapper(),
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == constant.PgUniqueViolation
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

func (r *WebsiteSettingsRepositoryImpl) Create(ctx context.Context, settings *entity.WebsiteSettings) error {
	m := r.mapper.SettingsToModel(settings)
	if err := r.db.WithContext(ctx).Omit("Preset").Create(m).Error; err != nil {
		if isUniqueViolation(err) {
			return contract.ErrUniqueViolation
		}
		return err
	}
	*settings = *r.mapper.SettingsToEntity(m)
	return nil
}

func (r *WebsiteSettingsRepositoryImpl) Update(ctx context.Context, settings *entity.WebsiteSettings) error {
	m := r.mapper.SettingsToModel(settings)
	if err := r.db.WithContext(ctx).Omit("Preset").Save(m).Error; err != nil {
		return err
	}
	*settings = *r.mapper.SettingsToEntity(m)
	return nil
}

func (r *WebsiteSettingsRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.WebsiteSettings, error) {
	var m model.WebsiteSettings
	query := applySpecifications(r.db.WithContext(ctx).Preload("Preset"), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.SettingsToEntity(&m), nil
}

func (r *WebsiteSettingsRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.WebsiteSettings, error) {
	var models []*model.WebsiteSettings
	query := applySpecifications(r.db.WithContext(ctx).Preload("Preset"), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	entities := make([]*entity.WebsiteSettings, len(models))
	for i, m := range models {
		entities[i] = r.mapper.SettingsToEntity(m)
	}
	return entities, nil
}
