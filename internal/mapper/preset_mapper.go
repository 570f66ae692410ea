package mapper

import (
	"time"

	"research-chat-be/internal/entity"
	"research-chat-be/internal/model"
)

type PresetMapper struct{}

func NewPresetMapper() *PresetMapper {
	return &PresetMapper{}
}

func (m *PresetMapper) PresetToEntity(p *model.Preset) *entity.Preset {
	if p == nil {
		return nil
	}
	return &entity.Preset{
		Id:              p.Id,
		Name:            p.Name,
		PrimaryColor:    p.PrimaryColor,
		SecondaryColor:  p.SecondaryColor,
		AccentColor:     p.AccentColor,
		BackgroundColor: p.BackgroundColor,
		ForegroundColor: p.ForegroundColor,
		Theme:           p.Theme,
		HeadingFont:     p.HeadingFont,
		BodyFont:        p.BodyFont,
		BorderRadius:    p.BorderRadius,
		IsFavorite:      p.IsFavorite,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       optionalTime(p.UpdatedAt),
	}
}

func (m *PresetMapper) PresetToModel(p *entity.Preset) *model.Preset {
	if p == nil {
		return nil
	}
	var updatedAt time.Time
	if p.UpdatedAt != nil {
		updatedAt = *p.UpdatedAt
	}
	return &model.Preset{
		Id:              p.Id,
		Name:            p.Name,
		PrimaryColor:    p.PrimaryColor,
		SecondaryColor:  p.SecondaryColor,
		AccentColor:     p.AccentColor,
		BackgroundColor: p.BackgroundColor,
		ForegroundColor: p.ForegroundColor,
		Theme:           p.Theme,
		HeadingFont:     p.HeadingFont,
		BodyFont:        p.BodyFont,
		BorderRadius:    p.BorderRadius,
		IsFavorite:      p.IsFavorite,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       updatedAt,
	}
}

func (m *PresetMapper) SettingsToEntity(s *model.WebsiteSettings) *entity.WebsiteSettings {
	if s == nil {
		return nil
	}
	out := &entity.WebsiteSettings{
		Id:          s.Id,
		Environment: s.Environment,
		Route:       s.Route,
		PresetId:    s.PresetId,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   optionalTime(s.UpdatedAt),
	}
	// Preset is only populated when the query preloaded it
	if s.Preset.Id == s.PresetId && !s.Preset.CreatedAt.IsZero() {
		out.Preset = m.PresetToEntity(&s.Preset)
	}
	return out
}

func (m *PresetMapper) SettingsToModel(s *entity.WebsiteSettings) *model.WebsiteSettings {
	if s == nil {
		return nil
	}
	var updatedAt time.Time
	if s.UpdatedAt != nil {
		updatedAt = *s.UpdatedAt
	}
	return &model.WebsiteSettings{
		Id:          s.Id,
		Environment: s.Environment,
		Route:       s.Route,
		PresetId:    s.PresetId,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   updatedAt,
	}
}
