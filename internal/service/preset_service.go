package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"research-chat-be/internal/constant"
	"research-chat-be/internal/dto"
	"research-chat-be/internal/entity"
	"research-chat-be/internal/pkg/logger"
	"research-chat-be/internal/pkg/serverutils"
	"research-chat-be/internal/repository/contract"
	"research-chat-be/internal/repository/specification"
	"research-chat-be/internal/repository/unitofwork"
	"research-chat-be/pkg/llm"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const maxPresetNameLength = 40

type IPresetService interface {
	List(ctx context.Context) ([]*dto.PresetResponse, error)
	Show(ctx context.Context, id uuid.UUID) (*dto.PresetResponse, error)
	Create(ctx context.Context, req *dto.CreatePresetRequest) (*dto.PresetResponse, error)
	Update(ctx context.Context, req *dto.UpdatePresetRequest) (*dto.PresetResponse, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ToggleFavorite(ctx context.Context, id uuid.UUID) (*dto.PresetResponse, error)
	GetSettings(ctx context.Context, query *dto.WebsiteSettingsQuery) (*dto.WebsiteSettingsResponse, error)
	Apply(ctx context.Context, req *dto.ApplyPresetRequest) (*dto.WebsiteSettingsResponse, error)
	Generate(ctx context.Context, req *dto.GeneratePresetRequest) (*dto.PresetResponse, error)
	SuggestName(ctx context.Context, req *dto.NamePresetRequest) (*dto.NamePresetResponse, error)
}

type presetService struct {
	uowFactory  unitofwork.RepositoryFactory
	llmProvider llm.LLMProvider
	notifier    PresetNotifier
	logger      logger.ILogger
}

func NewPresetService(
	uowFactory unitofwork.RepositoryFactory,
	llmProvider llm.LLMProvider,
	notifier PresetNotifier,
	logger logger.ILogger,
) IPresetService {
	return &presetService{
		uowFactory:  uowFactory,
		llmProvider: llmProvider,
		notifier:    notifier,
		logger:      logger,
	}
}

func (s *presetService) List(ctx context.Context) ([]*dto.PresetResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	presets, err := uow.PresetRepository().FindAll(ctx, specification.FavoritesFirst{})
	if err != nil {
		return nil, err
	}

	result := make([]*dto.PresetResponse, 0, len(presets))
	for _, p := range presets {
		result = append(result, presetToResponse(p))
	}
	return result, nil
}

func (s *presetService) Show(ctx context.Context, id uuid.UUID) (*dto.PresetResponse, error) {
	preset, err := s.find(ctx, s.uowFactory.NewUnitOfWork(ctx), id)
	if err != nil {
		return nil, err
	}
	return presetToResponse(preset), nil
}

func (s *presetService) Create(ctx context.Context, req *dto.CreatePresetRequest) (*dto.PresetResponse, error) {
	theme := req.Theme
	if theme == "" {
		theme = constant.ThemeSystem
	}

	preset := &entity.Preset{
		Id:              uuid.New(),
		Name:            strings.TrimSpace(req.Name),
		PrimaryColor:    strings.ToLower(req.PrimaryColor),
		SecondaryColor:  strings.ToLower(req.SecondaryColor),
		AccentColor:     strings.ToLower(req.AccentColor),
		BackgroundColor: strings.ToLower(req.BackgroundColor),
		ForegroundColor: strings.ToLower(req.ForegroundColor),
		Theme:           theme,
		HeadingFont:     req.HeadingFont,
		BodyFont:        req.BodyFont,
		BorderRadius:    req.BorderRadius,
		IsFavorite:      req.IsFavorite,
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.PresetRepository().Create(ctx, preset); err != nil {
		return nil, err
	}

	res := presetToResponse(preset)
	s.notify(ctx, constant.PresetEventInsert, res)
	return res, nil
}

func (s *presetService) Update(ctx context.Context, req *dto.UpdatePresetRequest) (*dto.PresetResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	preset, err := s.find(ctx, uow, req.Id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		preset.Name = strings.TrimSpace(*req.Name)
	}
	setColor(&preset.PrimaryColor, req.PrimaryColor)
	setColor(&preset.SecondaryColor, req.SecondaryColor)
	setColor(&preset.AccentColor, req.AccentColor)
	setColor(&preset.BackgroundColor, req.BackgroundColor)
	setColor(&preset.ForegroundColor, req.ForegroundColor)
	if req.Theme != nil {
		preset.Theme = *req.Theme
	}
	if req.HeadingFont != nil {
		preset.HeadingFont = *req.HeadingFont
	}
	if req.BodyFont != nil {
		preset.BodyFont = *req.BodyFont
	}
	if req.BorderRadius != nil {
		preset.BorderRadius = *req.BorderRadius
	}

	if err := uow.PresetRepository().Update(ctx, preset); err != nil {
		return nil, err
	}

	res := presetToResponse(preset)
	s.notify(ctx, constant.PresetEventUpdate, res)
	return res, nil
}

func (s *presetService) Delete(ctx context.Context, id uuid.UUID) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if _, err := s.find(ctx, uow, id); err != nil {
		return err
	}

	bindings, err := uow.WebsiteSettingsRepository().FindAll(ctx, specification.Filter("preset_id", id))
	if err != nil {
		return err
	}
	if len(bindings) > 0 {
		return serverutils.NewAppError(fiber.StatusConflict, fmt.Sprintf("preset is active on %s %s", bindings[0].Environment, bindings[0].Route))
	}

	if err := uow.PresetRepository().Delete(ctx, id); err != nil {
		return err
	}

	s.notifier.NotifyPresetChange(ctx, dto.PresetChangeEvent{Event: constant.PresetEventDelete, PresetId: id})
	return nil
}

func (s *presetService) ToggleFavorite(ctx context.Context, id uuid.UUID) (*dto.PresetResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	preset, err := s.find(ctx, uow, id)
	if err != nil {
		return nil, err
	}

	preset.IsFavorite = !preset.IsFavorite
	if err := uow.PresetRepository().Update(ctx, preset); err != nil {
		return nil, err
	}

	res := presetToResponse(preset)
	s.notify(ctx, constant.PresetEventUpdate, res)
	return res, nil
}

func (s *presetService) GetSettings(ctx context.Context, query *dto.WebsiteSettingsQuery) (*dto.WebsiteSettingsResponse, error) {
	route := query.Route
	if route == "" {
		route = constant.DefaultRoute
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	settings, err := uow.WebsiteSettingsRepository().FindOne(ctx, specification.ByEnvironmentRoute{Environment: query.Environment, Route: route})
	if err != nil {
		return nil, err
	}
	if settings == nil {
		return nil, serverutils.NotFound("no preset applied to %s %s", query.Environment, route)
	}
	return settingsToResponse(settings), nil
}

// Apply binds a preset to (environment, route). It runs outside a transaction:
// a unique violation aborts a postgres transaction, and the conflict path needs to read afterwards.
func (s *presetService) Apply(ctx context.Context, req *dto.ApplyPresetRequest) (*dto.WebsiteSettingsResponse, error) {
	if req.Environment == constant.EnvironmentProduction && !req.Confirmed {
		return nil, serverutils.NewAppError(fiber.StatusPreconditionFailed, "applying a preset to production must be confirmed")
	}

	route := req.Route
	if route == "" {
		route = constant.DefaultRoute
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	preset, err := s.find(ctx, uow, req.PresetId)
	if err != nil {
		return nil, err
	}

	key := specification.ByEnvironmentRoute{Environment: req.Environment, Route: route}
	settings, err := uow.WebsiteSettingsRepository().FindOne(ctx, key)
	if err != nil {
		return nil, err
	}

	if settings == nil {
		settings = &entity.WebsiteSettings{
			Id:          uuid.New(),
			Environment: req.Environment,
			Route:       route,
			PresetId:    preset.Id,
		}
		err = uow.WebsiteSettingsRepository().Create(ctx, settings)
		if errors.Is(err, contract.ErrUniqueViolation) {
			s.logger.Info("PRESET", "Concurrent apply detected, switching to update", map[string]interface{}{
				"environment": req.Environment,
				"route":       route,
			})
			if settings, err = uow.WebsiteSettingsRepository().FindOne(ctx, key); err != nil {
				return nil, err
			}
			if settings == nil {
				return nil, fmt.Errorf("website settings for %s %s vanished after conflict", req.Environment, route)
			}
			settings.PresetId = preset.Id
			err = uow.WebsiteSettingsRepository().Update(ctx, settings)
		}
		if err != nil {
			return nil, err
		}
	} else {
		settings.PresetId = preset.Id
		if err := uow.WebsiteSettingsRepository().Update(ctx, settings); err != nil {
			return nil, err
		}
	}

	settings.Preset = preset
	s.logger.Info("PRESET", "Preset applied", map[string]interface{}{
		"preset_id":   preset.Id,
		"environment": req.Environment,
		"route":       route,
	})
	return settingsToResponse(settings), nil
}

func (s *presetService) Generate(ctx context.Context, req *dto.GeneratePresetRequest) (*dto.PresetResponse, error) {
	raw, err := s.llmProvider.Generate(ctx,
		fmt.Sprintf(constant.PresetGeneratePromptV1, req.Prompt),
		llm.WithJSONMode(),
		llm.WithTemperature(0.8),
	)
	if err != nil {
		s.logger.Error("PRESET", "Preset generation failed", map[string]interface{}{"error": err.Error()})
		return nil, serverutils.NewAppError(fiber.StatusBadGateway, "preset generation is unavailable right now")
	}

	generated, err := ParseGeneratedPreset(raw)
	if err != nil {
		s.logger.Warn("PRESET", "Model returned an unusable preset", map[string]interface{}{"error": err.Error(), "raw": raw})
		return nil, serverutils.NewAppError(fiber.StatusBadGateway, "the model returned an invalid preset")
	}

	return s.Create(ctx, generated)
}

func (s *presetService) SuggestName(ctx context.Context, req *dto.NamePresetRequest) (*dto.NamePresetResponse, error) {
	theme := req.Theme
	if theme == "" {
		theme = constant.ThemeSystem
	}

	raw, err := s.llmProvider.Generate(ctx,
		fmt.Sprintf(constant.PresetNamePromptV1, req.PrimaryColor, req.SecondaryColor, req.AccentColor, req.BackgroundColor, req.ForegroundColor, theme),
		llm.WithTemperature(0.9),
		llm.WithMaxTokens(16),
	)
	if err != nil {
		s.logger.Error("PRESET", "Preset naming failed", map[string]interface{}{"error": err.Error()})
		return nil, serverutils.NewAppError(fiber.StatusBadGateway, "preset naming is unavailable right now")
	}

	name := CleanPresetName(raw)
	if name == "" {
		return nil, serverutils.NewAppError(fiber.StatusBadGateway, "the model returned an empty name")
	}
	return &dto.NamePresetResponse{Name: name}, nil
}

func (s *presetService) find(ctx context.Context, uow unitofwork.UnitOfWork, id uuid.UUID) (*entity.Preset, error) {
	preset, err := uow.PresetRepository().FindOne(ctx, specification.ByID{ID: id})
	if err != nil {
		return nil, err
	}
	if preset == nil {
		return nil, serverutils.NotFound("preset %s not found", id)
	}
	return preset, nil
}

func (s *presetService) notify(ctx context.Context, event string, preset *dto.PresetResponse) {
	s.notifier.NotifyPresetChange(ctx, dto.PresetChangeEvent{Event: event, PresetId: preset.Id, Preset: preset})
}

// ParseGeneratedPreset pulls the first JSON object out of a model reply and validates it.
func ParseGeneratedPreset(raw string) (*dto.CreatePresetRequest, error) {
	object, ok := firstJSONObject(raw)
	if !ok {
		return nil, fmt.Errorf("no JSON object in reply")
	}

	var req dto.CreatePresetRequest
	if err := json.Unmarshal([]byte(object), &req); err != nil {
		return nil, fmt.Errorf("decode preset: %w", err)
	}
	req.IsFavorite = false
	req.Name = CleanPresetName(req.Name)
	if req.Theme == "" {
		req.Theme = constant.ThemeSystem
	}

	if err := serverutils.ValidateRequest(&req); err != nil {
		return nil, err
	}
	return &req, nil
}

// firstJSONObject scans for the first balanced {...} block, honouring strings and escapes.
func firstJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// CleanPresetName keeps the first line, strips quotes and a "Name:" label, and caps the length.
func CleanPresetName(raw string) string {
	name := strings.TrimSpace(raw)
	if i := strings.IndexByte(name, '\n'); i >= 0 {
		name = strings.TrimSpace(name[:i])
	}
	name = strings.TrimPrefix(name, "Name:")
	name = strings.Trim(name, " \t\"'`*.")
	name = strings.Join(strings.Fields(name), " ")

	if r := []rune(name); len(r) > maxPresetNameLength {
		name = strings.TrimSpace(string(r[:maxPresetNameLength]))
	}
	return name
}

func setColor(dst *string, v *string) {
	if v != nil {
		*dst = strings.ToLower(*v)
	}
}

func presetToResponse(p *entity.Preset) *dto.PresetResponse {
	return &dto.PresetResponse{
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
		UpdatedAt:       p.UpdatedAt,
	}
}

func settingsToResponse(s *entity.WebsiteSettings) *dto.WebsiteSettingsResponse {
	res := &dto.WebsiteSettingsResponse{
		Id:          s.Id,
		Environment: s.Environment,
		Route:       s.Route,
		PresetId:    s.PresetId,
		UpdatedAt:   s.UpdatedAt,
	}
	if s.Preset != nil {
		res.Preset = presetToResponse(s.Preset)
	}
	return res
}
