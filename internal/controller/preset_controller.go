package controller

import (
	"research-chat-be/internal/dto"
	"research-chat-be/internal/pkg/serverutils"
	"research-chat-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IPresetController interface {
	RegisterRoutes(r fiber.Router)
	List(ctx *fiber.Ctx) error
	Show(ctx *fiber.Ctx) error
	Create(ctx *fiber.Ctx) error
	Update(ctx *fiber.Ctx) error
	Delete(ctx *fiber.Ctx) error
	ToggleFavorite(ctx *fiber.Ctx) error
	Generate(ctx *fiber.Ctx) error
	SuggestName(ctx *fiber.Ctx) error
	GetSettings(ctx *fiber.Ctx) error
	Apply(ctx *fiber.Ctx) error
}

type presetController struct {
	service service.IPresetService
	auth    fiber.Handler
}

func NewPresetController(service service.IPresetService, auth fiber.Handler) IPresetController {
	return &presetController{service: service, auth: auth}
}

// RegisterRoutes attaches auth per route: /admin/presets/ws shares the prefix
// but authenticates with a query token during the handshake.
func (c *presetController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/admin")
	h.Get("presets", c.auth, c.List)
	h.Post("presets", c.auth, c.Create)
	h.Post("presets/generate", c.auth, c.Generate)
	h.Post("presets/name", c.auth, c.SuggestName)
	h.Get("presets/:id<guid>", c.auth, c.Show)
	h.Patch("presets/:id<guid>", c.auth, c.Update)
	h.Delete("presets/:id<guid>", c.auth, c.Delete)
	h.Post("presets/:id<guid>/favorite", c.auth, c.ToggleFavorite)

	h.Get("website-settings", c.auth, c.GetSettings)
	h.Post("website-settings/apply", c.auth, c.Apply)
}

func (c *presetController) List(ctx *fiber.Ctx) error {
	res, err := c.service.List(ctx.UserContext())
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get presets", res))
}

func (c *presetController) Show(ctx *fiber.Ctx) error {
	id, err := serverutils.ParamUUID(ctx, "id")
	if err != nil {
		return err
	}

	res, err := c.service.Show(ctx.UserContext(), id)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success show preset", res))
}

func (c *presetController) Create(ctx *fiber.Ctx) error {
	var req dto.CreatePresetRequest
	if err := ctx.BodyParser(&req); err != nil {
		return serverutils.BadRequest("invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Create(ctx.UserContext(), &req)
	if err != nil {
		return err
	}
	return ctx.Status(fiber.StatusCreated).JSON(serverutils.CreatedResponse("Success create preset", res))
}

func (c *presetController) Update(ctx *fiber.Ctx) error {
	id, err := serverutils.ParamUUID(ctx, "id")
	if err != nil {
		return err
	}

	var req dto.UpdatePresetRequest
	if err := ctx.BodyParser(&req); err != nil {
		return serverutils.BadRequest("invalid request body")
	}
	req.Id = id
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Update(ctx.UserContext(), &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success update preset", res))
}

func (c *presetController) Delete(ctx *fiber.Ctx) error {
	id, err := serverutils.ParamUUID(ctx, "id")
	if err != nil {
		return err
	}

	if err := c.service.Delete(ctx.UserContext(), id); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse[any]("Success delete preset", nil))
}

func (c *presetController) ToggleFavorite(ctx *fiber.Ctx) error {
	id, err := serverutils.ParamUUID(ctx, "id")
	if err != nil {
		return err
	}

	res, err := c.service.ToggleFavorite(ctx.UserContext(), id)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success toggle favorite", res))
}

func (c *presetController) Generate(ctx *fiber.Ctx) error {
	var req dto.GeneratePresetRequest
	if err := ctx.BodyParser(&req); err != nil {
		return serverutils.BadRequest("invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Generate(ctx.UserContext(), &req)
	if err != nil {
		return err
	}
	return ctx.Status(fiber.StatusCreated).JSON(serverutils.CreatedResponse("Success generate preset", res))
}

func (c *presetController) SuggestName(ctx *fiber.Ctx) error {
	var req dto.NamePresetRequest
	if err := ctx.BodyParser(&req); err != nil {
		return serverutils.BadRequest("invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.SuggestName(ctx.UserContext(), &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success name preset", res))
}

func (c *presetController) GetSettings(ctx *fiber.Ctx) error {
	var query dto.WebsiteSettingsQuery
	if err := ctx.QueryParser(&query); err != nil {
		return serverutils.BadRequest("invalid query: %v", err)
	}
	if err := serverutils.ValidateRequest(query); err != nil {
		return err
	}

	res, err := c.service.GetSettings(ctx.UserContext(), &query)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get website settings", res))
}

func (c *presetController) Apply(ctx *fiber.Ctx) error {
	var req dto.ApplyPresetRequest
	if err := ctx.BodyParser(&req); err != nil {
		return serverutils.BadRequest("invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Apply(ctx.UserContext(), &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success apply preset", res))
}
