package controller

import (
	"strings"

	"research-chat-be/internal/dto"
	"research-chat-be/internal/pkg/serverutils"
	"research-chat-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IContextController interface {
	RegisterRoutes(r fiber.Router)
	Add(ctx *fiber.Ctx) error
	Remove(ctx *fiber.Ctx) error
	List(ctx *fiber.Ctx) error
	Details(ctx *fiber.Ctx) error
	Search(ctx *fiber.Ctx) error
}

type contextController struct {
	service service.IContextService
	auth    fiber.Handler
}

func NewContextController(service service.IContextService, auth fiber.Handler) IContextController {
	return &contextController{service: service, auth: auth}
}

func (c *contextController) RegisterRoutes(r fiber.Router) {
	conv := r.Group("/chat/conversations/:id/contexts")
	conv.Use(c.auth)
	conv.Post("", c.Add)
	conv.Get("", c.List)
	conv.Delete(":contextId", c.Remove)

	h := r.Group("/chat/contexts")
	h.Use(c.auth)
	h.Get("details", c.Details)
	h.Get("search", c.Search)
}

func (c *contextController) Add(ctx *fiber.Ctx) error {
	userId, err := serverutils.UserId(ctx)
	if err != nil {
		return err
	}
	conversationId, err := serverutils.ParamUUID(ctx, "id")
	if err != nil {
		return err
	}

	var req dto.AddContextRequest
	if err := ctx.BodyParser(&req); err != nil {
		return serverutils.BadRequest("invalid request body")
	}
	req.ConversationId = conversationId
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Add(ctx.UserContext(), userId, &req)
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusCreated).JSON(serverutils.CreatedResponse("Success add context", res))
}

func (c *contextController) Remove(ctx *fiber.Ctx) error {
	userId, err := serverutils.UserId(ctx)
	if err != nil {
		return err
	}
	conversationId, err := serverutils.ParamUUID(ctx, "id")
	if err != nil {
		return err
	}
	contextId, err := serverutils.ParamUUID(ctx, "contextId")
	if err != nil {
		return err
	}

	if err := c.service.Remove(ctx.UserContext(), userId, conversationId, contextId); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Success remove context", nil))
}

func (c *contextController) List(ctx *fiber.Ctx) error {
	userId, err := serverutils.UserId(ctx)
	if err != nil {
		return err
	}
	conversationId, err := serverutils.ParamUUID(ctx, "id")
	if err != nil {
		return err
	}

	res, err := c.service.List(ctx.UserContext(), userId, conversationId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get contexts", res))
}

func (c *contextController) Details(ctx *fiber.Ctx) error {
	userId, err := serverutils.UserId(ctx)
	if err != nil {
		return err
	}

	var req dto.ContextDetailsRequest
	if err := ctx.QueryParser(&req); err != nil {
		return serverutils.BadRequest("invalid query: %v", err)
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Details(ctx.UserContext(), userId, &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get context details", res))
}

func (c *contextController) Search(ctx *fiber.Ctx) error {
	userId, err := serverutils.UserId(ctx)
	if err != nil {
		return err
	}

	req := dto.ContextSearchRequest{
		Query: ctx.Query("q"),
		Page:  ctx.QueryInt("page", 1),
		Limit: ctx.QueryInt("limit", 20),
	}
	if types := ctx.Query("types"); types != "" {
		for _, t := range strings.Split(types, ",") {
			if t = strings.TrimSpace(t); t != "" {
				req.Types = append(req.Types, t)
			}
		}
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Search(ctx.UserContext(), userId, &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success search contexts", res))
}
