package controller

import (
	"research-chat-be/internal/constant"
	"research-chat-be/internal/pkg/serverutils"
	"research-chat-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type ICatalogController interface {
	RegisterRoutes(r fiber.Router)
}

type catalogController struct {
	service service.ICatalogService
	auth    fiber.Handler
}

func NewCatalogController(service service.ICatalogService, auth fiber.Handler) ICatalogController {
	return &catalogController{service: service, auth: auth}
}

func (c *catalogController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/chat")
	h.Use(c.auth)
	h.Get("documents", c.list(constant.ContextTypeDocument, "Success get documents"))
	h.Get("projects", c.list(constant.ContextTypeProject, "Success get projects"))
	h.Get("knowledge-bases", c.list(constant.ContextTypeKnowledgeBase, "Success get knowledge bases"))
}

func (c *catalogController) list(contextType, message string) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		userId, err := serverutils.UserId(ctx)
		if err != nil {
			return err
		}

		res, err := c.service.List(ctx.UserContext(), userId, contextType)
		if err != nil {
			return err
		}

		return ctx.JSON(serverutils.SuccessResponse(message, res))
	}
}
