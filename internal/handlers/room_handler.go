package handlers

import (
	"context"
	"errors"
	"strconv"

	"github.com/Webizinnovation/ServiceAppBack/internal/models"
	"github.com/Webizinnovation/ServiceAppBack/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
)

type roomApplicationService interface {
	CreateRoom(ctx context.Context, actorID int64, role models.Role, providerID int64) (*models.Room, error)
	SendMessage(ctx context.Context, actorID int64, role models.Role, roomID int64, input services.SendMessageInput) (*services.MessageDelivery, error)
	ListMessages(ctx context.Context, actorID int64, role models.Role, roomID int64, page int, limit int) ([]models.Message, int, error)
}

type RoomHandler struct {
	service roomApplicationService
}

type createRoomRequest struct {
	ProviderID int64 `json:"provider_id"`
}

func NewRoomHandler(service roomApplicationService) *RoomHandler {
	return &RoomHandler{service: service}
}

func (h *RoomHandler) CreateRoom(c *fiber.Ctx) error {
	role, ok := actorRole(c)
	if !ok || role != models.RoleUser {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	actorID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req createRoomRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	room, err := h.service.CreateRoom(c.Context(), actorID, role, req.ProviderID)
	if err != nil {
		return mapRoomError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"room": room})
}

func (h *RoomHandler) SendMessage(c *fiber.Ctx) error {
	role, ok := actorRole(c)
	if !ok {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	actorID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	roomID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || roomID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid room id"})
	}

	var input services.SendMessageInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	delivery, err := h.service.SendMessage(c.Context(), actorID, role, roomID, input)
	if err != nil {
		return mapRoomError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": delivery.Message})
}

func (h *RoomHandler) GetMessages(c *fiber.Ctx) error {
	role, ok := actorRole(c)
	if !ok {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	actorID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	roomID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || roomID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid room id"})
	}

	page := parsePositiveInt(c.Query("page"), 1)
	limit := parsePositiveInt(c.Query("limit"), defaultPageLimit)
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	messages, total, err := h.service.ListMessages(c.Context(), actorID, role, roomID, page, limit)
	if err != nil {
		return mapRoomError(c, err)
	}

	return c.JSON(fiber.Map{
		"messages":   messages,
		"pagination": buildPaginationMeta(page, limit, total),
	})
}

func actorRole(c *fiber.Ctx) (models.Role, bool) {
	roleStr, ok := c.Locals("role").(string)
	if !ok {
		return "", false
	}
	role := models.Role(roleStr)
	return role, role.Valid()
}

func parsePositiveInt(value string, fallback int) int {
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func mapRoomError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	case errors.Is(err, services.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
	case errors.Is(err, services.ErrProviderNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Provider not found"})
	case errors.Is(err, pgx.ErrNoRows):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Room not found"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process room request"})
	}
}
