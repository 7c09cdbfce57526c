package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/Webizinnovation/ServiceAppBack/internal/inbox"
	"github.com/Webizinnovation/ServiceAppBack/internal/models"
	"github.com/Webizinnovation/ServiceAppBack/internal/sessions"
	inboxws "github.com/Webizinnovation/ServiceAppBack/internal/websocket"
	"github.com/Webizinnovation/ServiceAppBack/pkg/utils"
	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

type InboxHandler struct {
	registry  *sessions.Registry
	hub       *inboxws.Hub
	jwtSecret string
}

func NewInboxHandler(registry *sessions.Registry, hub *inboxws.Hub, jwtSecret string) *InboxHandler {
	return &InboxHandler{
		registry:  registry,
		hub:       hub,
		jwtSecret: jwtSecret,
	}
}

// List returns the viewer's conversation list. The filter tab is a pure
// view over the cached list; passing it never triggers a fetch.
func (h *InboxHandler) List(c *fiber.Ctx) error {
	ctrl, err := h.session(c)
	if err != nil {
		return mapInboxError(c, err)
	}

	if filter := inbox.Filter(c.Query("filter")); filter != "" {
		if !filter.Valid() {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid filter"})
		}
		ctrl.SetFilter(filter)
	}

	if err := ctrl.WaitFirstPass(c.Context()); err != nil {
		return c.Status(fiber.StatusGatewayTimeout).JSON(fiber.Map{"error": "Inbox not ready"})
	}

	return c.JSON(ctrl.Snapshot())
}

// Refresh is the manual pull-to-refresh trigger.
func (h *InboxHandler) Refresh(c *fiber.Ctx) error {
	ctrl, err := h.session(c)
	if err != nil {
		return mapInboxError(c, err)
	}

	ctrl.Refresh()
	return c.Status(fiber.StatusAccepted).JSON(ctrl.Snapshot())
}

// SelectRoom marks the room's unread counterpart messages read and
// returns the row the client navigates into. Navigation is never
// blocked on read-marking trouble; read_marked reports whether the
// batch fully succeeded.
func (h *InboxHandler) SelectRoom(c *fiber.Ctx) error {
	ctrl, err := h.session(c)
	if err != nil {
		return mapInboxError(c, err)
	}

	roomID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || roomID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid room id"})
	}

	view, receipt, err := ctrl.SelectRoom(c.Context(), roomID)
	if err != nil && errors.Is(err, inbox.ErrRoomNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Room not found"})
	}

	return c.JSON(fiber.Map{
		"room":        view,
		"receipt":     receipt,
		"read_marked": err == nil,
	})
}

// Badge serves the composed cross-role unread indicator.
func (h *InboxHandler) Badge(c *fiber.Ctx) error {
	viewerID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	return c.JSON(fiber.Map{"badge": h.registry.Badge(viewerID)})
}

func (h *InboxHandler) WebSocketAuth(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return c.Status(fiber.StatusUpgradeRequired).JSON(fiber.Map{"error": "WebSocket upgrade required"})
	}

	claims, err := h.parseWSClaims(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid or expired token"})
	}

	c.Locals("user_id", claims.UserID)
	c.Locals("role", claims.Role)
	return c.Next()
}

func (h *InboxHandler) HandleWebSocket(conn *websocket.Conn) {
	userID, _ := conn.Locals("user_id").(string)
	role, _ := conn.Locals("role").(string)

	// Make sure the viewer's session is live so feed frames flow to
	// this socket.
	if viewerID, err := strconv.ParseInt(userID, 10, 64); err == nil {
		if r := models.Role(role); r.Valid() {
			_, _ = h.registry.Controller(context.Background(), viewerID, r)
		}
	}

	client := inboxws.NewClient(h.hub, conn, userID)
	h.hub.Register(client)
	go client.WritePump()
	client.ReadPump()
}

func (h *InboxHandler) session(c *fiber.Ctx) (*inbox.Controller, error) {
	role, ok := actorRole(c)
	if !ok {
		return nil, errForbidden
	}

	viewerID, err := parseActorID(c)
	if err != nil {
		return nil, errUnauthorized
	}

	return h.registry.Controller(c.Context(), viewerID, role)
}

func (h *InboxHandler) parseWSClaims(c *fiber.Ctx) (*utils.Claims, error) {
	tokenString := strings.TrimSpace(c.Query("token"))
	if tokenString == "" {
		authHeader := strings.TrimSpace(c.Get("Authorization"))
		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) == 2 && parts[0] == "Bearer" {
				tokenString = parts[1]
			}
		}
	}

	if tokenString == "" {
		return nil, errors.New("missing token")
	}

	return utils.ValidateToken(tokenString, h.jwtSecret)
}

var (
	errForbidden    = errors.New("forbidden")
	errUnauthorized = errors.New("unauthorized")
)

func mapInboxError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, errForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	case errors.Is(err, errUnauthorized):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	case errors.Is(err, inbox.ErrClosed):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Inbox unavailable"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process inbox request"})
	}
}
