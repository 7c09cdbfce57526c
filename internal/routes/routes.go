package routes

import (
	"github.com/Webizinnovation/ServiceAppBack/internal/config"
	"github.com/Webizinnovation/ServiceAppBack/internal/handlers"
	"github.com/Webizinnovation/ServiceAppBack/internal/middleware"
	"github.com/Webizinnovation/ServiceAppBack/internal/notify"
	"github.com/Webizinnovation/ServiceAppBack/internal/repository"
	"github.com/Webizinnovation/ServiceAppBack/internal/services"
	"github.com/Webizinnovation/ServiceAppBack/internal/sessions"
	inboxws "github.com/Webizinnovation/ServiceAppBack/internal/websocket"
	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Deps are the process-wide collaborators main constructs once.
type Deps struct {
	Config *config.Config
	DB     *pgxpool.Pool
	Bus    notify.Bus
	Logger *zap.Logger
}

// RegisterRoutes wires repositories, the inbox session registry, the
// feed hub and every HTTP/WS endpoint. It returns the registry so main
// can tear down live sessions on shutdown.
func RegisterRoutes(app *fiber.App, deps Deps) *sessions.Registry {
	userRepo := repository.NewUserRepository(deps.DB)
	roomRepo := repository.NewRoomRepository(deps.DB)
	messageRepo := repository.NewMessageRepository(deps.DB)
	inboxStore := repository.NewInboxStore(deps.DB)

	hub := inboxws.NewHub(userRepo, deps.Logger.Named("hub"))
	go hub.Run()

	registry := sessions.NewRegistry(
		inboxStore,
		deps.Bus,
		hub,
		deps.Logger.Named("inbox"),
		deps.Config.FetchTimeout,
	)

	roomService := services.NewRoomService(
		deps.DB,
		roomRepo,
		messageRepo,
		userRepo,
		deps.Bus,
		deps.Logger.Named("rooms"),
	)

	authHandler := handlers.NewAuthHandler(userRepo, registry, deps.Config.JWTSecret)
	roomHandler := handlers.NewRoomHandler(roomService)
	inboxHandler := handlers.NewInboxHandler(registry, hub, deps.Config.JWTSecret)

	api := app.Group("/api")

	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Get("/me", middleware.AuthRequired(deps.Config.JWTSecret), authHandler.Me)
	auth.Post("/logout", middleware.AuthRequired(deps.Config.JWTSecret), authHandler.Logout)

	authProtected := api.Group("/v1", middleware.AuthRequired(deps.Config.JWTSecret))

	rooms := authProtected.Group("/rooms")
	rooms.Post("", roomHandler.CreateRoom)
	rooms.Get("/:id/messages", roomHandler.GetMessages)
	rooms.Post("/:id/messages", roomHandler.SendMessage)

	inboxGroup := authProtected.Group("/inbox")
	inboxGroup.Get("", inboxHandler.List)
	inboxGroup.Post("/refresh", inboxHandler.Refresh)
	inboxGroup.Post("/rooms/:id/select", inboxHandler.SelectRoom)
	inboxGroup.Get("/badge", inboxHandler.Badge)

	api.Use("/v1/ws", inboxHandler.WebSocketAuth)
	api.Get("/v1/ws", websocket.New(inboxHandler.HandleWebSocket))

	return registry
}
