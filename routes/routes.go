package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/sirupsen/logrus"

	controller "taskflow/controllers"
	"taskflow/middleware"
	"taskflow/services"
	"taskflow/utils"
)

// Options carries what the route table needs beyond the services.
type Options struct {
	Logger         *logrus.Logger
	LoginRateLimit int
	RateStorage    fiber.Storage
}

var requestLog = logger.Config{
	Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
}

func SetupAuthRoutes(app *fiber.App, svc *services.Services, opts Options) {
	authLogger := opts.Logger.WithField("component", "auth")
	authController := controller.NewAuthController(svc.Auth, authLogger)

	auth := app.Group("/api/auth", logger.New(requestLog))

	// Public auth endpoints
	auth.Post("/signup", authController.Register)
	auth.Post("/login", middleware.LoginRateLimiter(opts.LoginRateLimit, opts.RateStorage, authLogger), authController.Login)

	// Protected auth endpoints
	protectedAuth := auth.Group("", middleware.Protected(svc.Auth))
	protectedAuth.Get("/user", authController.Me)
	protectedAuth.Get("/user/:id", authController.GetUser)
	protectedAuth.Put("/user/change-password", authController.ChangePassword)
	protectedAuth.Get("/users", authController.ListUsers)

	authLogger.Info("Authentication routes initialized successfully")
}

func SetupAPIRoutes(app *fiber.App, svc *services.Services, opts Options) {
	teamController := controller.NewTeamController(svc.Teams, opts.Logger.WithField("component", "teams"))
	taskController := controller.NewTaskController(svc.Tasks, opts.Logger.WithField("component", "tasks"))
	commentController := controller.NewCommentController(svc.Comments, opts.Logger.WithField("component", "comments"))

	protected := middleware.Protected(svc.Auth)

	// Team routes
	teams := app.Group("/api/teams", protected, logger.New(requestLog))
	teams.Post("/", teamController.CreateTeam)
	teams.Get("/", teamController.GetMyTeams)
	teams.Get("/invitations", teamController.GetInvitations)
	teams.Get("/:teamId", teamController.GetTeam)
	teams.Post("/:teamId/members", teamController.AddMember)
	teams.Delete("/:teamId/members/:userId", teamController.RemoveMember)
	teams.Post("/:teamId/accept", teamController.AcceptInvitation)
	teams.Post("/:teamId/reject", teamController.RejectInvitation)
	teams.Post("/:teamId/leave", teamController.LeaveTeam)
	teams.Delete("/:teamId", teamController.DeleteTeam)

	// Task routes
	tasks := app.Group("/api/tasks", protected, logger.New(requestLog))
	tasks.Post("/", taskController.CreateTask)
	tasks.Get("/", taskController.GetTasks)

	// Comment routes, registered before /:taskId so "comments" is not read as an id
	tasks.Delete("/comments/:commentId", commentController.DeleteComment)
	tasks.Get("/comments/:commentId/files/:fileId", commentController.DownloadFile)
	tasks.Get("/:taskId/comments", commentController.GetComments)
	tasks.Post("/:taskId/comments", commentController.AddComment)

	tasks.Get("/:taskId", taskController.GetTask)
	tasks.Put("/:taskId", taskController.UpdateTask)
	tasks.Post("/:taskId/close", taskController.CloseTask)
	tasks.Delete("/:taskId", taskController.DeleteTask)
	tasks.Post("/:taskId/files", taskController.AttachFiles)
	tasks.Get("/:taskId/files/:fileId", taskController.DownloadFile)

	opts.Logger.Info("API routes initialized successfully")
}

// SetupRoutes initializes all application routes
func SetupRoutes(app *fiber.App, svc *services.Services, opts Options) {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "running",
			"version": "1.0.0",
		})
	})

	SetupAuthRoutes(app, svc, opts)
	SetupAPIRoutes(app, svc, opts)

	// Handle 404 - Must be the last route
	app.Use(func(c *fiber.Ctx) error {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Endpoint not found", nil)
	})
}
