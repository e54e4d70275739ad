package routes

import (
	"github.com/ahmedfarouk/online_academy/handlers"
	"github.com/gofiber/fiber/v2"
)

func AuthRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	api.Post("/auth/register", handlers.RegisterUser)
	api.Post("/auth/login", handlers.LoginUser)
}
