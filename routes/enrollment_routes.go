package routes

import (
	"github.com/ahmedfarouk/online_academy/handlers"
	"github.com/ahmedfarouk/online_academy/middleware"
	"github.com/gofiber/fiber/v2"
)

func EnrollmentRoutes(app *fiber.App) {
	api := app.Group("/api/v1", middleware.Protected())

	api.Get("/me/enrollments", handlers.MyEnrollments)
	api.Get("/me/certificates", handlers.MyCertificates)
	api.Patch("/enrollments/:slug/progress", handlers.UpdateProgress)
}
