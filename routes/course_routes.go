package routes

import (
	"github.com/ahmedfarouk/online_academy/handlers"
	"github.com/ahmedfarouk/online_academy/middleware"
	"github.com/gofiber/fiber/v2"
)

func CourseRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	api.Get("/courses", handlers.ListCourses)
	api.Get("/courses/:slug", handlers.GetCourse)
	api.Get("/courses/:slug/reviews", handlers.ListReviews)

	protected := api.Group("/courses", middleware.Protected())
	protected.Get("/:slug/lessons/:lessonId", handlers.GetLesson)
	protected.Post("/:slug/reviews", handlers.CreateReview)
}
