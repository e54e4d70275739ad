package routes

import (
	"github.com/ahmedfarouk/online_academy/handlers"
	"github.com/ahmedfarouk/online_academy/middleware"
	"github.com/gofiber/fiber/v2"
)

func PaymentRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	// Authenticated by signature verification, not by JWT.
	api.Post("/payments/webhook", handlers.HandleStripeWebhook)

	protected := api.Group("/payments", middleware.Protected())
	protected.Post("/checkout/:courseSlug", handlers.CreateCheckoutSession)
	protected.Get("/success", handlers.CheckoutReturn)
	protected.Get("/history", handlers.PaymentHistory)

	admin := api.Group("/admin", middleware.Protected(), middleware.AdminRequired())
	admin.Get("/orders", handlers.AdminListOrders)
}
