package main

import (
	"log"
	"time"

	"github.com/ahmedfarouk/online_academy/database"
	"github.com/ahmedfarouk/online_academy/jobs"
	"github.com/ahmedfarouk/online_academy/notifications"
	"github.com/ahmedfarouk/online_academy/routes"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/robfig/cron/v3"
)

func main() {
	database.ConnectDB()
	database.Migrate()
	database.SeedAdmin()
	notifications.InitEmailService()

	c := cron.New()
	c.AddFunc("0 * * * *", jobs.ExpireStalePendingOrders)
	go c.Start()
	log.Println("✅ Cron job for order expiry scheduled successfully.")

	app := fiber.New(fiber.Config{
		Prefork:           false,
		AppName:           "Online Academy",
		CaseSensitive:     true,
		StrictRouting:     true,
		EnablePrintRoutes: true,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}

			log.Printf("[ERROR] %v | Path: %s | Method: %s", err, c.Path(), c.Method())
			return c.Status(code).JSON(fiber.Map{
				"status":  "error",
				"code":    code,
				"message": err.Error(),
			})
		},
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins:  "*",
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, Stripe-Signature",
		AllowMethods:  "GET, POST, PUT, PATCH, DELETE, OPTIONS",
		ExposeHeaders: "Content-Length, Authorization",
		MaxAge:        86400,
	}))

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		TimeFormat: "2006-01-02 15:04:05",
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "success",
			"message": "Welcome to Online Academy API",
		})
	})

	routes.AuthRoutes(app)
	routes.CourseRoutes(app)
	routes.EnrollmentRoutes(app)
	routes.PaymentRoutes(app)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
		})
	})

	log.Println("✅ Server is running on port 8080")
	err := app.Listen(":8080")
	if err != nil {
		log.Fatalf("🔥 Server failed to start: %v", err)
	}
}
