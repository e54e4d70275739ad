package handlers

import (
	"time"

	"github.com/ahmedfarouk/online_academy/database"
	"github.com/ahmedfarouk/online_academy/middleware"
	"github.com/ahmedfarouk/online_academy/models"
	"github.com/ahmedfarouk/online_academy/services"
	"github.com/gofiber/fiber/v2"
)

func MyEnrollments(c *fiber.Ctx) error {
	userID, err := middleware.CurrentUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	var enrollments []models.Enrollment
	if err := database.DB.Preload("Course").
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("enrolled_at DESC").Find(&enrollments).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load enrollments"})
	}

	return c.JSON(fiber.Map{"enrollments": enrollments})
}

type UpdateProgressRequest struct {
	Progress int `json:"progress" validate:"min=0,max=100"`
}

// UpdateProgress moves the learner's completion percentage forward. Hitting
// 100 stamps the completion time and kicks off certificate generation.
func UpdateProgress(c *fiber.Ctx) error {
	userID, err := middleware.CurrentUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	var req UpdateProgressRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	var course models.Course
	if err := database.DB.Where("slug = ?", c.Params("slug")).First(&course).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Course not found"})
	}

	var enrollment models.Enrollment
	if err := database.DB.Where("user_id = ? AND course_id = ? AND is_active = ?", userID, course.ID, true).
		First(&enrollment).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Enrollment not found"})
	}

	// Progress never moves backwards.
	if req.Progress > enrollment.Progress {
		enrollment.Progress = req.Progress
		if enrollment.Progress >= 100 && enrollment.CompletedAt == nil {
			now := time.Now()
			enrollment.Progress = 100
			enrollment.CompletedAt = &now
		}
		if err := database.DB.Save(&enrollment).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update progress"})
		}
		if enrollment.CompletedAt != nil {
			go services.GenerateCompletionCertificate(enrollment.ID)
		}
	}

	return c.JSON(fiber.Map{"enrollment": enrollment})
}

func MyCertificates(c *fiber.Ctx) error {
	userID, err := middleware.CurrentUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	var certificates []models.Certificate
	if err := database.DB.Where("user_id = ?", userID).
		Order("completion_date DESC").Find(&certificates).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load certificates"})
	}

	return c.JSON(fiber.Map{"certificates": certificates})
}
