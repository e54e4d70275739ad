package handlers

import (
	"errors"

	"github.com/ahmedfarouk/online_academy/database"
	"github.com/ahmedfarouk/online_academy/middleware"
	"github.com/ahmedfarouk/online_academy/models"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

func ListCourses(c *fiber.Ctx) error {
	var courses []models.Course
	if err := database.DB.Preload("Category").
		Where("is_published = ?", true).Order("created_at DESC").Find(&courses).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load courses"})
	}
	return c.JSON(fiber.Map{"courses": courses})
}

func GetCourse(c *fiber.Ctx) error {
	var course models.Course
	err := database.DB.Preload("Category").
		Preload("Lessons", func(db *gorm.DB) *gorm.DB {
			return db.Where("is_published = ?", true).Order("sort_order ASC, created_at ASC")
		}).
		Where("slug = ? AND is_published = ?", c.Params("slug"), true).
		First(&course).Error
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Course not found"})
	}

	var averageRating float64
	database.DB.Model(&models.Review{}).
		Where("course_id = ?", course.ID).
		Select("COALESCE(AVG(rating), 0)").Scan(&averageRating)

	var students int64
	database.DB.Model(&models.Enrollment{}).
		Where("course_id = ? AND is_active = ?", course.ID, true).Count(&students)

	return c.JSON(fiber.Map{
		"course":         course,
		"average_rating": averageRating,
		"total_lessons":  len(course.Lessons),
		"total_students": students,
	})
}

// GetLesson serves one lesson. Preview lessons are open to any signed-in user;
// everything else requires an active enrollment in the course.
func GetLesson(c *fiber.Ctx) error {
	userID, err := middleware.CurrentUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	var course models.Course
	if err := database.DB.Where("slug = ? AND is_published = ?", c.Params("slug"), true).First(&course).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Course not found"})
	}

	var lesson models.Lesson
	if err := database.DB.Where("id = ? AND course_id = ? AND is_published = ?", c.Params("lessonId"), course.ID, true).
		First(&lesson).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Lesson not found"})
	}

	if !lesson.IsPreview {
		var enrolled int64
		database.DB.Model(&models.Enrollment{}).
			Where("user_id = ? AND course_id = ? AND is_active = ?", userID, course.ID, true).
			Count(&enrolled)
		if enrolled == 0 {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Enrollment required to access this lesson"})
		}
	}

	return c.JSON(fiber.Map{"lesson": lesson})
}

type CreateReviewRequest struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment"`
}

func CreateReview(c *fiber.Ctx) error {
	userID, err := middleware.CurrentUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	var req CreateReviewRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	var course models.Course
	if err := database.DB.Where("slug = ? AND is_published = ?", c.Params("slug"), true).First(&course).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Course not found"})
	}

	var enrolled int64
	database.DB.Model(&models.Enrollment{}).
		Where("user_id = ? AND course_id = ? AND is_active = ?", userID, course.ID, true).
		Count(&enrolled)
	if enrolled == 0 {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Only enrolled students can review a course"})
	}

	review := models.Review{
		CourseID: course.ID,
		UserID:   userID,
		Rating:   req.Rating,
		Comment:  req.Comment,
	}
	if err := database.DB.Create(&review).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "You have already reviewed this course"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create review"})
	}

	return c.Status(fiber.StatusCreated).JSON(review)
}

func ListReviews(c *fiber.Ctx) error {
	var course models.Course
	if err := database.DB.Where("slug = ? AND is_published = ?", c.Params("slug"), true).First(&course).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Course not found"})
	}

	var reviews []models.Review
	if err := database.DB.Where("course_id = ?", course.ID).Order("created_at DESC").Find(&reviews).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load reviews"})
	}
	return c.JSON(fiber.Map{"reviews": reviews})
}
