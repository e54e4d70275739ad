package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	config "github.com/ahmedfarouk/online_academy/configs"
	"github.com/ahmedfarouk/online_academy/database"
	"github.com/ahmedfarouk/online_academy/middleware"
	"github.com/ahmedfarouk/online_academy/models"
	"github.com/ahmedfarouk/online_academy/payments"
	"github.com/ahmedfarouk/online_academy/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CreateCheckoutSession opens a provider checkout for one course purchase:
// pending Order + Payment first, then the hosted session whose metadata embeds
// the order/user/course ids re-validated on completion.
func CreateCheckoutSession(c *fiber.Ctx) error {
	userID, err := middleware.CurrentUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	var course models.Course
	if err := database.DB.Where("slug = ? AND is_published = ?", c.Params("courseSlug"), true).First(&course).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Course not found"})
	}

	var user models.User
	if err := database.DB.First(&user, "id = ?", userID).Error; err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	var enrolled int64
	database.DB.Model(&models.Enrollment{}).
		Where("user_id = ? AND course_id = ? AND is_active = ?", userID, course.ID, true).
		Count(&enrolled)
	if enrolled > 0 {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Already enrolled in this course"})
	}

	var order models.Order
	err = database.DB.Transaction(func(tx *gorm.DB) error {
		order = models.Order{
			UserID:      userID,
			CourseID:    course.ID,
			TotalAmount: course.Price,
			Status:      models.OrderStatusPending,
		}
		if err := tx.Create(&order).Error; err != nil {
			return err
		}

		payment := models.Payment{
			UserID:   userID,
			CourseID: course.ID,
			Amount:   course.Price,
			Currency: "USD",
			Status:   models.PaymentStatusPending,
		}
		if err := tx.Create(&payment).Error; err != nil {
			return err
		}

		order.PaymentID = &payment.ID
		return tx.Save(&order).Error
	})
	if err != nil {
		log.Printf("🔥 Failed to create order records: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create order"})
	}

	siteURL := config.Config("SITE_URL")
	session, err := payments.CreateCheckoutSession(payments.CheckoutSessionParams{
		CourseTitle:       course.Title,
		CourseDescription: truncate(course.Description, 100),
		AmountCents:       int64(math.Round(course.Price * 100)),
		Currency:          "USD",
		CustomerEmail:     user.Email,
		SuccessURL:        fmt.Sprintf("%s/payments/success?session_id={CHECKOUT_SESSION_ID}&order_id=%s", siteURL, order.ID),
		CancelURL:         fmt.Sprintf("%s/courses/%s", siteURL, course.Slug),
		OrderID:           order.ID.String(),
		UserID:            userID.String(),
		CourseID:          course.ID.String(),
	})
	if err != nil {
		// The pending order stays behind; the expiry job cancels it later.
		log.Printf("🔥 Checkout session creation failed for order %s: %v", order.ID, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "Failed to create checkout session"})
	}

	if session.PaymentIntent != "" && order.PaymentID != nil {
		if err := database.DB.Model(&models.Payment{}).Where("id = ?", order.PaymentID).
			Update("stripe_payment_intent_id", session.PaymentIntent).Error; err != nil {
			log.Printf("⚠️ Could not store payment intent for order %s: %v", order.ID, err)
		}
	}

	return c.JSON(fiber.Map{
		"order_id":     order.ID,
		"checkout_url": session.URL,
	})
}

// HandleStripeWebhook authenticates and routes provider events. 400 means the
// delivery itself was bad (nothing was touched); 500 means a completion
// transaction aborted and the provider should redeliver; everything else,
// including unknown orders and unrecognized event kinds, is acknowledged.
func HandleStripeWebhook(c *fiber.Ctx) error {
	event, err := payments.ConstructWebhookEvent(c.Body(), c.Get("Stripe-Signature"), config.Config("STRIPE_WEBHOOK_SECRET"))
	if err != nil {
		log.Printf("⚠️ Rejected webhook delivery: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid webhook"})
	}

	recordWebhookEvent(event)

	switch event.Type {
	case "checkout.session.completed":
		var session payments.CheckoutSession
		if err := json.Unmarshal(event.Data.Object, &session); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Malformed event object"})
		}
		if err := services.CompleteOrderFromSession(&session); err != nil {
			if errors.Is(err, services.ErrSessionUnpaid) || errors.Is(err, services.ErrSessionMismatch) {
				break // benign, already logged; do not trigger provider retries
			}
			log.Printf("🔥 Webhook completion failed for session %s: %v", session.ID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process webhook"})
		}

	case "payment_intent.succeeded":
		var intent payments.PaymentIntent
		if err := json.Unmarshal(event.Data.Object, &intent); err != nil || intent.ID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Malformed event object"})
		}
		if err := services.CompletePaymentByIntent(intent.ID); err != nil {
			log.Printf("🔥 Webhook completion failed for payment_intent %s: %v", intent.ID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process webhook"})
		}

	case "payment_intent.payment_failed":
		var intent payments.PaymentIntent
		if err := json.Unmarshal(event.Data.Object, &intent); err != nil || intent.ID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Malformed event object"})
		}
		if err := services.FailPaymentByIntent(intent.ID); err != nil {
			log.Printf("🔥 Webhook failure routing failed for payment_intent %s: %v", intent.ID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process webhook"})
		}

	default:
		// Unrecognized kinds are acknowledged and ignored.
	}

	return c.JSON(fiber.Map{"received": true})
}

// CheckoutReturn renders the state of an order after the user comes back from
// checkout. If the webhook has not landed yet and a session id is present, it
// re-verifies the session with the provider and completes the order early; the
// webhook remains the source of truth when this path is skipped or disabled.
func CheckoutReturn(c *fiber.Ctx) error {
	userID, err := middleware.CurrentUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	orderID, err := uuid.Parse(c.Query("order_id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"status": "invalid"})
	}

	var order models.Order
	if err := database.DB.Preload("Course").First(&order, "id = ?", orderID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"status": "invalid"})
	}
	// Do not reveal whether a foreign order id exists.
	if order.UserID != userID {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"status": "invalid"})
	}

	if order.Status == models.OrderStatusCompleted {
		return c.JSON(completedResponse(order))
	}

	sessionID := c.Query("session_id")
	if sessionID != "" && fallbackConfirmEnabled() &&
		(order.Status == models.OrderStatusPending || order.Status == models.OrderStatusProcessing) {

		session, err := payments.GetCheckoutSession(sessionID)
		if err != nil {
			log.Printf("🔥 Could not verify checkout session %s for order %s: %v", sessionID, order.ID, err)
			return c.JSON(fiber.Map{"status": "processing"})
		}

		if session.Metadata["user_id"] != userID.String() {
			log.Printf("⚠️ Session %s metadata names a different user than %s, possible tampering", sessionID, userID)
			return c.JSON(fiber.Map{"status": "processing"})
		}

		err = services.CompleteOrderFromSession(session)
		switch {
		case err == nil:
			if dbErr := database.DB.Preload("Course").First(&order, "id = ?", order.ID).Error; dbErr == nil &&
				order.Status == models.OrderStatusCompleted {
				return c.JSON(completedResponse(order))
			}
		case errors.Is(err, services.ErrSessionUnpaid), errors.Is(err, services.ErrSessionMismatch):
			// Stay on the processing page; the webhook decides.
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Something went wrong, please try again"})
		}
	}

	return c.JSON(fiber.Map{"status": "processing"})
}

// AdminListOrders gives back-office visibility into recent orders across all
// users, optionally filtered by status.
func AdminListOrders(c *fiber.Ctx) error {
	query := database.DB.Preload("Course").Preload("Payment").
		Order("created_at DESC").Limit(100)
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var orders []models.Order
	if err := query.Find(&orders).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load orders"})
	}
	return c.JSON(fiber.Map{"orders": orders})
}

// PaymentHistory lists the requesting user's orders and payments.
func PaymentHistory(c *fiber.Ctx) error {
	userID, err := middleware.CurrentUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	var orders []models.Order
	if err := database.DB.Preload("Course").Preload("Payment").
		Where("user_id = ?", userID).Order("created_at DESC").Find(&orders).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load payment history"})
	}

	return c.JSON(fiber.Map{"orders": orders})
}

func completedResponse(order models.Order) fiber.Map {
	return fiber.Map{
		"status":       "completed",
		"order_id":     order.ID,
		"course_slug":  order.Course.Slug,
		"course_title": order.Course.Title,
	}
}

func fallbackConfirmEnabled() bool {
	return config.Config("PAYMENT_FALLBACK_CONFIRM") != "false"
}

// recordWebhookEvent keeps an audit trail of accepted deliveries. Duplicate
// event ids are expected under provider redelivery and only logged.
func recordWebhookEvent(event *payments.Event) {
	record := models.WebhookEvent{
		EventID:     event.ID,
		EventType:   event.Type,
		ProcessedAt: time.Now(),
	}
	if err := database.DB.Create(&record).Error; err != nil {
		log.Printf("⚠️ Could not record webhook event %s: %v", event.ID, err)
	}
}

// truncate shortens a string to max runes. Course descriptions can be Arabic,
// so cutting on bytes would split multi-byte characters.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
