package services

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"log"
	"time"

	config "github.com/ahmedfarouk/online_academy/configs"
	"github.com/ahmedfarouk/online_academy/database"
	"github.com/ahmedfarouk/online_academy/models"
	"github.com/ahmedfarouk/online_academy/notifications"
	"github.com/ahmedfarouk/online_academy/payments"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrSessionUnpaid means the provider does not report the session as paid.
	ErrSessionUnpaid = errors.New("checkout session is not paid")
	// ErrSessionMismatch means the session metadata does not point at a known
	// order owned by the expected user/course. Benign for webhook deliveries,
	// a potential tampering attempt on the return page.
	ErrSessionMismatch = errors.New("checkout session metadata does not match order")
)

// CompleteOrderFromSession is the shared gate for both completion triggers:
// the checkout.session.completed webhook and the user's return from checkout.
// The session must have been fetched from (or signed by) the provider; no
// field of it comes from client input.
func CompleteOrderFromSession(sess *payments.CheckoutSession) error {
	if sess.PaymentStatus != "paid" {
		return ErrSessionUnpaid
	}

	orderID, err := uuid.Parse(sess.Metadata["order_id"])
	if err != nil {
		log.Printf("⚠️ Checkout session %s carries no usable order_id metadata", sess.ID)
		return ErrSessionMismatch
	}

	var order models.Order
	if err := database.DB.First(&order, "id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("⚠️ Checkout session %s references unknown order %s, ignoring", sess.ID, orderID)
			return ErrSessionMismatch
		}
		return err
	}

	if sess.Metadata["user_id"] != order.UserID.String() || sess.Metadata["course_id"] != order.CourseID.String() {
		log.Printf("⚠️ Session %s metadata does not match order %s, possible tampering", sess.ID, order.ID)
		return ErrSessionMismatch
	}

	return CompleteOrder(order.ID, sess.PaymentIntent)
}

// CompleteOrder finalizes an order exactly once: order → completed, linked
// payment → completed (backfilling the payment intent id if it was unknown),
// enrollment created or reactivated, confirmation email sent. The webhook and
// the return page may race on the same order; the row lock plus the status
// check make every caller after the first a no-op. A non-nil return means the
// transaction aborted with nothing applied and the trigger should be retried.
func CompleteOrder(orderID uuid.UUID, paymentIntentID string) error {
	var (
		order        models.Order
		completedNow bool
	)

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		completedNow = false

		if err := lockForUpdate(tx).First(&order, "id = ?", orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				log.Printf("⚠️ Completion requested for unknown order %s, ignoring", orderID)
				return nil
			}
			return err
		}

		switch order.Status {
		case models.OrderStatusCompleted:
			return nil
		case models.OrderStatusCancelled, models.OrderStatusFailed:
			log.Printf("⚠️ Ignoring completion trigger for order %s in terminal state %q", order.ID, order.Status)
			return nil
		}

		now := time.Now()
		order.Status = models.OrderStatusCompleted
		order.CompletedAt = &now
		if err := tx.Save(&order).Error; err != nil {
			return err
		}

		if order.PaymentID != nil {
			var payment models.Payment
			if err := tx.First(&payment, "id = ?", order.PaymentID).Error; err != nil {
				return err
			}
			payment.Status = models.PaymentStatusCompleted
			payment.CompletedAt = &now
			if payment.StripePaymentIntentID == "" && paymentIntentID != "" {
				payment.StripePaymentIntentID = paymentIntentID
			}
			if err := tx.Save(&payment).Error; err != nil {
				return err
			}
		}

		if err := activateEnrollment(tx, order.UserID, order.CourseID); err != nil {
			return err
		}

		completedNow = true
		return nil
	})
	if err != nil {
		log.Printf("🔥 Failed to complete order %s: %v", orderID, err)
		return err
	}

	if completedNow {
		log.Printf("✅ Order %s completed", order.ID)
		sendPurchaseConfirmation(order)
	}
	return nil
}

// CompletePaymentByIntent is the backstop for payment_intent.succeeded events,
// which may arrive before, after, or instead of checkout.session.completed.
func CompletePaymentByIntent(paymentIntentID string) error {
	var payment models.Payment
	if err := database.DB.First(&payment, "stripe_payment_intent_id = ?", paymentIntentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("⚠️ payment_intent %s does not match any payment, ignoring", paymentIntentID)
			return nil
		}
		return err
	}

	var order models.Order
	err := database.DB.First(&order, "payment_id = ?", payment.ID).Error
	if err == nil {
		return CompleteOrder(order.ID, paymentIntentID)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	// No order context: finalize the payment record alone.
	if payment.Status == models.PaymentStatusCompleted {
		return nil
	}
	return database.DB.Model(&payment).Updates(map[string]interface{}{
		"status":       models.PaymentStatusCompleted,
		"completed_at": time.Now(),
	}).Error
}

// FailPaymentByIntent routes payment_intent.payment_failed. The success
// webhook may land between the initial lookup and the write, so the
// transaction takes the same order row lock CompleteOrder takes before
// touching anything: a payment or order that completed in the meantime is
// never downgraded.
func FailPaymentByIntent(paymentIntentID string) error {
	var payment models.Payment
	if err := database.DB.First(&payment, "stripe_payment_intent_id = ?", paymentIntentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("⚠️ Failed payment_intent %s does not match any payment, ignoring", paymentIntentID)
			return nil
		}
		return err
	}

	return database.DB.Transaction(func(tx *gorm.DB) error {
		var order models.Order
		err := lockForUpdate(tx).First(&order, "payment_id = ?", payment.ID).Error
		hasOrder := err == nil
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		// Conditional update, not a save of the struct read above: the guard
		// re-checks the committed status under the lock.
		if err := tx.Model(&models.Payment{}).
			Where("id = ? AND status <> ?", payment.ID, models.PaymentStatusCompleted).
			Update("status", models.PaymentStatusFailed).Error; err != nil {
			return err
		}

		if hasOrder && (order.Status == models.OrderStatusPending || order.Status == models.OrderStatusProcessing) {
			order.Status = models.OrderStatusFailed
			if err := tx.Save(&order).Error; err != nil {
				return err
			}
			log.Printf("Order %s marked failed after payment_intent %s failed", order.ID, paymentIntentID)
		}
		return nil
	})
}

// activateEnrollment upserts the (user, course) grant. The composite unique
// index makes the reactivation atomic even when two orders for the same pair
// complete concurrently.
func activateEnrollment(tx *gorm.DB, userID, courseID uuid.UUID) error {
	enrollment := models.Enrollment{
		UserID:   userID,
		CourseID: courseID,
		IsActive: true,
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "course_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"is_active": true}),
	}).Create(&enrollment).Error
}

// lockForUpdate serializes concurrent completions for the same order row.
// SQLite (tests) rejects FOR UPDATE and serializes writers on its own.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

var purchaseEmailTmpl = template.Must(template.New("purchase_confirmation").Parse(`
<h1>Purchase Confirmed</h1>
<p>Hi {{.UserName}},</p>
<p>Thank you for purchasing <b>{{.CourseTitle}}</b> on {{.PurchaseDate}}.</p>
<p>You now have full access to the course: <a href="{{.CourseURL}}">Start learning</a></p>
`))

// sendPurchaseConfirmation runs after the completion transaction has
// committed. It is best-effort: any failure here is logged and never affects
// the already-committed order state.
func sendPurchaseConfirmation(order models.Order) {
	var user models.User
	if err := database.DB.First(&user, "id = ?", order.UserID).Error; err != nil {
		log.Printf("🔥 Cannot send purchase confirmation for order %s: %v", order.ID, err)
		return
	}
	var course models.Course
	if err := database.DB.First(&course, "id = ?", order.CourseID).Error; err != nil {
		log.Printf("🔥 Cannot send purchase confirmation for order %s: %v", order.ID, err)
		return
	}

	data := struct {
		UserName     string
		CourseTitle  string
		CourseURL    string
		PurchaseDate string
	}{
		UserName:     user.FullName,
		CourseTitle:  course.Title,
		CourseURL:    fmt.Sprintf("%s/courses/%s", config.Config("SITE_URL"), course.Slug),
		PurchaseDate: time.Now().Format("January 2, 2006"),
	}

	var body bytes.Buffer
	if err := purchaseEmailTmpl.Execute(&body, data); err != nil {
		log.Printf("🔥 Failed to render purchase confirmation for order %s: %v", order.ID, err)
		return
	}

	subject := fmt.Sprintf("Course Purchase Confirmation - %s", course.Title)
	notifications.SendEmail(user.FullName, user.Email, subject, body.String())
}
