package jobs

import (
	"log"
	"time"

	"github.com/ahmedfarouk/online_academy/database"
	"github.com/ahmedfarouk/online_academy/models"
	"gorm.io/gorm"
)

const pendingOrderTTL = 24 * time.Hour

// ExpireStalePendingOrders cancels orders whose checkout was abandoned. Orders
// the webhook or the return page completed in the meantime are untouched: the
// cancellation is a conditional update that only hits rows still pending, so a
// completion committing after the lookup always wins.
func ExpireStalePendingOrders() {
	log.Println("Running job: ExpireStalePendingOrders...")

	cutoff := time.Now().Add(-pendingOrderTTL)

	var stale []models.Order
	err := database.DB.
		Where("status = ? AND created_at < ?", models.OrderStatusPending, cutoff).
		Find(&stale).Error
	if err != nil {
		log.Printf("🔥 Error looking up stale pending orders: %v", err)
		return
	}

	if len(stale) == 0 {
		return
	}

	cancelled := 0
	for _, order := range stale {
		err := database.DB.Transaction(func(tx *gorm.DB) error {
			res := tx.Model(&models.Order{}).
				Where("id = ? AND status = ?", order.ID, models.OrderStatusPending).
				Update("status", models.OrderStatusCancelled)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return nil
			}

			if order.PaymentID != nil {
				if err := tx.Model(&models.Payment{}).
					Where("id = ? AND status = ?", order.PaymentID, models.PaymentStatusPending).
					Update("status", models.PaymentStatusFailed).Error; err != nil {
					return err
				}
			}
			cancelled++
			return nil
		})
		if err != nil {
			log.Printf("🔥 Failed to cancel stale order %s: %v", order.ID, err)
		}
	}

	log.Printf("✅ Cancelled %d stale pending order(s).", cancelled)
}
