package handlers

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/ahmedfarouk/online_academy/database"
	"github.com/ahmedfarouk/online_academy/middleware"
	"github.com/ahmedfarouk/online_academy/models"
	"github.com/ahmedfarouk/online_academy/notifications"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const (
	testJWTSecret     = "test-jwt-secret"
	testWebhookSecret = "whsec_handler_test"
)

func setupTestDB(t *testing.T) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	err = db.AutoMigrate(
		&models.User{},
		&models.Category{},
		&models.Course{},
		&models.Lesson{},
		&models.Enrollment{},
		&models.Payment{},
		&models.Order{},
		&models.Review{},
		&models.Certificate{},
		&models.WebhookEvent{},
	)
	if err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	database.DB = db
}

type fakeSender struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeSender) Send(toName, toEmail, subject, htmlContent string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, toEmail)
	return nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func installFakeSender(t *testing.T) *fakeSender {
	t.Helper()
	f := &fakeSender{}
	notifications.Client = f
	t.Cleanup(func() { notifications.Client = nil })
	return f
}

// newTestApp registers the payment handlers the way the router does, minus the
// groups that are irrelevant here.
func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	t.Setenv("JWT_SECRET", testJWTSecret)
	t.Setenv("STRIPE_WEBHOOK_SECRET", testWebhookSecret)
	t.Setenv("SITE_URL", "http://localhost:3000")

	app := fiber.New()
	app.Post("/api/v1/payments/webhook", HandleStripeWebhook)
	protected := app.Group("/api/v1/payments", middleware.Protected())
	protected.Get("/success", CheckoutReturn)
	protected.Get("/history", PaymentHistory)
	admin := app.Group("/api/v1/admin", middleware.Protected(), middleware.AdminRequired())
	admin.Get("/orders", AdminListOrders)
	return app
}

func authToken(t *testing.T, userID uuid.UUID) string {
	return roleToken(t, userID, "student")
}

func roleToken(t *testing.T, userID uuid.UUID, role string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"user_id": userID.String(),
		"role":    role,
		"exp":     time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return token
}

func signWebhookPayload(t *testing.T, payload []byte) string {
	t.Helper()
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(testWebhookSecret))
	fmt.Fprintf(mac, "%d.", ts)
	mac.Write(payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func postWebhook(t *testing.T, app *fiber.App, payload []byte, sig string) *http.Response {
	t.Helper()
	req := httptest.NewRequest("POST", "/api/v1/payments/webhook", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if sig != "" {
		req.Header.Set("Stripe-Signature", sig)
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("webhook request failed: %v", err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatalf("failed to decode response %q: %v", raw, err)
	}
	return body
}

func seedStudent(t *testing.T) models.User {
	t.Helper()
	user := models.User{
		FullName: "Student",
		Email:    fmt.Sprintf("%s@example.com", uuid.NewString()[:13]),
		Password: "hashed",
		Role:     "student",
	}
	if err := database.DB.Create(&user).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return user
}

func seedCourse(t *testing.T) models.Course {
	t.Helper()
	instructor := models.User{
		FullName: "Instructor",
		Email:    fmt.Sprintf("%s@example.com", uuid.NewString()[:13]),
		Password: "hashed",
		Role:     "instructor",
	}
	if err := database.DB.Create(&instructor).Error; err != nil {
		t.Fatalf("failed to create instructor: %v", err)
	}
	course := models.Course{
		Title:        "Course " + uuid.NewString()[:8],
		Description:  "Handler test course.",
		InstructorID: instructor.ID,
		Price:        49.99,
		IsPublished:  true,
	}
	if err := database.DB.Create(&course).Error; err != nil {
		t.Fatalf("failed to create course: %v", err)
	}
	return course
}

func seedPendingOrder(t *testing.T, user models.User, course models.Course) (models.Order, models.Payment) {
	t.Helper()
	payment := models.Payment{
		UserID:   user.ID,
		CourseID: course.ID,
		Amount:   course.Price,
		Currency: "USD",
		Status:   models.PaymentStatusPending,
	}
	if err := database.DB.Create(&payment).Error; err != nil {
		t.Fatalf("failed to create payment: %v", err)
	}
	order := models.Order{
		UserID:      user.ID,
		CourseID:    course.ID,
		PaymentID:   &payment.ID,
		TotalAmount: course.Price,
		Status:      models.OrderStatusPending,
	}
	if err := database.DB.Create(&order).Error; err != nil {
		t.Fatalf("failed to create order: %v", err)
	}
	return order, payment
}

func sessionCompletedEvent(eventID string, order models.Order, intentID string) []byte {
	return []byte(fmt.Sprintf(`{
		"id": %q,
		"type": "checkout.session.completed",
		"data": {"object": {
			"id": "cs_test",
			"payment_intent": %q,
			"payment_status": "paid",
			"metadata": {
				"order_id": %q,
				"user_id": %q,
				"course_id": %q
			}
		}}
	}`, eventID, intentID, order.ID, order.UserID, order.CourseID))
}

func TestWebhookRejectsForgedSignature(t *testing.T) {
	setupTestDB(t)
	installFakeSender(t)
	app := newTestApp(t)
	user := seedStudent(t)
	course := seedCourse(t)
	order, _ := seedPendingOrder(t, user, course)

	payload := sessionCompletedEvent("evt_forged", order, "pi_1")
	mac := hmac.New(sha256.New, []byte("whsec_attacker"))
	fmt.Fprintf(mac, "%d.", time.Now().Unix())
	mac.Write(payload)
	forged := fmt.Sprintf("t=%d,v1=%s", time.Now().Unix(), hex.EncodeToString(mac.Sum(nil)))

	resp := postWebhook(t, app, payload, forged)
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}

	var got models.Order
	database.DB.First(&got, "id = ?", order.ID)
	if got.Status != models.OrderStatusPending {
		t.Errorf("order status = %q, forged delivery must not mutate state", got.Status)
	}
	var events int64
	database.DB.Model(&models.WebhookEvent{}).Count(&events)
	if events != 0 {
		t.Errorf("webhook event rows = %d, want 0", events)
	}
}

func TestWebhookMissingSignatureRejected(t *testing.T) {
	setupTestDB(t)
	installFakeSender(t)
	app := newTestApp(t)
	user := seedStudent(t)
	course := seedCourse(t)
	order, _ := seedPendingOrder(t, user, course)

	resp := postWebhook(t, app, sessionCompletedEvent("evt_nosig", order, "pi_1"), "")
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestWebhookCheckoutCompletedEndToEnd(t *testing.T) {
	setupTestDB(t)
	sender := installFakeSender(t)
	app := newTestApp(t)
	user := seedStudent(t)
	course := seedCourse(t)
	order, payment := seedPendingOrder(t, user, course)

	payload := sessionCompletedEvent("evt_1", order, "pi_webhook")
	sig := signWebhookPayload(t, payload)

	resp := postWebhook(t, app, payload, sig)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var gotOrder models.Order
	database.DB.First(&gotOrder, "id = ?", order.ID)
	if gotOrder.Status != models.OrderStatusCompleted {
		t.Errorf("order status = %q, want completed", gotOrder.Status)
	}
	var gotPayment models.Payment
	database.DB.First(&gotPayment, "id = ?", payment.ID)
	if gotPayment.Status != models.PaymentStatusCompleted {
		t.Errorf("payment status = %q, want completed", gotPayment.Status)
	}
	if gotPayment.StripePaymentIntentID != "pi_webhook" {
		t.Errorf("payment intent = %q, want pi_webhook", gotPayment.StripePaymentIntentID)
	}

	// Provider redelivery of the exact same event must be a no-op.
	resp = postWebhook(t, app, payload, sig)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("redelivery status = %d, want 200", resp.StatusCode)
	}

	var enrollments int64
	database.DB.Model(&models.Enrollment{}).
		Where("user_id = ? AND course_id = ?", user.ID, course.ID).Count(&enrollments)
	if enrollments != 1 {
		t.Errorf("enrollment rows = %d, want exactly 1", enrollments)
	}
	if sender.count() != 1 {
		t.Errorf("emails sent = %d, want exactly 1", sender.count())
	}
}

func TestWebhookUnpaidSessionAcknowledged(t *testing.T) {
	setupTestDB(t)
	installFakeSender(t)
	app := newTestApp(t)
	user := seedStudent(t)
	course := seedCourse(t)
	order, _ := seedPendingOrder(t, user, course)

	payload := []byte(fmt.Sprintf(`{
		"id": "evt_unpaid",
		"type": "checkout.session.completed",
		"data": {"object": {
			"id": "cs_unpaid",
			"payment_status": "unpaid",
			"metadata": {"order_id": %q, "user_id": %q, "course_id": %q}
		}}
	}`, order.ID, order.UserID, order.CourseID))

	resp := postWebhook(t, app, payload, signWebhookPayload(t, payload))
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, unpaid sessions are benign and must not trigger retries", resp.StatusCode)
	}

	var got models.Order
	database.DB.First(&got, "id = ?", order.ID)
	if got.Status != models.OrderStatusPending {
		t.Errorf("order status = %q, want pending", got.Status)
	}
}

func TestWebhookPaymentIntentSucceeded(t *testing.T) {
	setupTestDB(t)
	sender := installFakeSender(t)
	app := newTestApp(t)
	user := seedStudent(t)
	course := seedCourse(t)
	order, payment := seedPendingOrder(t, user, course)
	database.DB.Model(&payment).Update("stripe_payment_intent_id", "pi_direct")

	payload := []byte(`{
		"id": "evt_pi",
		"type": "payment_intent.succeeded",
		"data": {"object": {"id": "pi_direct", "status": "succeeded"}}
	}`)

	resp := postWebhook(t, app, payload, signWebhookPayload(t, payload))
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var gotOrder models.Order
	database.DB.First(&gotOrder, "id = ?", order.ID)
	if gotOrder.Status != models.OrderStatusCompleted {
		t.Errorf("order status = %q, want completed via intent event", gotOrder.Status)
	}
	if sender.count() != 1 {
		t.Errorf("emails sent = %d, want 1", sender.count())
	}
}

func TestWebhookPaymentIntentFailed(t *testing.T) {
	setupTestDB(t)
	installFakeSender(t)
	app := newTestApp(t)
	user := seedStudent(t)
	course := seedCourse(t)
	order, payment := seedPendingOrder(t, user, course)
	database.DB.Model(&payment).Update("stripe_payment_intent_id", "pi_bad")

	payload := []byte(`{
		"id": "evt_fail",
		"type": "payment_intent.payment_failed",
		"data": {"object": {"id": "pi_bad", "status": "requires_payment_method"}}
	}`)

	resp := postWebhook(t, app, payload, signWebhookPayload(t, payload))
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var gotPayment models.Payment
	database.DB.First(&gotPayment, "id = ?", payment.ID)
	if gotPayment.Status != models.PaymentStatusFailed {
		t.Errorf("payment status = %q, want failed", gotPayment.Status)
	}
	var gotOrder models.Order
	database.DB.First(&gotOrder, "id = ?", order.ID)
	if gotOrder.Status != models.OrderStatusFailed {
		t.Errorf("order status = %q, want failed", gotOrder.Status)
	}
}

func TestWebhookUnknownEventAcknowledged(t *testing.T) {
	setupTestDB(t)
	installFakeSender(t)
	app := newTestApp(t)

	payload := []byte(`{"id": "evt_other", "type": "charge.refunded", "data": {"object": {"id": "ch_1"}}}`)
	resp := postWebhook(t, app, payload, signWebhookPayload(t, payload))
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, unknown kinds must be acknowledged", resp.StatusCode)
	}

	var events int64
	database.DB.Model(&models.WebhookEvent{}).Where("event_id = ?", "evt_other").Count(&events)
	if events != 1 {
		t.Errorf("webhook event rows = %d, accepted deliveries must be recorded", events)
	}
}

// fakeStripe serves GET /v1/checkout/sessions/<id> for the return-page
// fallback path.
func fakeStripe(t *testing.T, sessions map[string]string) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		for id, body := range sessions {
			if r.URL.Path == "/v1/checkout/sessions/"+id {
				w.Header().Set("Content-Type", "application/json")
				fmt.Fprint(w, body)
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error": {"message": "No such checkout session"}}`)
	}))
	t.Cleanup(srv.Close)
	t.Setenv("STRIPE_API_BASE_URL", srv.URL)
	return srv, &hits
}

func requireHits(t *testing.T, hits *atomic.Int64, want int64, msg string) {
	t.Helper()
	if got := hits.Load(); got != want {
		t.Errorf("provider hits = %d, %s", got, msg)
	}
}

func sessionJSON(order models.Order, paymentStatus, intentID, userID string) string {
	return fmt.Sprintf(`{
		"id": "cs_123",
		"payment_intent": %q,
		"payment_status": %q,
		"metadata": {"order_id": %q, "user_id": %q, "course_id": %q}
	}`, intentID, paymentStatus, order.ID, userID, order.CourseID)
}

func getReturn(t *testing.T, app *fiber.App, token string, orderID uuid.UUID, sessionID string) *http.Response {
	t.Helper()
	target := fmt.Sprintf("/api/v1/payments/success?order_id=%s", orderID)
	if sessionID != "" {
		target += "&session_id=" + sessionID
	}
	req := httptest.NewRequest("GET", target, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("return request failed: %v", err)
	}
	return resp
}

func TestCheckoutReturnCompletesPaidSession(t *testing.T) {
	setupTestDB(t)
	sender := installFakeSender(t)
	app := newTestApp(t)
	user := seedStudent(t)
	course := seedCourse(t)
	order, payment := seedPendingOrder(t, user, course)
	fakeStripe(t, map[string]string{
		"cs_123": sessionJSON(order, "paid", "pi_return", user.ID.String()),
	})

	resp := getReturn(t, app, authToken(t, user.ID), order.ID, "cs_123")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["status"] != "completed" {
		t.Fatalf("return status = %v, want completed", body["status"])
	}
	if body["course_slug"] != course.Slug {
		t.Errorf("course_slug = %v, want %s", body["course_slug"], course.Slug)
	}

	var gotOrder models.Order
	database.DB.First(&gotOrder, "id = ?", order.ID)
	if gotOrder.Status != models.OrderStatusCompleted {
		t.Errorf("order status = %q, want completed", gotOrder.Status)
	}
	var gotPayment models.Payment
	database.DB.First(&gotPayment, "id = ?", payment.ID)
	if gotPayment.StripePaymentIntentID != "pi_return" {
		t.Errorf("payment intent = %q, want pi_return", gotPayment.StripePaymentIntentID)
	}
	if sender.count() != 1 {
		t.Errorf("emails sent = %d, want 1", sender.count())
	}
}

func TestCheckoutReturnUnpaidSessionStaysPending(t *testing.T) {
	setupTestDB(t)
	sender := installFakeSender(t)
	app := newTestApp(t)
	user := seedStudent(t)
	course := seedCourse(t)
	order, _ := seedPendingOrder(t, user, course)
	fakeStripe(t, map[string]string{
		"cs_123": sessionJSON(order, "unpaid", "", user.ID.String()),
	})

	resp := getReturn(t, app, authToken(t, user.ID), order.ID, "cs_123")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if body := decodeBody(t, resp); body["status"] != "processing" {
		t.Fatalf("return status = %v, want processing", body["status"])
	}

	var got models.Order
	database.DB.First(&got, "id = ?", order.ID)
	if got.Status != models.OrderStatusPending {
		t.Errorf("order status = %q, want pending", got.Status)
	}
	if sender.count() != 0 {
		t.Errorf("emails sent = %d, want 0", sender.count())
	}
}

func TestCheckoutReturnRejectsForeignSessionMetadata(t *testing.T) {
	setupTestDB(t)
	installFakeSender(t)
	app := newTestApp(t)
	user := seedStudent(t)
	course := seedCourse(t)
	order, _ := seedPendingOrder(t, user, course)
	// The session is paid but belongs to a different user.
	fakeStripe(t, map[string]string{
		"cs_123": sessionJSON(order, "paid", "pi_x", uuid.NewString()),
	})

	resp := getReturn(t, app, authToken(t, user.ID), order.ID, "cs_123")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if body := decodeBody(t, resp); body["status"] != "processing" {
		t.Fatalf("return status = %v, want processing", body["status"])
	}

	var got models.Order
	database.DB.First(&got, "id = ?", order.ID)
	if got.Status != models.OrderStatusPending {
		t.Errorf("order status = %q, a foreign session must not complete it", got.Status)
	}
}

func TestCheckoutReturnWrongOwner(t *testing.T) {
	setupTestDB(t)
	installFakeSender(t)
	app := newTestApp(t)
	owner := seedStudent(t)
	other := seedStudent(t)
	course := seedCourse(t)
	order, _ := seedPendingOrder(t, owner, course)

	resp := getReturn(t, app, authToken(t, other.ID), order.ID, "")
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("status = %d, foreign order ids must look nonexistent", resp.StatusCode)
	}
	if body := decodeBody(t, resp); body["status"] != "invalid" {
		t.Errorf("return status = %v, want invalid", body["status"])
	}
}

func TestCheckoutReturnAlreadyCompletedSkipsProvider(t *testing.T) {
	setupTestDB(t)
	installFakeSender(t)
	app := newTestApp(t)
	user := seedStudent(t)
	course := seedCourse(t)
	order, _ := seedPendingOrder(t, user, course)
	now := time.Now()
	database.DB.Model(&order).Updates(map[string]interface{}{
		"status":       models.OrderStatusCompleted,
		"completed_at": now,
	})
	_, hits := fakeStripe(t, map[string]string{})

	resp := getReturn(t, app, authToken(t, user.ID), order.ID, "cs_123")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if body := decodeBody(t, resp); body["status"] != "completed" {
		t.Fatalf("return status = %v, want completed", body["status"])
	}
	requireHits(t, hits, 0, "completed orders must not be re-verified")
}

func TestCheckoutReturnFallbackDisabled(t *testing.T) {
	setupTestDB(t)
	installFakeSender(t)
	app := newTestApp(t)
	t.Setenv("PAYMENT_FALLBACK_CONFIRM", "false")
	user := seedStudent(t)
	course := seedCourse(t)
	order, _ := seedPendingOrder(t, user, course)
	_, hits := fakeStripe(t, map[string]string{
		"cs_123": sessionJSON(order, "paid", "pi_x", user.ID.String()),
	})

	resp := getReturn(t, app, authToken(t, user.ID), order.ID, "cs_123")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if body := decodeBody(t, resp); body["status"] != "processing" {
		t.Fatalf("return status = %v, want processing while the webhook is pending", body["status"])
	}
	requireHits(t, hits, 0, "disabled fallback must not call the provider")

	var got models.Order
	database.DB.First(&got, "id = ?", order.ID)
	if got.Status != models.OrderStatusPending {
		t.Errorf("order status = %q, want pending", got.Status)
	}
}

func TestCheckoutReturnInvalidOrderID(t *testing.T) {
	setupTestDB(t)
	installFakeSender(t)
	app := newTestApp(t)
	user := seedStudent(t)

	req := httptest.NewRequest("GET", "/api/v1/payments/success?order_id=not-a-uuid", nil)
	req.Header.Set("Authorization", "Bearer "+authToken(t, user.ID))
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("return request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestAdminOrdersRequiresAdminRole(t *testing.T) {
	setupTestDB(t)
	installFakeSender(t)
	app := newTestApp(t)
	user := seedStudent(t)
	course := seedCourse(t)
	seedPendingOrder(t, user, course)

	req := httptest.NewRequest("GET", "/api/v1/admin/orders", nil)
	req.Header.Set("Authorization", "Bearer "+authToken(t, user.ID))
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("admin orders request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusForbidden {
		t.Fatalf("status = %d, non-admins must be rejected", resp.StatusCode)
	}

	req = httptest.NewRequest("GET", "/api/v1/admin/orders", nil)
	req.Header.Set("Authorization", "Bearer "+roleToken(t, user.ID, "admin"))
	resp, err = app.Test(req, -1)
	if err != nil {
		t.Fatalf("admin orders request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	body := decodeBody(t, resp)
	orders, ok := body["orders"].([]interface{})
	if !ok {
		t.Fatalf("orders missing from response: %v", body)
	}
	if len(orders) != 1 {
		t.Errorf("orders = %d, want 1", len(orders))
	}
}

func TestTruncatePreservesMultibyteRunes(t *testing.T) {
	arabic := strings.Repeat("درس", 50)
	out := truncate(arabic, 100)
	if !utf8.ValidString(out) {
		t.Error("truncated string is not valid UTF-8")
	}
	if got := utf8.RuneCountInString(out); got != 100 {
		t.Errorf("rune count = %d, want 100", got)
	}
	if got := truncate("short", 100); got != "short" {
		t.Errorf("truncate(short) = %q, short strings must pass through", got)
	}
}

func TestPaymentHistoryScopedToUser(t *testing.T) {
	setupTestDB(t)
	installFakeSender(t)
	app := newTestApp(t)
	userA := seedStudent(t)
	userB := seedStudent(t)
	course := seedCourse(t)
	seedPendingOrder(t, userA, course)
	seedPendingOrder(t, userB, course)

	req := httptest.NewRequest("GET", "/api/v1/payments/history", nil)
	req.Header.Set("Authorization", "Bearer "+authToken(t, userA.ID))
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("history request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	body := decodeBody(t, resp)
	orders, ok := body["orders"].([]interface{})
	if !ok {
		t.Fatalf("orders missing from response: %v", body)
	}
	if len(orders) != 1 {
		t.Errorf("orders = %d, history must only show the requesting user's orders", len(orders))
	}
}
