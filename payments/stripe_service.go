package payments

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	config "github.com/ahmedfarouk/online_academy/configs"
)

// CheckoutSession is the subset of Stripe's checkout session object the
// platform acts on. PaymentStatus comes from the provider, never from the
// client redirect.
type CheckoutSession struct {
	ID            string            `json:"id"`
	URL           string            `json:"url"`
	PaymentIntent string            `json:"payment_intent"`
	PaymentStatus string            `json:"payment_status"`
	CustomerEmail string            `json:"customer_email"`
	Metadata      map[string]string `json:"metadata"`
}

type CheckoutSessionParams struct {
	CourseTitle       string
	CourseDescription string
	AmountCents       int64
	Currency          string
	CustomerEmail     string
	SuccessURL        string
	CancelURL         string
	OrderID           string
	UserID            string
	CourseID          string
}

var httpClient = &http.Client{Timeout: 15 * time.Second}

func apiBase() string {
	return config.ConfigDefault("STRIPE_API_BASE_URL", "https://api.stripe.com")
}

// CreateCheckoutSession opens a hosted checkout page for one course purchase.
// The order, user and course ids ride along as session metadata; both the
// webhook and the return page re-validate them before completing the order.
func CreateCheckoutSession(p CheckoutSessionParams) (*CheckoutSession, error) {
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("payment_method_types[0]", "card")
	form.Set("line_items[0][quantity]", "1")
	form.Set("line_items[0][price_data][currency]", strings.ToLower(p.Currency))
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(p.AmountCents, 10))
	form.Set("line_items[0][price_data][product_data][name]", p.CourseTitle)
	if p.CourseDescription != "" {
		form.Set("line_items[0][price_data][product_data][description]", p.CourseDescription)
	}
	form.Set("success_url", p.SuccessURL)
	form.Set("cancel_url", p.CancelURL)
	if p.CustomerEmail != "" {
		form.Set("customer_email", p.CustomerEmail)
	}
	form.Set("metadata[order_id]", p.OrderID)
	form.Set("metadata[user_id]", p.UserID)
	form.Set("metadata[course_id]", p.CourseID)

	req, err := http.NewRequest("POST", fmt.Sprintf("%s/v1/checkout/sessions", apiBase()), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", config.Config("STRIPE_SECRET_KEY")))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("failed to create checkout session: %s", string(respBody))
	}

	var session CheckoutSession
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, err
	}
	return &session, nil
}

// GetCheckoutSession fetches the authoritative session state from the provider.
func GetCheckoutSession(sessionID string) (*CheckoutSession, error) {
	req, err := http.NewRequest("GET", fmt.Sprintf("%s/v1/checkout/sessions/%s", apiBase(), url.PathEscape(sessionID)), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", config.Config("STRIPE_SECRET_KEY")))

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("failed to fetch checkout session %s: %s", sessionID, string(respBody))
	}

	var session CheckoutSession
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, err
	}
	return &session, nil
}
