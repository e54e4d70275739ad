package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Tolerance on the signed timestamp, matching the provider's recommendation.
const signatureTolerance = 5 * time.Minute

var (
	ErrInvalidSignature = errors.New("webhook signature verification failed")
	ErrInvalidPayload   = errors.New("webhook payload is malformed")
)

type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

type PaymentIntent struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// ConstructWebhookEvent authenticates a raw webhook delivery against the shared
// signing secret and decodes the event envelope. The signature header has the
// form "t=<unix>,v1=<hex hmac>[,v1=...]"; the HMAC-SHA256 is computed over
// "<t>.<payload>". Any failure rejects the delivery before state is touched.
func ConstructWebhookEvent(payload []byte, sigHeader, secret string) (*Event, error) {
	timestamp, signatures, err := parseSignatureHeader(sigHeader)
	if err != nil {
		return nil, err
	}

	age := time.Since(time.Unix(timestamp, 0))
	if age > signatureTolerance || age < -signatureTolerance {
		return nil, ErrInvalidSignature
	}

	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", timestamp)
	mac.Write(payload)
	expected := mac.Sum(nil)

	verified := false
	for _, sig := range signatures {
		decoded, err := hex.DecodeString(sig)
		if err == nil && hmac.Equal(decoded, expected) {
			verified = true
			break
		}
	}
	if !verified {
		return nil, ErrInvalidSignature
	}

	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, ErrInvalidPayload
	}
	if event.Type == "" {
		return nil, ErrInvalidPayload
	}
	return &event, nil
}

func parseSignatureHeader(header string) (int64, []string, error) {
	var (
		timestamp  int64
		signatures []string
	)

	for _, pair := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(pair), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			parsed, err := strconv.ParseInt(kv[1], 10, 64)
			if err != nil {
				return 0, nil, ErrInvalidSignature
			}
			timestamp = parsed
		case "v1":
			signatures = append(signatures, kv[1])
		}
	}

	if timestamp <= 0 || len(signatures) == 0 {
		return 0, nil, ErrInvalidSignature
	}
	return timestamp, signatures, nil
}
