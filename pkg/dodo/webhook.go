package dodo

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Webhook headers follow the Standard Webhooks convention used by Dodo.
const (
	HeaderWebhookID        = "webhook-id"
	HeaderWebhookSignature = "webhook-signature"
	HeaderWebhookTimestamp = "webhook-timestamp"

	secretPrefix = "whsec_"

	defaultTimestampTolerance = 5 * time.Minute
)

var (
	ErrMissingHeaders   = errors.New("webhook headers missing")
	ErrInvalidTimestamp = errors.New("webhook timestamp invalid")
	ErrTimestampTooOld  = errors.New("webhook timestamp outside tolerance")
	ErrInvalidSignature = errors.New("webhook signature mismatch")
	errEmptySecret      = errors.New("webhook secret is required")
	errMalformedSecret  = errors.New("webhook secret is not valid base64")
)

// Verifier checks webhook payload signatures using HMAC-SHA256 over
// "{id}.{timestamp}.{body}" as the Standard Webhooks spec prescribes.
type Verifier struct {
	key       []byte
	tolerance time.Duration
	now       func() time.Time
}

// NewVerifier parses the signing secret. The "whsec_" prefix is optional.
func NewVerifier(secret string) (*Verifier, error) {
	trimmed := strings.TrimSpace(secret)
	if trimmed == "" {
		return nil, errEmptySecret
	}
	trimmed = strings.TrimPrefix(trimmed, secretPrefix)

	key, err := base64.StdEncoding.DecodeString(trimmed)
	if err != nil {
		return nil, errMalformedSecret
	}

	return &Verifier{
		key:       key,
		tolerance: defaultTimestampTolerance,
		now:       time.Now,
	}, nil
}

// Verify validates the signature headers against the raw request body.
func (v *Verifier) Verify(body []byte, id, timestamp, signatures string) error {
	if v == nil {
		return errEmptySecret
	}
	if id == "" || timestamp == "" || signatures == "" {
		return ErrMissingHeaders
	}

	unix, err := strconv.ParseInt(strings.TrimSpace(timestamp), 10, 64)
	if err != nil {
		return ErrInvalidTimestamp
	}
	sent := time.Unix(unix, 0)
	if drift := v.now().Sub(sent); drift > v.tolerance || drift < -v.tolerance {
		return ErrTimestampTooOld
	}

	expected := v.sign(id, timestamp, body)

	// The header may carry several space-separated versioned signatures.
	for _, candidate := range strings.Fields(signatures) {
		parts := strings.SplitN(candidate, ",", 2)
		if len(parts) != 2 || parts[0] != "v1" {
			continue
		}
		provided, err := base64.StdEncoding.DecodeString(parts[1])
		if err != nil {
			continue
		}
		if hmac.Equal(provided, expected) {
			return nil
		}
	}
	return ErrInvalidSignature
}

func (v *Verifier) sign(id, timestamp string, body []byte) []byte {
	mac := hmac.New(sha256.New, v.key)
	fmt.Fprintf(mac, "%s.%s.%s", id, timestamp, body)
	return mac.Sum(nil)
}
