package dodo

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"testing"
	"time"
)

const testSecret = "whsec_dGVzdC1zaWduaW5nLWtleQ==" // "test-signing-key"

func signPayload(t *testing.T, secret, id, timestamp string, body []byte) string {
	t.Helper()
	key, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		t.Fatalf("decode secret: %v", err)
	}
	mac := hmac.New(sha256.New, key)
	fmt.Fprintf(mac, "%s.%s.%s", id, timestamp, body)
	return "v1," + base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func newTestVerifier(t *testing.T) *Verifier {
	t.Helper()
	verifier, err := NewVerifier(testSecret)
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	return verifier
}

func TestVerifierAcceptsValidSignature(t *testing.T) {
	verifier := newTestVerifier(t)

	body := []byte(`{"type":"subscription.active"}`)
	timestamp := strconv.FormatInt(verifier.now().Unix(), 10)
	sig := signPayload(t, "dGVzdC1zaWduaW5nLWtleQ==", "msg_1", timestamp, body)

	if err := verifier.Verify(body, "msg_1", timestamp, sig); err != nil {
		t.Fatalf("expected valid signature, got %v", err)
	}
}

func TestVerifierAcceptsSecretWithoutPrefix(t *testing.T) {
	if _, err := NewVerifier("dGVzdC1zaWduaW5nLWtleQ=="); err != nil {
		t.Fatalf("expected prefixless secret to parse, got %v", err)
	}
}

func TestVerifierRejectsTamperedBody(t *testing.T) {
	verifier := newTestVerifier(t)

	timestamp := strconv.FormatInt(verifier.now().Unix(), 10)
	sig := signPayload(t, "dGVzdC1zaWduaW5nLWtleQ==", "msg_1", timestamp, []byte(`{"type":"subscription.active"}`))

	err := verifier.Verify([]byte(`{"type":"subscription.cancelled"}`), "msg_1", timestamp, sig)
	if !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected signature mismatch, got %v", err)
	}
}

func TestVerifierRejectsStaleTimestamp(t *testing.T) {
	verifier := newTestVerifier(t)
	verifier.now = func() time.Time { return time.Unix(2_000_000_000, 0) }

	body := []byte(`{}`)
	timestamp := strconv.FormatInt(time.Unix(2_000_000_000, 0).Add(-time.Hour).Unix(), 10)
	sig := signPayload(t, "dGVzdC1zaWduaW5nLWtleQ==", "msg_1", timestamp, body)

	err := verifier.Verify(body, "msg_1", timestamp, sig)
	if !errors.Is(err, ErrTimestampTooOld) {
		t.Fatalf("expected stale timestamp rejection, got %v", err)
	}
}

func TestVerifierRejectsMissingHeaders(t *testing.T) {
	verifier := newTestVerifier(t)

	err := verifier.Verify([]byte(`{}`), "", "", "")
	if !errors.Is(err, ErrMissingHeaders) {
		t.Fatalf("expected missing-header rejection, got %v", err)
	}
}

func TestVerifierSkipsUnknownVersions(t *testing.T) {
	verifier := newTestVerifier(t)

	body := []byte(`{}`)
	timestamp := strconv.FormatInt(verifier.now().Unix(), 10)
	valid := signPayload(t, "dGVzdC1zaWduaW5nLWtleQ==", "msg_1", timestamp, body)

	combined := "v2,bm90LXJlYWw= " + valid
	if err := verifier.Verify(body, "msg_1", timestamp, combined); err != nil {
		t.Fatalf("expected valid v1 entry to win, got %v", err)
	}
}

func TestNewVerifierRejectsBadSecret(t *testing.T) {
	if _, err := NewVerifier(""); err == nil {
		t.Fatal("expected error for empty secret")
	}
	if _, err := NewVerifier("whsec_%%%not-base64"); err == nil {
		t.Fatal("expected error for malformed secret")
	}
}
