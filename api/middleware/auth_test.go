package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	pkgAuth "github.com/subsage-app/subsage-backend/pkg/auth"
	"github.com/subsage-app/subsage-backend/pkg/config"
	"github.com/subsage-app/subsage-backend/pkg/logger"
)

var testJWT = config.JWTConfig{Secret: "test-secret", Issuer: "subsage-test"}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func TestAuthSeedsContext(t *testing.T) {
	userID := uuid.New()
	token, err := pkgAuth.MintAccessToken(testJWT, time.Now(), pkgAuth.AccessTokenPayload{
		UserID: userID,
		Email:  "alex@example.com",
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	var gotUserID, gotEmail string
	handler := Auth(testJWT, testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID = UserIDFromContext(r.Context())
		gotEmail = UserEmailFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if gotUserID != userID.String() {
		t.Fatalf("user id not seeded, got %q", gotUserID)
	}
	if gotEmail != "alex@example.com" {
		t.Fatalf("email not seeded, got %q", gotEmail)
	}
}

func TestAuthRejectsMissingAndBadTokens(t *testing.T) {
	handler := Auth(testJWT, testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credentials, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for garbage token, got %d", w.Code)
	}

	wrongSecret := config.JWTConfig{Secret: "other-secret", Issuer: testJWT.Issuer}
	token, err := pkgAuth.MintAccessToken(wrongSecret, time.Now(), pkgAuth.AccessTokenPayload{
		UserID: uuid.New(),
		Email:  "alex@example.com",
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong signature, got %d", w.Code)
	}
}

func TestServiceToken(t *testing.T) {
	ran := false
	handler := ServiceToken("svc-token", testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ran = true
	}))

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Authorization", "Bearer svc-token")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if !ran || w.Code != http.StatusOK {
		t.Fatalf("expected handler to run, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong token, got %d", w.Code)
	}
}

func TestServiceTokenDisabledWhenUnset(t *testing.T) {
	handler := ServiceToken("", testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run when disabled")
	}))

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Authorization", "Bearer anything")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 when disabled, got %d", w.Code)
	}
}
