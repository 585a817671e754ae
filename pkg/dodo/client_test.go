package dodo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	pkgerrors "github.com/subsage-app/subsage-backend/pkg/errors"
)

func TestNewClientRequiresAPIKey(t *testing.T) {
	if _, err := NewClient("   "); err == nil {
		t.Fatal("expected error for blank api key")
	}
}

func TestCreateCheckoutSession(t *testing.T) {
	var gotAuth string
	var gotBody CheckoutSessionRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method %s", r.Method)
		}
		if r.URL.Path != "/checkout_sessions" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"session_id":"cks_123","url":"https://checkout.dodopayments.com/cks_123"}`))
	}))
	defer server.Close()

	client, err := NewClient("sk_test", WithBaseURL(server.URL))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	session, err := client.CreateCheckoutSession(context.Background(), CheckoutSessionRequest{
		Customer:    Customer{Email: "alex@example.com", Name: "alex@example.com"},
		ProductCart: []ProductCartItem{{ProductID: "prod_1", Quantity: 1}},
		PaymentLink: true,
		ReturnURL:   "https://app.subsage.dev/settings",
		Metadata:    map[string]string{"user_id": "u-1"},
	})
	if err != nil {
		t.Fatalf("create checkout session: %v", err)
	}

	if gotAuth != "Bearer sk_test" {
		t.Fatalf("unexpected authorization header %q", gotAuth)
	}
	if gotBody.Metadata["user_id"] != "u-1" {
		t.Fatalf("metadata user_id not forwarded: %#v", gotBody.Metadata)
	}
	if session.SessionID != "cks_123" {
		t.Fatalf("unexpected session id %q", session.SessionID)
	}
	if session.CheckoutURL != "https://checkout.dodopayments.com/cks_123" {
		t.Fatalf("unexpected checkout url %q", session.CheckoutURL)
	}
}

func TestCreateCheckoutSessionUpstreamFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":"provider down"}`))
	}))
	defer server.Close()

	client, err := NewClient("sk_test", WithBaseURL(server.URL))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	_, err = client.CreateCheckoutSession(context.Background(), CheckoutSessionRequest{
		Customer:    Customer{Email: "alex@example.com"},
		ProductCart: []ProductCartItem{{ProductID: "prod_1", Quantity: 1}},
	})
	if err == nil {
		t.Fatal("expected upstream error")
	}

	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeUpstream {
		t.Fatalf("expected %s, got %v", pkgerrors.CodeUpstream, err)
	}
	if !strings.Contains(err.Error(), "dodo request failed") {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestCreateCheckoutSessionValidation(t *testing.T) {
	client, err := NewClient("sk_test")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	_, err = client.CreateCheckoutSession(context.Background(), CheckoutSessionRequest{
		ProductCart: []ProductCartItem{{ProductID: "prod_1", Quantity: 1}},
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateCustomerPortalSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/customers/cus_42/customer_portal" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		var payload struct {
			ReturnURL string `json:"return_url"`
			SendEmail bool   `json:"send_email"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if payload.SendEmail {
			t.Fatal("send_email should be false")
		}
		_, _ = w.Write([]byte(`{"link":"https://portal.dodopayments.com/s/abc"}`))
	}))
	defer server.Close()

	client, err := NewClient("sk_test", WithBaseURL(server.URL))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	portal, err := client.CreateCustomerPortalSession(context.Background(), "cus_42", "https://app.subsage.dev/settings")
	if err != nil {
		t.Fatalf("create portal session: %v", err)
	}
	if portal.PortalURL != "https://portal.dodopayments.com/s/abc" {
		t.Fatalf("unexpected portal url %q", portal.PortalURL)
	}
}

func TestCreateCustomerPortalSessionRequiresCustomerID(t *testing.T) {
	client, err := NewClient("sk_test")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	_, err = client.CreateCustomerPortalSession(context.Background(), "  ", "https://app.subsage.dev")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}
