package resend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	pkgerrors "github.com/subsage-app/subsage-backend/pkg/errors"
)

func TestSend(t *testing.T) {
	var gotPayload struct {
		From    string   `json:"from"`
		To      []string `json:"to"`
		Subject string   `json:"subject"`
		HTML    string   `json:"html"`
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/emails" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer re_test" {
			t.Fatalf("unexpected authorization header %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotPayload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"id":"email_1"}`))
	}))
	defer server.Close()

	client, err := NewClient("re_test", "SubSage <reminders@resend.dev>", WithBaseURL(server.URL))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	id, err := client.Send(context.Background(), Message{
		To:      "alex@example.com",
		Subject: "Upcoming payments",
		HTML:    "<p>hi</p>",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if id != "email_1" {
		t.Fatalf("unexpected message id %q", id)
	}
	if gotPayload.From != "SubSage <reminders@resend.dev>" {
		t.Fatalf("unexpected from %q", gotPayload.From)
	}
	if len(gotPayload.To) != 1 || gotPayload.To[0] != "alex@example.com" {
		t.Fatalf("unexpected to %#v", gotPayload.To)
	}
}

func TestSendUpstreamFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"invalid recipient"}`))
	}))
	defer server.Close()

	client, err := NewClient("re_test", "SubSage <reminders@resend.dev>", WithBaseURL(server.URL))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	_, err = client.Send(context.Background(), Message{To: "bad", Subject: "x", HTML: "y"})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeUpstream {
		t.Fatalf("expected %s, got %v", pkgerrors.CodeUpstream, err)
	}
}

func TestSendRequiresRecipient(t *testing.T) {
	client, err := NewClient("re_test", "SubSage <reminders@resend.dev>")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	_, err = client.Send(context.Background(), Message{Subject: "x"})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	if _, err := NewClient("", "SubSage <reminders@resend.dev>"); err == nil {
		t.Fatal("expected error for blank api key")
	}
}
