package dodo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	pkgerrors "github.com/subsage-app/subsage-backend/pkg/errors"
)

const (
	defaultBaseURL              = "https://api.dodopayments.com"
	responseBodyReadLimit int64 = 4096
)

var errAPIKeyRequired = errors.New("dodo api key is required")

// Client wraps the Dodo Payments endpoints used for checkout and the
// customer portal.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the configured API base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// NewClient builds the Dodo Payments client given an API key.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	trimmedKey := strings.TrimSpace(apiKey)
	if trimmedKey == "" {
		return nil, errAPIKeyRequired
	}

	client := &Client{
		apiKey:     trimmedKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if client.baseURL == "" {
		client.baseURL = defaultBaseURL
	}

	return client, nil
}

// CheckoutSessionRequest describes the payload sent to the checkout endpoint.
type CheckoutSessionRequest struct {
	Billing     Billing           `json:"billing"`
	Customer    Customer          `json:"customer"`
	ProductCart []ProductCartItem `json:"product_cart"`
	PaymentLink bool              `json:"payment_link"`
	ReturnURL   string            `json:"return_url"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Billing is the address block Dodo requires on session creation.
type Billing struct {
	City    string `json:"city"`
	Country string `json:"country"`
	State   string `json:"state"`
	Street  string `json:"street"`
	Zipcode string `json:"zipcode"`
}

// Customer identifies the payer.
type Customer struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// ProductCartItem references a product and quantity.
type ProductCartItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// CheckoutSession is the normalized response from session creation.
type CheckoutSession struct {
	SessionID   string
	CheckoutURL string
}

// PortalSession is the normalized response from portal-link creation.
type PortalSession struct {
	PortalURL string
}

// CreateCheckoutSession creates a hosted checkout session.
func (c *Client) CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (*CheckoutSession, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConfiguration, "dodo client not configured")
	}
	if strings.TrimSpace(req.Customer.Email) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer email is required")
	}
	if len(req.ProductCart) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product cart is required")
	}

	var apiResp struct {
		SessionID string `json:"session_id"`
		URL       string `json:"url"`
	}
	if err := c.post(ctx, "checkout_sessions", req, &apiResp); err != nil {
		return nil, err
	}

	return &CheckoutSession{
		SessionID:   apiResp.SessionID,
		CheckoutURL: apiResp.URL,
	}, nil
}

// CreateCustomerPortalSession creates a management-portal link for an
// existing Dodo customer.
func (c *Client) CreateCustomerPortalSession(ctx context.Context, customerID, returnURL string) (*PortalSession, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConfiguration, "dodo client not configured")
	}
	trimmed := strings.TrimSpace(customerID)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	}

	payload := struct {
		ReturnURL string `json:"return_url"`
		SendEmail bool   `json:"send_email"`
	}{ReturnURL: returnURL, SendEmail: false}

	var apiResp struct {
		Link string `json:"link"`
	}
	path := fmt.Sprintf("customers/%s/customer_portal", url.PathEscape(trimmed))
	if err := c.post(ctx, path, payload, &apiResp); err != nil {
		return nil, err
	}

	return &PortalSession{PortalURL: apiResp.Link}, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, dest any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal dodo request")
	}

	endpoint := strings.TrimRight(c.baseURL, "/") + "/" + path
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build dodo request")
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "execute dodo request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return pkgerrors.Wrap(
			pkgerrors.CodeUpstream,
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))),
			"dodo request failed",
		).WithDetails(map[string]any{
			"status": resp.StatusCode,
			"body":   strings.TrimSpace(string(msg)),
		})
	}

	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "decode dodo response")
	}
	return nil
}
