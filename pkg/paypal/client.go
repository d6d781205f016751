package paypal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	pp "github.com/plutov/paypal/v4"
	"github.com/shopspring/decimal"

	"github.com/mercura-io/storefront-backend/pkg/config"
	pkgerrors "github.com/mercura-io/storefront-backend/pkg/errors"
	"github.com/mercura-io/storefront-backend/pkg/logger"
)

var (
	errCredentialsRequired = errors.New("paypal client id and secret are required")
	errLoggerRequired      = errors.New("paypal logger is required")
)

// Payment is a provider-side payment created for an order, with the
// approval URL the buyer is redirected to.
type Payment struct {
	PaymentID   string `json:"payment_id"`
	ApprovalURL string `json:"approval_url"`
	Status      string `json:"status"`
}

// CaptureResult is the outcome of a capture attempt.
type CaptureResult struct {
	Status                string `json:"status"`
	ExternalTransactionID string `json:"external_transaction_id"`
}

// Succeeded reports whether the capture settled.
func (r *CaptureResult) Succeeded() bool {
	return strings.EqualFold(r.Status, "COMPLETED")
}

// Client wraps the PayPal Orders API with centralized auth, logging,
// and error mapping. One provider order maps to one storefront order.
type Client struct {
	sdk       *pp.Client
	brandName string
	returnURL string
	cancelURL string
	webhookID string
	logger    *logger.Logger
}

// NewClient initializes the PayPal wrapper and fetches an access token
// so bad credentials fail at startup rather than at first checkout.
func NewClient(ctx context.Context, cfg config.PayPalConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	clientID := strings.TrimSpace(cfg.ClientID)
	secret := strings.TrimSpace(cfg.Secret)
	if clientID == "" || secret == "" {
		return nil, errCredentialsRequired
	}

	apiBase := pp.APIBaseSandBox
	if cfg.Live() {
		apiBase = pp.APIBaseLive
	}
	sdk, err := pp.NewClient(clientID, secret, apiBase)
	if err != nil {
		return nil, fmt.Errorf("paypal client: %w", err)
	}
	if _, err := sdk.GetAccessToken(ctx); err != nil {
		return nil, mapPayPalError(err, "authenticate")
	}

	c := &Client{
		sdk:       sdk,
		brandName: cfg.BrandName,
		returnURL: cfg.ReturnURL,
		cancelURL: cfg.CancelURL,
		webhookID: cfg.WebhookID,
		logger:    logg,
	}
	logg.Info(ctx, "paypal client initialized")
	return c, nil
}

// WebhookID returns the configured webhook id used for signature checks.
func (c *Client) WebhookID() string {
	if c == nil {
		return ""
	}
	return c.webhookID
}

// VerifyWebhook checks a webhook request's signature against the
// configured webhook id. The request body is restored after reading.
func (c *Client) VerifyWebhook(ctx context.Context, req *http.Request) error {
	if strings.TrimSpace(c.webhookID) == "" {
		return pkgerrors.New(pkgerrors.CodeInternal, "paypal webhook id not configured")
	}

	resp, err := c.sdk.VerifyWebhookSignature(ctx, req, c.webhookID)
	if err != nil {
		c.log(ctx, "error", "verify_webhook", map[string]any{"error": err.Error()})
		return mapPayPalError(err, "verify webhook")
	}
	if !strings.EqualFold(resp.VerificationStatus, "SUCCESS") {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "webhook signature verification failed")
	}
	return nil
}

// CreatePayment opens a provider order for the given amount and returns
// the id plus the buyer approval URL.
func (c *Client) CreatePayment(ctx context.Context, orderID uuid.UUID, amount decimal.Decimal, currency string) (*Payment, error) {
	units := []pp.PurchaseUnitRequest{{
		ReferenceID: orderID.String(),
		Amount: &pp.PurchaseUnitAmount{
			Currency: currency,
			Value:    amount.StringFixed(2),
		},
	}}
	appCtx := &pp.ApplicationContext{
		BrandName: c.brandName,
		ReturnURL: c.returnURL,
		CancelURL: c.cancelURL,
	}

	c.log(ctx, "request", "create_payment", map[string]any{
		"order_id": orderID.String(),
		"amount":   amount.StringFixed(2),
		"currency": currency,
	})

	order, err := c.sdk.CreateOrder(ctx, pp.OrderIntentCapture, units, nil, appCtx)
	if err != nil {
		c.log(ctx, "error", "create_payment", map[string]any{"error": err.Error()})
		return nil, mapPayPalError(err, "create payment")
	}

	payment := &Payment{
		PaymentID:   order.ID,
		ApprovalURL: approvalLink(order.Links),
		Status:      order.Status,
	}
	c.log(ctx, "response", "create_payment", map[string]any{
		"payment_id": payment.PaymentID,
		"status":     payment.Status,
	})
	return payment, nil
}

// CapturePayment captures an approved provider order and returns the
// settlement status plus the provider transaction id.
func (c *Client) CapturePayment(ctx context.Context, paymentID string) (*CaptureResult, error) {
	if strings.TrimSpace(paymentID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}

	c.log(ctx, "request", "capture_payment", map[string]any{"payment_id": paymentID})

	resp, err := c.sdk.CaptureOrder(ctx, paymentID, pp.CaptureOrderRequest{})
	if err != nil {
		c.log(ctx, "error", "capture_payment", map[string]any{"error": err.Error()})
		return nil, mapPayPalError(err, "capture payment")
	}

	result := &CaptureResult{
		Status:                resp.Status,
		ExternalTransactionID: captureID(resp),
	}
	c.log(ctx, "response", "capture_payment", map[string]any{
		"payment_id":     paymentID,
		"status":         result.Status,
		"transaction_id": result.ExternalTransactionID,
	})
	return result, nil
}

// GetPaymentStatus reads the provider-side status of a payment.
func (c *Client) GetPaymentStatus(ctx context.Context, paymentID string) (string, error) {
	order, err := c.sdk.GetOrder(ctx, paymentID)
	if err != nil {
		return "", mapPayPalError(err, "get payment")
	}
	return order.Status, nil
}

func approvalLink(links []pp.Link) string {
	for _, link := range links {
		if strings.EqualFold(link.Rel, "approve") {
			return link.Href
		}
	}
	return ""
}

func captureID(resp *pp.CaptureOrderResponse) string {
	for _, unit := range resp.PurchaseUnits {
		if unit.Payments == nil {
			continue
		}
		for _, capture := range unit.Payments.Captures {
			if capture.ID != "" {
				return capture.ID
			}
		}
	}
	return ""
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = v
	}
	logCtx := c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Error(logCtx, fmt.Sprintf("paypal %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		c.logger.Info(logCtx, fmt.Sprintf("paypal %s", phase))
	}
}

func mapPayPalError(err error, op string) error {
	if err == nil {
		return nil
	}
	var apiErr *pp.ErrorResponse
	if errors.As(err, &apiErr) && apiErr.Response != nil {
		return pkgerrors.Wrap(domainCodeForStatus(apiErr.Response.StatusCode), err,
			fmt.Sprintf("paypal %s failed", op))
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("paypal %s failed", op))
}

func domainCodeForStatus(status int) pkgerrors.Code {
	switch status {
	case http.StatusUnauthorized:
		return pkgerrors.CodeUnauthorized
	case http.StatusForbidden:
		return pkgerrors.CodeForbidden
	case http.StatusNotFound:
		return pkgerrors.CodeNotFound
	case http.StatusConflict:
		return pkgerrors.CodeConflict
	case http.StatusTooManyRequests:
		return pkgerrors.CodeRateLimit
	case http.StatusUnprocessableEntity:
		return pkgerrors.CodeStateConflict
	default:
		if status >= 400 && status < 500 {
			return pkgerrors.CodeValidation
		}
		return pkgerrors.CodeDependency
	}
}
