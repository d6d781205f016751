package paypalwebhook

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/mercura-io/storefront-backend/internal/checkout"
	"github.com/mercura-io/storefront-backend/pkg/db/models"
	pkgerrors "github.com/mercura-io/storefront-backend/pkg/errors"
	"github.com/mercura-io/storefront-backend/pkg/logger"
	"github.com/mercura-io/storefront-backend/pkg/paypal"
)

// Event types the storefront reacts to. Everything else is accepted
// and dropped so PayPal does not retry forever.
const (
	EventOrderApproved    = "CHECKOUT.ORDER.APPROVED"
	EventCaptureCompleted = "PAYMENT.CAPTURE.COMPLETED"
	EventCaptureDenied    = "PAYMENT.CAPTURE.DENIED"
)

// Event is the slice of a PayPal webhook payload the storefront reads.
type Event struct {
	ID        string        `json:"id"`
	EventType string        `json:"event_type"`
	Resource  EventResource `json:"resource"`
}

// EventResource identifies the provider object the event refers to.
// For order events Resource.ID is the provider order id; for capture
// events it is the capture id and the order id sits in the
// supplementary related ids.
type EventResource struct {
	ID                string `json:"id"`
	Status            string `json:"status"`
	SupplementaryData struct {
		RelatedIDs struct {
			OrderID string `json:"order_id"`
		} `json:"related_ids"`
	} `json:"supplementary_data"`
}

type orderSettler interface {
	OrderByProviderID(ctx context.Context, providerOrderID string) (*models.Order, error)
	ApplyPaymentOutcome(ctx context.Context, orderID uuid.UUID, outcome checkout.PaymentOutcome) (*models.Order, error)
}

type paymentCapturer interface {
	CapturePayment(ctx context.Context, paymentID string) (*paypal.CaptureResult, error)
}

// ServiceParams configure the webhook handler.
type ServiceParams struct {
	Orders   orderSettler
	Capturer paymentCapturer
	Logger   *logger.Logger
}

// Service translates PayPal webhook events into payment outcomes.
// Outcome application is idempotent downstream, so replayed events are
// harmless even past the dedupe window.
type Service struct {
	orders   orderSettler
	capturer paymentCapturer
	logg     *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order settler required")
	}
	if params.Capturer == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment capturer required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		orders:   params.Orders,
		capturer: params.Capturer,
		logg:     params.Logger,
	}, nil
}

func (s *Service) HandleEvent(ctx context.Context, event *Event) error {
	if event == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "event required")
	}

	switch event.EventType {
	case EventOrderApproved:
		return s.captureApproved(ctx, event.Resource.ID)
	case EventCaptureCompleted:
		return s.settle(ctx, event.Resource.SupplementaryData.RelatedIDs.OrderID, checkout.PaymentOutcome{
			Succeeded:     true,
			TransactionID: event.Resource.ID,
		})
	case EventCaptureDenied:
		return s.settle(ctx, event.Resource.SupplementaryData.RelatedIDs.OrderID, checkout.PaymentOutcome{
			Succeeded: false,
			Reason:    "capture denied",
		})
	default:
		logCtx := s.logg.WithField(ctx, "event_type", event.EventType)
		s.logg.Info(logCtx, "ignoring paypal event")
		return nil
	}
}

// captureApproved captures the buyer-approved provider order and
// applies the result. Approval can also arrive via the synchronous
// capture endpoint first; the terminal-state check makes this a no-op
// then.
func (s *Service) captureApproved(ctx context.Context, providerOrderID string) error {
	order, err := s.lookup(ctx, providerOrderID)
	if err != nil || order == nil {
		return err
	}
	if order.Status.IsTerminal() {
		return nil
	}

	result, err := s.capturer.CapturePayment(ctx, providerOrderID)
	if err != nil {
		return err
	}

	outcome := checkout.PaymentOutcome{
		Succeeded:     result.Succeeded(),
		TransactionID: result.ExternalTransactionID,
	}
	if !outcome.Succeeded {
		outcome.Reason = "capture returned status " + result.Status
	}
	_, err = s.orders.ApplyPaymentOutcome(ctx, order.ID, outcome)
	return err
}

func (s *Service) settle(ctx context.Context, providerOrderID string, outcome checkout.PaymentOutcome) error {
	order, err := s.lookup(ctx, providerOrderID)
	if err != nil || order == nil {
		return err
	}
	_, err = s.orders.ApplyPaymentOutcome(ctx, order.ID, outcome)
	return err
}

// lookup resolves the storefront order. Events for orders this system
// never created are logged and dropped.
func (s *Service) lookup(ctx context.Context, providerOrderID string) (*models.Order, error) {
	providerOrderID = strings.TrimSpace(providerOrderID)
	if providerOrderID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "provider order id missing from event")
	}

	order, err := s.orders.OrderByProviderID(ctx, providerOrderID)
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeNotFound {
			logCtx := s.logg.WithField(ctx, "provider_order_id", providerOrderID)
			s.logg.Warn(logCtx, "paypal event references unknown order")
			return nil, nil
		}
		return nil, err
	}
	return order, nil
}
