package main

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	pkgerrors "github.com/mercura-io/storefront-backend/pkg/errors"
	"github.com/mercura-io/storefront-backend/pkg/paypal"
)

// disabledProvider satisfies the checkout service's payment provider
// dependency. Sweeps only release holds and expire orders; nothing in
// the worker ever creates or captures a payment.
type disabledProvider struct{}

func (disabledProvider) CreatePayment(context.Context, uuid.UUID, decimal.Decimal, string) (*paypal.Payment, error) {
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment provider disabled in sweeper worker")
}

func (disabledProvider) CapturePayment(context.Context, string) (*paypal.CaptureResult, error) {
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment provider disabled in sweeper worker")
}
