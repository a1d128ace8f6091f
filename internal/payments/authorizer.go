package payments

import (
	"context"
	"fmt"

	"github.com/example/skillbook/internal/models"
	"github.com/shopspring/decimal"
)

// Authorizer manages the authorization lifecycle for the chosen payment
// method: Authorize reserves the funds before submission and returns the
// intent/reference id carried on the booking, Capture finalizes the
// reservation once the booking is acknowledged, and Release frees it when
// the submission fails.
type Authorizer interface {
	Authorize(ctx context.Context, method models.PaymentMethod, amount decimal.Decimal, currency string) (string, error)
	Capture(ctx context.Context, method models.PaymentMethod, ref string) error
	Release(ctx context.Context, method models.PaymentMethod, ref string) error
}

// CardHolder is the cash-side backend (Stripe in production).
type CardHolder interface {
	Hold(ctx context.Context, amount int64, currency, customerID string) (string, error)
	Capture(ctx context.Context, paymentIntentID string) error
	Cancel(ctx context.Context, paymentIntentID string) error
}

// TokenGranter is the spark-token backend (the wallet service in production).
type TokenGranter interface {
	GrantTokenAuthorization(ctx context.Context, amount decimal.Decimal) (string, error)
	RevokeTokenAuthorization(ctx context.Context, reference string) error
}

// Service routes authorization to the method's backend. The booking flow
// never branches on method itself; the single branch lives here.
type Service struct {
	Cards      CardHolder
	Tokens     TokenGranter
	CustomerID string
}

func (s *Service) Authorize(ctx context.Context, method models.PaymentMethod, amount decimal.Decimal, currency string) (string, error) {
	switch method {
	case models.MethodWallet:
		// stripe amounts are minor units
		minor := amount.Shift(2).IntPart()
		return s.Cards.Hold(ctx, minor, currency, s.CustomerID)
	case models.MethodSparkToken:
		return s.Tokens.GrantTokenAuthorization(ctx, amount)
	}
	return "", fmt.Errorf("payments: unknown method %q", method)
}

func (s *Service) Capture(ctx context.Context, method models.PaymentMethod, ref string) error {
	switch method {
	case models.MethodWallet:
		return s.Cards.Capture(ctx, ref)
	case models.MethodSparkToken:
		// a granted token reservation is consumed by the booking service
		return nil
	}
	return fmt.Errorf("payments: unknown method %q", method)
}

func (s *Service) Release(ctx context.Context, method models.PaymentMethod, ref string) error {
	switch method {
	case models.MethodWallet:
		return s.Cards.Cancel(ctx, ref)
	case models.MethodSparkToken:
		return s.Tokens.RevokeTokenAuthorization(ctx, ref)
	}
	return fmt.Errorf("payments: unknown method %q", method)
}
