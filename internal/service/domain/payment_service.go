package domain

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/sswpa/box-office/internal/gateway"
	"github.com/sswpa/box-office/internal/model"
	"github.com/sswpa/box-office/internal/service"
)

// PaymentService charges orders through the gateway adapter. The
// idempotency key comes from the order itself, so charging the same
// pending order twice can never capture two payments.
type PaymentService interface {
	Charge(ctx context.Context, order *model.Order, paymentToken string) (*gateway.ChargeResult, error)
}

type paymentService struct {
	gateway  gateway.Gateway
	currency string
	log      *zap.Logger
}

var _ PaymentService = (*paymentService)(nil)

func NewPaymentService(gw gateway.Gateway, currency string, log *zap.Logger) *paymentService {
	return &paymentService{
		gateway:  gw,
		currency: currency,
		log:      log,
	}
}

func (s *paymentService) Charge(ctx context.Context, order *model.Order, paymentToken string) (*gateway.ChargeResult, error) {
	if paymentToken == "" {
		return nil, fmt.Errorf("%w: payment token is required", service.ErrValidation)
	}

	result, err := s.gateway.Charge(ctx, gateway.ChargeRequest{
		AmountCents:    order.TotalAmountCents,
		Currency:       s.currency,
		PaymentToken:   paymentToken,
		IdempotencyKey: order.IdempotencyKey(),
	})
	if err != nil {
		if errors.Is(err, gateway.ErrUnavailable) {
			s.log.Warn("gateway unavailable",
				zap.String("reference", order.Reference), zap.Error(err))
			return nil, fmt.Errorf("%w: %v", service.ErrGatewayUnavailable, err)
		}
		return nil, err
	}

	if result.Approved {
		s.log.Info("charge approved",
			zap.String("reference", order.Reference),
			zap.String("payment_ref", result.Reference))
	} else {
		s.log.Info("charge declined",
			zap.String("reference", order.Reference),
			zap.String("reason_code", result.ReasonCode))
	}
	return result, nil
}
