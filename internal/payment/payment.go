// Package payment holds the charge gateway the order saga captures through.
package payment

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrDeclined is a business outcome, not an infrastructure error: a declined
// charge routes the saga to compensation and is never retried.
var ErrDeclined = errors.New("payment declined")

// Gateway captures a payment for an order.
type Gateway interface {
	Charge(ctx context.Context, orderID string, amount decimal.Decimal) error
}

// Simulator stands in for a real payment provider. It approves every charge
// up to Limit; zero Limit approves everything. Deterministic so the saga's
// failure path can be exercised on purpose.
type Simulator struct {
	Limit decimal.Decimal
	log   *zap.SugaredLogger
}

func NewSimulator(limit decimal.Decimal, logger *zap.SugaredLogger) *Simulator {
	return &Simulator{Limit: limit, log: logger}
}

func (s *Simulator) Charge(_ context.Context, orderID string, amount decimal.Decimal) error {
	if s.Limit.IsPositive() && amount.GreaterThan(s.Limit) {
		s.log.Warnf("payment declined for order %s: amount %s over limit %s", orderID, amount, s.Limit)
		return ErrDeclined
	}
	s.log.Infof("payment captured for order %s: %s", orderID, amount)
	return nil
}
