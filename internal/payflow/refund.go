package payflow

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"spinwish/internal/domain/payments"
	"spinwish/internal/domain/refunds"
	"spinwish/internal/metrics"
)

const b2cPayoutTimeout = 15 * time.Second

// RefundOrchestrator issues compensating payouts when a song request is
// rejected after the payer was already charged. The unique refund-per-
// payment constraint in the store makes the payout at-most-once even under
// concurrent rejection handling.
type RefundOrchestrator struct {
	payments payments.Store
	refunds  refunds.Store
	gateway  Gateway
	refs     *refunds.ReferenceGenerator
	logger   *zap.SugaredLogger
}

func NewRefundOrchestrator(
	pays payments.Store,
	refs refunds.Store,
	gateway Gateway,
	gen *refunds.ReferenceGenerator,
	logger *zap.SugaredLogger,
) *RefundOrchestrator {
	return &RefundOrchestrator{
		payments: pays,
		refunds:  refs,
		gateway:  gateway,
		refs:     gen,
		logger:   logger,
	}
}

// RefundForRejectedRequest refunds the payment behind a rejected request.
// A request that was never paid for is a valid no-op (nil, nil). A payment
// that already has a refund row, in any status, returns that row untouched.
func (o *RefundOrchestrator) RefundForRejectedRequest(ctx context.Context, requestID uuid.UUID) (*refunds.Refund, error) {
	pay, err := o.payments.GetRequestPaymentByRequestID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if pay == nil {
		o.logger.Infow("rejected request has no payment, nothing to refund", "request_id", requestID)
		return nil, nil
	}

	if existing, err := o.refunds.GetByRequestPaymentID(ctx, pay.ID); err != nil {
		return nil, err
	} else if existing != nil {
		o.logger.Infow("refund already recorded for payment",
			"request_id", requestID,
			"refund_id", existing.ID,
			"status", existing.Status,
		)
		return existing, nil
	}

	rf, err := o.refunds.Create(ctx, &refunds.Refund{
		RequestPaymentID: pay.ID,
		Amount:           pay.Amount,
		Reason:           "Song request rejected by DJ",
		RefundMethod:     "MPESA_B2C",
	})
	if err != nil {
		// A concurrent rejection may have claimed the unique slot between
		// our lookup and insert. If its row is there, defer to it.
		if existing, lookupErr := o.refunds.GetByRequestPaymentID(ctx, pay.ID); lookupErr == nil && existing != nil {
			o.logger.Infow("concurrent refund won the insert, deferring",
				"request_id", requestID, "refund_id", existing.ID)
			return existing, nil
		}
		return nil, err
	}

	payoutCtx, cancel := context.WithTimeout(ctx, b2cPayoutTimeout)
	defer cancel()

	res, err := o.gateway.B2CPayout(payoutCtx, pay.PhoneNumber, pay.Amount, "Refund for rejected song request")
	if err != nil {
		nerr := networkErr("b2c payout", err)
		if markErr := o.refunds.MarkFailed(ctx, rf.ID, nerr.Error()); markErr != nil {
			o.logger.Errorw("refund failure not recorded", "refund_id", rf.ID, "error", markErr)
		}
		metrics.RefundsTotal.WithLabelValues("FAILED").Inc()
		o.logger.Errorw("refund payout failed",
			"request_id", requestID,
			"refund_id", rf.ID,
			"amount", pay.Amount,
			"error", err,
		)
		rf.Status = refunds.StatusFailed
		return rf, nerr
	}

	txID := res.ConversationID
	if txID == "" {
		txID = o.refs.Generate()
	}
	if err := o.refunds.MarkCompleted(ctx, rf.ID, txID); err != nil {
		return rf, err
	}
	metrics.RefundsTotal.WithLabelValues("COMPLETED").Inc()

	rf.Status = refunds.StatusCompleted
	rf.TransactionID = &txID
	o.logger.Infow("refund completed",
		"request_id", requestID,
		"refund_id", rf.ID,
		"amount", pay.Amount,
		"transaction_id", txID,
	)
	return rf, nil
}
