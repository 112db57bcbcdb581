package payflow

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"spinwish/internal/domain/events"
	"spinwish/internal/domain/payments"
	"spinwish/internal/domain/sessions"
	"spinwish/internal/domain/storage"
	"spinwish/internal/domain/users"
	"spinwish/internal/metrics"
	"spinwish/internal/mpesa"
)

// CallbackProcessor settles sessions from provider confirmations. It is the
// single completion path: live webhooks and reconciliation both feed it, so
// every invariant around idempotency and atomicity is enforced in one place.
type CallbackProcessor struct {
	sessions sessions.Store
	users    users.Store
	events   events.Store
	tx       TxRunner
	notifier Notifier
	receipts Receipts
	logger   *zap.SugaredLogger
}

func NewCallbackProcessor(
	sess sessions.Store,
	usrs users.Store,
	evts events.Store,
	tx TxRunner,
	notifier Notifier,
	receipts Receipts,
	logger *zap.SugaredLogger,
) *CallbackProcessor {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &CallbackProcessor{
		sessions: sess,
		users:    usrs,
		events:   evts,
		tx:       tx,
		notifier: notifier,
		receipts: receipts,
		logger:   logger,
	}
}

// ProcessRaw decodes an inbound webhook body and processes it. A payload
// that cannot even be attributed to a checkout request id comes back as a
// DataError; the transport layer logs it and still acknowledges the
// provider, since retrying an unparseable payload changes nothing.
func (p *CallbackProcessor) ProcessRaw(ctx context.Context, raw []byte) error {
	env, err := mpesa.ParseCallback(raw)
	if err != nil {
		return dataErr("unusable stk callback", err)
	}
	return p.Process(ctx, *env)
}

// Process applies one callback to its session. Safe to call any number of
// times with the same payload: the first delivery settles the session,
// every later one is a logged no-op.
func (p *CallbackProcessor) Process(ctx context.Context, env mpesa.CallbackEnvelope) error {
	start := time.Now()
	defer func() {
		metrics.CallbackDuration.Observe(time.Since(start).Seconds())
	}()

	cb := env.Body.StkCallback
	metrics.CallbacksReceived.WithLabelValues(strconv.Itoa(cb.ResultCode)).Inc()

	if cb.CheckoutRequestID == "" {
		return dataErr("stk callback has no CheckoutRequestID", nil)
	}

	sess, err := p.sessions.GetByCheckoutID(ctx, cb.CheckoutRequestID)
	if err != nil {
		return err
	}
	if sess == nil {
		// Confirmation for a charge this system never initiated, or one
		// whose session insert failed. Nothing to attribute it to.
		p.logger.Errorw("callback for unknown checkout request, discarding",
			"checkout_request_id", cb.CheckoutRequestID,
			"result_code", cb.ResultCode,
		)
		return nil
	}

	paymentType := paymentTypeOf(sess)
	p.appendEvent(ctx, &events.Entry{
		CheckoutRequestID: cb.CheckoutRequestID,
		EventType:         events.TypeCallbackReceived,
		PaymentType:       &paymentType,
		ResultCode:        &cb.ResultCode,
		ResultDescription: &cb.ResultDesc,
		Details:           map[string]any{"merchant_request_id": cb.MerchantRequestID},
	})

	if sess.Status.Terminal() {
		p.logger.Infow("duplicate callback for settled session, ignoring",
			"checkout_request_id", cb.CheckoutRequestID,
			"status", sess.Status,
		)
		return nil
	}

	if cb.ResultCode != 0 {
		return p.settleFailure(ctx, sess, paymentType, cb.ResultCode, cb.ResultDesc)
	}
	return p.settleSuccess(ctx, sess, paymentType, cb)
}

func (p *CallbackProcessor) settleFailure(ctx context.Context, sess *sessions.Session, paymentType string, resultCode int, resultDesc string) error {
	applied, err := p.sessions.MarkFailed(ctx, sess.CheckoutRequestID, resultCode, resultDesc)
	if err != nil {
		return err
	}
	if !applied {
		p.logger.Infow("session already settled, failure callback ignored",
			"checkout_request_id", sess.CheckoutRequestID)
		return nil
	}

	eventType := events.TypeFailed
	if resultCode == mpesa.ResultCodeCancelled {
		eventType = events.TypeCancelled
		metrics.PaymentsCancelled.WithLabelValues(paymentType).Inc()
	} else {
		metrics.PaymentsFailed.WithLabelValues(paymentType, "PROVIDER").Inc()
	}

	p.appendEvent(ctx, &events.Entry{
		CheckoutRequestID: sess.CheckoutRequestID,
		EventType:         eventType,
		PaymentType:       &paymentType,
		Amount:            &sess.Amount,
		ResultCode:        &resultCode,
		ResultDescription: &resultDesc,
		UserID:            &sess.PayerID,
	})

	p.notifier.PaymentStateChanged(sess.PayerID, sess.CheckoutRequestID, string(eventType), sess.Amount)
	p.logger.Infow("stk session failed",
		"checkout_request_id", sess.CheckoutRequestID,
		"result_code", resultCode,
		"result_desc", resultDesc,
	)
	return nil
}

func (p *CallbackProcessor) settleSuccess(ctx context.Context, sess *sessions.Session, paymentType string, cb mpesa.StkCallback) error {
	details, err := cb.CallbackMetadata.ExtractPaymentDetails()
	if err != nil {
		// Leave the session PENDING: a status query during reconciliation
		// returns the same metadata and gets another chance at it.
		p.logger.Errorw("success callback with unusable metadata, session left pending",
			"checkout_request_id", sess.CheckoutRequestID, "error", err)
		return dataErr("success callback with unusable metadata", err)
	}

	p.appendEvent(ctx, &events.Entry{
		CheckoutRequestID: sess.CheckoutRequestID,
		EventType:         events.TypeProcessing,
		PaymentType:       &paymentType,
		Amount:            &details.Amount,
	})

	payerName := p.payerName(ctx, sess)

	var settled bool
	err = p.tx.WithPaymentTx(ctx, func(tx *storage.PaymentTx) error {
		applied, err := tx.Sessions.MarkCompleted(ctx, sess.CheckoutRequestID, details.ReceiptNumber, details.TransactionDate)
		if err != nil {
			return err
		}
		if !applied {
			return nil
		}
		settled = true

		if requestID, ok := sess.Target.RequestID(); ok {
			_, err = tx.Payments.CreateRequestPayment(ctx, &payments.RequestPayment{
				SessionID:       sess.ID,
				RequestID:       requestID,
				PayerID:         sess.PayerID,
				PayerName:       payerName,
				PhoneNumber:     details.PhoneNumber,
				Amount:          details.Amount,
				ReceiptNumber:   details.ReceiptNumber,
				TransactionDate: details.TransactionDate,
			})
			return err
		}
		djID, _ := sess.Target.DJID()
		_, err = tx.Payments.CreateTipPayment(ctx, &payments.TipPayment{
			SessionID:       sess.ID,
			DJID:            djID,
			PayerID:         sess.PayerID,
			PayerName:       payerName,
			PhoneNumber:     details.PhoneNumber,
			Amount:          details.Amount,
			ReceiptNumber:   details.ReceiptNumber,
			TransactionDate: details.TransactionDate,
		})
		return err
	})
	if err != nil {
		return err
	}
	if !settled {
		// Concurrent delivery won the conditional update; that delivery
		// also created the payment row.
		p.logger.Infow("session settled by concurrent delivery",
			"checkout_request_id", sess.CheckoutRequestID)
		return nil
	}

	p.appendEvent(ctx, &events.Entry{
		CheckoutRequestID: sess.CheckoutRequestID,
		EventType:         events.TypeCompleted,
		PaymentType:       &paymentType,
		Amount:            &details.Amount,
		PhoneNumber:       &details.PhoneNumber,
		UserID:            &sess.PayerID,
		Details:           map[string]any{"receipt_number": details.ReceiptNumber},
	})
	metrics.PaymentsCompleted.WithLabelValues(paymentType).Inc()
	p.notifier.PaymentStateChanged(sess.PayerID, sess.CheckoutRequestID, "COMPLETED", details.Amount)

	if p.receipts != nil {
		if err := p.receipts.SendPaymentReceipt(sess.PayerID, details.ReceiptNumber, details.Amount); err != nil {
			p.logger.Errorw("payment receipt not sent",
				"checkout_request_id", sess.CheckoutRequestID, "error", err)
		}
	}

	p.logger.Infow("stk session completed",
		"checkout_request_id", sess.CheckoutRequestID,
		"receipt_number", details.ReceiptNumber,
		"amount", details.Amount,
	)
	return nil
}

func (p *CallbackProcessor) payerName(ctx context.Context, sess *sessions.Session) string {
	u, err := p.users.GetByID(ctx, sess.PayerID)
	if err != nil || u == nil {
		return "M-Pesa Customer"
	}
	return u.Username
}

func (p *CallbackProcessor) appendEvent(ctx context.Context, e *events.Entry) {
	if err := p.events.Append(ctx, e); err != nil {
		p.logger.Errorw("audit event not recorded",
			"checkout_request_id", e.CheckoutRequestID,
			"event_type", e.EventType,
			"error", err,
		)
	}
}

func paymentTypeOf(sess *sessions.Session) string {
	if sess.Target.Kind() == sessions.KindTip {
		return "TIP"
	}
	return "REQUEST"
}
