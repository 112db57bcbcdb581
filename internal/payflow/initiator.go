package payflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"spinwish/internal/domain/events"
	"spinwish/internal/domain/requests"
	"spinwish/internal/domain/sessions"
	"spinwish/internal/domain/users"
	"spinwish/internal/metrics"
	"spinwish/internal/mpesa"
)

const stkPushTimeout = 10 * time.Second

// InitiateInput carries a validated-at-the-edge payment request. Exactly one
// of RequestID and DJUsername must be set.
type InitiateInput struct {
	PayerID     uuid.UUID
	PhoneNumber string
	Amount      float64
	RequestID   *uuid.UUID
	DJUsername  *string
}

// Initiator submits STK push charges and opens the pending session that the
// callback or reconciliation will later settle.
type Initiator struct {
	sessions sessions.Store
	requests requests.Store
	users    users.Store
	events   events.Store
	gateway  Gateway
	notifier Notifier
	logger   *zap.SugaredLogger
}

func NewInitiator(
	sess sessions.Store,
	reqs requests.Store,
	usrs users.Store,
	evts events.Store,
	gateway Gateway,
	notifier Notifier,
	logger *zap.SugaredLogger,
) *Initiator {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &Initiator{
		sessions: sess,
		requests: reqs,
		users:    usrs,
		events:   evts,
		gateway:  gateway,
		notifier: notifier,
		logger:   logger,
	}
}

// Initiate validates the input, pushes the charge to the payer's phone and
// records the pending session. The returned session is PENDING; the outcome
// arrives asynchronously.
func (i *Initiator) Initiate(ctx context.Context, in InitiateInput) (*sessions.Session, error) {
	phone, err := mpesa.NormalizePhoneNumber(in.PhoneNumber)
	if err != nil {
		return nil, validationf("invalid phone number: %v", err)
	}
	if err := mpesa.ValidateAmount(in.Amount); err != nil {
		return nil, validationf("invalid amount: %v", err)
	}

	target, description, paymentType, err := i.resolveTarget(ctx, in)
	if err != nil {
		return nil, err
	}

	pushCtx, cancel := context.WithTimeout(ctx, stkPushTimeout)
	defer cancel()

	res, err := i.gateway.STKPush(pushCtx, phone, in.Amount, description)
	if err != nil {
		nerr := networkErr("stk push", err)
		var ne *NetworkError
		if errors.As(nerr, &ne) && ne.Timeout {
			metrics.PaymentsFailed.WithLabelValues(paymentType, "TIMEOUT").Inc()
		} else {
			metrics.PaymentsFailed.WithLabelValues(paymentType, "NETWORK_ERROR").Inc()
		}
		i.logger.Errorw("stk push failed", "phone", phone, "amount", in.Amount, "error", err)
		return nil, nerr
	}

	sess := &sessions.Session{
		CheckoutRequestID: res.CheckoutRequestID,
		Target:            target,
		PayerID:           in.PayerID,
		PhoneNumber:       phone,
		Amount:            in.Amount,
	}
	sess, err = i.sessions.Create(ctx, sess)
	if err != nil {
		// The payer may still get the prompt; without a session the
		// callback will be discarded, which is the documented behavior
		// for unattributable confirmations.
		i.logger.Errorw("stk session not persisted after push",
			"checkout_request_id", res.CheckoutRequestID, "error", err)
		return nil, err
	}

	i.appendEvent(ctx, &events.Entry{
		CheckoutRequestID: sess.CheckoutRequestID,
		EventType:         events.TypeInitiated,
		PaymentType:       &paymentType,
		Amount:            &in.Amount,
		PhoneNumber:       &phone,
		UserID:            &in.PayerID,
	})
	i.appendEvent(ctx, &events.Entry{
		CheckoutRequestID: sess.CheckoutRequestID,
		EventType:         events.TypeStkPushSent,
		PaymentType:       &paymentType,
		Details: map[string]any{
			"merchant_request_id": res.MerchantRequestID,
			"customer_message":    res.CustomerMessage,
		},
	})

	metrics.PaymentsInitiated.WithLabelValues(paymentType).Inc()
	i.notifier.PaymentStateChanged(in.PayerID, sess.CheckoutRequestID, "INITIATED", in.Amount)

	i.logger.Infow("stk push sent",
		"checkout_request_id", sess.CheckoutRequestID,
		"type", paymentType,
		"amount", in.Amount,
	)
	return sess, nil
}

func (i *Initiator) resolveTarget(ctx context.Context, in InitiateInput) (sessions.Target, string, string, error) {
	switch {
	case in.RequestID != nil && in.DJUsername != nil:
		return sessions.Target{}, "", "", validationf("provide either a request id or a dj username, not both")
	case in.RequestID != nil:
		req, err := i.requests.GetByID(ctx, *in.RequestID)
		if err != nil {
			return sessions.Target{}, "", "", err
		}
		if req == nil {
			return sessions.Target{}, "", "", validationf("song request %s not found", in.RequestID)
		}
		desc := fmt.Sprintf("Song request: %s", req.SongTitle)
		return sessions.ForRequest(req.ID), desc, "REQUEST", nil
	case in.DJUsername != nil:
		dj, err := i.users.GetDJByUsername(ctx, *in.DJUsername)
		if err != nil {
			return sessions.Target{}, "", "", err
		}
		if dj == nil {
			return sessions.Target{}, "", "", validationf("dj %q not found", *in.DJUsername)
		}
		desc := fmt.Sprintf("Tip for DJ %s", dj.Username)
		return sessions.ForTip(dj.ID), desc, "TIP", nil
	default:
		return sessions.Target{}, "", "", validationf("provide a request id or a dj username")
	}
}

// appendEvent writes to the audit trail outside the main flow's error
// handling. The trail is observability, not ledger: a failed append is
// logged and the payment proceeds.
func (i *Initiator) appendEvent(ctx context.Context, e *events.Entry) {
	if err := i.events.Append(ctx, e); err != nil {
		i.logger.Errorw("audit event not recorded",
			"checkout_request_id", e.CheckoutRequestID,
			"event_type", e.EventType,
			"error", err,
		)
	}
}
