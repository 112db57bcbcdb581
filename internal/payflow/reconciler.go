package payflow

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"spinwish/internal/domain/events"
	"spinwish/internal/domain/sessions"
	"spinwish/internal/metrics"
	"spinwish/internal/worker"
)

const statusQueryTimeout = 10 * time.Second

// Reconciler sweeps sessions stuck in PENDING, asks the provider for their
// real outcome and routes the answer through the same CallbackProcessor a
// live webhook would hit. A session whose callback was lost converges to
// the identical terminal state.
type Reconciler struct {
	sessions    sessions.Store
	events      events.Store
	gateway     Gateway
	processor   *CallbackProcessor
	concurrency int
	logger      *zap.SugaredLogger
}

func NewReconciler(
	sess sessions.Store,
	evts events.Store,
	gateway Gateway,
	processor *CallbackProcessor,
	concurrency int,
	logger *zap.SugaredLogger,
) *Reconciler {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Reconciler{
		sessions:    sess,
		events:      evts,
		gateway:     gateway,
		processor:   processor,
		concurrency: concurrency,
		logger:      logger,
	}
}

// ReconcilePending runs one sweep over all currently pending sessions.
// Per-session failures are logged and never abort the batch. The pool is
// drained before returning, so cycles never overlap each other's work.
func (r *Reconciler) ReconcilePending(ctx context.Context) {
	metrics.ReconciliationRuns.Inc()

	pending, err := r.sessions.ListPending(ctx)
	if err != nil {
		r.logger.Errorw("pending session sweep failed", "error", err)
		return
	}
	if len(pending) == 0 {
		return
	}
	r.logger.Infow("reconciling pending sessions", "count", len(pending))

	pool := worker.NewPool(r.concurrency)
	for _, sess := range pending {
		sess := sess
		pool.Submit(func() {
			r.reconcileOne(ctx, sess)
		})
	}
	pool.Stop()
}

func (r *Reconciler) reconcileOne(ctx context.Context, sess *sessions.Session) {
	checkoutID := sess.CheckoutRequestID

	if err := r.sessions.IncrementRetry(ctx, checkoutID); err != nil {
		r.logger.Errorw("retry counter not bumped", "checkout_request_id", checkoutID, "error", err)
	}
	attempt := sess.RetryCount + 1
	r.appendEvent(ctx, &events.Entry{
		CheckoutRequestID: checkoutID,
		EventType:         events.TypeRetryAttempted,
		Details:           map[string]any{"attempt": attempt},
	})
	r.appendEvent(ctx, &events.Entry{
		CheckoutRequestID: checkoutID,
		EventType:         events.TypeQuerySent,
	})

	queryCtx, cancel := context.WithTimeout(ctx, statusQueryTimeout)
	defer cancel()

	q, err := r.gateway.QueryStatus(queryCtx, checkoutID)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			r.appendEvent(ctx, &events.Entry{
				CheckoutRequestID: checkoutID,
				EventType:         events.TypeTimeout,
			})
		}
		r.logger.Errorw("status query failed, session stays pending",
			"checkout_request_id", checkoutID, "error", err)
		return
	}

	code := int(q.ResultCode)
	r.appendEvent(ctx, &events.Entry{
		CheckoutRequestID: checkoutID,
		EventType:         events.TypeQueryResponse,
		ResultCode:        &code,
		ResultDescription: &q.ResultDesc,
	})

	switch {
	case code == 0:
		env := q.SynthesizeCallback()
		if env.Body.StkCallback.CheckoutRequestID == "" {
			env.Body.StkCallback.CheckoutRequestID = checkoutID
		}
		if err := r.processor.Process(ctx, env); err != nil {
			r.logger.Errorw("reconciled completion not applied",
				"checkout_request_id", checkoutID, "error", err)
			return
		}
		metrics.ReconciliationResolved.WithLabelValues("completed").Inc()

	case q.StillPending():
		// The prompt may still be on the payer's screen. Next cycle.
		r.logger.Debugw("session still pending at provider", "checkout_request_id", checkoutID)

	default:
		env := q.SynthesizeCallback()
		if env.Body.StkCallback.CheckoutRequestID == "" {
			env.Body.StkCallback.CheckoutRequestID = checkoutID
		}
		if err := r.processor.Process(ctx, env); err != nil {
			r.logger.Errorw("reconciled failure not applied",
				"checkout_request_id", checkoutID, "error", err)
			return
		}
		metrics.ReconciliationResolved.WithLabelValues("failed").Inc()
	}
}

// QueryAndResolve serves the on-demand status probe: it queries the
// provider for one session, applies any terminal outcome and returns the
// refreshed session. Already-settled sessions are returned as-is.
func (r *Reconciler) QueryAndResolve(ctx context.Context, checkoutID string) (*sessions.Session, error) {
	sess, err := r.sessions.GetByCheckoutID(ctx, checkoutID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, validationf("stk session %s not found", checkoutID)
	}
	if sess.Status.Terminal() {
		return sess, nil
	}

	r.reconcileOne(ctx, sess)

	refreshed, err := r.sessions.GetByCheckoutID(ctx, checkoutID)
	if err != nil {
		return nil, err
	}
	if refreshed == nil {
		return sess, nil
	}
	return refreshed, nil
}

func (r *Reconciler) appendEvent(ctx context.Context, e *events.Entry) {
	if err := r.events.Append(ctx, e); err != nil {
		r.logger.Errorw("audit event not recorded",
			"checkout_request_id", e.CheckoutRequestID,
			"event_type", e.EventType,
			"error", err,
		)
	}
}
