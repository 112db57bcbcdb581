package payflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"spinwish/internal/domain/events"
	"spinwish/internal/domain/payments"
	"spinwish/internal/domain/refunds"
	"spinwish/internal/domain/requests"
	"spinwish/internal/domain/sessions"
	"spinwish/internal/domain/storage"
	"spinwish/internal/domain/users"
	"spinwish/internal/mpesa"
)

func testLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

type fakeSessions struct {
	byCheckout map[string]*sessions.Session
	createErr  error

	// forceCompleteMiss makes MarkCompleted report no row changed, as if a
	// concurrent delivery settled the session between read and update.
	forceCompleteMiss bool
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{byCheckout: make(map[string]*sessions.Session)}
}

func (f *fakeSessions) Create(_ context.Context, s *sessions.Session) (*sessions.Session, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	if _, dup := f.byCheckout[s.CheckoutRequestID]; dup {
		return nil, fmt.Errorf("duplicate checkout_request_id %s", s.CheckoutRequestID)
	}
	s.ID = uuid.New()
	s.Status = sessions.StatusPending
	s.CreatedAt = time.Now()
	f.byCheckout[s.CheckoutRequestID] = s
	return s, nil
}

func (f *fakeSessions) GetByCheckoutID(_ context.Context, checkoutID string) (*sessions.Session, error) {
	s, ok := f.byCheckout[checkoutID]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSessions) ListPending(_ context.Context) ([]*sessions.Session, error) {
	var out []*sessions.Session
	for _, s := range f.byCheckout {
		if s.Status == sessions.StatusPending {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeSessions) MarkCompleted(_ context.Context, checkoutID, receiptNumber string, transactionDate time.Time) (bool, error) {
	if f.forceCompleteMiss {
		return false, nil
	}
	s, ok := f.byCheckout[checkoutID]
	if !ok || s.Status != sessions.StatusPending {
		return false, nil
	}
	s.Status = sessions.StatusCompleted
	s.ReceiptNumber = &receiptNumber
	s.TransactionDate = &transactionDate
	return true, nil
}

func (f *fakeSessions) MarkFailed(_ context.Context, checkoutID string, resultCode int, reason string) (bool, error) {
	s, ok := f.byCheckout[checkoutID]
	if !ok || s.Status != sessions.StatusPending {
		return false, nil
	}
	s.Status = sessions.StatusFailed
	s.ResultCode = &resultCode
	s.FailureReason = &reason
	s.ResultDescription = &reason
	return true, nil
}

func (f *fakeSessions) IncrementRetry(_ context.Context, checkoutID string) error {
	if s, ok := f.byCheckout[checkoutID]; ok {
		s.RetryCount++
	}
	return nil
}

type fakePayments struct {
	requestPayments []*payments.RequestPayment
	tipPayments     []*payments.TipPayment
}

func (f *fakePayments) CreateRequestPayment(_ context.Context, p *payments.RequestPayment) (*payments.RequestPayment, error) {
	for _, existing := range f.requestPayments {
		if existing.SessionID == p.SessionID {
			return nil, fmt.Errorf("duplicate payment for session %s", p.SessionID)
		}
	}
	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	f.requestPayments = append(f.requestPayments, p)
	return p, nil
}

func (f *fakePayments) CreateTipPayment(_ context.Context, p *payments.TipPayment) (*payments.TipPayment, error) {
	for _, existing := range f.tipPayments {
		if existing.SessionID == p.SessionID {
			return nil, fmt.Errorf("duplicate tip for session %s", p.SessionID)
		}
	}
	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	f.tipPayments = append(f.tipPayments, p)
	return p, nil
}

func (f *fakePayments) GetRequestPaymentByRequestID(_ context.Context, requestID uuid.UUID) (*payments.RequestPayment, error) {
	for _, p := range f.requestPayments {
		if p.RequestID == requestID {
			return p, nil
		}
	}
	return nil, nil
}

func (f *fakePayments) GetRecordByID(context.Context, uuid.UUID) (*payments.Record, error) {
	return nil, nil
}

func (f *fakePayments) ListRecords(context.Context, int) ([]*payments.Record, error) {
	return nil, nil
}

func (f *fakePayments) EarningsForDJ(context.Context, uuid.UUID) (*payments.Earnings, error) {
	return nil, nil
}

type fakeRefunds struct {
	byID        map[uuid.UUID]*refunds.Refund
	byPaymentID map[uuid.UUID]*refunds.Refund
}

func newFakeRefunds() *fakeRefunds {
	return &fakeRefunds{
		byID:        make(map[uuid.UUID]*refunds.Refund),
		byPaymentID: make(map[uuid.UUID]*refunds.Refund),
	}
}

func (f *fakeRefunds) Create(_ context.Context, r *refunds.Refund) (*refunds.Refund, error) {
	if _, dup := f.byPaymentID[r.RequestPaymentID]; dup {
		return nil, fmt.Errorf("payment %s already refunded", r.RequestPaymentID)
	}
	r.ID = uuid.New()
	r.Status = refunds.StatusPending
	r.InitiatedAt = time.Now()
	f.byID[r.ID] = r
	f.byPaymentID[r.RequestPaymentID] = r
	return r, nil
}

func (f *fakeRefunds) GetByRequestPaymentID(_ context.Context, paymentID uuid.UUID) (*refunds.Refund, error) {
	r, ok := f.byPaymentID[paymentID]
	if !ok {
		return nil, nil
	}
	return r, nil
}

func (f *fakeRefunds) MarkCompleted(_ context.Context, id uuid.UUID, transactionID string) error {
	r, ok := f.byID[id]
	if !ok {
		return fmt.Errorf("refund %s not found", id)
	}
	now := time.Now()
	r.Status = refunds.StatusCompleted
	r.TransactionID = &transactionID
	r.CompletedAt = &now
	return nil
}

func (f *fakeRefunds) MarkFailed(_ context.Context, id uuid.UUID, reason string) error {
	r, ok := f.byID[id]
	if !ok {
		return fmt.Errorf("refund %s not found", id)
	}
	r.Status = refunds.StatusFailed
	r.FailureReason = &reason
	return nil
}

type fakeEvents struct {
	entries []*events.Entry
}

func (f *fakeEvents) Append(_ context.Context, e *events.Entry) error {
	f.entries = append(f.entries, e)
	return nil
}

func (f *fakeEvents) ListByCheckoutID(_ context.Context, checkoutID string) ([]*events.Entry, error) {
	var out []*events.Entry
	for _, e := range f.entries {
		if e.CheckoutRequestID == checkoutID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeEvents) ListByUser(context.Context, uuid.UUID) ([]*events.Entry, error) {
	return nil, nil
}

func (f *fakeEvents) ListByDJ(context.Context, uuid.UUID) ([]*events.Entry, error) {
	return nil, nil
}

func (f *fakeEvents) ListByTimeRange(context.Context, time.Time, time.Time) ([]*events.Entry, error) {
	return nil, nil
}

func (f *fakeEvents) ListByType(_ context.Context, t events.Type) ([]*events.Entry, error) {
	var out []*events.Entry
	for _, e := range f.entries {
		if e.EventType == t {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeEvents) types() []events.Type {
	out := make([]events.Type, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, e.EventType)
	}
	return out
}

func (f *fakeEvents) has(t events.Type) bool {
	for _, e := range f.entries {
		if e.EventType == t {
			return true
		}
	}
	return false
}

type fakeRequests struct {
	byID map[uuid.UUID]*requests.SongRequest
}

func newFakeRequests() *fakeRequests {
	return &fakeRequests{byID: make(map[uuid.UUID]*requests.SongRequest)}
}

func (f *fakeRequests) GetByID(_ context.Context, id uuid.UUID) (*requests.SongRequest, error) {
	r, ok := f.byID[id]
	if !ok {
		return nil, nil
	}
	return r, nil
}

func (f *fakeRequests) MarkRejected(_ context.Context, id uuid.UUID) (bool, error) {
	r, ok := f.byID[id]
	if !ok || r.Status == requests.StatusRejected {
		return false, nil
	}
	r.Status = requests.StatusRejected
	return true, nil
}

type fakeUsers struct {
	byID       map[uuid.UUID]*users.User
	byUsername map[string]*users.User
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{
		byID:       make(map[uuid.UUID]*users.User),
		byUsername: make(map[string]*users.User),
	}
}

func (f *fakeUsers) add(u *users.User) *users.User {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	f.byID[u.ID] = u
	f.byUsername[u.Username] = u
	return u
}

func (f *fakeUsers) GetByID(_ context.Context, id uuid.UUID) (*users.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return nil, nil
	}
	return u, nil
}

func (f *fakeUsers) GetDJByUsername(_ context.Context, username string) (*users.User, error) {
	u, ok := f.byUsername[username]
	if !ok || u.Role != "DJ" {
		return nil, nil
	}
	return u, nil
}

// fakeTxRunner hands the same in-memory stores to the transactional
// closure. Commit/rollback semantics are not simulated; the assertions
// here are about which writes the flow attempts.
type fakeTxRunner struct {
	sessions *fakeSessions
	payments *fakePayments
	refunds  *fakeRefunds
	err      error
}

func (f *fakeTxRunner) WithPaymentTx(_ context.Context, fn func(tx *storage.PaymentTx) error) error {
	if f.err != nil {
		return f.err
	}
	return fn(&storage.PaymentTx{
		Sessions: f.sessions,
		Payments: f.payments,
		Refunds:  f.refunds,
	})
}

type fakeGateway struct {
	pushRes    *mpesa.STKPushResponse
	pushErr    error
	pushCalls  int
	queryRes   map[string]*mpesa.QueryResponse
	queryErr   error
	queryCalls int
	b2cRes     *mpesa.B2CResult
	b2cErr     error
	b2cCalls   int
}

func (f *fakeGateway) STKPush(_ context.Context, _ string, _ float64, _ string) (*mpesa.STKPushResponse, error) {
	f.pushCalls++
	if f.pushErr != nil {
		return nil, f.pushErr
	}
	return f.pushRes, nil
}

func (f *fakeGateway) QueryStatus(_ context.Context, checkoutRequestID string) (*mpesa.QueryResponse, error) {
	f.queryCalls++
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	q, ok := f.queryRes[checkoutRequestID]
	if !ok {
		return nil, fmt.Errorf("no canned query response for %s", checkoutRequestID)
	}
	return q, nil
}

func (f *fakeGateway) B2CPayout(_ context.Context, _ string, _ float64, _ string) (*mpesa.B2CResult, error) {
	f.b2cCalls++
	if f.b2cErr != nil {
		return nil, f.b2cErr
	}
	return f.b2cRes, nil
}

type recordedNotification struct {
	userID     uuid.UUID
	checkoutID string
	state      string
	amount     float64
}

type recordingNotifier struct {
	sent []recordedNotification
}

func (r *recordingNotifier) PaymentStateChanged(userID uuid.UUID, checkoutID, state string, amount float64) {
	r.sent = append(r.sent, recordedNotification{userID, checkoutID, state, amount})
}

// successCallback builds the standard provider confirmation payload for a
// settled charge.
func successCallback(checkoutID string, amount float64) mpesa.CallbackEnvelope {
	var env mpesa.CallbackEnvelope
	env.Body.StkCallback = mpesa.StkCallback{
		MerchantRequestID: "mr-" + checkoutID,
		CheckoutRequestID: checkoutID,
		ResultCode:        0,
		ResultDesc:        "The service request is processed successfully.",
		CallbackMetadata: &mpesa.CallbackMetadata{Item: []mpesa.MetadataItem{
			{Name: "Amount", Value: amount},
			{Name: "MpesaReceiptNumber", Value: "QK12XYZ789"},
			{Name: "TransactionDate", Value: float64(20240315143000)},
			{Name: "PhoneNumber", Value: float64(254712345678)},
		}},
	}
	return env
}

func failureCallback(checkoutID string, code int, desc string) mpesa.CallbackEnvelope {
	var env mpesa.CallbackEnvelope
	env.Body.StkCallback = mpesa.StkCallback{
		MerchantRequestID: "mr-" + checkoutID,
		CheckoutRequestID: checkoutID,
		ResultCode:        code,
		ResultDesc:        desc,
	}
	return env
}
