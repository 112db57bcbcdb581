package payflow

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"

	"spinwish/internal/domain/events"
	"spinwish/internal/domain/sessions"
	"spinwish/internal/domain/users"
	"spinwish/internal/mpesa"
)

type reconcilerFixture struct {
	sessions   *fakeSessions
	payments   *fakePayments
	events     *fakeEvents
	users      *fakeUsers
	gateway    *fakeGateway
	reconciler *Reconciler
}

func newReconcilerFixture() *reconcilerFixture {
	f := &reconcilerFixture{
		sessions: newFakeSessions(),
		payments: &fakePayments{},
		events:   &fakeEvents{},
		users:    newFakeUsers(),
		gateway:  &fakeGateway{queryRes: make(map[string]*mpesa.QueryResponse)},
	}
	tx := &fakeTxRunner{sessions: f.sessions, payments: f.payments, refunds: newFakeRefunds()}
	processor := NewCallbackProcessor(f.sessions, f.users, f.events, tx, nil, nil, testLogger())
	f.reconciler = NewReconciler(f.sessions, f.events, f.gateway, processor, 4, testLogger())
	return f
}

func (f *reconcilerFixture) pendingSession(t *testing.T, checkoutID string, amount float64) *sessions.Session {
	t.Helper()
	payer := f.users.add(&users.User{Username: "wanjiku", Role: "USER"})
	sess, err := f.sessions.Create(context.Background(), &sessions.Session{
		CheckoutRequestID: checkoutID,
		Target:            sessions.ForRequest(uuid.New()),
		PayerID:           payer.ID,
		PhoneNumber:       "254712345678",
		Amount:            amount,
	})
	if err != nil {
		t.Fatalf("seed session: %v", err)
	}
	return sess
}

func successQuery(checkoutID string, amount float64) *mpesa.QueryResponse {
	receipt := "QKREC001"
	date := "20240315143000"
	phone := "254712345678"
	return &mpesa.QueryResponse{
		MerchantRequestID:  "mr-" + checkoutID,
		CheckoutRequestID:  checkoutID,
		ResultCode:         0,
		ResultDesc:         "The service request is processed successfully.",
		Amount:             &amount,
		MpesaReceiptNumber: &receipt,
		TransactionDate:    &date,
		PhoneNumber:        &phone,
	}
}

func TestReconcileCompletesLostCallback(t *testing.T) {
	f := newReconcilerFixture()
	sess := f.pendingSession(t, "ws_CO_lost", 150)
	f.gateway.queryRes["ws_CO_lost"] = successQuery("ws_CO_lost", 150)

	f.reconciler.ReconcilePending(context.Background())

	got, _ := f.sessions.GetByCheckoutID(context.Background(), "ws_CO_lost")
	if got.Status != sessions.StatusCompleted {
		t.Fatalf("status = %s, want COMPLETED", got.Status)
	}
	if got.RetryCount != 1 {
		t.Errorf("retry count = %d, want 1", got.RetryCount)
	}
	if len(f.payments.requestPayments) != 1 {
		t.Fatalf("request payments = %d, want 1", len(f.payments.requestPayments))
	}
	if f.payments.requestPayments[0].SessionID != sess.ID {
		t.Errorf("payment bound to wrong session")
	}
	for _, want := range []events.Type{
		events.TypeRetryAttempted,
		events.TypeQuerySent,
		events.TypeQueryResponse,
		events.TypeCompleted,
	} {
		if !f.events.has(want) {
			t.Errorf("events = %v, missing %s", f.events.types(), want)
		}
	}
}

func TestReconcileMarksTerminalFailure(t *testing.T) {
	f := newReconcilerFixture()
	f.pendingSession(t, "ws_CO_cxl", 80)
	f.gateway.queryRes["ws_CO_cxl"] = &mpesa.QueryResponse{
		CheckoutRequestID: "ws_CO_cxl",
		ResultCode:        1032,
		ResultDesc:        "Request cancelled by user",
	}

	f.reconciler.ReconcilePending(context.Background())

	got, _ := f.sessions.GetByCheckoutID(context.Background(), "ws_CO_cxl")
	if got.Status != sessions.StatusFailed {
		t.Fatalf("status = %s, want FAILED", got.Status)
	}
	if got.ResultCode == nil || *got.ResultCode != 1032 {
		t.Errorf("result code = %v, want 1032", got.ResultCode)
	}
	if !f.events.has(events.TypeCancelled) {
		t.Errorf("events = %v, want CANCELLED", f.events.types())
	}
}

func TestReconcileLeavesStillPendingAlone(t *testing.T) {
	f := newReconcilerFixture()
	f.pendingSession(t, "ws_CO_wait", 40)
	f.gateway.queryRes["ws_CO_wait"] = &mpesa.QueryResponse{
		CheckoutRequestID: "ws_CO_wait",
		ResultCode:        1037,
		ResultDesc:        "The transaction is still pending to be processed",
	}

	f.reconciler.ReconcilePending(context.Background())

	got, _ := f.sessions.GetByCheckoutID(context.Background(), "ws_CO_wait")
	if got.Status != sessions.StatusPending {
		t.Fatalf("status = %s, want PENDING preserved", got.Status)
	}
	if got.RetryCount != 1 {
		t.Errorf("retry count = %d, want 1", got.RetryCount)
	}
}

func TestReconcileQueryErrorDoesNotAbortBatch(t *testing.T) {
	f := newReconcilerFixture()
	f.pendingSession(t, "ws_CO_a", 10)
	f.pendingSession(t, "ws_CO_b", 20)
	f.gateway.queryRes["ws_CO_b"] = successQuery("ws_CO_b", 20)
	// ws_CO_a has no canned response, so its query fails.

	f.reconciler.ReconcilePending(context.Background())

	a, _ := f.sessions.GetByCheckoutID(context.Background(), "ws_CO_a")
	b, _ := f.sessions.GetByCheckoutID(context.Background(), "ws_CO_b")
	if a.Status != sessions.StatusPending {
		t.Errorf("failed query must leave its session pending, got %s", a.Status)
	}
	if b.Status != sessions.StatusCompleted {
		t.Errorf("other sessions must still be processed, got %s", b.Status)
	}
}

func TestReconcileStringTypedQueryMetadata(t *testing.T) {
	// Query responses carry amounts and codes as strings where callbacks
	// use numbers. Both must settle identically.
	f := newReconcilerFixture()
	f.pendingSession(t, "ws_CO_str", 65)

	raw := []byte(`{
		"MerchantRequestID": "mr-ws_CO_str",
		"CheckoutRequestID": "ws_CO_str",
		"ResultCode": "0",
		"ResultDesc": "The service request is processed successfully.",
		"Amount": 65,
		"MpesaReceiptNumber": "QKSTR001",
		"TransactionDate": "20240315143000",
		"PhoneNumber": "254712345678"
	}`)
	var q mpesa.QueryResponse
	if err := json.Unmarshal(raw, &q); err != nil {
		t.Fatalf("decode query: %v", err)
	}
	f.gateway.queryRes["ws_CO_str"] = &q

	f.reconciler.ReconcilePending(context.Background())

	got, _ := f.sessions.GetByCheckoutID(context.Background(), "ws_CO_str")
	if got.Status != sessions.StatusCompleted {
		t.Fatalf("status = %s, want COMPLETED", got.Status)
	}
	if got.ReceiptNumber == nil || *got.ReceiptNumber != "QKSTR001" {
		t.Errorf("receipt = %v, want QKSTR001", got.ReceiptNumber)
	}
}

func TestQueryAndResolveTerminalSessionSkipsProvider(t *testing.T) {
	f := newReconcilerFixture()
	f.pendingSession(t, "ws_CO_done", 30)
	if _, err := f.sessions.MarkFailed(context.Background(), "ws_CO_done", 1, "failed"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	sess, err := f.reconciler.QueryAndResolve(context.Background(), "ws_CO_done")
	if err != nil {
		t.Fatalf("query and resolve: %v", err)
	}
	if sess.Status != sessions.StatusFailed {
		t.Errorf("status = %s, want FAILED", sess.Status)
	}
	if f.gateway.queryCalls != 0 {
		t.Errorf("settled session must not hit the provider, got %d calls", f.gateway.queryCalls)
	}
}

func TestQueryAndResolveUnknownSession(t *testing.T) {
	f := newReconcilerFixture()
	if _, err := f.reconciler.QueryAndResolve(context.Background(), "ws_CO_nope"); !IsValidation(err) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
}

func TestQueryAndResolvePendingSession(t *testing.T) {
	f := newReconcilerFixture()
	f.pendingSession(t, "ws_CO_probe", 45)
	f.gateway.queryRes["ws_CO_probe"] = successQuery("ws_CO_probe", 45)

	sess, err := f.reconciler.QueryAndResolve(context.Background(), "ws_CO_probe")
	if err != nil {
		t.Fatalf("query and resolve: %v", err)
	}
	if sess.Status != sessions.StatusCompleted {
		t.Fatalf("status = %s, want COMPLETED after on-demand probe", sess.Status)
	}
}

func TestReconcileRepeatedCyclesStayIdempotent(t *testing.T) {
	f := newReconcilerFixture()
	f.pendingSession(t, "ws_CO_rep", 25)
	f.gateway.queryRes["ws_CO_rep"] = successQuery("ws_CO_rep", 25)

	f.reconciler.ReconcilePending(context.Background())
	f.reconciler.ReconcilePending(context.Background())

	if len(f.payments.requestPayments) != 1 {
		t.Fatalf("request payments = %d, want 1 across repeated cycles", len(f.payments.requestPayments))
	}
	got, _ := f.sessions.GetByCheckoutID(context.Background(), "ws_CO_rep")
	if got.RetryCount != 1 {
		t.Errorf("retry count = %d, settled sessions must leave the sweep", got.RetryCount)
	}
}
