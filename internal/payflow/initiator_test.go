package payflow

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"spinwish/internal/domain/events"
	"spinwish/internal/domain/requests"
	"spinwish/internal/domain/sessions"
	"spinwish/internal/domain/users"
	"spinwish/internal/mpesa"
)

type initiatorFixture struct {
	sessions  *fakeSessions
	requests  *fakeRequests
	users     *fakeUsers
	events    *fakeEvents
	gateway   *fakeGateway
	notifier  *recordingNotifier
	initiator *Initiator
}

func newInitiatorFixture() *initiatorFixture {
	f := &initiatorFixture{
		sessions: newFakeSessions(),
		requests: newFakeRequests(),
		users:    newFakeUsers(),
		events:   &fakeEvents{},
		gateway: &fakeGateway{
			pushRes: &mpesa.STKPushResponse{
				MerchantRequestID: "mr-1",
				CheckoutRequestID: "ws_CO_new",
				ResponseCode:      "0",
				CustomerMessage:   "Success. Request accepted for processing",
			},
		},
		notifier: &recordingNotifier{},
	}
	f.initiator = NewInitiator(f.sessions, f.requests, f.users, f.events, f.gateway, f.notifier, testLogger())
	return f
}

func (f *initiatorFixture) seedRequest(title string) *requests.SongRequest {
	req := &requests.SongRequest{
		ID:        uuid.New(),
		DJID:      uuid.New(),
		PayerID:   uuid.New(),
		SongTitle: title,
		Status:    requests.StatusPending,
	}
	f.requests.byID[req.ID] = req
	return req
}

func TestInitiateRequestPayment(t *testing.T) {
	f := newInitiatorFixture()
	req := f.seedRequest("Malaika")
	payer := f.users.add(&users.User{Username: "wanjiku", Role: "USER"})

	sess, err := f.initiator.Initiate(context.Background(), InitiateInput{
		PayerID:     payer.ID,
		PhoneNumber: "0712345678",
		Amount:      150,
		RequestID:   &req.ID,
	})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	if sess.Status != sessions.StatusPending {
		t.Errorf("status = %s, want PENDING", sess.Status)
	}
	if sess.CheckoutRequestID != "ws_CO_new" {
		t.Errorf("checkout id = %s, want ws_CO_new", sess.CheckoutRequestID)
	}
	if sess.PhoneNumber != "254712345678" {
		t.Errorf("phone = %s, want normalized 254712345678", sess.PhoneNumber)
	}
	if kind := sess.Target.Kind(); kind != sessions.KindRequest {
		t.Errorf("target kind = %s, want request", kind)
	}
	if rid, ok := sess.Target.RequestID(); !ok || rid != req.ID {
		t.Errorf("target request = %v %v, want %s", rid, ok, req.ID)
	}

	if !f.events.has(events.TypeInitiated) || !f.events.has(events.TypeStkPushSent) {
		t.Errorf("events = %v, want INITIATED and STK_PUSH_SENT", f.events.types())
	}
	if len(f.notifier.sent) != 1 || f.notifier.sent[0].state != "INITIATED" {
		t.Errorf("notifications = %+v, want one INITIATED", f.notifier.sent)
	}
}

func TestInitiateTip(t *testing.T) {
	f := newInitiatorFixture()
	dj := f.users.add(&users.User{Username: "djspin", Role: "DJ"})
	payer := f.users.add(&users.User{Username: "otis", Role: "USER"})
	name := "djspin"

	sess, err := f.initiator.Initiate(context.Background(), InitiateInput{
		PayerID:     payer.ID,
		PhoneNumber: "254722000111",
		Amount:      50,
		DJUsername:  &name,
	})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if djID, ok := sess.Target.DJID(); !ok || djID != dj.ID {
		t.Errorf("target dj = %v %v, want %s", djID, ok, dj.ID)
	}
}

func TestInitiateValidation(t *testing.T) {
	f := newInitiatorFixture()
	req := f.seedRequest("Sitya Loss")
	djName := "djspin"
	missing := uuid.New()

	tests := []struct {
		name string
		in   InitiateInput
	}{
		{"bad phone", InitiateInput{PhoneNumber: "12345", Amount: 100, RequestID: &req.ID}},
		{"amount too small", InitiateInput{PhoneNumber: "0712345678", Amount: 0.5, RequestID: &req.ID}},
		{"amount too large", InitiateInput{PhoneNumber: "0712345678", Amount: 200000, RequestID: &req.ID}},
		{"fractional cents", InitiateInput{PhoneNumber: "0712345678", Amount: 10.999, RequestID: &req.ID}},
		{"no target", InitiateInput{PhoneNumber: "0712345678", Amount: 100}},
		{"both targets", InitiateInput{PhoneNumber: "0712345678", Amount: 100, RequestID: &req.ID, DJUsername: &djName}},
		{"unknown request", InitiateInput{PhoneNumber: "0712345678", Amount: 100, RequestID: &missing}},
		{"unknown dj", InitiateInput{PhoneNumber: "0712345678", Amount: 100, DJUsername: &djName}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := f.initiator.Initiate(context.Background(), tc.in); !IsValidation(err) {
				t.Fatalf("err = %v, want ValidationError", err)
			}
		})
	}

	if f.gateway.pushCalls != 0 {
		t.Errorf("no STK push may be sent for invalid input, got %d calls", f.gateway.pushCalls)
	}
	if len(f.sessions.byCheckout) != 0 {
		t.Errorf("no session may be created for invalid input")
	}
}

func TestInitiateGatewayFailure(t *testing.T) {
	f := newInitiatorFixture()
	req := f.seedRequest("Dumbala")
	f.gateway.pushErr = errors.New("connection refused")

	_, err := f.initiator.Initiate(context.Background(), InitiateInput{
		PayerID:     uuid.New(),
		PhoneNumber: "0712345678",
		Amount:      100,
		RequestID:   &req.ID,
	})
	if !IsNetwork(err) {
		t.Fatalf("err = %v, want NetworkError", err)
	}
	if len(f.sessions.byCheckout) != 0 {
		t.Errorf("failed push must not persist a session")
	}
}

func TestInitiateTimeoutIsRetryableNetworkError(t *testing.T) {
	f := newInitiatorFixture()
	req := f.seedRequest("Suzanna")
	f.gateway.pushErr = context.DeadlineExceeded

	_, err := f.initiator.Initiate(context.Background(), InitiateInput{
		PayerID:     uuid.New(),
		PhoneNumber: "0712345678",
		Amount:      100,
		RequestID:   &req.ID,
	})

	var ne *NetworkError
	if !errors.As(err, &ne) || !ne.Timeout {
		t.Fatalf("err = %v, want NetworkError with Timeout", err)
	}
}
