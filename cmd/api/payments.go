package main

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"spinwish/internal/payflow"
)

type InitiateStkPushPayload struct {
	PhoneNumber string     `json:"phone_number" validate:"required,kenyanphone"`
	Amount      float64    `json:"amount" validate:"required,gt=0"`
	RequestID   *uuid.UUID `json:"request_id,omitempty"`
	DJUsername  *string    `json:"dj_username,omitempty"`
}

// InitiateStkPush godoc
//
//	@Summary		Initiate an M-Pesa STK push payment
//	@Description	Sends an STK push prompt to the payer's phone for a song request or a DJ tip. The payment settles asynchronously; poll the session status or wait for a push notification.
//	@Tags			Payments
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		InitiateStkPushPayload	true	"Payment details"
//	@Success		202		{object}	sessions.Session		"Pending payment session"
//	@Failure		400		{object}	error					"Invalid request payload"
//	@Failure		401		{object}	error					"Unauthorized"
//	@Failure		502		{object}	error					"Payment provider unavailable"
//	@Security		ApiKeyAuth
//	@Router			/payments/stk-push [post]
func (app *application) initiateStkPushHandler(w http.ResponseWriter, r *http.Request) {
	var payload InitiateStkPushPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	user := getUserFromContext(r)

	sess, err := app.initiator.Initiate(r.Context(), payflow.InitiateInput{
		PayerID:     user.ID,
		PhoneNumber: payload.PhoneNumber,
		Amount:      payload.Amount,
		RequestID:   payload.RequestID,
		DJUsername:  payload.DJUsername,
	})
	if err != nil {
		switch {
		case payflow.IsValidation(err):
			app.badRequestResponse(w, r, err)
		case payflow.IsNetwork(err):
			app.badGatewayResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	if err := app.jsonResponse(w, http.StatusAccepted, sess); err != nil {
		app.internalServerError(w, r, err)
	}
}

// MpesaCallback godoc
//
//	@Summary		M-Pesa STK push callback
//	@Description	Receives the asynchronous payment confirmation from the Daraja API. Duplicate deliveries are acknowledged without reprocessing.
//	@Tags			Payments
//	@Accept			json
//	@Produce		json
//	@Success		200	{object}	map[string]any	"Acknowledgement"
//	@Failure		500	{object}	error			"Processing error, provider should retry"
//	@Router			/payments/callback [post]
func (app *application) mpesaCallbackHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1_048_578))
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := app.callbacks.ProcessRaw(r.Context(), body); err != nil {
		if payflow.IsData(err) {
			// Unusable payload. Retrying it changes nothing, so tell the
			// provider we are done with it.
			app.logger.Errorw("discarding unusable stk callback", "error", err)
		} else {
			// Transient failure on our side; a retry can still settle it.
			app.internalServerError(w, r, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ResultCode": 0,
		"ResultDesc": "Accepted",
	})
}

// ListPayments godoc
//
//	@Summary		List confirmed payments
//	@Description	Returns recent confirmed payments, song request charges and DJ tips merged, newest first.
//	@Tags			Payments
//	@Produce		json
//	@Param			limit	query		int				false	"Maximum rows to return (default 50)"
//	@Success		200		{array}		payments.Record	"Payments"
//	@Failure		401		{object}	error			"Unauthorized"
//	@Security		ApiKeyAuth
//	@Router			/payments [get]
func (app *application) listPaymentsHandler(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if val := r.URL.Query().Get("limit"); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil || parsed < 1 || parsed > 500 {
			app.badRequestResponse(w, r, errInvalidLimit)
			return
		}
		limit = parsed
	}

	records, err := app.store.Payments.ListRecords(r.Context(), limit)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, records); err != nil {
		app.internalServerError(w, r, err)
	}
}

// GetPayment godoc
//
//	@Summary		Get one confirmed payment
//	@Tags			Payments
//	@Produce		json
//	@Param			paymentID	path		string			true	"Payment ID"
//	@Success		200			{object}	payments.Record	"Payment"
//	@Failure		404			{object}	error			"Payment not found"
//	@Security		ApiKeyAuth
//	@Router			/payments/{paymentID} [get]
func (app *application) getPaymentHandler(w http.ResponseWriter, r *http.Request) {
	paymentID, err := uuid.Parse(chi.URLParam(r, "paymentID"))
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	record, err := app.store.Payments.GetRecordByID(r.Context(), paymentID)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}
	if record == nil {
		app.notFoundResponse(w, r, errPaymentNotFound)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, record); err != nil {
		app.internalServerError(w, r, err)
	}
}

// GetSessionStatus godoc
//
//	@Summary		Get the status of an STK push session
//	@Description	Reads the session from local state without contacting the provider. Use the query endpoint to force a provider check.
//	@Tags			Payments
//	@Produce		json
//	@Param			checkoutRequestID	path		string				true	"Checkout request ID"
//	@Success		200					{object}	sessions.Session	"Session"
//	@Failure		404					{object}	error				"Session not found"
//	@Security		ApiKeyAuth
//	@Router			/payments/status/{checkoutRequestID} [get]
func (app *application) getSessionStatusHandler(w http.ResponseWriter, r *http.Request) {
	checkoutID := chi.URLParam(r, "checkoutRequestID")

	sess, err := app.store.Sessions.GetByCheckoutID(r.Context(), checkoutID)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}
	if sess == nil {
		app.notFoundResponse(w, r, errSessionNotFound)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, sess); err != nil {
		app.internalServerError(w, r, err)
	}
}

// QueryStkPush godoc
//
//	@Summary		Query the provider for a session's outcome
//	@Description	Asks the Daraja API for the charge outcome and applies it immediately, instead of waiting for the next reconciliation sweep.
//	@Tags			Payments
//	@Produce		json
//	@Param			checkoutRequestID	path		string				true	"Checkout request ID"
//	@Success		200					{object}	sessions.Session	"Refreshed session"
//	@Failure		404					{object}	error				"Session not found"
//	@Security		ApiKeyAuth
//	@Router			/payments/query/{checkoutRequestID} [post]
func (app *application) queryStkPushHandler(w http.ResponseWriter, r *http.Request) {
	checkoutID := chi.URLParam(r, "checkoutRequestID")

	sess, err := app.reconciler.QueryAndResolve(r.Context(), checkoutID)
	if err != nil {
		if payflow.IsValidation(err) {
			app.notFoundResponse(w, r, err)
			return
		}
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, sess); err != nil {
		app.internalServerError(w, r, err)
	}
}

// GetPaymentEvents godoc
//
//	@Summary		Get the audit trail of a payment
//	@Description	Returns every lifecycle event recorded for a checkout request id, newest first.
//	@Tags			Payments
//	@Produce		json
//	@Param			checkoutRequestID	path		string			true	"Checkout request ID"
//	@Success		200					{array}		events.Entry	"Events"
//	@Failure		401					{object}	error			"Unauthorized"
//	@Security		ApiKeyAuth
//	@Router			/payments/events/{checkoutRequestID} [get]
func (app *application) getPaymentEventsHandler(w http.ResponseWriter, r *http.Request) {
	checkoutID := chi.URLParam(r, "checkoutRequestID")

	entries, err := app.store.Events.ListByCheckoutID(r.Context(), checkoutID)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, entries); err != nil {
		app.internalServerError(w, r, err)
	}
}

// GetDJEarnings godoc
//
//	@Summary		Get a DJ's confirmed earnings
//	@Description	Sums confirmed song request payments and tips for a DJ. Pending and failed sessions never contribute.
//	@Tags			DJs
//	@Produce		json
//	@Param			djID	path		string				true	"DJ user ID"
//	@Success		200		{object}	payments.Earnings	"Earnings"
//	@Failure		401		{object}	error				"Unauthorized"
//	@Security		ApiKeyAuth
//	@Router			/djs/{djID}/earnings [get]
func (app *application) getDJEarningsHandler(w http.ResponseWriter, r *http.Request) {
	djID, err := uuid.Parse(chi.URLParam(r, "djID"))
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	earnings, err := app.store.Payments.EarningsForDJ(r.Context(), djID)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, earnings); err != nil {
		app.internalServerError(w, r, err)
	}
}
