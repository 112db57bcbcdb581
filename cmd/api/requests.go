package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"spinwish/internal/domain/refunds"
	"spinwish/internal/payflow"
)

type RejectRequestResponse struct {
	RequestID uuid.UUID       `json:"request_id"`
	Status    string          `json:"status"`
	Refund    *refunds.Refund `json:"refund,omitempty"`
}

// RejectRequest godoc
//
//	@Summary		Reject a song request
//	@Description	Marks the request REJECTED and, if it was already paid for, refunds the payer over M-Pesa B2C. Rejecting the same request again returns the existing refund.
//	@Tags			Requests
//	@Produce		json
//	@Param			requestID	path		string					true	"Song request ID"
//	@Success		200			{object}	RejectRequestResponse	"Rejection outcome"
//	@Failure		403			{object}	error					"Not the request's DJ"
//	@Failure		404			{object}	error					"Request not found"
//	@Failure		502			{object}	error					"Refund payout failed"
//	@Security		ApiKeyAuth
//	@Router			/requests/{requestID}/reject [post]
func (app *application) rejectRequestHandler(w http.ResponseWriter, r *http.Request) {
	requestID, err := uuid.Parse(chi.URLParam(r, "requestID"))
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	req, err := app.store.Requests.GetByID(r.Context(), requestID)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}
	if req == nil {
		app.notFoundResponse(w, r, errRequestNotFound)
		return
	}

	user := getUserFromContext(r)
	if req.DJID != user.ID {
		app.forbiddenResponse(w, r)
		return
	}

	transitioned, err := app.store.Requests.MarkRejected(r.Context(), requestID)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}
	if !transitioned {
		app.logger.Infow("request already rejected", "request_id", requestID)
	}

	refund, err := app.refunder.RefundForRejectedRequest(r.Context(), requestID)
	if err != nil {
		// The rejection itself is persisted. Report the payout failure so
		// the DJ's client can surface it; the refund row stays FAILED for
		// operator follow-up.
		if payflow.IsNetwork(err) {
			app.badGatewayResponse(w, r, err)
			return
		}
		app.internalServerError(w, r, err)
		return
	}

	if refund != nil && refund.Status == refunds.StatusCompleted {
		reference := ""
		if refund.TransactionID != nil {
			reference = *refund.TransactionID
		}
		app.receipts.sendRefundNotice(req.PayerID, reference, refund.Amount)
	}

	resp := RejectRequestResponse{
		RequestID: requestID,
		Status:    "REJECTED",
		Refund:    refund,
	}
	if err := app.jsonResponse(w, http.StatusOK, resp); err != nil {
		app.internalServerError(w, r, err)
	}
}
