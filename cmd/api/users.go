package main

import (
	"net/http"
)

type RegisterPushTokenPayload struct {
	Token string `json:"token" validate:"required"`
}

// RegisterPushToken godoc
//
//	@Summary		Register an Expo push token
//	@Description	Stores the device token so the payer gets payment state notifications. Re-registering the same token just refreshes it.
//	@Tags			Users
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		RegisterPushTokenPayload	true	"Expo push token"
//	@Success		204		"Token stored"
//	@Failure		400		{object}	error	"Invalid request payload"
//	@Failure		401		{object}	error	"Unauthorized"
//	@Security		ApiKeyAuth
//	@Router			/users/push-token [post]
func (app *application) registerPushTokenHandler(w http.ResponseWriter, r *http.Request) {
	var payload RegisterPushTokenPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	user := getUserFromContext(r)

	if err := app.store.PushTokens.AddOrUpdatePushToken(r.Context(), user.ID, payload.Token); err != nil {
		app.internalServerError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
