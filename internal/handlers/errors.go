package handlers

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/hlog"

	"noyel/internal/account"
	"noyel/internal/export"
	"noyel/internal/kdo"
	"noyel/internal/session"
)

type errorClass struct {
	target error
	status int
	code   string
}

// errorClasses is checked in order; the first match wins.
var errorClasses = []errorClass{
	{errBadRequest, http.StatusBadRequest, "bad_request"},

	{account.ErrNotFound, http.StatusNotFound, "not_found"},
	{kdo.ErrNotFound, http.StatusNotFound, "not_found"},

	{account.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
	{session.ErrNotFound, http.StatusUnauthorized, "unauthenticated"},

	{account.ErrInvalidToken, http.StatusBadRequest, "invalid_token"},
	{kdo.ErrInvalidToken, http.StatusBadRequest, "invalid_token"},

	{account.ErrInvalidUsername, http.StatusUnprocessableEntity, "invalid_username"},
	{account.ErrWeakPassword, http.StatusUnprocessableEntity, "weak_password"},
	{account.ErrPasswordMismatch, http.StatusUnprocessableEntity, "password_mismatch"},
	{account.ErrInvalidInput, http.StatusUnprocessableEntity, "invalid_input"},
	{kdo.ErrInvalidInput, http.StatusUnprocessableEntity, "invalid_input"},
	{kdo.ErrUnknownFriend, http.StatusUnprocessableEntity, "unknown_friend"},
	{export.ErrInvalidRecipient, http.StatusUnprocessableEntity, "invalid_recipient"},

	{account.ErrUsernameTaken, http.StatusConflict, "username_taken"},
	{account.ErrEmailTaken, http.StatusConflict, "email_taken"},
	{account.ErrAlreadyVerified, http.StatusConflict, "already_verified"},
	{kdo.ErrAlreadyInvited, http.StatusConflict, "already_invited"},
	{kdo.ErrAlreadyBought, http.StatusConflict, "already_bought"},
	{kdo.ErrNotBuyer, http.StatusConflict, "not_buyer"},

	{account.ErrMailDelivery, http.StatusBadGateway, "mail_delivery"},
	{kdo.ErrMailDelivery, http.StatusBadGateway, "mail_delivery"},

	{export.ErrStorageDisabled, http.StatusServiceUnavailable, "storage_disabled"},
}

// classify maps a domain error to its HTTP status and error code.
func classify(err error) (int, string, bool) {
	for _, c := range errorClasses {
		if errors.Is(err, c.target) {
			return c.status, c.code, true
		}
	}
	return http.StatusInternalServerError, "internal", false
}

// writeError renders err as the JSON error envelope. Unknown errors are logged
// and reported without detail.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, known := classify(err)
	if !known {
		hlog.FromRequest(r).Error().Err(err).Msg("request failed")
		respondError(w, status, code, "internal error")
		return
	}
	if status >= http.StatusInternalServerError {
		hlog.FromRequest(r).Warn().Err(err).Msg("request partially failed")
	}
	respondError(w, status, code, err.Error())
}
