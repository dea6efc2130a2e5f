package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"noyel/internal/account"
	"noyel/internal/export"
)

func (a *API) handlePasswordResetRequest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := a.svc.Accounts.RequestPasswordReset(r.Context(), req.Email); err != nil {
		writeError(w, r, err)
		return
	}
	respondMessage(w, http.StatusAccepted, "If the address belongs to an account, a password reset link has been sent to it.")
}

func (a *API) handlePasswordResetConfirm(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password        string `json:"password"`
		PasswordConfirm string `json:"password_confirm"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	err := a.svc.Accounts.ConfirmPasswordReset(r.Context(),
		chi.URLParam(r, "uidb64"), chi.URLParam(r, "token"), req.Password, req.PasswordConfirm)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondMessage(w, http.StatusOK, "Your password has been set. You may log in now.")
}

func (a *API) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"user": currentUser(r)})
}

func (a *API) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username    string `json:"username"`
		DisplayName string `json:"display_name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	user, err := a.svc.Accounts.UpdateProfile(r.Context(), currentUser(r), req.Username, req.DisplayName)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"user":    user,
		"message": "Your profile has been updated successfully.",
	})
}

func (a *API) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OldPassword     string `json:"old_password"`
		Password        string `json:"password"`
		PasswordConfirm string `json:"password_confirm"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := a.svc.Accounts.ChangePassword(r.Context(), currentUser(r), req.OldPassword, req.Password, req.PasswordConfirm); err != nil {
		writeError(w, r, err)
		return
	}
	respondMessage(w, http.StatusOK, "Your password has been changed successfully.")
}

func (a *API) handleListEmails(w http.ResponseWriter, r *http.Request) {
	emails, err := a.svc.Accounts.ListEmails(r.Context(), currentUser(r).ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"emails": emails})
}

func (a *API) handleAddEmail(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	address, err := a.svc.Accounts.AddEmail(r.Context(), currentUser(r), req.Email)
	if err != nil {
		if errors.Is(err, account.ErrMailDelivery) {
			respondJSON(w, http.StatusBadGateway, map[string]any{
				"error":   "mail_delivery",
				"message": fmt.Sprintf("The address %s has been added but the verification email could not be sent.", address.Email),
				"email":   address,
			})
			return
		}
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"email":   address,
		"message": fmt.Sprintf("A verification email has been sent to %s.", address.Email),
	})
}

func (a *API) handleDeleteEmail(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(r, "emailID")
	if !ok {
		notFound(w)
		return
	}
	if err := a.svc.Accounts.DeleteEmail(r.Context(), currentUser(r).ID, id); err != nil {
		writeError(w, r, err)
		return
	}
	respondMessage(w, http.StatusOK, "The email address has been removed successfully.")
}

func (a *API) handleResendVerification(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(r, "emailID")
	if !ok {
		notFound(w)
		return
	}
	address, err := a.svc.Accounts.ResendVerification(r.Context(), currentUser(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"email":   address,
		"message": fmt.Sprintf("A verification email has been sent to %s.", address.Email),
	})
}

func (a *API) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	address, err := a.svc.Accounts.VerifyEmail(r.Context(), currentUser(r), chi.URLParam(r, "email"), chi.URLParam(r, "token"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"email":   address,
		"message": fmt.Sprintf("The address %s has been verified successfully.", address.Email),
	})
}

// handleExport uploads the archive and returns a download link when storage is
// configured, and streams it otherwise.
func (a *API) handleExport(w http.ResponseWriter, r *http.Request) {
	if a.svc.Exporter == nil {
		writeError(w, r, export.ErrStorageDisabled)
		return
	}
	var req struct {
		Recipient string `json:"recipient"`
	}
	if err := decodeOptionalJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	user := currentUser(r)

	if a.svc.Exporter.CanUpload() {
		upload, err := a.svc.Exporter.Upload(r.Context(), user, req.Recipient)
		if err != nil {
			writeError(w, r, err)
			return
		}
		respondJSON(w, http.StatusCreated, map[string]any{
			"export":  upload,
			"message": "Your data export is ready for download.",
		})
		return
	}

	var buf bytes.Buffer
	archive, err := a.svc.Exporter.Write(r.Context(), &buf, user, req.Recipient)
	if err != nil {
		writeError(w, r, err)
		return
	}
	contentType := "application/zstd"
	if archive.Encrypted {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", export.FileName(user.Username, archive.CreatedAt, archive.Encrypted)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
