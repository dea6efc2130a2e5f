package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"noyel/internal/kdo"
)

func (a *API) handleLanding(w http.ResponseWriter, r *http.Request) {
	landing, err := a.svc.Gifts.Landing(r.Context(), currentUser(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, landing)
}

func (a *API) handleListPresents(w http.ResponseWriter, r *http.Request) {
	presents, err := a.svc.Gifts.ListPresents(r.Context(), currentUser(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"presents": presents})
}

func (a *API) handleCreatePresent(w http.ResponseWriter, r *http.Request) {
	var req kdo.PresentInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	a.createPresent(w, r, req)
}

func (a *API) createPresent(w http.ResponseWriter, r *http.Request, in kdo.PresentInput) {
	present, err := a.svc.Gifts.CreatePresent(r.Context(), currentUser(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"present": present,
		"message": "The present has been created successfully.",
	})
}

func (a *API) handleListForGiftee(w http.ResponseWriter, r *http.Request) {
	giftee := chi.URLParam(r, "giftee")
	presents, err := a.svc.Gifts.ListForGiftee(r.Context(), currentUser(r), giftee)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"giftee": giftee, "presents": presents})
}

// handleCreateForGiftee creates a present whose giftee comes from the path.
func (a *API) handleCreateForGiftee(w http.ResponseWriter, r *http.Request) {
	var req kdo.PresentInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	req.Giftee = chi.URLParam(r, "giftee")
	a.createPresent(w, r, req)
}

func (a *API) handleGetPresent(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(r, "presentID")
	if !ok {
		notFound(w)
		return
	}
	detail, err := a.svc.Gifts.GetPresent(r.Context(), currentUser(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, detail)
}

func (a *API) handleUpdatePresent(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(r, "presentID")
	if !ok {
		notFound(w)
		return
	}
	var req kdo.PresentInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	present, err := a.svc.Gifts.UpdatePresent(r.Context(), currentUser(r), id, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"present": present,
		"message": "The present has been updated successfully.",
	})
}

func (a *API) handleDeletePresent(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(r, "presentID")
	if !ok {
		notFound(w)
		return
	}
	if err := a.svc.Gifts.DeletePresent(r.Context(), currentUser(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	respondMessage(w, http.StatusOK, "The present has been deleted successfully.")
}

func (a *API) handlePurchase(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(r, "presentID")
	if !ok {
		notFound(w)
		return
	}
	present, err := a.svc.Gifts.PurchasePresent(r.Context(), currentUser(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"present": present,
		"message": "You have been marked as the buyer of this present successfully.",
	})
}

func (a *API) handleCancelPurchase(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(r, "presentID")
	if !ok {
		notFound(w)
		return
	}
	present, err := a.svc.Gifts.CancelPurchase(r.Context(), currentUser(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"present": present,
		"message": "You are no longer marked as the buyer of this present.",
	})
}

func (a *API) handleSimilar(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(r, "presentID")
	if !ok {
		notFound(w)
		return
	}
	presents, err := a.svc.Gifts.ListSimilar(r.Context(), currentUser(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"presents": presents})
}

func (a *API) handleRemoveParticipant(w http.ResponseWriter, r *http.Request) {
	presentID, ok := uuidParam(r, "presentID")
	if !ok {
		notFound(w)
		return
	}
	userID, ok := uuidParam(r, "userID")
	if !ok {
		notFound(w)
		return
	}
	if err := a.svc.Gifts.RemoveParticipant(r.Context(), currentUser(r), presentID, userID); err != nil {
		writeError(w, r, err)
		return
	}
	respondMessage(w, http.StatusOK, "The user has been removed from the present's participants successfully.")
}

func (a *API) handleCreateComment(w http.ResponseWriter, r *http.Request) {
	presentID, ok := uuidParam(r, "presentID")
	if !ok {
		notFound(w)
		return
	}
	var req struct {
		Text string `json:"text"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	comment, err := a.svc.Gifts.CreateComment(r.Context(), currentUser(r), presentID, req.Text)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"comment": comment,
		"message": "The comment has been created successfully.",
	})
}

func (a *API) handleUpdateComment(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(r, "commentID")
	if !ok {
		notFound(w)
		return
	}
	var req struct {
		Text string `json:"text"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	comment, err := a.svc.Gifts.UpdateComment(r.Context(), currentUser(r), id, req.Text)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"comment": comment,
		"message": "The comment has been updated successfully.",
	})
}

func (a *API) handleDeleteComment(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(r, "commentID")
	if !ok {
		notFound(w)
		return
	}
	if err := a.svc.Gifts.DeleteComment(r.Context(), currentUser(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	respondMessage(w, http.StatusOK, "The comment has been deleted successfully.")
}
