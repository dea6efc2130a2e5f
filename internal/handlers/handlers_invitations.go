package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"noyel/internal/kdo"
)

func (a *API) handleInvite(w http.ResponseWriter, r *http.Request) {
	presentID, ok := uuidParam(r, "presentID")
	if !ok {
		notFound(w)
		return
	}
	var req struct {
		User string `json:"user"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := a.svc.Gifts.Invite(r.Context(), currentUser(r), presentID, req.User)
	if res.Invitation != nil {
		a.svc.Metrics.InvitationCreated()
	}
	switch {
	case errors.Is(err, kdo.ErrAlreadyInvited):
		respondError(w, http.StatusConflict, "already_invited",
			fmt.Sprintf("The user %q has already been invited to this present.", strings.TrimSpace(req.User)))
	case errors.Is(err, kdo.ErrMailDelivery) && res.Invitation != nil:
		respondJSON(w, http.StatusBadGateway, map[string]any{
			"error":      "mail_delivery",
			"message":    "The invitation has been created but its email could not be sent.",
			"invitation": res.Invitation,
		})
	case err != nil:
		writeError(w, r, err)
	case res.Added != nil:
		respondJSON(w, http.StatusOK, map[string]any{
			"added":   res.Added,
			"message": "The user has been added to the present's participants successfully.",
		})
	default:
		respondJSON(w, http.StatusCreated, map[string]any{
			"invitation": res.Invitation,
			"message":    "An email has been sent to the user inviting them to participate to this present.",
		})
	}
}

func (a *API) handlePresentInvitations(w http.ResponseWriter, r *http.Request) {
	presentID, ok := uuidParam(r, "presentID")
	if !ok {
		notFound(w)
		return
	}
	invitations, err := a.svc.Gifts.ListPresentInvitations(r.Context(), currentUser(r), presentID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"invitations": invitations})
}

func (a *API) handleListInvitations(w http.ResponseWriter, r *http.Request) {
	invitations, err := a.svc.Gifts.ListInvitations(r.Context(), currentUser(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"invitations": invitations})
}

// handleRedeemForm redeems a token typed in by the user.
func (a *API) handleRedeemForm(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	a.redeem(w, r, req.Token)
}

func (a *API) handleRedeem(w http.ResponseWriter, r *http.Request) {
	a.redeem(w, r, chi.URLParam(r, "token"))
}

func (a *API) redeem(w http.ResponseWriter, r *http.Request, token string) {
	present, err := a.svc.Gifts.Redeem(r.Context(), currentUser(r), token)
	if err != nil {
		writeError(w, r, err)
		return
	}
	a.svc.Metrics.InvitationRedeemed()
	respondJSON(w, http.StatusOK, map[string]any{
		"present": present,
		"message": "The invitation has been redeemed successfully.",
	})
}

func (a *API) handleResendInvitation(w http.ResponseWriter, r *http.Request) {
	invitation, err := a.svc.Gifts.ResendInvitation(r.Context(), currentUser(r), chi.URLParam(r, "token"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"invitation": invitation,
		"message":    fmt.Sprintf("The invitation has been sent again to %s.", invitation.SentTo),
	})
}

func (a *API) handleDeleteInvitation(w http.ResponseWriter, r *http.Request) {
	if err := a.svc.Gifts.DeleteInvitation(r.Context(), currentUser(r), chi.URLParam(r, "token")); err != nil {
		writeError(w, r, err)
		return
	}
	respondMessage(w, http.StatusOK, "The invitation has been deleted successfully.")
}
