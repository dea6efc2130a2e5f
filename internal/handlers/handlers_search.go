package handlers

import (
	"net/http"
	"strconv"
)

func searchArgs(r *http.Request) (string, int) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	return r.URL.Query().Get("q"), limit
}

func (a *API) handleSearchGiftee(w http.ResponseWriter, r *http.Request) {
	q, limit := searchArgs(r)
	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	results, err := a.svc.Search.Giftees(ctx, currentUser(r).ID, q, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (a *API) handleSearchFriend(w http.ResponseWriter, r *http.Request) {
	q, limit := searchArgs(r)
	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	results, err := a.svc.Search.Friends(ctx, currentUser(r).ID, q, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"results": results})
}
