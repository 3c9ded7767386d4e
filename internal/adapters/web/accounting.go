package web

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"finledger/internal/app"
)

// ── Chart of accounts ─────────────────────────────────────────────────────────

// listAccounts handles GET /accounts.
func (h *Handler) listAccounts(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListAccounts(r.Context(), tenantFromContext(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// getAccount handles GET /accounts/{code}.
func (h *Handler) getAccount(w http.ResponseWriter, r *http.Request) {
	account, err := h.svc.GetAccount(r.Context(), tenantFromContext(r.Context()), chi.URLParam(r, "code"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

// listChildren handles GET /accounts/{code}/children.
func (h *Handler) listChildren(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListChildren(r.Context(), tenantFromContext(r.Context()), chi.URLParam(r, "code"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// createAccount handles POST /accounts.
func (h *Handler) createAccount(w http.ResponseWriter, r *http.Request) {
	var body createAccountBody
	if !h.decodeJSON(w, r, &body) {
		return
	}
	account, err := h.svc.CreateAccount(r.Context(), tenantFromContext(r.Context()), body.toApp())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, account)
}

// updateAccount handles PATCH /accounts/{code}.
func (h *Handler) updateAccount(w http.ResponseWriter, r *http.Request) {
	var body updateAccountBody
	if !h.decodeJSON(w, r, &body) {
		return
	}
	account, err := h.svc.UpdateAccount(r.Context(), tenantFromContext(r.Context()), chi.URLParam(r, "code"), app.UpdateAccountRequest{
		Name:        body.Name,
		Description: body.Description,
		IsActive:    body.IsActive,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

// deleteAccount handles DELETE /accounts/{code}.
func (h *Handler) deleteAccount(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteAccount(r.Context(), tenantFromContext(r.Context()), chi.URLParam(r, "code")); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// seedChart handles POST /accounts/seed. An empty body seeds the default chart.
func (h *Handler) seedChart(w http.ResponseWriter, r *http.Request) {
	var body seedBody
	if r.ContentLength != 0 && !h.decodeJSON(w, r, &body) {
		return
	}
	result, err := h.svc.SeedChart(r.Context(), tenantFromContext(r.Context()), body.Accounts)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ── Journal ───────────────────────────────────────────────────────────────────

// entrySchema handles GET /journal/entries/schema.
func (h *Handler) entrySchema(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, postEntrySchema())
}

// postEntry handles POST /journal/entries.
func (h *Handler) postEntry(w http.ResponseWriter, r *http.Request) {
	var body postEntryBody
	if !h.decodeJSON(w, r, &body) {
		return
	}
	entry, err := h.svc.PostEntry(r.Context(), tenantFromContext(r.Context()), body.toApp())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// postTemplate handles POST /journal/templates.
func (h *Handler) postTemplate(w http.ResponseWriter, r *http.Request) {
	var body templateBody
	if !h.decodeJSON(w, r, &body) {
		return
	}
	entry, err := h.svc.PostTemplate(r.Context(), tenantFromContext(r.Context()), body.toApp())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// reverseEntry handles POST /journal/entries/{id}/reverse. The body is optional.
func (h *Handler) reverseEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var body reverseBody
	if r.ContentLength != 0 && !h.decodeJSON(w, r, &body) {
		return
	}
	entry, err := h.svc.ReverseEntry(r.Context(), tenantFromContext(r.Context()), app.ReverseEntryRequest{
		EntryID: id,
		Date:    body.Date,
		Memo:    body.Memo,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// getEntry handles GET /journal/entries/{id}.
func (h *Handler) getEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	entry, err := h.svc.GetEntry(r.Context(), tenantFromContext(r.Context()), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// listEntries handles GET /journal/entries?from=&to=&source_type=&account=&limit=.
func (h *Handler) listEntries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 0
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeError(w, r, http.StatusBadRequest, errorResponse{Error: "limit must be a non-negative integer", Code: "BAD_REQUEST"})
			return
		}
		limit = n
	}
	result, err := h.svc.ListEntries(r.Context(), tenantFromContext(r.Context()), app.EntryQuery{
		From:        q.Get("from"),
		To:          q.Get("to"),
		SourceType:  q.Get("source_type"),
		AccountCode: q.Get("account"),
		Limit:       limit,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
