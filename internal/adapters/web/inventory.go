package web

import (
	"net/http"
	"strconv"

	"finledger/internal/app"
)

// registerItem handles POST /inventory/items.
func (h *Handler) registerItem(w http.ResponseWriter, r *http.Request) {
	var body registerItemBody
	if !h.decodeJSON(w, r, &body) {
		return
	}
	item, err := h.svc.RegisterItem(r.Context(), tenantFromContext(r.Context()), app.RegisterItemRequest{
		SKU:          body.SKU,
		Name:         body.Name,
		Category:     body.Category,
		SellingPrice: body.SellingPrice,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

// listItems handles GET /inventory/items?include_inactive=true.
func (h *Handler) listItems(w http.ResponseWriter, r *http.Request) {
	includeInactive, _ := strconv.ParseBool(r.URL.Query().Get("include_inactive"))
	result, err := h.svc.ListItems(r.Context(), tenantFromContext(r.Context()), includeInactive)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// getItem handles GET /inventory/items/{id}.
func (h *Handler) getItem(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	item, err := h.svc.GetItem(r.Context(), tenantFromContext(r.Context()), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// deactivateItem handles POST /inventory/items/{id}/deactivate.
func (h *Handler) deactivateItem(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	item, err := h.svc.DeactivateItem(r.Context(), tenantFromContext(r.Context()), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// listItemMovements handles GET /inventory/items/{id}/movements?from=&to=.
func (h *Handler) listItemMovements(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	h.movements(w, r, id)
}

// listMovements handles GET /inventory/movements?from=&to=.
func (h *Handler) listMovements(w http.ResponseWriter, r *http.Request) {
	h.movements(w, r, 0)
}

func (h *Handler) movements(w http.ResponseWriter, r *http.Request, itemID int64) {
	result, err := h.svc.ListMovements(r.Context(), tenantFromContext(r.Context()), app.MovementQuery{
		ItemID: itemID,
		From:   r.URL.Query().Get("from"),
		To:     r.URL.Query().Get("to"),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// recordMovement handles POST /inventory/movements.
func (h *Handler) recordMovement(w http.ResponseWriter, r *http.Request) {
	var body movementBody
	if !h.decodeJSON(w, r, &body) {
		return
	}
	result, err := h.svc.RecordMovement(r.Context(), tenantFromContext(r.Context()), body.toApp())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// valuation handles GET /inventory/valuation?as_of=.
func (h *Handler) valuation(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.Valuation(r.Context(), tenantFromContext(r.Context()), r.URL.Query().Get("as_of"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
