package web

import (
	"encoding/json"
	"net/http"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"finledger/internal/core"
)

type errorDetail struct {
	Code        string `json:"code"`
	Reason      string `json:"reason,omitempty"`
	Message     string `json:"message"`
	Line        int    `json:"line,omitempty"`
	AccountCode string `json:"account_code,omitempty"`
	Field       string `json:"field,omitempty"`
}

type errorResponse struct {
	Error     string        `json:"error"`
	Code      string        `json:"code"`
	Reason    string        `json:"reason,omitempty"`
	Details   []errorDetail `json:"details,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, status int, resp errorResponse) {
	resp.RequestID = requestIDFromContext(r.Context())
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// writeJSON writes v as JSON with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps a ledger error code to an HTTP status.
func statusFor(code core.ErrorCode) int {
	switch code {
	case core.CodeAccountNotFound, core.CodeItemNotFound, core.CodeEntryNotFound:
		return http.StatusNotFound
	case core.CodeDuplicateAccount, core.CodeDuplicateItem, core.CodeDuplicateRequest,
		core.CodeAlreadyReversed, core.CodeAccountInUse, core.CodeSystemAccount:
		return http.StatusConflict
	case core.CodeIntegrityViolation:
		return http.StatusInternalServerError
	}
	return http.StatusUnprocessableEntity
}

// writeServiceError reports an error returned by the application service. Ledger
// errors keep their code and every aggregated per-line error becomes a detail;
// anything else is an opaque 500 that is logged, not echoed.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	errs := multierr.Errors(err)
	first, ok := core.AsError(errs[0])
	if !ok {
		h.log.Error("request failed", zap.Error(err), requestIDField(r))
		writeError(w, r, http.StatusInternalServerError, errorResponse{Error: "internal server error", Code: "INTERNAL_ERROR"})
		return
	}

	resp := errorResponse{Error: first.Message, Code: string(first.Code), Reason: string(first.Reason)}
	if len(errs) > 1 {
		resp.Error = err.Error()
	}
	if resp.Error == "" {
		resp.Error = first.Error()
	}
	for _, e := range errs {
		ce, ok := core.AsError(e)
		if !ok {
			continue
		}
		resp.Details = append(resp.Details, errorDetail{
			Code:        string(ce.Code),
			Reason:      string(ce.Reason),
			Message:     ce.Message,
			Line:        ce.Line,
			AccountCode: ce.AccountCode,
		})
	}
	status := statusFor(first.Code)
	if status == http.StatusInternalServerError {
		h.log.Error("integrity violation", zap.Error(err), requestIDField(r))
	}
	writeError(w, r, status, resp)
}
