package http

import (
	"encoding/json"
	"net/http"

	"budgetpipe/internal/log"
	"budgetpipe/internal/middleware/trace"
)

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError logs server-side failures and writes a JSON error body.
func writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	ctx := r.Context()
	if status >= http.StatusInternalServerError {
		log.FromContext(ctx).WithComponent(log.ComponentHTTP).ErrorContext(ctx, "Request failed",
			log.FieldPath, r.URL.Path,
			log.FieldError, err.Error())
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), RequestID: trace.GetRequestID(ctx)})
}
