package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/quickbite/orderflow/internal/fault"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error   string         `json:"error"`
	Code    string         `json:"code"`
	Kind    string         `json:"kind"`
	Details map[string]any `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg, Code: "bad_request", Kind: string(fault.KindValidation)})
}

// writeFault maps the error taxonomy onto HTTP statuses so clients can decide
// whether to retry, resynchronize or escalate.
func writeFault(w http.ResponseWriter, err error) {
	fe, ok := fault.As(err)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, errorBody{
			Error: "internal error", Code: "internal_error", Kind: string(fault.KindInternal),
		})
		return
	}

	status := http.StatusInternalServerError
	switch fe.Kind {
	case fault.KindValidation:
		status = http.StatusBadRequest
	case fault.KindConflict:
		status = http.StatusConflict
	case fault.KindNotFound:
		status = http.StatusNotFound
	case fault.KindForbidden:
		status = http.StatusForbidden
	case fault.KindUnavailable:
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, errorBody{
		Error:   fe.Message,
		Code:    fe.Code,
		Kind:    string(fe.Kind),
		Details: fe.Meta,
	})
}
