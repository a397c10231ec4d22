// Package httpjson exposes the scheduling service over an HTTP JSON API.
// Every response uses a uniform result envelope: {"success":true,"data":...}
// or {"success":false,"error":"..."}.
package httpjson

import (
	"encoding/json"
	"log"
	"net/http"

	apperrors "github.com/meetgrid/meetgrid/internal/platform/errors"
)

type successEnvelope struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

type failureEnvelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func writeData(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(successEnvelope{Success: true, Data: data}); err != nil {
		log.Printf("encode response: %v", err)
	}
}

// writeError maps a domain error onto the failure envelope. Internal detail
// never leaks: unknown and internal errors surface a generic string while
// the cause is logged server-side.
func writeError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatus(err)
	message := err.Error()
	if code := apperrors.CodeOf(err); code == apperrors.CodeInternal || code == apperrors.CodeUnknown {
		log.Printf("internal error: %v", err)
		message = "Internal Server Error"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if encodeErr := json.NewEncoder(w).Encode(failureEnvelope{Success: false, Error: message}); encodeErr != nil {
		log.Printf("encode error response: %v", encodeErr)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, target any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		writeError(w, apperrors.New(apperrors.CodeInvalidArgument, "invalid request body"))
		return false
	}
	return true
}
