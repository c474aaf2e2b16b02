package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/lexara-six/ingestion/internal/domain"
)

type errorEnvelope struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, _ *http.Request, err error, details interface{}) {
	code := http.StatusInternalServerError
	codeStr := "INTERNAL"
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		code = http.StatusBadRequest
		codeStr = "INVALID_ARGUMENT"
	case errors.Is(err, domain.ErrNotFound):
		code = http.StatusNotFound
		codeStr = "NOT_FOUND"
	case errors.Is(err, domain.ErrAlreadyExists):
		code = http.StatusConflict
		codeStr = "ALREADY_EXISTS"
	case errors.Is(err, domain.ErrRaceLost):
		code = http.StatusConflict
		codeStr = "RACE_LOST"
	case errors.Is(err, domain.ErrCircuitOpen):
		code = http.StatusServiceUnavailable
		codeStr = "CIRCUIT_OPEN"
	case errors.Is(err, domain.ErrNoLoader):
		code = http.StatusUnprocessableEntity
		codeStr = "NO_LOADER"
	case errors.Is(err, domain.ErrInternal):
		code = http.StatusInternalServerError
		codeStr = "INTERNAL"
	}
	writeJSON(w, code, errorEnvelope{Error: apiError{Code: codeStr, Message: err.Error(), Details: details}})
}
