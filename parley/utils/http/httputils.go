package httputils

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"parley/parley/utils/apperr"
	"parley/parley/utils/logging"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.ErrorLogger.Error("encode response", zap.Error(err))
	}
}

// WriteError renders err as {error, details?}. Only 500-class responses carry details.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	resp := ErrorResponse{Error: "Internal Server Error"}
	kind := apperr.KindOf(err)
	status := kind.Status()

	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		resp.Error = appErr.Message
	}
	if status >= http.StatusInternalServerError {
		cause := err
		if appErr != nil && appErr.Err != nil {
			cause = appErr.Err
		}
		resp.Details = cause.Error()
		logging.ErrorLogger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("kind", kind.String()),
			zap.Error(err),
		)
	}
	WriteJSON(w, status, resp)
}

// DecodeJSON treats an empty body as an empty object.
func DecodeJSON(r *http.Request, dst interface{}) error {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return apperr.Wrap(apperr.PayloadTooLarge, "Request body too large", err)
	}
	return apperr.Wrap(apperr.BadRequest, "Invalid JSON body", err)
}
