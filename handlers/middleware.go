package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"runtime/debug"
	"slices"

	"ballunia/models"

	"go.uber.org/zap"
)

// CORS answers every request, matched route or not, with the origin policy.
// Known origins are echoed back; anything else gets the first allowed origin.
// With an empty allow-list no origin is granted.
func CORS(allowed []string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		if origin := allowedOrigin(allowed, r.Header.Get("Origin")); origin != "" {
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
		}
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		h.Add("Vary", "Origin")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func allowedOrigin(allowed []string, origin string) string {
	switch {
	case origin != "" && slices.Contains(allowed, origin):
		return origin
	case len(allowed) > 0:
		return allowed[0]
	}
	return ""
}

func (h *Handler) ErrorHandleMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				h.log.Error("panic occured",
					zap.Any("panic", rec),
					zap.String("path", r.URL.Path),
					zap.ByteString("stacktrace", debug.Stack()),
				)
				writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{
					Error: "something went wrong, contact with service administration",
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type validationResponse struct {
	Error    string   `json:"error"`
	Valid    bool     `json:"valid"`
	Messages []string `json:"messages"`
}

func WriteErrorResponse(w http.ResponseWriter, err error) {
	var invalid *models.ValidationError
	switch {
	case errors.As(err, &invalid):
		writeJSON(w, http.StatusUnprocessableEntity, validationResponse{
			Error:    models.ErrValidationFailed.Error(),
			Messages: invalid.Messages,
		})
	case errors.Is(err, models.ErrConfigNotFound):
		writeJSON(w, http.StatusNotFound, models.ErrorResponse{Error: models.ErrConfigNotFound.Error()})
	case errors.Is(err, models.ErrNotFoundError):
		writeJSON(w, http.StatusNotFound, models.ErrorResponse{Error: err.Error()})
	case errors.Is(err, models.ErrBadRequest):
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
	case errors.Is(err, models.ErrUnauthorized):
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: models.ErrUnauthorized.Error()})
	case errors.Is(err, models.ErrMissingCredentials):
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: models.ErrMissingCredentials.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
