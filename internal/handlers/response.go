package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fuel-delivery/internal/apperr"
	"github.com/ukydev/fuel-delivery/internal/middleware"
	"github.com/ukydev/fuel-delivery/internal/query"
	"github.com/ukydev/fuel-delivery/internal/services"
)

const maxBodyBytes = 1 << 20

// Envelope is the JSON body of every API response.
type Envelope struct {
	StatusCode int         `json:"statusCode"`
	Success    bool        `json:"success"`
	Message    string      `json:"message"`
	Meta       *query.Meta `json:"meta,omitempty"`
	Data       interface{} `json:"data"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.WithError(err).Warn("failed to encode response")
	}
}

func respond(w http.ResponseWriter, status int, message string, data interface{}) {
	writeJSON(w, status, Envelope{StatusCode: status, Success: true, Message: message, Data: data})
}

func respondPage[T any](w http.ResponseWriter, message string, page *query.Page[T]) {
	data := page.Data
	if data == nil {
		data = []T{}
	}
	writeJSON(w, http.StatusOK, Envelope{
		StatusCode: http.StatusOK,
		Success:    true,
		Message:    message,
		Meta:       &page.Meta,
		Data:       data,
	})
}

// respondError maps err onto the envelope. Server side failures are logged
// with their cause.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.StatusCode(err)
	if status >= http.StatusInternalServerError {
		log.WithError(err).WithFields(log.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
			"status": status,
		}).Error("request failed")
	}
	writeJSON(w, status, Envelope{StatusCode: status, Success: false, Message: apperr.Message(err)})
}

// readBody returns the raw request body.
func readBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, apperr.InvalidInput("Request body too large")
		}
		return nil, apperr.InvalidInput("Failed to read request body")
	}
	return body, nil
}

// decodeJSON reads the request body into dst.
func decodeJSON(r *http.Request, dst interface{}) error {
	body, err := readBody(r)
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return apperr.InvalidInput("Request body is required")
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return apperr.InvalidInput("Invalid JSON")
	}
	return nil
}

// callerFrom returns the authenticated caller of r.
func callerFrom(r *http.Request) (services.Caller, error) {
	claims, _ := middleware.GetUserFromContext(r.Context())
	return services.NewCaller(claims)
}
