// Package handlers implements the HTTP handlers of the attendance API.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/klasio/rollcall/internal/store"
)

// validate checks request DTOs against their struct tags.
var validate = validator.New()

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondValidationError sends a 400 with one entry per failing field.
func respondValidationError(w http.ResponseWriter, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		respondError(w, http.StatusBadRequest, "invalid request")
		return
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}
	respondJSON(w, http.StatusBadRequest, map[string]any{
		"error":  "validation failed",
		"fields": fields,
	})
}

// scopeForm is the class scope shared by the enroll and mark endpoints,
// where class and section are mandatory.
type scopeForm struct {
	ClassName string `validate:"required,max=64"`
	Section   string `validate:"required,max=64"`
	Subject   string `validate:"omitempty,max=64"`
}

func (f scopeForm) scope() store.Scope {
	return store.Scope{ClassName: f.ClassName, Section: f.Section, Subject: f.Subject}
}

// scopeFromQuery builds the optional filter scope for list endpoints. The
// boolean reports whether any filter was given at all.
func scopeFromQuery(r *http.Request) (store.Scope, bool) {
	q := r.URL.Query()
	scope := store.Scope{
		ClassName: q.Get("class_name"),
		Section:   q.Get("section"),
		Subject:   q.Get("subject"),
	}
	return scope, scope.ClassName != "" || scope.Section != "" || scope.Subject != ""
}

// readFormFile reads one uploaded file fully into memory.
func readFormFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
