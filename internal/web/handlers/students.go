package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/klasio/rollcall/internal/store"
)

// StudentsHandler handles the student roster endpoints.
type StudentsHandler struct {
	students store.StudentWriter
	index    *store.StudentIndex
}

// NewStudentsHandler creates a students handler.
func NewStudentsHandler(students store.StudentWriter, index *store.StudentIndex) *StudentsHandler {
	return &StudentsHandler{
		students: students,
		index:    index,
	}
}

// studentJSON is the wire shape of one enrolled student. The embedding
// never leaves the store.
type studentJSON struct {
	RollNo      string    `json:"roll_no"`
	Name        string    `json:"name"`
	ClassName   string    `json:"class_name"`
	Section     string    `json:"section"`
	Subject     string    `json:"subject,omitempty"`
	SampleCount int       `json:"sample_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// List returns enrolled students, optionally filtered by class scope.
func (h *StudentsHandler) List(w http.ResponseWriter, r *http.Request) {
	scope, filtered := scopeFromQuery(r)

	var (
		students []store.Student
		err      error
	)
	if filtered {
		students, err = h.students.ListByScope(r.Context(), scope)
	} else {
		students, err = h.students.List(r.Context())
	}
	if err != nil {
		if errors.Is(err, store.ErrInvalidScope) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("students list: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to list students")
		return
	}

	out := make([]studentJSON, len(students))
	for i, s := range students {
		out[i] = studentJSON{
			RollNo:      s.RollNo,
			Name:        s.Name,
			ClassName:   s.ClassName,
			Section:     s.Section,
			Subject:     s.Subject,
			SampleCount: s.SampleCount,
			CreatedAt:   s.CreatedAt,
			UpdatedAt:   s.UpdatedAt,
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"students": out,
		"count":    len(out),
	})
}

// Delete removes one student and, through the store, their attendance
// records.
func (h *StudentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	rollNo := chi.URLParam(r, "rollNo")

	if err := h.students.Delete(r.Context(), rollNo); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "student not found")
			return
		}
		log.Printf("students delete %s: %v", sanitizeForLog(rollNo), err)
		respondError(w, http.StatusInternalServerError, "failed to delete student")
		return
	}
	if h.index != nil {
		h.index.Remove(rollNo)
	}

	respondJSON(w, http.StatusOK, map[string]string{"deleted": rollNo})
}

// DeleteClass removes every student matching the scope filter, cascading to
// their attendance records.
func (h *StudentsHandler) DeleteClass(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	scope := store.Scope{
		ClassName: q.Get("class_name"),
		Section:   q.Get("section"),
		Subject:   q.Get("subject"),
	}
	if scope.ClassName == "" {
		respondError(w, http.StatusBadRequest, "class_name is required")
		return
	}

	deleted, err := h.students.DeleteByScope(r.Context(), scope)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrInvalidScope):
			respondError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, store.ErrNotFound):
			respondError(w, http.StatusNotFound, "no students matched the scope")
		default:
			log.Printf("students delete class %s: %v", sanitizeForLog(scope.ClassName), err)
			respondError(w, http.StatusInternalServerError, "failed to delete class")
		}
		return
	}

	h.rebuildIndex(r.Context())

	respondJSON(w, http.StatusOK, map[string]any{"deleted": deleted})
}

// rebuildIndex reloads the index after a bulk delete; the store does not
// report which roll numbers went away.
func (h *StudentsHandler) rebuildIndex(ctx context.Context) {
	if h.index == nil {
		return
	}
	students, err := h.students.List(ctx)
	if err != nil {
		log.Printf("students: rebuild index: %v", err)
		return
	}
	h.index.Build(students)
}
