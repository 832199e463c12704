package handlers

import (
	"log"
	"net/http"

	"github.com/klasio/rollcall/internal/store"
)

// StatsHandler handles the statistics endpoint
type StatsHandler struct {
	students store.StudentReader
	records  store.AttendanceReader
	index    *store.StudentIndex
}

// NewStatsHandler creates a stats handler
func NewStatsHandler(students store.StudentReader, records store.AttendanceReader, index *store.StudentIndex) *StatsHandler {
	return &StatsHandler{
		students: students,
		records:  records,
		index:    index,
	}
}

// StatsResponse represents the statistics response
type StatsResponse struct {
	Students          int `json:"students"`
	AttendanceRecords int `json:"attendance_records"`
	IndexedStudents   int `json:"indexed_students"`
}

// Get returns counts of enrolled students and attendance records
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	students, err := h.students.Count(r.Context())
	if err != nil {
		log.Printf("stats: count students: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}
	records, err := h.records.CountAttendance(r.Context())
	if err != nil {
		log.Printf("stats: count attendance: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}

	stats := &StatsResponse{
		Students:          students,
		AttendanceRecords: records,
	}
	if h.index != nil {
		stats.IndexedStudents = h.index.Count()
	}

	respondJSON(w, http.StatusOK, stats)
}
