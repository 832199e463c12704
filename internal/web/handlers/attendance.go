package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/klasio/rollcall/internal/archive"
	"github.com/klasio/rollcall/internal/attendance"
	"github.com/klasio/rollcall/internal/constants"
	"github.com/klasio/rollcall/internal/match"
	"github.com/klasio/rollcall/internal/store"
)

// AttendanceHandler handles attendance marking and listing.
type AttendanceHandler struct {
	engine           *match.Engine
	ledger           *attendance.Ledger
	records          store.AttendanceReader
	defaultThreshold float64
}

// NewAttendanceHandler creates an attendance handler.
func NewAttendanceHandler(engine *match.Engine, ledger *attendance.Ledger, records store.AttendanceReader, defaultThreshold float64) *AttendanceHandler {
	return &AttendanceHandler{
		engine:           engine,
		ledger:           ledger,
		records:          records,
		defaultThreshold: defaultThreshold,
	}
}

// markResponse is the result of one marking invocation.
type markResponse struct {
	SessionID       string                     `json:"session_id"`
	PhotosProcessed int                        `json:"photos_processed"`
	Marked          []attendance.MarkedStudent `json:"marked"`
	AlreadyMarked   []string                   `json:"already_marked,omitempty"`
}

// Mark matches one or more group photos against the scope's enrolled
// students and records everyone recognized. All photos of the request share
// one session, so a student visible in several photos is recorded once.
func (h *AttendanceHandler) Mark(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}

	form := scopeForm{
		ClassName: r.FormValue("class_name"),
		Section:   r.FormValue("section"),
		Subject:   r.FormValue("subject"),
	}
	if err := validate.Struct(form); err != nil {
		respondValidationError(w, err)
		return
	}

	threshold := h.defaultThreshold
	if v := r.FormValue("threshold"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil || parsed < 0 || parsed > 1 {
			respondError(w, http.StatusBadRequest, "threshold must be a number between 0 and 1")
			return
		}
		threshold = parsed
	}

	photos, err := h.collectPhotos(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	scope := form.scope()
	session := h.ledger.NewSession()
	resp := markResponse{SessionID: session.ID, PhotosProcessed: len(photos)}

	for _, photo := range photos {
		assignments, err := h.engine.Match(r.Context(), scope, photo.Data, threshold)
		if err != nil {
			log.Printf("mark: photo %s: %v", sanitizeForLog(photo.Name), err)
			respondError(w, http.StatusInternalServerError, "failed to process photo "+photo.Name)
			return
		}
		report, err := session.Record(r.Context(), scope, photo.Data, assignments, time.Now())
		if err != nil {
			log.Printf("mark: record photo %s: %v", sanitizeForLog(photo.Name), err)
			respondError(w, http.StatusInternalServerError, "failed to record attendance")
			return
		}
		resp.Marked = append(resp.Marked, report.Marked...)
		resp.AlreadyMarked = append(resp.AlreadyMarked, report.AlreadyMarked...)
	}
	if resp.Marked == nil {
		resp.Marked = []attendance.MarkedStudent{}
	}

	respondJSON(w, http.StatusOK, resp)
}

// collectPhotos gathers the request's group photos from either a zip of
// photos or direct photo uploads.
func (h *AttendanceHandler) collectPhotos(r *http.Request) ([]archive.Image, error) {
	if zips := r.MultipartForm.File["photos_zip"]; len(zips) > 0 {
		zipData, err := readFormFile(zips[0])
		if err != nil {
			return nil, errors.New("failed to read photos_zip")
		}
		photos, err := archive.ExtractImages(zipData)
		if err != nil {
			return nil, errors.New("photos_zip is not a valid zip archive")
		}
		if len(photos) == 0 {
			return nil, errors.New("photos_zip contains no photos")
		}
		return photos, nil
	}

	files := r.MultipartForm.File["photo"]
	if len(files) == 0 {
		return nil, errors.New("photo or photos_zip is required")
	}
	photos := make([]archive.Image, 0, len(files))
	for _, fh := range files {
		data, err := readFormFile(fh)
		if err != nil {
			return nil, errors.New("failed to read photo " + fh.Filename)
		}
		photos = append(photos, archive.Image{Name: fh.Filename, Data: data})
	}
	return photos, nil
}

// attendanceRecordJSON is the wire shape of one attendance record.
type attendanceRecordJSON struct {
	ID         int64   `json:"id"`
	RollNo     string  `json:"roll_no"`
	Name       string  `json:"name"`
	ClassName  string  `json:"class_name"`
	Section    string  `json:"section"`
	Subject    string  `json:"subject,omitempty"`
	Similarity float64 `json:"similarity"`
	SessionID  string  `json:"session_id"`
	Date       string  `json:"date"`
	Time       string  `json:"time"`
}

// List returns attendance records, newest first, optionally filtered by
// class scope.
func (h *AttendanceHandler) List(w http.ResponseWriter, r *http.Request) {
	scope, filtered := scopeFromQuery(r)

	var (
		records []store.AttendanceRecord
		err     error
	)
	if filtered {
		records, err = h.records.ListAttendanceByScope(r.Context(), scope)
	} else {
		records, err = h.records.ListAttendance(r.Context())
	}
	if err != nil {
		if errors.Is(err, store.ErrInvalidScope) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("attendance list: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to list attendance")
		return
	}

	out := make([]attendanceRecordJSON, len(records))
	for i, rec := range records {
		out[i] = attendanceRecordJSON{
			ID:         rec.ID,
			RollNo:     rec.RollNo,
			Name:       rec.Name,
			ClassName:  rec.ClassName,
			Section:    rec.Section,
			Subject:    rec.Subject,
			Similarity: rec.Similarity,
			SessionID:  rec.SessionID,
			Date:       rec.Date,
			Time:       rec.Time,
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"records": out,
		"count":   len(out),
	})
}
