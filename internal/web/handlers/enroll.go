package handlers

import (
	"context"
	"log"
	"net/http"

	"github.com/klasio/rollcall/internal/archive"
	"github.com/klasio/rollcall/internal/constants"
	"github.com/klasio/rollcall/internal/enroll"
	"github.com/klasio/rollcall/internal/store"
)

// EnrollHandler handles student enrollment from uploaded archives.
type EnrollHandler struct {
	aggregator  *enroll.Aggregator
	students    store.StudentReader
	index       *store.StudentIndex
	concurrency int
}

// NewEnrollHandler creates an enroll handler. The index, when present, picks
// up newly enrolled students right after they commit.
func NewEnrollHandler(aggregator *enroll.Aggregator, students store.StudentReader, index *store.StudentIndex, concurrency int) *EnrollHandler {
	return &EnrollHandler{
		aggregator:  aggregator,
		students:    students,
		index:       index,
		concurrency: concurrency,
	}
}

// Enroll ingests a zip of per-student sample folders. Folders that cannot
// be enrolled are reported in the skipped list; they never fail the batch.
func (h *EnrollHandler) Enroll(w http.ResponseWriter, r *http.Request) {
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

	files := r.MultipartForm.File["faces_zip"]
	if len(files) == 0 {
		respondError(w, http.StatusBadRequest, "faces_zip is required")
		return
	}
	zipData, err := readFormFile(files[0])
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read faces_zip")
		return
	}

	folders, err := archive.ExtractFolders(zipData)
	if err != nil {
		respondError(w, http.StatusBadRequest, "faces_zip is not a valid zip archive")
		return
	}
	if len(folders) == 0 {
		respondError(w, http.StatusBadRequest, "faces_zip contains no student folders")
		return
	}

	report, err := h.aggregator.Enroll(r.Context(), form.scope(), folders, enroll.Options{
		Concurrency: h.concurrency,
	})
	if err != nil {
		// Folder-level rejections live in the report; an error here means
		// the store gave out. Upsert makes a retry of the archive safe.
		log.Printf("enroll: class %s: %v", sanitizeForLog(form.ClassName), err)
		respondError(w, http.StatusInternalServerError, "enrollment failed")
		return
	}

	h.refreshIndex(r.Context(), report)

	respondJSON(w, http.StatusOK, report)
}

// refreshIndex adds the students enrolled by this request to the in-memory
// index so identify sees them without a rebuild.
func (h *EnrollHandler) refreshIndex(ctx context.Context, report *enroll.Report) {
	if h.index == nil {
		return
	}
	for _, e := range report.Enrolled {
		student, err := h.students.Get(ctx, e.RollNo)
		if err != nil {
			log.Printf("enroll: refresh index for %s: %v", sanitizeForLog(e.RollNo), err)
			continue
		}
		h.index.Add(*student)
	}
}
