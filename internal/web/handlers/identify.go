package handlers

import (
	"log"
	"net/http"
	"strconv"

	"github.com/klasio/rollcall/internal/constants"
	"github.com/klasio/rollcall/internal/match"
)

// IdentifyHandler handles the cross-class face lookup endpoint, used to
// check what the engine would make of a photo before marking with it.
type IdentifyHandler struct {
	engine      *match.Engine
	defaultTopK int
}

// NewIdentifyHandler creates an identify handler.
func NewIdentifyHandler(engine *match.Engine, defaultTopK int) *IdentifyHandler {
	return &IdentifyHandler{
		engine:      engine,
		defaultTopK: defaultTopK,
	}
}

type identifyCandidateJSON struct {
	RollNo     string  `json:"roll_no"`
	Name       string  `json:"name"`
	ClassName  string  `json:"class_name"`
	Section    string  `json:"section"`
	Similarity float64 `json:"similarity"`
}

type identifyFaceJSON struct {
	FaceIndex  int                     `json:"face_index"`
	BBox       []float64               `json:"bbox"`
	Candidates []identifyCandidateJSON `json:"candidates"`
}

// Identify returns the top-k nearest enrolled students for every face in
// the uploaded photo, across all classes and without a similarity cutoff.
func (h *IdentifyHandler) Identify(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}

	k := h.defaultTopK
	if v := r.FormValue("k"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			respondError(w, http.StatusBadRequest, "k must be a positive integer")
			return
		}
		k = parsed
	}

	files := r.MultipartForm.File["photo"]
	if len(files) == 0 {
		respondError(w, http.StatusBadRequest, "photo is required")
		return
	}
	photo, err := readFormFile(files[0])
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read photo")
		return
	}

	results, err := h.engine.Identify(r.Context(), photo, k)
	if err != nil {
		log.Printf("identify: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to identify faces")
		return
	}

	faces := make([]identifyFaceJSON, len(results))
	for i, fc := range results {
		face := identifyFaceJSON{
			FaceIndex:  fc.FaceIndex,
			BBox:       fc.Face.BBox,
			Candidates: []identifyCandidateJSON{},
		}
		for _, c := range fc.Candidates {
			face.Candidates = append(face.Candidates, identifyCandidateJSON{
				RollNo:     c.Student.RollNo,
				Name:       c.Student.Name,
				ClassName:  c.Student.ClassName,
				Section:    c.Student.Section,
				Similarity: c.Similarity,
			})
		}
		faces[i] = face
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"faces": faces,
		"count": len(faces),
	})
}
