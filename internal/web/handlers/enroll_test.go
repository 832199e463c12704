package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/klasio/rollcall/internal/enroll"
	"github.com/klasio/rollcall/internal/faceapi"
	"github.com/klasio/rollcall/internal/store"
	"github.com/klasio/rollcall/internal/store/mock"
)

func newEnrollHandler(detector *fakeDetector, students *mock.MockStudentStore, index *store.StudentIndex) *EnrollHandler {
	return NewEnrollHandler(enroll.New(detector, students), students, index, 2)
}

func TestEnrollHandler_Success(t *testing.T) {
	detector := &fakeDetector{faces: map[string][]faceapi.Detection{
		"alice-1": {detection(1, 0, 0, 0)},
		"bob-1":   {detection(0, 1, 0, 0)},
	}}
	students := mock.NewMockStudentStore()
	index := store.NewStudentIndex()
	handler := newEnrollHandler(detector, students, index)

	zipData := buildZip(t, []zipEntry{
		{"21001_alice/one.jpg", []byte("alice-1")},
		{"21002_bob/one.jpg", []byte("bob-1")},
	})
	req := multipartRequest(t, "/api/v1/enroll",
		map[string]string{"class_name": "10", "section": "A"},
		[]formFile{{"faces_zip", "faces.zip", zipData}})
	recorder := httptest.NewRecorder()

	handler.Enroll(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	var report enroll.Report
	parseJSONResponse(t, recorder, &report)
	if len(report.Enrolled) != 2 {
		t.Fatalf("expected 2 enrolled students, got %+v", report)
	}
	if len(report.Skipped) != 0 {
		t.Errorf("expected no skipped folders, got %+v", report.Skipped)
	}

	if _, err := students.Get(context.Background(), "21001"); err != nil {
		t.Errorf("expected 21001 in the store: %v", err)
	}
	if index.Count() != 2 {
		t.Errorf("expected the index to pick up 2 students, got %d", index.Count())
	}
}

func TestEnrollHandler_ReportsSkippedFolders(t *testing.T) {
	detector := &fakeDetector{faces: map[string][]faceapi.Detection{
		"alice-1": {detection(1, 0, 0, 0)},
	}}
	students := mock.NewMockStudentStore()
	handler := newEnrollHandler(detector, students, nil)

	zipData := buildZip(t, []zipEntry{
		{"badlabel/one.jpg", []byte("unused")},
		{"21001_alice/one.jpg", []byte("alice-1")},
	})
	req := multipartRequest(t, "/api/v1/enroll",
		map[string]string{"class_name": "10", "section": "A"},
		[]formFile{{"faces_zip", "faces.zip", zipData}})
	recorder := httptest.NewRecorder()

	handler.Enroll(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	var report enroll.Report
	parseJSONResponse(t, recorder, &report)
	if len(report.Enrolled) != 1 {
		t.Errorf("expected 1 enrolled student, got %+v", report.Enrolled)
	}
	if len(report.Skipped) != 1 || report.Skipped[0].Folder != "badlabel" {
		t.Fatalf("expected badlabel skipped, got %+v", report.Skipped)
	}
	if report.Skipped[0].Reason != enroll.ReasonMissingSeparator {
		t.Errorf("expected reason %s, got %s", enroll.ReasonMissingSeparator, report.Skipped[0].Reason)
	}
}

func TestEnrollHandler_MissingScope(t *testing.T) {
	handler := newEnrollHandler(&fakeDetector{}, mock.NewMockStudentStore(), nil)

	req := multipartRequest(t, "/api/v1/enroll",
		map[string]string{"section": "A"},
		[]formFile{{"faces_zip", "faces.zip", buildZip(t, nil)}})
	recorder := httptest.NewRecorder()

	handler.Enroll(recorder, req)

	assertStatusCode(t, recorder, http.StatusBadRequest)

	var resp struct {
		Error  string            `json:"error"`
		Fields map[string]string `json:"fields"`
	}
	parseJSONResponse(t, recorder, &resp)
	if resp.Error != "validation failed" {
		t.Errorf("expected validation error, got %q", resp.Error)
	}
	if resp.Fields["ClassName"] != "required" {
		t.Errorf("expected ClassName flagged as required, got %v", resp.Fields)
	}
}

func TestEnrollHandler_MissingArchive(t *testing.T) {
	handler := newEnrollHandler(&fakeDetector{}, mock.NewMockStudentStore(), nil)

	req := multipartRequest(t, "/api/v1/enroll",
		map[string]string{"class_name": "10", "section": "A"}, nil)
	recorder := httptest.NewRecorder()

	handler.Enroll(recorder, req)

	assertStatusCode(t, recorder, http.StatusBadRequest)
	assertJSONError(t, recorder, "faces_zip is required")
}

func TestEnrollHandler_CorruptArchive(t *testing.T) {
	handler := newEnrollHandler(&fakeDetector{}, mock.NewMockStudentStore(), nil)

	req := multipartRequest(t, "/api/v1/enroll",
		map[string]string{"class_name": "10", "section": "A"},
		[]formFile{{"faces_zip", "faces.zip", []byte("not a zip")}})
	recorder := httptest.NewRecorder()

	handler.Enroll(recorder, req)

	assertStatusCode(t, recorder, http.StatusBadRequest)
	assertJSONError(t, recorder, "faces_zip is not a valid zip archive")
}

func TestEnrollHandler_EmptyArchive(t *testing.T) {
	handler := newEnrollHandler(&fakeDetector{}, mock.NewMockStudentStore(), nil)

	// A zip with only a root-level file has no student folders.
	zipData := buildZip(t, []zipEntry{{"loose.jpg", []byte("img")}})
	req := multipartRequest(t, "/api/v1/enroll",
		map[string]string{"class_name": "10", "section": "A"},
		[]formFile{{"faces_zip", "faces.zip", zipData}})
	recorder := httptest.NewRecorder()

	handler.Enroll(recorder, req)

	assertStatusCode(t, recorder, http.StatusBadRequest)
	assertJSONError(t, recorder, "faces_zip contains no student folders")
}

func TestEnrollHandler_StoreError(t *testing.T) {
	detector := &fakeDetector{faces: map[string][]faceapi.Detection{
		"alice-1": {detection(1, 0, 0, 0)},
	}}
	students := mock.NewMockStudentStore()
	students.UpsertError = errors.New("database down")
	handler := newEnrollHandler(detector, students, nil)

	zipData := buildZip(t, []zipEntry{{"21001_alice/one.jpg", []byte("alice-1")}})
	req := multipartRequest(t, "/api/v1/enroll",
		map[string]string{"class_name": "10", "section": "A"},
		[]formFile{{"faces_zip", "faces.zip", zipData}})
	recorder := httptest.NewRecorder()

	handler.Enroll(recorder, req)

	assertStatusCode(t, recorder, http.StatusInternalServerError)
	assertJSONError(t, recorder, "enrollment failed")
}
