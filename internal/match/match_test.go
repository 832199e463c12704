package match

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/klasio/rollcall/internal/faceapi"
	"github.com/klasio/rollcall/internal/store"
	"github.com/klasio/rollcall/internal/store/mock"
)

type fakeDetector struct {
	faces []faceapi.Detection
	err   error
	calls int
}

func (f *fakeDetector) DetectFaces(ctx context.Context, imageData []byte) ([]faceapi.Detection, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.faces, nil
}

func embed(vals ...float64) []float32 {
	emb := make([]float32, len(vals))
	for i, v := range vals {
		emb[i] = float32(v)
	}
	return emb
}

func face(idx int, vals ...float64) faceapi.Detection {
	return faceapi.Detection{
		FaceIndex: idx,
		Dim:       len(vals),
		Embedding: embed(vals...),
		BBox:      []float64{0, 0, 100, 100},
		DetScore:  0.99,
	}
}

func student(rollNo, name string, embedding []float32) store.Student {
	return store.Student{
		RollNo:    rollNo,
		Name:      name,
		ClassName: "10",
		Section:   "A",
		Embedding: embedding,
	}
}

func testScope() store.Scope {
	return store.Scope{ClassName: "10", Section: "A"}
}

func approx(got, want float64) bool {
	return math.Abs(got-want) < 1e-4
}

func TestMatch_GreedyPrefersBestPairs(t *testing.T) {
	students := mock.NewMockStudentStore()
	students.AddStudent(student("21001", "alice", embed(1, 0, 0, 0)))
	students.AddStudent(student("21002", "bob", embed(0, 1, 0, 0)))

	// Face 0 scores 0.9 against alice. Face 1 scores 0.85 against alice
	// and 0.4 against bob; the residual third component keeps both face
	// vectors unit length without touching either student's axis.
	r0 := math.Sqrt(1 - 0.9*0.9)
	r1 := math.Sqrt(1 - 0.85*0.85 - 0.4*0.4)
	detector := &fakeDetector{faces: []faceapi.Detection{
		face(0, 0.9, 0, r0, 0),
		face(1, 0.85, 0.4, r1, 0),
	}}

	engine := New(detector, students, nil)
	got, err := engine.Match(context.Background(), testScope(), []byte("photo"), 0.3)
	if err != nil {
		t.Fatalf("Failed to match: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 assignments, got %d", len(got))
	}
	if got[0].FaceIndex != 0 || got[0].Student.RollNo != "21001" {
		t.Errorf("Expected face 0 -> 21001, got face %d -> %s", got[0].FaceIndex, got[0].Student.RollNo)
	}
	if !approx(got[0].Similarity, 0.9) {
		t.Errorf("Expected similarity 0.9, got %f", got[0].Similarity)
	}
	// Alice is taken by face 0, so face 1 falls through to bob even
	// though alice scored higher for it.
	if got[1].FaceIndex != 1 || got[1].Student.RollNo != "21002" {
		t.Errorf("Expected face 1 -> 21002, got face %d -> %s", got[1].FaceIndex, got[1].Student.RollNo)
	}
	if !approx(got[1].Similarity, 0.4) {
		t.Errorf("Expected similarity 0.4, got %f", got[1].Similarity)
	}
}

func TestMatch_StudentAssignedAtMostOnce(t *testing.T) {
	students := mock.NewMockStudentStore()
	students.AddStudent(student("21001", "alice", embed(1, 0, 0, 0)))

	detector := &fakeDetector{faces: []faceapi.Detection{
		face(0, 1, 0, 0, 0),
		face(1, 1, 0, 0, 0),
		face(2, 1, 0, 0, 0),
	}}

	engine := New(detector, students, nil)
	got, err := engine.Match(context.Background(), testScope(), []byte("photo"), 0.3)
	if err != nil {
		t.Fatalf("Failed to match: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Expected 1 assignment, got %d", len(got))
	}
	// Equal scores resolve by face position.
	if got[0].FaceIndex != 0 {
		t.Errorf("Expected face 0 to win the tie, got face %d", got[0].FaceIndex)
	}
}

func TestMatch_TieBreakByRollNumber(t *testing.T) {
	students := mock.NewMockStudentStore()
	students.AddStudent(student("21002", "bob", embed(1, 0, 0, 0)))
	students.AddStudent(student("21001", "alice", embed(1, 0, 0, 0)))

	detector := &fakeDetector{faces: []faceapi.Detection{face(0, 1, 0, 0, 0)}}

	engine := New(detector, students, nil)
	got, err := engine.Match(context.Background(), testScope(), []byte("photo"), 0.3)
	if err != nil {
		t.Fatalf("Failed to match: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Expected 1 assignment, got %d", len(got))
	}
	if got[0].Student.RollNo != "21001" {
		t.Errorf("Expected lowest roll number to win the tie, got %s", got[0].Student.RollNo)
	}
}

func TestMatch_ThresholdIsInclusive(t *testing.T) {
	students := mock.NewMockStudentStore()
	students.AddStudent(student("21001", "alice", embed(0, 1, 0, 0)))

	// Orthogonal vectors score exactly 0.0, which a 0.0 threshold keeps.
	detector := &fakeDetector{faces: []faceapi.Detection{face(0, 1, 0, 0, 0)}}

	engine := New(detector, students, nil)
	got, err := engine.Match(context.Background(), testScope(), []byte("photo"), 0)
	if err != nil {
		t.Fatalf("Failed to match: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Expected the boundary score to be assigned, got %d assignments", len(got))
	}
	if got[0].Similarity != 0 {
		t.Errorf("Expected similarity 0, got %f", got[0].Similarity)
	}
}

func TestMatch_BelowThresholdUnassigned(t *testing.T) {
	students := mock.NewMockStudentStore()
	students.AddStudent(student("21001", "alice", embed(0, 1, 0, 0)))

	// Orthogonal vectors score 0.0, below the 0.3 threshold.
	detector := &fakeDetector{faces: []faceapi.Detection{face(0, 1, 0, 0, 0)}}

	engine := New(detector, students, nil)
	got, err := engine.Match(context.Background(), testScope(), []byte("photo"), 0.3)
	if err != nil {
		t.Fatalf("Failed to match: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Expected no assignments below the threshold, got %d", len(got))
	}
}

func TestMatch_NoFacesDetected(t *testing.T) {
	students := mock.NewMockStudentStore()
	students.AddStudent(student("21001", "alice", embed(1, 0, 0, 0)))

	detector := &fakeDetector{}

	engine := New(detector, students, nil)
	got, err := engine.Match(context.Background(), testScope(), []byte("photo"), 0.3)
	if err != nil {
		t.Fatalf("Expected empty result for a photo without faces, got error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Expected no assignments, got %d", len(got))
	}
}

func TestMatch_NoEnrolledStudents(t *testing.T) {
	students := mock.NewMockStudentStore()
	detector := &fakeDetector{faces: []faceapi.Detection{face(0, 1, 0, 0, 0)}}

	engine := New(detector, students, nil)
	got, err := engine.Match(context.Background(), testScope(), []byte("photo"), 0.3)
	if err != nil {
		t.Fatalf("Expected empty result for an empty scope, got error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Expected no assignments, got %d", len(got))
	}
}

func TestMatch_ScopeFiltersCandidates(t *testing.T) {
	students := mock.NewMockStudentStore()
	outOfScope := student("11111", "other", embed(1, 0, 0, 0))
	outOfScope.Section = "B"
	students.AddStudent(outOfScope)
	students.AddStudent(student("99999", "target", embed(1, 0, 0, 0)))

	detector := &fakeDetector{faces: []faceapi.Detection{face(0, 1, 0, 0, 0)}}

	// If the section filter leaked, 11111 would win the tie on roll number.
	engine := New(detector, students, nil)
	got, err := engine.Match(context.Background(), testScope(), []byte("photo"), 0.3)
	if err != nil {
		t.Fatalf("Failed to match: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Expected 1 assignment, got %d", len(got))
	}
	if got[0].Student.RollNo != "99999" {
		t.Errorf("Expected only the in-scope student, got %s", got[0].Student.RollNo)
	}
}

func TestMatch_DetectorErrorFailsPhoto(t *testing.T) {
	students := mock.NewMockStudentStore()
	students.AddStudent(student("21001", "alice", embed(1, 0, 0, 0)))

	detectorErr := errors.New("embedding service unavailable")
	detector := &fakeDetector{err: detectorErr}

	engine := New(detector, students, nil)
	_, err := engine.Match(context.Background(), testScope(), []byte("photo"), 0.3)
	if !errors.Is(err, detectorErr) {
		t.Errorf("Expected detector error to surface, got %v", err)
	}
}

func TestMatch_StoreErrorFailsPhoto(t *testing.T) {
	students := mock.NewMockStudentStore()
	students.ListError = errors.New("database down")

	detector := &fakeDetector{faces: []faceapi.Detection{face(0, 1, 0, 0, 0)}}

	engine := New(detector, students, nil)
	_, err := engine.Match(context.Background(), testScope(), []byte("photo"), 0.3)
	if !errors.Is(err, students.ListError) {
		t.Errorf("Expected store error to surface, got %v", err)
	}
}

func TestMatch_InvalidScope(t *testing.T) {
	students := mock.NewMockStudentStore()
	detector := &fakeDetector{faces: []faceapi.Detection{face(0, 1, 0, 0, 0)}}

	engine := New(detector, students, nil)
	_, err := engine.Match(context.Background(), store.Scope{ClassName: "10", Subject: "math"}, []byte("photo"), 0.3)
	if !errors.Is(err, store.ErrInvalidScope) {
		t.Errorf("Expected ErrInvalidScope, got %v", err)
	}
	if detector.calls != 0 {
		t.Errorf("Expected no detection for an invalid scope, got %d calls", detector.calls)
	}
}

func TestIdentify_UsesIndex(t *testing.T) {
	index := store.NewStudentIndex()
	index.Build([]store.Student{
		student("21001", "alice", embed(1, 0, 0, 0)),
		student("21002", "bob", embed(0.6, 0.8, 0, 0)),
		student("21003", "carol", embed(0, 0, 1, 0)),
	})

	students := mock.NewMockStudentStore()
	students.FindNearestError = errors.New("store must not be queried")

	detector := &fakeDetector{faces: []faceapi.Detection{face(0, 1, 0, 0, 0)}}

	engine := New(detector, students, index)
	got, err := engine.Identify(context.Background(), []byte("photo"), 2)
	if err != nil {
		t.Fatalf("Failed to identify: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Expected 1 face, got %d", len(got))
	}
	if len(got[0].Candidates) != 2 {
		t.Fatalf("Expected 2 candidates, got %d", len(got[0].Candidates))
	}
	if got[0].Candidates[0].Student.RollNo != "21001" || !approx(got[0].Candidates[0].Similarity, 1.0) {
		t.Errorf("Expected 21001 at similarity 1.0 first, got %s at %f",
			got[0].Candidates[0].Student.RollNo, got[0].Candidates[0].Similarity)
	}
	if got[0].Candidates[1].Student.RollNo != "21002" || !approx(got[0].Candidates[1].Similarity, 0.6) {
		t.Errorf("Expected 21002 at similarity 0.6 second, got %s at %f",
			got[0].Candidates[1].Student.RollNo, got[0].Candidates[1].Similarity)
	}
}

func TestIdentify_FallsBackToStore(t *testing.T) {
	students := mock.NewMockStudentStore()
	students.AddStudent(student("21001", "alice", embed(1, 0, 0, 0)))
	students.AddStudent(student("21002", "bob", embed(0, 1, 0, 0)))

	detector := &fakeDetector{faces: []faceapi.Detection{face(0, 1, 0, 0, 0)}}

	engine := New(detector, students, nil)
	got, err := engine.Identify(context.Background(), []byte("photo"), 1)
	if err != nil {
		t.Fatalf("Failed to identify: %v", err)
	}
	if len(got) != 1 || len(got[0].Candidates) != 1 {
		t.Fatalf("Expected 1 face with 1 candidate, got %+v", got)
	}
	if got[0].Candidates[0].Student.RollNo != "21001" {
		t.Errorf("Expected nearest student 21001, got %s", got[0].Candidates[0].Student.RollNo)
	}
	if !approx(got[0].Candidates[0].Similarity, 1.0) {
		t.Errorf("Expected similarity 1.0, got %f", got[0].Candidates[0].Similarity)
	}
}

func TestIdentify_EmptyIndexFallsBackToStore(t *testing.T) {
	students := mock.NewMockStudentStore()
	students.AddStudent(student("21001", "alice", embed(1, 0, 0, 0)))

	detector := &fakeDetector{faces: []faceapi.Detection{face(0, 1, 0, 0, 0)}}

	engine := New(detector, students, store.NewStudentIndex())
	got, err := engine.Identify(context.Background(), []byte("photo"), 1)
	if err != nil {
		t.Fatalf("Failed to identify: %v", err)
	}
	if len(got) != 1 || len(got[0].Candidates) != 1 {
		t.Fatalf("Expected the store to serve the lookup, got %+v", got)
	}
}

func TestIdentify_DefaultTopK(t *testing.T) {
	students := mock.NewMockStudentStore()
	students.AddStudent(student("21001", "alice", embed(1, 0, 0, 0)))
	students.AddStudent(student("21002", "bob", embed(0, 1, 0, 0)))
	students.AddStudent(student("21003", "carol", embed(0, 0, 1, 0)))
	students.AddStudent(student("21004", "dave", embed(0, 0, 0, 1)))
	students.AddStudent(student("21005", "erin", embed(0.5, 0.5, 0.5, 0.5)))

	detector := &fakeDetector{faces: []faceapi.Detection{face(0, 1, 0, 0, 0)}}

	engine := New(detector, students, nil)
	got, err := engine.Identify(context.Background(), []byte("photo"), 0)
	if err != nil {
		t.Fatalf("Failed to identify: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Expected 1 face, got %d", len(got))
	}
	if len(got[0].Candidates) != defaultTopK {
		t.Errorf("Expected %d candidates by default, got %d", defaultTopK, len(got[0].Candidates))
	}
}

func TestIdentify_NoFaces(t *testing.T) {
	students := mock.NewMockStudentStore()
	detector := &fakeDetector{}

	engine := New(detector, students, nil)
	got, err := engine.Identify(context.Background(), []byte("photo"), 3)
	if err != nil {
		t.Fatalf("Expected empty result for a photo without faces, got error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Expected no face candidates, got %d", len(got))
	}
}

func TestIdentify_DetectorError(t *testing.T) {
	students := mock.NewMockStudentStore()
	detectorErr := errors.New("embedding service unavailable")
	detector := &fakeDetector{err: detectorErr}

	engine := New(detector, students, nil)
	_, err := engine.Identify(context.Background(), []byte("photo"), 3)
	if !errors.Is(err, detectorErr) {
		t.Errorf("Expected detector error to surface, got %v", err)
	}
}
