// Package match resolves the faces detected in a group photo against the
// students enrolled in a class scope.
package match

import (
	"context"
	"fmt"
	"sort"

	"github.com/klasio/rollcall/internal/faceapi"
	"github.com/klasio/rollcall/internal/store"
)

// defaultTopK bounds identify results per face when the caller does not
// pick a value.
const defaultTopK = 3

// Assignment pairs one detected face with one enrolled student.
type Assignment struct {
	// FaceIndex is the position of the face in the photo's detection
	// result, counted from zero.
	FaceIndex  int
	Face       faceapi.Detection
	Student    store.Student
	Similarity float64
}

// Candidate is one nearest-student hit for a face.
type Candidate struct {
	Student    store.Student
	Similarity float64
}

// FaceCandidates lists the nearest enrolled students for one detected face,
// best first.
type FaceCandidates struct {
	FaceIndex  int
	Face       faceapi.Detection
	Candidates []Candidate
}

// Engine matches group photos against enrolled students.
type Engine struct {
	detector faceapi.Detector
	students store.StudentReader
	index    *store.StudentIndex
}

// New creates an engine. The index is optional; when nil, identify falls
// back to the store's nearest neighbor query.
func New(detector faceapi.Detector, students store.StudentReader, index *store.StudentIndex) *Engine {
	return &Engine{
		detector: detector,
		students: students,
		index:    index,
	}
}

// Match detects the faces in photo and assigns them to students enrolled in
// the scope, one student per face and one face per student. Pairs scoring
// below the threshold are never assigned. Assignments come back ordered by
// descending similarity.
//
// A photo with no detectable faces and a scope with no enrolled students
// both yield an empty result, not an error. A failed detection fails the
// whole photo.
func (e *Engine) Match(ctx context.Context, scope store.Scope, photo []byte, threshold float64) ([]Assignment, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	faces, err := e.detector.DetectFaces(ctx, photo)
	if err != nil {
		return nil, fmt.Errorf("detect faces: %w", err)
	}
	if len(faces) == 0 {
		return nil, nil
	}

	// Single read per photo: the candidate set is a snapshot, so students
	// enrolled mid-match do not bleed into this photo's result.
	candidates, err := e.students.ListByScope(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("load candidates: %w", err)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	type pair struct {
		face       int
		cand       int
		similarity float64
	}

	var pairs []pair
	for i := range faces {
		emb := store.L2Normalize(faces[i].Embedding)
		for j := range candidates {
			sim := store.CosineSimilarity(emb, candidates[j].Embedding)
			if sim >= threshold {
				pairs = append(pairs, pair{face: i, cand: j, similarity: sim})
			}
		}
	}

	// Greedy best-first assignment. Ties resolve by roll number, then by
	// face position, so rerunning the same photo yields the same pairing.
	sort.Slice(pairs, func(a, b int) bool {
		pa, pb := pairs[a], pairs[b]
		if pa.similarity != pb.similarity {
			return pa.similarity > pb.similarity
		}
		ra, rb := candidates[pa.cand].RollNo, candidates[pb.cand].RollNo
		if ra != rb {
			return ra < rb
		}
		return pa.face < pb.face
	})

	faceTaken := make([]bool, len(faces))
	studentTaken := make([]bool, len(candidates))
	var assignments []Assignment
	for _, p := range pairs {
		if faceTaken[p.face] || studentTaken[p.cand] {
			continue
		}
		faceTaken[p.face] = true
		studentTaken[p.cand] = true
		assignments = append(assignments, Assignment{
			FaceIndex:  p.face,
			Face:       faces[p.face],
			Student:    candidates[p.cand],
			Similarity: p.similarity,
		})
	}
	return assignments, nil
}

// Identify returns the top-k nearest enrolled students for every face in
// the photo, across all classes and without any similarity cutoff. The
// in-memory index serves the lookup when present, the store's nearest
// neighbor query otherwise.
func (e *Engine) Identify(ctx context.Context, photo []byte, k int) ([]FaceCandidates, error) {
	if k <= 0 {
		k = defaultTopK
	}

	faces, err := e.detector.DetectFaces(ctx, photo)
	if err != nil {
		return nil, fmt.Errorf("detect faces: %w", err)
	}

	results := make([]FaceCandidates, 0, len(faces))
	for i := range faces {
		emb := store.L2Normalize(faces[i].Embedding)

		var (
			students     []store.Student
			similarities []float64
		)
		if e.index != nil && e.index.Count() > 0 {
			students, similarities = e.index.Search(emb, k)
		} else {
			var distances []float64
			students, distances, err = e.students.FindNearest(ctx, emb, k)
			if err != nil {
				return nil, fmt.Errorf("find nearest: %w", err)
			}
			similarities = make([]float64, len(distances))
			for j, d := range distances {
				similarities[j] = 1 - d
			}
		}

		fc := FaceCandidates{
			FaceIndex:  i,
			Face:       faces[i],
			Candidates: make([]Candidate, 0, len(students)),
		}
		for j := range students {
			fc.Candidates = append(fc.Candidates, Candidate{
				Student:    students[j],
				Similarity: similarities[j],
			})
		}
		results = append(results, fc)
	}
	return results, nil
}
