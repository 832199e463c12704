package store

import (
	"sync"

	"github.com/coder/hnsw"
)

// hnswMaxNeighbors (M) is the maximum number of neighbors per HNSW node.
// Higher values improve recall but increase memory and build time.
const hnswMaxNeighbors = 16

// StudentIndex is an in-memory HNSW graph over canonical student embeddings,
// keyed by roll number. It accelerates the identify operation; the database
// stays the source of truth and the index is rebuilt from it at startup.
type StudentIndex struct {
	graph  *hnsw.Graph[string]
	byRoll map[string]*Student
	mu     sync.RWMutex
}

// NewStudentIndex creates an empty index.
func NewStudentIndex() *StudentIndex {
	return &StudentIndex{
		byRoll: make(map[string]*Student),
	}
}

func newStudentGraph() *hnsw.Graph[string] {
	g := hnsw.NewGraph[string]()
	g.M = hnswMaxNeighbors
	g.Ml = 1.0 / float64(hnswMaxNeighbors) // Standard HNSW formula
	g.Distance = hnsw.CosineDistance
	return g
}

// Build replaces the index content with the given students. Students
// without an embedding are ignored.
func (ix *StudentIndex) Build(students []Student) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.byRoll = make(map[string]*Student, len(students))
	if len(students) == 0 {
		ix.graph = nil
		return
	}

	g := newStudentGraph()
	for i := range students {
		s := &students[i]
		if len(s.Embedding) == 0 {
			continue
		}
		g.Add(hnsw.MakeNode(s.RollNo, s.Embedding))
		ix.byRoll[s.RollNo] = s
	}
	ix.graph = g
}

// Add inserts or replaces a single student. Re-adding a roll number moves
// its node to the new embedding.
func (ix *StudentIndex) Add(s Student) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if len(s.Embedding) == 0 {
		return
	}
	if ix.graph == nil {
		ix.graph = newStudentGraph()
	}
	ix.graph.Add(hnsw.MakeNode(s.RollNo, s.Embedding))
	ix.byRoll[s.RollNo] = &s
}

// Remove drops a student from search results. The graph keeps the node;
// results are filtered through the roll map, so a stale node costs one
// search slot until the next Build.
func (ix *StudentIndex) Remove(rollNo string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	delete(ix.byRoll, rollNo)
}

// Search returns up to k students nearest to the query embedding together
// with their cosine similarities, best first. An empty index yields nil.
func (ix *StudentIndex) Search(query []float32, k int) ([]Student, []float64) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if ix.graph == nil || len(ix.byRoll) == 0 {
		return nil, nil
	}

	neighbors := ix.graph.Search(query, k)

	students := make([]Student, 0, len(neighbors))
	similarities := make([]float64, 0, len(neighbors))
	for _, n := range neighbors {
		s, ok := ix.byRoll[n.Key]
		if !ok {
			continue // removed since the node was added
		}
		students = append(students, *s)
		similarities = append(similarities, CosineSimilarity(query, n.Value))
	}
	return students, similarities
}

// Count returns the number of students visible to Search.
func (ix *StudentIndex) Count() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.byRoll)
}
