package store

import "testing"

func indexStudents() []Student {
	return []Student{
		{RollNo: "21045001", Name: "aman", Embedding: []float32{1, 0, 0, 0}},
		{RollNo: "21045002", Name: "priya", Embedding: []float32{0, 1, 0, 0}},
		{RollNo: "21045003", Name: "ravi", Embedding: []float32{0, 0, 1, 0}},
	}
}

func TestStudentIndexSearch(t *testing.T) {
	ix := NewStudentIndex()
	ix.Build(indexStudents())

	if ix.Count() != 3 {
		t.Fatalf("Count() = %d, want 3", ix.Count())
	}

	query := []float32{0.95, 0.05, 0, 0}
	students, sims := ix.Search(query, 2)

	if len(students) != 2 {
		t.Fatalf("Search returned %d students, want 2", len(students))
	}
	if students[0].RollNo != "21045001" {
		t.Errorf("nearest student = %s, want 21045001", students[0].RollNo)
	}
	if sims[0] < 0.99 {
		t.Errorf("nearest similarity = %f, want > 0.99", sims[0])
	}
	if sims[0] < sims[1] {
		t.Errorf("results not ordered best first: %v", sims)
	}
}

func TestStudentIndexEmpty(t *testing.T) {
	ix := NewStudentIndex()

	students, sims := ix.Search([]float32{1, 0, 0, 0}, 3)
	if students != nil || sims != nil {
		t.Errorf("Search on empty index = %v, %v, want nil, nil", students, sims)
	}
}

func TestStudentIndexRemove(t *testing.T) {
	ix := NewStudentIndex()
	ix.Build(indexStudents())

	ix.Remove("21045001")

	students, _ := ix.Search([]float32{1, 0, 0, 0}, 3)
	for _, s := range students {
		if s.RollNo == "21045001" {
			t.Error("removed student still returned by Search")
		}
	}
	if ix.Count() != 2 {
		t.Errorf("Count() after Remove = %d, want 2", ix.Count())
	}
}

func TestStudentIndexAddReplaces(t *testing.T) {
	ix := NewStudentIndex()
	ix.Build(indexStudents())

	// Re-enrollment moves the student to a new embedding.
	ix.Add(Student{RollNo: "21045001", Name: "aman", Embedding: []float32{0, 0, 0, 1}})

	students, sims := ix.Search([]float32{0, 0, 0, 1}, 1)
	if len(students) != 1 || students[0].RollNo != "21045001" {
		t.Fatalf("Search after re-add = %v, want 21045001", students)
	}
	if sims[0] < 0.99 {
		t.Errorf("similarity after re-add = %f, want > 0.99", sims[0])
	}
	if ix.Count() != 3 {
		t.Errorf("Count() after re-add = %d, want 3", ix.Count())
	}
}
