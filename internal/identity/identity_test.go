package identity

import (
	"errors"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		label  string
		rollNo string
		name   string
	}{
		{"21045001_aman_meena", "21045001", "aman_meena"},
		{"21045002_priya", "21045002", "priya"},
		{"A-17_Jan Novak", "A-17", "Jan Novak"},
		{"9_x", "9", "x"},
		{"CS2024-001_O'Brien", "CS2024-001", "O'Brien"},
		{" 21045003_Ravi Kumar ", "21045003", "Ravi Kumar"},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			id, err := Parse(tt.label)
			if err != nil {
				t.Fatalf("Parse(%q) returned error: %v", tt.label, err)
			}
			if id.RollNo != tt.rollNo {
				t.Errorf("Parse(%q).RollNo = %q, want %q", tt.label, id.RollNo, tt.rollNo)
			}
			if id.Name != tt.name {
				t.Errorf("Parse(%q).Name = %q, want %q", tt.label, id.Name, tt.name)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		label string
		want  error
	}{
		{"nounderscore", ErrMissingSeparator},
		{"", ErrMissingSeparator},
		{"_meena", ErrEmptyField},
		{"21045001_", ErrEmptyField},
		{"21045001_   ", ErrEmptyField},
		{"_", ErrEmptyField},
		{"21 045_meena", ErrInvalidRollCode},
		{"21.045_meena", ErrInvalidRollCode},
		{"röll_meena", ErrInvalidRollCode},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			_, err := Parse(tt.label)
			if err == nil {
				t.Fatalf("Parse(%q) succeeded, want %v", tt.label, tt.want)
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("Parse(%q) = %v, want %v", tt.label, err, tt.want)
			}
		})
	}
}

func TestRemoveDiacritics(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Aman", "Aman"},
		{"Jiří", "Jiri"},
		{"José", "Jose"},
		{"Žluťoučký kůň", "Zlutoucky kun"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := RemoveDiacritics(tt.input)
			if result != tt.expected {
				t.Errorf("RemoveDiacritics(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestSafeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"aman_meena", "aman_meena"},
		{"Jan Novák", "Jan_Novak"},
		{"O'Brien", "O_Brien"},
		{"a/b\\c", "a_b_c"},
		{"  spaced  ", "spaced"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := SafeName(tt.input)
			if result != tt.expected {
				t.Errorf("SafeName(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}
