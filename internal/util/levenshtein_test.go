package util

import "testing"

func TestLevenshteinDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"abc", "abc", 0},
		{"kitten", "sitting", 3},
		{"modality", "modalty", 1},
		{"chest", "chset", 2},
	}

	for _, tc := range tests {
		t.Run(tc.a+"_"+tc.b, func(t *testing.T) {
			if got := LevenshteinDistance(tc.a, tc.b); got != tc.want {
				t.Errorf("LevenshteinDistance(%q, %q) = %d, want %d", tc.a, tc.b, got, tc.want)
			}
		})
	}
}

func TestClosestMatch(t *testing.T) {
	candidates := []string{"chest x-ray", "ct-chest", "ct-abdomen", "mri-head", "mammography"}

	tests := []struct {
		input string
		want  string
	}{
		{"ct-chset", "ct-chest"},
		{"mri-head", "mri-head"},
		{"mamography", "mammography"},
		{"somethingcompletelydifferent", ""},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			if got := ClosestMatch(tc.input, candidates); got != tc.want {
				t.Errorf("ClosestMatch(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}
