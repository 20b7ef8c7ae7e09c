package domain

import "testing"

func TestCategories_ExcludesSearchResults(t *testing.T) {
	cats := Categories()
	if len(cats) != 8 {
		t.Fatalf("Categories() len = %d, want 8", len(cats))
	}
	if cats[0] != CategoryAll {
		t.Errorf("first tab = %q, want %q", cats[0], CategoryAll)
	}
	for _, c := range cats {
		if c == CategorySearchResults {
			t.Error("SearchResults should not be a tab")
		}
	}

	// Returned slice must be a copy.
	cats[0] = "mutated"
	if Categories()[0] != CategoryAll {
		t.Error("Categories() returned shared backing array")
	}
}

func TestCategory_IsServerCategory(t *testing.T) {
	tests := []struct {
		cat  Category
		want bool
	}{
		{CategoryAll, false},
		{CategorySearchResults, false},
		{CategoryJobPosting, true},
		{Category("Follow-ups"), true},
	}
	for _, tt := range tests {
		t.Run(string(tt.cat), func(t *testing.T) {
			if got := tt.cat.IsServerCategory(); got != tt.want {
				t.Errorf("IsServerCategory() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseCategory(t *testing.T) {
	tests := []struct {
		in     string
		want   Category
		wantOK bool
	}{
		{"job posting", CategoryJobPosting, true},
		{" Event ", CategoryEvent, true},
		{"searchresults", CategorySearchResults, true},
		{"Resource", Category("Resource"), false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseCategory(tt.in)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ParseCategory(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}
