package domain

import "strings"

// Category is a server-assigned classification bucket. Unknown values are
// passed to the backend as-is.
type Category string

const (
	CategoryAll              Category = "All"
	CategoryJobPosting       Category = "Job Posting"
	CategoryCandidate        Category = "Candidate"
	CategoryEvent            Category = "Event"
	CategoryQuestions        Category = "Questions"
	CategoryDiscussionTopics Category = "Discussion Topics"
	CategoryOther            Category = "Other"
	CategoryIrrelevant       Category = "Irrelevant"
	CategorySearchResults    Category = "SearchResults"
)

var tabOrder = []Category{
	CategoryAll,
	CategoryJobPosting,
	CategoryCandidate,
	CategoryEvent,
	CategoryQuestions,
	CategoryDiscussionTopics,
	CategoryOther,
	CategoryIrrelevant,
}

// Categories returns the categories shown as tabs, in display order.
func Categories() []Category {
	out := make([]Category, len(tabOrder))
	copy(out, tabOrder)
	return out
}

// IsServerCategory reports whether c is fetched through the labeled endpoint.
// All and SearchResults are served by other endpoints.
func (c Category) IsServerCategory() bool {
	return c != CategoryAll && c != CategorySearchResults && c != ""
}

// ParseCategory matches s case-insensitively against the known categories.
// Unknown names are returned verbatim with ok=false.
func ParseCategory(s string) (Category, bool) {
	for _, c := range append(Categories(), CategorySearchResults) {
		if strings.EqualFold(string(c), strings.TrimSpace(s)) {
			return c, true
		}
	}
	return Category(s), false
}
