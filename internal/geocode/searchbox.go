package geocode

import (
	"errors"
	"strings"
)

type Status string

const (
	StatusIdle      Status = "idle"
	StatusSearching Status = "searching"
	StatusResolved  Status = "resolved"
	StatusFailed    Status = "failed"
)

// SearchBox is the state of the place search field. Every Submit starts a
// new generation; completions carrying an older generation are dropped, so
// only the latest search can land.
type SearchBox struct {
	Query           string       `json:"query"`
	Status          Status       `json:"status"`
	Loading         bool         `json:"loading"`
	Error           string       `json:"error,omitempty"`
	Suggestions     []Suggestion `json:"suggestions,omitempty"`
	ShowSuggestions bool         `json:"showSuggestions"`
	Generation      uint64       `json:"generation"`
}

func NewSearchBox() SearchBox { return SearchBox{Status: StatusIdle} }

// Edit replaces the query text. It does not cancel an in-flight search.
func (b SearchBox) Edit(q string) SearchBox {
	b.Query = q
	b.ShowSuggestions = true
	if !b.Loading {
		b.Status = StatusIdle
		b.Error = ""
	}
	return b
}

// Submit starts a search for the current query. A blank query is a no-op
// and reports false.
func (b SearchBox) Submit() (SearchBox, uint64, bool) {
	if strings.TrimSpace(b.Query) == "" {
		return b, b.Generation, false
	}
	b.Generation++
	b.Status = StatusSearching
	b.Loading = true
	b.Error = ""
	return b, b.Generation, true
}

// Resolve lands a successful search. The query is cleared and the
// suggestion list hidden.
func (b SearchBox) Resolve(gen uint64, r Result) (SearchBox, bool) {
	if gen != b.Generation || b.Status != StatusSearching {
		return b, false
	}
	b.Status = StatusResolved
	b.Loading = false
	b.Error = ""
	b.Suggestions = r.Suggestions
	b.Query = ""
	b.ShowSuggestions = false
	return b, true
}

// Fail lands a failed search. The query is kept so it can be retried.
func (b SearchBox) Fail(gen uint64, err error) (SearchBox, bool) {
	if gen != b.Generation || b.Status != StatusSearching {
		return b, false
	}
	b.Status = StatusFailed
	b.Loading = false
	b.Error = errorMessage(err)
	b.Suggestions = nil
	return b, true
}

// Navigate returns to idle after the user has moved on.
func (b SearchBox) Navigate() SearchBox {
	b.Status = StatusIdle
	b.Loading = false
	b.Error = ""
	b.ShowSuggestions = false
	return b
}

func errorMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoResults):
		return "No results found"
	default:
		return "Failed to search location"
	}
}
