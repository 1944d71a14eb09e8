package scraper

import "strings"

// DetailURL is the absolute URL of one item's detail page.
type DetailURL string

// RawPage is the undecoded body of a fetched page plus where it came from.
type RawPage struct {
	URL        string
	StatusCode int
	Body       []byte
}

// Record is the set of fields extracted from a detail page.
type Record struct {
	Title       string `json:"title"`
	ReleaseDate string `json:"release_date"`
	Rating      string `json:"rating"`
	Synopsis    string `json:"synopsis"`
}

// Field names used when reporting missing values.
const (
	FieldTitle       = "title"
	FieldReleaseDate = "release_date"
	FieldRating      = "rating"
	FieldSynopsis    = "synopsis"
)

// Columns lists the persisted column order.
var Columns = []string{FieldTitle, FieldReleaseDate, FieldRating, FieldSynopsis}

// Missing returns the names of fields that are empty after trimming.
func (r Record) Missing() []string {
	var missing []string
	for i, v := range r.Row() {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, Columns[i])
		}
	}
	return missing
}

// Complete reports whether every field is populated.
func (r Record) Complete() bool {
	return len(r.Missing()) == 0
}

// Row returns the fields in column order.
func (r Record) Row() []string {
	return []string{r.Title, r.ReleaseDate, r.Rating, r.Synopsis}
}
