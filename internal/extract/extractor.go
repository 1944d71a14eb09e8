package extract

import (
	"strings"

	"github.com/JakeFAU/moviemeter-scraper/internal/page"
	"github.com/JakeFAU/moviemeter-scraper/internal/scraper"
)

// FieldExtractor pulls a Record out of a detail page. Missing markup yields
// empty fields; only a complete record is returned without error.
type FieldExtractor struct {
	layout Layout
}

// NewFieldExtractor returns an extractor for layout.
func NewFieldExtractor(layout Layout) *FieldExtractor {
	return &FieldExtractor{layout: layout}
}

// Extract returns the record or an *scraper.ExtractionMiss listing the absent
// fields. Unparseable pages count as a miss on every field.
func (e *FieldExtractor) Extract(raw scraper.RawPage) (scraper.Record, error) {
	root, err := page.Parse(raw.Body)
	if err != nil {
		return scraper.Record{}, &scraper.ExtractionMiss{URL: raw.URL, Missing: scraper.Columns}
	}

	var rec scraper.Record
	if heading, ok := e.headingBlock(root); ok {
		rec.Title = e.title(heading)
		if link, ok := heading.Find(e.layout.releaseSelector()); ok {
			rec.ReleaseDate = strings.TrimSpace(link.Text())
		}
	}
	rec.Rating = textOf(root, e.layout.Rating)
	rec.Synopsis = textOf(root, e.layout.Synopsis)

	if missing := rec.Missing(); len(missing) > 0 {
		return scraper.Record{}, &scraper.ExtractionMiss{URL: raw.URL, Missing: missing}
	}
	return rec, nil
}

// headingBlock returns the positional child of the primary section that holds
// the heading and metadata.
func (e *FieldExtractor) headingBlock(root page.Node) (page.Node, bool) {
	section, ok := root.Find(e.layout.Section)
	if !ok {
		return nil, false
	}
	children := section.Children(e.layout.SectionChild)
	if len(children) <= e.layout.HeadingIndex {
		return nil, false
	}
	return children[e.layout.HeadingIndex], true
}

func (e *FieldExtractor) title(block page.Node) string {
	heading, ok := block.Find(e.layout.Heading)
	if !ok {
		return ""
	}
	label, ok := heading.Find(e.layout.HeadingLabel)
	if !ok {
		return ""
	}
	return strings.TrimSpace(label.Text())
}

func textOf(root page.Node, selector string) string {
	n, ok := root.Find(selector)
	if !ok {
		return ""
	}
	return strings.TrimSpace(n.Text())
}
