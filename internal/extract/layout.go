// Package extract implements the catalog link collector and the detail page
// field extractor on top of the page model.
package extract

import (
	"fmt"
	"net/url"
	"strings"
)

// Layout holds the structural landmarks of the remote pages. The remote markup
// is not under our control, so every value is configurable.
type Layout struct {
	CatalogContainer string `mapstructure:"catalog_container"`
	CatalogList      string `mapstructure:"catalog_list"`
	CatalogItem      string `mapstructure:"catalog_item"`
	CatalogLink      string `mapstructure:"catalog_link"`

	Section       string `mapstructure:"section"`
	SectionChild  string `mapstructure:"section_child"`
	HeadingIndex  int    `mapstructure:"heading_index"`
	Heading       string `mapstructure:"heading"`
	HeadingLabel  string `mapstructure:"heading_label"`
	ReleaseMarker string `mapstructure:"release_marker"`
	Rating        string `mapstructure:"rating"`
	Synopsis      string `mapstructure:"synopsis"`
}

// DefaultLayout matches the "most popular movies" chart and title pages.
func DefaultLayout() Layout {
	return Layout{
		CatalogContainer: `div[data-testid="chart-layout-main-column"]`,
		CatalogList:      "ul",
		CatalogItem:      "li",
		CatalogLink:      "a",
		Section:          "section.ipc-page-section",
		SectionChild:     "div",
		HeadingIndex:     1,
		Heading:          "h1",
		HeadingLabel:     "span",
		ReleaseMarker:    "releaseinfo",
		Rating:           `div[data-testid="hero-rating-bar__aggregate-rating__score"]`,
		Synopsis:         `span[data-testid="plot-xs_to_m"]`,
	}
}

// Validate rejects layouts with empty landmarks.
func (l Layout) Validate() error {
	required := map[string]string{
		"catalog_container": l.CatalogContainer,
		"catalog_list":      l.CatalogList,
		"catalog_item":      l.CatalogItem,
		"catalog_link":      l.CatalogLink,
		"section":           l.Section,
		"section_child":     l.SectionChild,
		"heading":           l.Heading,
		"heading_label":     l.HeadingLabel,
		"release_marker":    l.ReleaseMarker,
		"rating":            l.Rating,
		"synopsis":          l.Synopsis,
	}
	for key, value := range required {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("layout.%s must be set", key)
		}
	}
	if l.HeadingIndex < 0 {
		return fmt.Errorf("layout.heading_index must be >= 0")
	}
	return nil
}

func (l Layout) releaseSelector() string {
	return fmt.Sprintf("a[href*=%q]", l.ReleaseMarker)
}

// resolve joins a catalog href onto the site origin.
func resolve(origin *url.URL, href string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", fmt.Errorf("parse href %q: %w", href, err)
	}
	return origin.ResolveReference(ref).String(), nil
}
