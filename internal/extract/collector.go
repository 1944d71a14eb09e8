package extract

import (
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"github.com/JakeFAU/moviemeter-scraper/internal/page"
	"github.com/JakeFAU/moviemeter-scraper/internal/scraper"
)

// LinkCollector reads detail page links off a catalog page.
type LinkCollector struct {
	layout Layout
	origin *url.URL
	logger *zap.Logger
}

// NewLinkCollector builds a collector resolving hrefs against origin.
func NewLinkCollector(layout Layout, origin string, logger *zap.Logger) (*LinkCollector, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	u, err := url.Parse(origin)
	if err != nil {
		return nil, fmt.Errorf("parse origin: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("origin %q must be absolute", origin)
	}
	return &LinkCollector{layout: layout, origin: u, logger: logger}, nil
}

// Collect returns the detail URLs in catalog order. A missing container or
// list is a *scraper.StructureError.
func (c *LinkCollector) Collect(catalog scraper.RawPage) ([]scraper.DetailURL, error) {
	root, err := page.Parse(catalog.Body)
	if err != nil {
		return nil, err
	}
	container, ok := root.Find(c.layout.CatalogContainer)
	if !ok {
		return nil, &scraper.StructureError{Landmark: c.layout.CatalogContainer}
	}
	list, ok := container.Find(c.layout.CatalogList)
	if !ok {
		return nil, &scraper.StructureError{Landmark: c.layout.CatalogList}
	}

	items := list.FindAll(c.layout.CatalogItem)
	urls := make([]scraper.DetailURL, 0, len(items))
	for i, item := range items {
		link, ok := item.Find(c.layout.CatalogLink)
		if !ok {
			c.logger.Debug("catalog entry has no link", zap.Int("position", i))
			continue
		}
		href, ok := link.Attr("href")
		if !ok || href == "" {
			c.logger.Debug("catalog link has no href", zap.Int("position", i))
			continue
		}
		abs, err := resolve(c.origin, href)
		if err != nil {
			c.logger.Debug("skipping catalog link", zap.Int("position", i), zap.Error(err))
			continue
		}
		urls = append(urls, scraper.DetailURL(abs))
	}
	return urls, nil
}
