package scraper

import "context"

// Fetcher retrieves one page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (RawPage, error)
}

// Extractor turns a detail page into a complete record or an *ExtractionMiss.
type Extractor interface {
	Extract(page RawPage) (Record, error)
}

// Collector turns a catalog page into detail URLs in catalog order.
type Collector interface {
	Collect(page RawPage) ([]DetailURL, error)
}

// Sink appends complete records to persistent storage. Append must be safe
// for concurrent use and must write each record as a single row.
type Sink interface {
	Append(ctx context.Context, record Record) error
	Close() error
}
