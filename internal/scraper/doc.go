// Package scraper defines the records, pages, errors, and component contracts
// shared by the catalog scraping pipeline.
package scraper
